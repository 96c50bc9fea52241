package domain

import "time"

// TaxonomyLevel identifies one level of the per-user clinical hierarchy:
// region → etiology → tissue → diagnosis → treatment.
type TaxonomyLevel string

const (
	LevelRegion    TaxonomyLevel = "region"
	LevelEtiology  TaxonomyLevel = "etiology"
	LevelTissue    TaxonomyLevel = "tissue"
	LevelDiagnosis TaxonomyLevel = "diagnosis"
	LevelTreatment TaxonomyLevel = "treatment"
)

// TaxonomyLevels lists the hierarchy top-down. The parent of an entry at
// level i lives at level i-1; regions have no parent.
var TaxonomyLevels = []TaxonomyLevel{
	LevelRegion, LevelEtiology, LevelTissue, LevelDiagnosis, LevelTreatment,
}

// Valid reports whether l names a known level.
func (l TaxonomyLevel) Valid() bool {
	for _, level := range TaxonomyLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Parent returns the level above l, or "" for the root level.
func (l TaxonomyLevel) Parent() TaxonomyLevel {
	for i, level := range TaxonomyLevels {
		if l == level && i > 0 {
			return TaxonomyLevels[i-1]
		}
	}
	return ""
}

// TaxonomyNode is one entry in a user's clinical hierarchy.
type TaxonomyNode struct {
	// ID is the unique identifier within its level.
	ID int64 `json:"id"`

	// OwnerUserID is the professional that owns this entry.
	OwnerUserID int64 `json:"owner_user_id"`

	// Level is the hierarchy level this entry belongs to.
	Level TaxonomyLevel `json:"level"`

	// ParentID references the entry one level up. Nil for regions.
	ParentID *int64 `json:"parent_id,omitempty"`

	// Name is the display label.
	Name string `json:"name"`

	CreatedAt time.Time `json:"created_at"`
}

// TaxonomyTree is the fully nested hierarchy returned to clients building
// the case submission form.
type TaxonomyTree struct {
	Regions []*TaxonomyBranch `json:"regions"`
}

// TaxonomyBranch is a node plus its nested children.
type TaxonomyBranch struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Children []*TaxonomyBranch `json:"children,omitempty"`
}

// Favorite marks an image a user wants quick access to.
// Unique per (user, image).
type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ImageID   int64     `json:"image_id"`
	CreatedAt time.Time `json:"created_at"`
}
