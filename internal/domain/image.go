package domain

import "time"

// Image is one clinical photograph attached to a case. The binary content
// lives in the object store; the row only records the public URL and phase.
// Images are deleted together with their case (cascade) or individually,
// with the remote blob removed in both paths.
type Image struct {
	// ID is the unique identifier for this image.
	ID int64 `json:"id"`

	// CaseID is the parent case. Every image has exactly one.
	CaseID int64 `json:"case_id"`

	// URL is the public object-store URL. The storage key can be recovered
	// from it by stripping scheme, host and the leading slash.
	URL string `json:"url"`

	// Phase is the clinical phase the photograph was taken in.
	Phase Phase `json:"phase"`

	CreatedAt time.Time `json:"created_at"`
}

// NewImage creates an image row for an uploaded blob.
func NewImage(caseID int64, url string, phase Phase) *Image {
	return &Image{
		CaseID:    caseID,
		URL:       url,
		Phase:     phase,
		CreatedAt: time.Now().UTC(),
	}
}
