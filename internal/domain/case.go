package domain

import (
	"strings"
	"time"
)

// Phase is the clinical timing tag for a case or image:
// pre-, intra- or post-procedure.
type Phase string

const (
	PhasePre   Phase = "pre"
	PhaseIntra Phase = "intra"
	PhasePost  Phase = "post"
)

// CaseStatusOpen is the default status for newly created cases.
// Status is free-form; "open" is the only value the backend assigns itself.
const CaseStatusOpen = "open"

// ParsePhase normalizes a caller-supplied phase string. Matching is
// case-insensitive; the empty string defaults to PhasePre.
func ParsePhase(s string) (Phase, error) {
	if s == "" {
		return PhasePre, nil
	}
	switch Phase(strings.ToLower(s)) {
	case PhasePre:
		return PhasePre, nil
	case PhaseIntra:
		return PhaseIntra, nil
	case PhasePost:
		return PhasePost, nil
	default:
		return "", ErrInvalidPhase
	}
}

// Case is one clinical episode for a patient, with descriptive taxonomy tags
// and attached images. A case is the unit of deduplication: submissions with
// the same (national id, region, diagnosis, owner) inside the duplicate
// window merge into the most recent matching case instead of creating a
// new one.
type Case struct {
	// ID is the unique identifier for this case.
	ID int64 `json:"id"`

	// PatientID is the ID of the patient this case belongs to.
	PatientID int64 `json:"patient_id"`

	// NationalID is a denormalized copy of the patient's national id,
	// kept on the case because the duplicate lookup is keyed on it.
	NationalID string `json:"national_id"`

	// Region is the anatomical region. Required.
	Region string `json:"region"`

	// Etiology is the cause classification. Nullable.
	Etiology *string `json:"etiology,omitempty"`

	// Tissue is the affected tissue classification. Nullable.
	Tissue *string `json:"tissue,omitempty"`

	// Diagnosis is the diagnosis label. Required.
	Diagnosis string `json:"diagnosis"`

	// Treatment is the applied treatment. Nullable.
	Treatment *string `json:"treatment,omitempty"`

	// Phase is the clinical phase the case was filed under. Nullable.
	Phase *Phase `json:"phase,omitempty"`

	// Status is a free-form case status, defaulting to "open".
	Status string `json:"status"`

	// UploadedBy is the ID of the professional user the case is attributed to.
	UploadedBy int64 `json:"uploaded_by"`

	// Images are the attached images. Populated on reads that include them.
	Images []*Image `json:"images,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCase creates a case with default status and timestamps.
func NewCase(patientID int64, nationalID, region, diagnosis string, uploadedBy int64) *Case {
	now := time.Now().UTC()
	return &Case{
		PatientID:  patientID,
		NationalID: nationalID,
		Region:     region,
		Diagnosis:  diagnosis,
		Status:     CaseStatusOpen,
		UploadedBy: uploadedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MergeDescriptors fills the nullable descriptor fields (etiology, tissue,
// treatment) that are currently null with non-null incoming values. Existing
// non-null values are never overwritten. Returns true if anything changed.
func (c *Case) MergeDescriptors(etiology, tissue, treatment *string) bool {
	changed := false
	if c.Etiology == nil && etiology != nil {
		c.Etiology = etiology
		changed = true
	}
	if c.Tissue == nil && tissue != nil {
		c.Tissue = tissue
		changed = true
	}
	if c.Treatment == nil && treatment != nil {
		c.Treatment = treatment
		changed = true
	}
	return changed
}

// IsComplete reports whether all optional descriptors have been filled in.
// Incomplete cases are surfaced to professionals for completion.
func (c *Case) IsComplete() bool {
	return c.Etiology != nil && c.Tissue != nil && c.Treatment != nil
}
