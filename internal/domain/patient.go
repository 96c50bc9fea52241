package domain

import "time"

// Patient is a person under the care of exactly one professional user.
// Patients are created lazily on first case submission when no patient with
// the same (owner, national id) pair exists.
type Patient struct {
	// ID is the unique identifier for this patient.
	ID int64 `json:"id"`

	// OwnerUserID is the professional user that owns this record. The pair
	// (OwnerUserID, NationalID) is unique: one professional cannot register
	// the same national id twice, but different professionals may.
	OwnerUserID int64 `json:"owner_user_id"`

	// NationalID is the patient's national identity document number.
	// May be a synthetic identifier when the document was not supplied.
	NationalID string `json:"national_id"`

	// GivenName is the patient's first name. Nullable.
	GivenName *string `json:"given_name,omitempty"`

	// FamilyName is the patient's last name. Nullable.
	FamilyName *string `json:"family_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewPatient creates a patient owned by the given user.
func NewPatient(ownerUserID int64, nationalID string, givenName, familyName *string) *Patient {
	return &Patient{
		OwnerUserID: ownerUserID,
		NationalID:  nationalID,
		GivenName:   givenName,
		FamilyName:  familyName,
		CreatedAt:   time.Now().UTC(),
	}
}
