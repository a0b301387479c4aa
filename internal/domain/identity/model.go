package identity

import "time"

// Patient is a patient profile. The ID matches the subject claim issued by
// the identity provider, so a patient's profile, anamnesis and appointments
// all key on the same value.
type Patient struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	BirthDate string    `json:"birth_date,omitempty"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Doctor is a clinician profile.
type Doctor struct {
	ID            string    `json:"id"`
	FullName      string    `json:"full_name"`
	Specialty     string    `json:"specialty"`
	LicenseNumber string    `json:"license_number"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
