package domain

import "time"

// Beneficiary is a program participant. Business identity is the
// (email, name, firstName) tuple, captured by Fingerprint.
type Beneficiary struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	FirstName string `json:"firstName" db:"first_name"`
	Email     string `json:"email" db:"email"`
	Gender    string `json:"gender" db:"gender"`
	Country   string `json:"country" db:"country"`

	Level                 *string `json:"level,omitempty" db:"level"`
	ProfessionalSituation *string `json:"professionalSituation,omitempty" db:"professional_situation"`
	Region                *string `json:"region,omitempty" db:"region"`
	AgeRange              *string `json:"ageRange,omitempty" db:"age_range"`
	Phone                 *string `json:"phone,omitempty" db:"phone"`

	Fingerprint string    `json:"-" db:"fingerprint"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// IdentityFingerprint computes the fingerprint of the beneficiary's identity
// fields. It ignores the stored Fingerprint field.
func (b Beneficiary) IdentityFingerprint() string {
	return ComputeFingerprint(b.Email, b.Name, b.FirstName)
}

// EnrollmentLink records that a beneficiary is enrolled in a formation.
// At most one link exists per (beneficiary, formation) pair. Links created by
// an import keep the zero value for every flag.
type EnrollmentLink struct {
	ID             string    `json:"id" db:"id"`
	FormationID    string    `json:"formation" db:"formation_id"`
	BeneficiaryID  string    `json:"beneficiary" db:"beneficiary_id"`
	CallConfirmed  bool      `json:"callConfirmed" db:"call_confirmed"`
	EmailConfirmed bool      `json:"emailConfirmed" db:"email_confirmed"`
	Submitted      bool      `json:"submitted" db:"submitted"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}
