// Package identity validates the identifier and contact formats used across
// the booking workflow. All checks are pure full-string matches.
package identity

import "regexp"

var (
	patientPattern = regexp.MustCompile(`^PAT-\d{4}$`)
	doctorPattern  = regexp.MustCompile(`^DR-\d{3}$`)
	phonePattern   = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ValidPatientID reports whether id is of the form PAT- followed by exactly
// four digits.
func ValidPatientID(id string) bool {
	return patientPattern.MatchString(id)
}

// ValidDoctorID reports whether id is of the form DR- followed by exactly
// three digits.
func ValidDoctorID(id string) bool {
	return doctorPattern.MatchString(id)
}

// ValidateIDs gates every booking attempt: both identifiers must match their
// formats exactly.
func ValidateIDs(patientID, doctorID string) bool {
	return ValidPatientID(patientID) && ValidDoctorID(doctorID)
}

// ValidPhone reports whether the value is an E.164-style number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidEmail reports whether the value looks like local@domain.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
