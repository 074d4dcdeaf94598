package models

import "time"

// RegistrationStatus is the persisted status of a ledger row.
type RegistrationStatus string

const (
	RegistrationEnrolled   RegistrationStatus = "enrolled"
	RegistrationWaitlisted RegistrationStatus = "waitlisted"
	RegistrationDropped    RegistrationStatus = "dropped"
)

// Valid reports whether the status may be persisted.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationEnrolled, RegistrationWaitlisted, RegistrationDropped:
		return true
	default:
		return false
	}
}

// Active reports whether the row still holds a seat or a waitlist slot.
func (s RegistrationStatus) Active() bool {
	switch s {
	case RegistrationEnrolled, RegistrationWaitlisted:
		return true
	case RegistrationDropped:
		return false
	default:
		return false
	}
}

// Registration is one ledger row. EnrollmentDate is assigned at insert and never changes.
type Registration struct {
	ID             int64              `db:"id" json:"id"`
	StudentID      int64              `db:"student_id" json:"student_id"`
	CourseCode     string             `db:"course_code" json:"course_code"`
	SectionNumber  int                `db:"section_number" json:"section_number"`
	Status         RegistrationStatus `db:"status" json:"status"`
	EnrollmentDate time.Time          `db:"enrollment_date" json:"enrollment_date"`
}

// Key returns the section the registration belongs to.
func (r Registration) Key() SectionKey {
	return SectionKey{CourseCode: r.CourseCode, SectionNumber: r.SectionNumber}
}

// Eligibility is the outcome of checking section headroom for a new registration.
type Eligibility string

const (
	EligibilityEnrolled    Eligibility = "enrolled"
	EligibilityWaitlisted  Eligibility = "waitlisted"
	EligibilityNotEligible Eligibility = "not_eligible"
)

// EnrollmentOutcome is the status reported to callers of enroll.
type EnrollmentOutcome string

const (
	OutcomeEnrolled          EnrollmentOutcome = "enrolled"
	OutcomeWaitlisted        EnrollmentOutcome = "waitlisted"
	OutcomeNotEligible       EnrollmentOutcome = "not_eligible"
	OutcomeAlreadyEnrolled   EnrollmentOutcome = "already_enrolled"
	OutcomeAlreadyWaitlisted EnrollmentOutcome = "already_waitlisted"
)

// EnrollmentResult is returned by enroll. EnrollmentDate is nil for not_eligible.
type EnrollmentResult struct {
	StudentID      int64             `json:"student_id"`
	CourseCode     string            `json:"course_code"`
	SectionNumber  int               `json:"section_number"`
	Status         EnrollmentOutcome `json:"enrollment_status"`
	EnrollmentDate *time.Time        `json:"enrollment_date,omitempty"`
}

// DropOutcome is the status reported to callers of drop.
type DropOutcome string

const (
	OutcomeDropped        DropOutcome = "dropped"
	OutcomeDroppedAlready DropOutcome = "dropped_already"
)

// DropResult is returned by the drop operations.
type DropResult struct {
	StudentID     int64              `json:"student_id"`
	CourseCode    string             `json:"course_code"`
	SectionNumber int                `json:"section_number"`
	Status        DropOutcome        `json:"status"`
	PriorStatus   RegistrationStatus `json:"prior_status,omitempty"`
}

// WaitlistPosition is a student's 1-based rank on one section waitlist.
type WaitlistPosition struct {
	CourseCode    string `db:"course_code" json:"course_code"`
	SectionNumber int    `db:"section_number" json:"section_number"`
	Position      int    `db:"position" json:"waitlist_position"`
}

// WaitlistEntry is one student on a section waitlist.
type WaitlistEntry struct {
	StudentID      int64     `db:"student_id" json:"student_id"`
	StudentName    string    `db:"student_name" json:"student_name"`
	EnrollmentDate time.Time `db:"enrollment_date" json:"enrollment_date"`
}

// RosterEntry is a ledger row joined with student and class details.
type RosterEntry struct {
	StudentID        int64              `db:"student_id" json:"student_cwid"`
	StudentFirstName string             `db:"student_first_name" json:"student_first_name"`
	StudentLastName  string             `db:"student_last_name" json:"student_last_name"`
	CourseCode       string             `db:"course_code" json:"course_code"`
	SectionNumber    int                `db:"section_number" json:"section_number"`
	ClassName        string             `db:"class_name" json:"class_name"`
	Status           RegistrationStatus `db:"status" json:"status"`
}

// RosterFilter narrows an instructor roster listing.
type RosterFilter struct {
	InstructorID  int64
	Status        RegistrationStatus
	CourseCode    string
	SectionNumber *int
}
