package models

// SectionStatus tracks whether a section accepts registrations.
type SectionStatus string

const (
	SectionOpen   SectionStatus = "open"
	SectionClosed SectionStatus = "closed"
)

// Valid reports whether the status is a known section status.
func (s SectionStatus) Valid() bool {
	switch s {
	case SectionOpen, SectionClosed:
		return true
	default:
		return false
	}
}

// SectionKey identifies a section.
type SectionKey struct {
	CourseCode    string `json:"course_code"`
	SectionNumber int    `json:"section_number"`
}

// Class is a catalog entry that sections are offered under.
type Class struct {
	CourseCode string `db:"course_code" json:"course_code"`
	Name       string `db:"name" json:"name"`
	Department string `db:"department" json:"department"`
}

// Section holds the capacity state of one offering of a class.
type Section struct {
	CourseCode        string        `db:"course_code" json:"course_code"`
	SectionNumber     int           `db:"section_number" json:"section_number"`
	InstructorID      int64         `db:"instructor_id" json:"instructor_id"`
	MaxEnrollment     int           `db:"max_enrollment" json:"max_enrollment"`
	CurrentEnrollment int           `db:"current_enrollment" json:"current_enrollment"`
	Waitlist          int           `db:"waitlist" json:"waitlist"`
	Status            SectionStatus `db:"status" json:"status"`
}

// Key returns the section identifier.
func (s Section) Key() SectionKey {
	return SectionKey{CourseCode: s.CourseCode, SectionNumber: s.SectionNumber}
}

// Snapshot returns the counters the eligibility decision reads.
func (s Section) Snapshot() SectionSnapshot {
	return SectionSnapshot{Current: s.CurrentEnrollment, Max: s.MaxEnrollment, Waitlist: s.Waitlist}
}

// SectionSnapshot is a point-in-time copy of section counters.
type SectionSnapshot struct {
	Current  int
	Max      int
	Waitlist int
}

// AvailableClass is a catalog row for a department listing.
type AvailableClass struct {
	CourseCode          string        `db:"course_code" json:"course_code"`
	CourseName          string        `db:"course_name" json:"course_name"`
	Department          string        `db:"department" json:"department"`
	SectionNumber       int           `db:"section_number" json:"section_number"`
	InstructorFirstName string        `db:"instructor_first_name" json:"instructor_first_name"`
	InstructorLastName  string        `db:"instructor_last_name" json:"instructor_last_name"`
	CurrentEnrollment   int           `db:"current_enrollment" json:"current_enrollment"`
	MaxEnrollment       int           `db:"max_enrollment" json:"max_enrollment"`
	Waitlist            int           `db:"waitlist" json:"waitlist"`
	Status              SectionStatus `db:"status" json:"status"`
}

// SectionAudit compares a section's counters with the ledger rows behind them.
type SectionAudit struct {
	Section          Section `json:"section"`
	LedgerEnrolled   int     `json:"ledger_enrolled"`
	LedgerWaitlisted int     `json:"ledger_waitlisted"`
	LedgerDropped    int     `json:"ledger_dropped"`
	Consistent       bool    `json:"consistent"`
}
