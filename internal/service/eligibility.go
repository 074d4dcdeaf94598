package service

import "github.com/noah-isme/course-registration-api/internal/models"

// Evaluate decides how a new registration fits a section. A free seat wins; otherwise
// the student is waitlisted while the waitlist count is at most waitlistCap, so up to waitlistCap+1
// students can be waitlisted. The snapshot must come from the locked section row.
func Evaluate(snapshot models.SectionSnapshot, waitlistCap int) models.Eligibility {
	if snapshot.Max-snapshot.Current >= 1 {
		return models.EligibilityEnrolled
	}
	if snapshot.Waitlist <= waitlistCap {
		return models.EligibilityWaitlisted
	}
	return models.EligibilityNotEligible
}
