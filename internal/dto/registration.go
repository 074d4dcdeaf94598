package dto

import "github.com/noah-isme/course-registration-api/internal/models"

// EnrollmentRequest identifies a student and the section they act on.
type EnrollmentRequest struct {
	StudentID     int64  `json:"student_id" validate:"required,gt=0"`
	CourseCode    string `json:"course_code" validate:"required,max=32"`
	SectionNumber int    `json:"section_number" validate:"required,gt=0"`
}

// Key returns the section targeted by the request.
func (r EnrollmentRequest) Key() models.SectionKey {
	return models.SectionKey{CourseCode: r.CourseCode, SectionNumber: r.SectionNumber}
}

// DropStudentRequest is an instructor-initiated drop.
type DropStudentRequest struct {
	InstructorID  int64  `json:"instructor_id" validate:"required,gt=0"`
	StudentID     int64  `json:"student_id" validate:"required,gt=0"`
	CourseCode    string `json:"course_code" validate:"required,max=32"`
	SectionNumber int    `json:"section_number" validate:"required,gt=0"`
}

// Key returns the section targeted by the request.
func (r DropStudentRequest) Key() models.SectionKey {
	return models.SectionKey{CourseCode: r.CourseCode, SectionNumber: r.SectionNumber}
}

// RosterQuery filters instructor roster endpoints.
type RosterQuery struct {
	InstructorID  int64
	CourseCode    string
	SectionNumber *int
}
