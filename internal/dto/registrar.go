package dto

// AddClassRequest creates a section, creating its class first when missing.
type AddClassRequest struct {
	CourseCode    string `json:"course_code" validate:"required,max=32"`
	ClassName     string `json:"class_name" validate:"required"`
	Department    string `json:"department" validate:"required"`
	SectionNumber int    `json:"section_number" validate:"required,gt=0"`
	InstructorID  int64  `json:"instructor_id" validate:"required,gt=0"`
	MaxEnrollment int    `json:"max_enrollment" validate:"required,gt=0"`
}

// AddClassResult reports what add class created.
type AddClassResult struct {
	ClassCreated   bool   `json:"class_created"`
	SectionCreated bool   `json:"section_created"`
	Message        string `json:"message"`
}

// SectionRequest identifies a section for registrar operations.
type SectionRequest struct {
	CourseCode    string `json:"course_code" validate:"required,max=32"`
	SectionNumber int    `json:"section_number" validate:"required,gt=0"`
}

// ChangeInstructorRequest reassigns a section.
type ChangeInstructorRequest struct {
	CourseCode    string `json:"course_code" validate:"required,max=32"`
	SectionNumber int    `json:"section_number" validate:"required,gt=0"`
	InstructorID  int64  `json:"instructor_id" validate:"required,gt=0"`
}
