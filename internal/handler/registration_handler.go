package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/response"
)

type registrationService interface {
	Enroll(ctx context.Context, req dto.EnrollmentRequest) (*models.EnrollmentResult, error)
	Drop(ctx context.Context, req dto.EnrollmentRequest) (*models.DropResult, error)
}

// RegistrationHandler exposes student enroll and drop endpoints.
type RegistrationHandler struct {
	registrations registrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations registrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

type sectionBody struct {
	StudentID     int64  `json:"student_id"`
	CourseCode    string `json:"course_code" binding:"required"`
	SectionNumber int    `json:"section_number" binding:"required"`
}

// Enroll godoc
// @Summary Enroll in a section
// @Description Students always act as themselves. Registrars must name the student.
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body sectionBody true "Section to enroll in"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Enroll(c *gin.Context) {
	req, err := h.request(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.registrations.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Status == models.OutcomeEnrolled || result.Status == models.OutcomeWaitlisted {
		status = http.StatusCreated
	}
	response.JSON(c, status, result)
}

// Drop godoc
// @Summary Drop a section
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body sectionBody true "Section to drop"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/drop [post]
func (h *RegistrationHandler) Drop(c *gin.Context) {
	req, err := h.request(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.registrations.Drop(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func (h *RegistrationHandler) request(c *gin.Context) (dto.EnrollmentRequest, error) {
	claims, err := claimsFromContext(c)
	if err != nil {
		return dto.EnrollmentRequest{}, err
	}
	var body sectionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		return dto.EnrollmentRequest{}, invalidPayload(err)
	}

	studentID := body.StudentID
	switch claims.Role {
	case models.RoleStudent:
		if studentID != 0 && studentID != claims.UserID {
			return dto.EnrollmentRequest{}, appErrors.Clone(appErrors.ErrForbidden, "students may only act for themselves")
		}
		studentID = claims.UserID
	case models.RoleRegistrar:
		if studentID <= 0 {
			return dto.EnrollmentRequest{}, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
		}
	case models.RoleInstructor, models.RoleNotFound:
		return dto.EnrollmentRequest{}, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" may not register students")
	default:
		return dto.EnrollmentRequest{}, appErrors.ErrForbidden
	}
	return dto.EnrollmentRequest{StudentID: studentID, CourseCode: body.CourseCode, SectionNumber: body.SectionNumber}, nil
}
