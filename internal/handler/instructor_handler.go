package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/service"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/export"
	"github.com/noah-isme/course-registration-api/pkg/response"
)

type rosterService interface {
	Roster(ctx context.Context, query dto.RosterQuery, status models.RegistrationStatus) ([]models.RosterEntry, error)
	Export(ctx context.Context, query dto.RosterQuery, status models.RegistrationStatus, format export.Format) (*service.RosterExport, error)
}

type instructorDropper interface {
	InstructorDrop(ctx context.Context, req dto.DropStudentRequest) (*models.DropResult, error)
}

// InstructorHandler serves rosters and instructor-initiated drops for the calling instructor.
type InstructorHandler struct {
	rosters rosterService
	drops   instructorDropper
}

// NewInstructorHandler constructs InstructorHandler.
func NewInstructorHandler(rosters rosterService, drops instructorDropper) *InstructorHandler {
	return &InstructorHandler{rosters: rosters, drops: drops}
}

// Roster godoc
// @Summary Students of the caller's sections
// @Tags Instructor
// @Produce json
// @Param status query string false "enrolled, waitlisted or dropped" default(enrolled)
// @Param course_code query string false "Course code"
// @Param section_number query int false "Section number"
// @Success 200 {object} response.Envelope
// @Router /instructor/roster [get]
func (h *InstructorHandler) Roster(c *gin.Context) {
	query, status, err := rosterQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.rosters.Roster(c.Request.Context(), query, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries), "status": status})
}

// Export godoc
// @Summary Download the caller's roster
// @Tags Instructor
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param status query string false "enrolled, waitlisted or dropped" default(enrolled)
// @Param course_code query string false "Course code"
// @Param section_number query int false "Section number"
// @Success 200 {file} file
// @Router /instructor/roster/export [get]
func (h *InstructorHandler) Export(c *gin.Context) {
	query, status, err := rosterQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		response.Error(c, appErrors.WrapAs(err, appErrors.ErrValidation, err.Error()))
		return
	}
	file, err := h.rosters.Export(c.Request.Context(), query, status, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

type dropStudentBody struct {
	StudentID     int64  `json:"student_id" binding:"required"`
	CourseCode    string `json:"course_code" binding:"required"`
	SectionNumber int    `json:"section_number" binding:"required"`
}

// DropStudent godoc
// @Summary Drop a student from one of the caller's sections
// @Tags Instructor
// @Accept json
// @Produce json
// @Param payload body dropStudentBody true "Student and section"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /instructor/drops [post]
func (h *InstructorHandler) DropStudent(c *gin.Context) {
	claims, err := claimsFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var body dropStudentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.drops.InstructorDrop(c.Request.Context(), dto.DropStudentRequest{
		InstructorID:  claims.UserID,
		StudentID:     body.StudentID,
		CourseCode:    body.CourseCode,
		SectionNumber: body.SectionNumber,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func rosterQuery(c *gin.Context) (dto.RosterQuery, models.RegistrationStatus, error) {
	claims, err := claimsFromContext(c)
	if err != nil {
		return dto.RosterQuery{}, "", err
	}
	query := dto.RosterQuery{InstructorID: claims.UserID, CourseCode: strings.TrimSpace(c.Query("course_code"))}
	if raw := c.Query("section_number"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return dto.RosterQuery{}, "", appErrors.Clone(appErrors.ErrValidation, "section_number must be a positive integer")
		}
		query.SectionNumber = &n
	}
	status := models.RegistrationStatus(strings.ToLower(c.DefaultQuery("status", string(models.RegistrationEnrolled))))
	return query, status, nil
}
