package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/response"
)

type registrarService interface {
	AddClass(ctx context.Context, req dto.AddClassRequest) (*dto.AddClassResult, error)
	DeleteSection(ctx context.Context, req dto.SectionRequest) error
	ChangeInstructor(ctx context.Context, req dto.ChangeInstructorRequest) error
	FreezeEnrollment(ctx context.Context, req dto.SectionRequest) error
	AuditSection(ctx context.Context, key models.SectionKey) (*models.SectionAudit, error)
}

// RegistrarHandler exposes class and section administration.
type RegistrarHandler struct {
	registrar registrarService
}

// NewRegistrarHandler constructs RegistrarHandler.
func NewRegistrarHandler(registrar registrarService) *RegistrarHandler {
	return &RegistrarHandler{registrar: registrar}
}

// AddClass godoc
// @Summary Add a section, creating its class when new
// @Tags Registrar
// @Accept json
// @Produce json
// @Param payload body dto.AddClassRequest true "Class and section"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrar/classes [post]
func (h *RegistrarHandler) AddClass(c *gin.Context) {
	var req dto.AddClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.registrar.AddClass(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// DeleteSection godoc
// @Summary Delete a section
// @Tags Registrar
// @Param courseCode path string true "Course code"
// @Param sectionNumber path int true "Section number"
// @Success 204
// @Router /registrar/sections/{courseCode}/{sectionNumber} [delete]
func (h *RegistrarHandler) DeleteSection(c *gin.Context) {
	key, err := sectionFromPath(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.registrar.DeleteSection(c.Request.Context(), dto.SectionRequest{CourseCode: key.CourseCode, SectionNumber: key.SectionNumber}); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type changeInstructorBody struct {
	InstructorID int64 `json:"instructor_id" binding:"required"`
}

// ChangeInstructor godoc
// @Summary Reassign the instructor of a section
// @Tags Registrar
// @Accept json
// @Produce json
// @Param courseCode path string true "Course code"
// @Param sectionNumber path int true "Section number"
// @Param payload body changeInstructorBody true "New instructor"
// @Success 200 {object} response.Envelope
// @Router /registrar/sections/{courseCode}/{sectionNumber}/instructor [put]
func (h *RegistrarHandler) ChangeInstructor(c *gin.Context) {
	key, err := sectionFromPath(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var body changeInstructorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	req := dto.ChangeInstructorRequest{CourseCode: key.CourseCode, SectionNumber: key.SectionNumber, InstructorID: body.InstructorID}
	if err := h.registrar.ChangeInstructor(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req)
}

// Freeze godoc
// @Summary Close a section to new registrations
// @Tags Registrar
// @Produce json
// @Param courseCode path string true "Course code"
// @Param sectionNumber path int true "Section number"
// @Success 200 {object} response.Envelope
// @Router /registrar/sections/{courseCode}/{sectionNumber}/freeze [post]
func (h *RegistrarHandler) Freeze(c *gin.Context) {
	key, err := sectionFromPath(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.registrar.FreezeEnrollment(c.Request.Context(), dto.SectionRequest{CourseCode: key.CourseCode, SectionNumber: key.SectionNumber}); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"course_code": key.CourseCode, "section_number": key.SectionNumber, "status": models.SectionClosed})
}

// Audit godoc
// @Summary Compare section counters with the registration ledger
// @Tags Registrar
// @Produce json
// @Param courseCode path string true "Course code"
// @Param sectionNumber path int true "Section number"
// @Success 200 {object} response.Envelope
// @Router /registrar/sections/{courseCode}/{sectionNumber}/audit [get]
func (h *RegistrarHandler) Audit(c *gin.Context) {
	key, err := sectionFromPath(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	audit, err := h.registrar.AuditSection(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, audit)
}
