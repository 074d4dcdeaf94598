package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/response"
)

type waitlistService interface {
	WaitlistPositions(ctx context.Context, studentID int64) ([]models.WaitlistPosition, error)
	SectionWaitlist(ctx context.Context, key models.SectionKey) ([]models.WaitlistEntry, error)
}

// WaitlistHandler reports waitlist ranks.
type WaitlistHandler struct {
	waitlists waitlistService
}

// NewWaitlistHandler constructs WaitlistHandler.
func NewWaitlistHandler(waitlists waitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlists: waitlists}
}

// StudentPositions godoc
// @Summary Waitlist positions of a student
// @Tags Waitlists
// @Produce json
// @Param id path int true "Student CWID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/waitlist [get]
func (h *WaitlistHandler) StudentPositions(c *gin.Context) {
	studentID, err := positiveID(c.Param("id"), "student id")
	if err != nil {
		response.Error(c, err)
		return
	}
	positions, err := h.waitlists.WaitlistPositions(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, positions, map[string]interface{}{"count": len(positions)})
}

// Section godoc
// @Summary Waitlist of a section in rank order
// @Tags Waitlists
// @Produce json
// @Param courseCode path string true "Course code"
// @Param sectionNumber path int true "Section number"
// @Success 200 {object} response.Envelope
// @Router /sections/{courseCode}/{sectionNumber}/waitlist [get]
func (h *WaitlistHandler) Section(c *gin.Context) {
	key, err := sectionFromPath(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.waitlists.SectionWaitlist(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}
