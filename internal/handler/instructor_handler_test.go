package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/service"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/export"
)

type fakeRosterSrv struct {
	query  dto.RosterQuery
	status models.RegistrationStatus
	format export.Format
}

func (f *fakeRosterSrv) Roster(_ context.Context, q dto.RosterQuery, status models.RegistrationStatus) ([]models.RosterEntry, error) {
	f.query, f.status = q, status
	return []models.RosterEntry{{StudentID: 100, CourseCode: "CS101", SectionNumber: 1, Status: status}}, nil
}

func (f *fakeRosterSrv) Export(_ context.Context, q dto.RosterQuery, status models.RegistrationStatus, format export.Format) (*service.RosterExport, error) {
	f.query, f.status, f.format = q, status, format
	return &service.RosterExport{Filename: "roster.csv", ContentType: format.ContentType(), Body: []byte("a,b\n")}, nil
}

type fakeDropper struct {
	req dto.DropStudentRequest
	err error
}

func (f *fakeDropper) InstructorDrop(_ context.Context, req dto.DropStudentRequest) (*models.DropResult, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.DropResult{StudentID: req.StudentID, Status: models.OutcomeDropped, PriorStatus: models.RegistrationWaitlisted}, nil
}

func TestRosterDefaultsToEnrolled(t *testing.T) {
	rosters := &fakeRosterSrv{}
	c, rec := testContext(http.MethodGet, "/instructor/roster?course_code=CS101&section_number=2", nil, instructor(900))
	NewInstructorHandler(rosters, &fakeDropper{}).Roster(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RegistrationEnrolled, rosters.status)
	assert.Equal(t, int64(900), rosters.query.InstructorID)
	require.NotNil(t, rosters.query.SectionNumber)
	assert.Equal(t, 2, *rosters.query.SectionNumber)
	assert.EqualValues(t, 1, decode(t, rec).Meta["count"])
}

func TestRosterRejectsBadSectionNumber(t *testing.T) {
	c, rec := testContext(http.MethodGet, "/instructor/roster?section_number=x", nil, instructor(900))
	NewInstructorHandler(&fakeRosterSrv{}, &fakeDropper{}).Roster(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRosterExportServesAttachment(t *testing.T) {
	rosters := &fakeRosterSrv{}
	c, rec := testContext(http.MethodGet, "/instructor/roster/export?format=CSV&status=waitlisted", nil, instructor(900))
	NewInstructorHandler(rosters, &fakeDropper{}).Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.FormatCSV, rosters.format)
	assert.Equal(t, models.RegistrationWaitlisted, rosters.status)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "roster.csv")
	assert.Equal(t, "a,b\n", rec.Body.String())

	c, rec = testContext(http.MethodGet, "/instructor/roster/export?format=xlsx", nil, instructor(900))
	NewInstructorHandler(rosters, &fakeDropper{}).Export(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDropStudentUsesCallerAsInstructor(t *testing.T) {
	dropper := &fakeDropper{}
	c, rec := testContext(http.MethodPost, "/instructor/drops", gin.H{"student_id": 101, "course_code": "CS101", "section_number": 1}, instructor(900))
	NewInstructorHandler(&fakeRosterSrv{}, dropper).DropStudent(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.DropStudentRequest{InstructorID: 900, StudentID: 101, CourseCode: "CS101", SectionNumber: 1}, dropper.req)

	dropper.err = appErrors.Clone(appErrors.ErrForbidden, "instructor does not teach the section")
	c, rec = testContext(http.MethodPost, "/instructor/drops", gin.H{"student_id": 101, "course_code": "CS101", "section_number": 1}, instructor(901))
	NewInstructorHandler(&fakeRosterSrv{}, dropper).DropStudent(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
