package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/export"
)

type roleMap map[int64]models.UserRole

func (r roleMap) RoleOf(_ context.Context, id int64) (models.UserRole, error) {
	if role, ok := r[id]; ok {
		return role, nil
	}
	return models.RoleNotFound, nil
}

type rosterStub struct {
	entries []models.RosterEntry
	err     error
	filter  models.RosterFilter
}

func (s *rosterStub) ListRoster(_ context.Context, filter models.RosterFilter) ([]models.RosterEntry, error) {
	s.filter = filter
	return s.entries, s.err
}

func TestRosterPassesFilters(t *testing.T) {
	stub := &rosterStub{entries: []models.RosterEntry{{StudentID: 100, StudentFirstName: "Ada", StudentLastName: "Lovelace", CourseCode: "CS101", SectionNumber: 1, ClassName: "Intro", Status: models.RegistrationEnrolled}}}
	svc := NewRosterService(roleMap{instructorID: models.RoleInstructor}, stub, nil)
	section := 1

	entries, err := svc.Roster(context.Background(), dto.RosterQuery{InstructorID: instructorID, CourseCode: "CS101", SectionNumber: &section}, models.RegistrationEnrolled)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, models.RosterFilter{InstructorID: instructorID, Status: models.RegistrationEnrolled, CourseCode: "CS101", SectionNumber: &section}, stub.filter)
}

func TestRosterRejectsNonInstructor(t *testing.T) {
	svc := NewRosterService(roleMap{100: models.RoleStudent}, &rosterStub{}, nil)

	_, err := svc.Roster(context.Background(), dto.RosterQuery{InstructorID: 100}, models.RegistrationWaitlisted)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.Roster(context.Background(), dto.RosterQuery{InstructorID: 100}, models.RegistrationStatus("pending"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRosterStoreFailure(t *testing.T) {
	svc := NewRosterService(roleMap{instructorID: models.RoleInstructor}, &rosterStub{err: errors.New("boom")}, nil)

	_, err := svc.Roster(context.Background(), dto.RosterQuery{InstructorID: instructorID}, models.RegistrationDropped)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestRosterExportCSV(t *testing.T) {
	stub := &rosterStub{entries: []models.RosterEntry{
		{StudentID: 101, StudentFirstName: "Alan", StudentLastName: "Turing", CourseCode: "CS101", SectionNumber: 1, ClassName: "Intro", Status: models.RegistrationWaitlisted},
	}}
	svc := NewRosterService(roleMap{instructorID: models.RoleInstructor}, stub, nil)

	out, err := svc.Export(context.Background(), dto.RosterQuery{InstructorID: instructorID}, models.RegistrationWaitlisted, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "roster-900-waitlisted.csv", out.Filename)
	assert.Equal(t, "text/csv", out.ContentType)
	assert.Equal(t, "Course,Section,Class,CWID,Last name,First name,Status\nCS101,1,Intro,101,Turing,Alan,waitlisted\n", string(out.Body))
}

func TestRosterExportPDF(t *testing.T) {
	svc := NewRosterService(roleMap{instructorID: models.RoleInstructor}, &rosterStub{}, nil)

	out, err := svc.Export(context.Background(), dto.RosterQuery{InstructorID: instructorID}, models.RegistrationEnrolled, export.FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out.Body, []byte("%PDF-")))
}
