package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/export"
)

type rosterReader interface {
	ListRoster(ctx context.Context, filter models.RosterFilter) ([]models.RosterEntry, error)
}

// RosterExport is a rendered roster ready to be served as an attachment.
type RosterExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// RosterService lists the students attached to an instructor's sections.
type RosterService struct {
	users  userRoleReader
	ledger rosterReader
	logger *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(users userRoleReader, ledger rosterReader, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{users: users, ledger: ledger, logger: logger}
}

// Roster returns the instructor's ledger rows with the given status.
func (s *RosterService) Roster(ctx context.Context, query dto.RosterQuery, status models.RegistrationStatus) ([]models.RosterEntry, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown roster status: "+string(status))
	}
	if query.InstructorID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "instructor id must be positive")
	}
	if query.SectionNumber != nil && *query.SectionNumber <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section number must be positive")
	}
	role, err := s.users.RoleOf(ctx, query.InstructorID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to resolve instructor role")
	}
	if role != models.RoleInstructor {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "roster not authorized for role: "+string(role))
	}

	entries, err := s.ledger.ListRoster(ctx, models.RosterFilter{
		InstructorID:  query.InstructorID,
		Status:        status,
		CourseCode:    query.CourseCode,
		SectionNumber: query.SectionNumber,
	})
	if err != nil {
		s.logger.Error("list roster failed", zap.Int64("instructor_id", query.InstructorID), zap.String("status", string(status)), zap.Error(err))
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list roster")
	}
	return entries, nil
}

// Export renders a roster as CSV or PDF.
func (s *RosterService) Export(ctx context.Context, query dto.RosterQuery, status models.RegistrationStatus, format export.Format) (*RosterExport, error) {
	entries, err := s.Roster(ctx, query, status)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   fmt.Sprintf("Instructor %d %s roster", query.InstructorID, status),
		Headers: []string{"Course", "Section", "Class", "CWID", "Last name", "First name", "Status"},
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, e := range entries {
		table.Rows = append(table.Rows, []string{
			e.CourseCode,
			strconv.Itoa(e.SectionNumber),
			e.ClassName,
			strconv.FormatInt(e.StudentID, 10),
			e.StudentLastName,
			e.StudentFirstName,
			string(e.Status),
		})
	}

	body, err := export.Render(format, table)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrValidation, "failed to render roster")
	}
	return &RosterExport{
		Filename:    fmt.Sprintf("roster-%d-%s.%s", query.InstructorID, status, format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}
