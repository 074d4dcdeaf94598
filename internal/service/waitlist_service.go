package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type sectionReader interface {
	Get(ctx context.Context, key models.SectionKey) (*models.Section, error)
}

type waitlistReader interface {
	WaitlistPositions(ctx context.Context, studentID int64) ([]models.WaitlistPosition, error)
	SectionWaitlist(ctx context.Context, key models.SectionKey) ([]models.WaitlistEntry, error)
}

// WaitlistService reports live waitlist ranks. Results are never cached.
type WaitlistService struct {
	sections sectionReader
	ledger   waitlistReader
	logger   *zap.Logger
}

// NewWaitlistService constructs a WaitlistService.
func NewWaitlistService(sections sectionReader, ledger waitlistReader, logger *zap.Logger) *WaitlistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistService{sections: sections, ledger: ledger, logger: logger}
}

// WaitlistPositions returns the student's 1-based rank on every section they are waitlisted for.
func (s *WaitlistService) WaitlistPositions(ctx context.Context, studentID int64) ([]models.WaitlistPosition, error) {
	if studentID <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id must be positive")
	}
	positions, err := s.ledger.WaitlistPositions(ctx, studentID)
	if err != nil {
		s.logger.Error("waitlist positions query failed", zap.Int64("student_id", studentID), zap.Error(err))
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load waitlist positions")
	}
	if positions == nil {
		positions = []models.WaitlistPosition{}
	}
	return positions, nil
}

// SectionWaitlist lists the waitlisted students of a section in rank order.
func (s *WaitlistService) SectionWaitlist(ctx context.Context, key models.SectionKey) ([]models.WaitlistEntry, error) {
	if key.CourseCode == "" || key.SectionNumber <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course_code and section_number are required")
	}
	if _, err := s.sections.Get(ctx, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load section")
	}
	entries, err := s.ledger.SectionWaitlist(ctx, key)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load section waitlist")
	}
	if entries == nil {
		entries = []models.WaitlistEntry{}
	}
	return entries, nil
}
