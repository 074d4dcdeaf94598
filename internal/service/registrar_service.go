package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/repository"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type registrarSectionStore interface {
	Get(ctx context.Context, key models.SectionKey) (*models.Section, error)
	GetForUpdate(ctx context.Context, key models.SectionKey) (*models.Section, error)
	ClassExists(ctx context.Context, courseCode string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	CreateSection(ctx context.Context, section *models.Section) error
	Delete(ctx context.Context, key models.SectionKey) error
	UpdateInstructor(ctx context.Context, key models.SectionKey, instructorID int64) error
	UpdateStatus(ctx context.Context, key models.SectionKey, status models.SectionStatus) error
}

type registrarLedger interface {
	CountByStatus(ctx context.Context, key models.SectionKey) (map[models.RegistrationStatus]int, error)
	DropActiveForSection(ctx context.Context, key models.SectionKey) (int64, error)
}

// RegistrarService manages the class catalog and section lifecycle.
type RegistrarService struct {
	tx        txRunner
	sections  registrarSectionStore
	users     userRoleReader
	ledger    registrarLedger
	catalog   catalogInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistrarService constructs a RegistrarService. catalog may be nil.
func NewRegistrarService(tx txRunner, sections registrarSectionStore, users userRoleReader, ledger registrarLedger, catalog catalogInvalidator, validate *validator.Validate, logger *zap.Logger) *RegistrarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrarService{tx: tx, sections: sections, users: users, ledger: ledger, catalog: catalog, validator: validate, logger: logger}
}

// AddClass creates a section, creating its catalog entry first when the course is new.
func (s *RegistrarService) AddClass(ctx context.Context, req dto.AddClassRequest) (*dto.AddClassResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid add class payload")
	}
	if err := s.requireInstructor(ctx, req.InstructorID); err != nil {
		return nil, err
	}

	result := &dto.AddClassResult{}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		exists, err := s.sections.ClassExists(ctx, req.CourseCode)
		if err != nil {
			return err
		}
		if !exists {
			class := &models.Class{CourseCode: req.CourseCode, Name: req.ClassName, Department: req.Department}
			if err := s.sections.CreateClass(ctx, class); err != nil {
				return err
			}
			result.ClassCreated = true
		}
		section := &models.Section{
			CourseCode:    req.CourseCode,
			SectionNumber: req.SectionNumber,
			InstructorID:  req.InstructorID,
			MaxEnrollment: req.MaxEnrollment,
		}
		if err := s.sections.CreateSection(ctx, section); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "section already exists")
			}
			return err
		}
		result.SectionCreated = true
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "failed to add class")
	}

	if result.ClassCreated {
		result.Message = "Successfully added class and section"
	} else {
		result.Message = "Successfully added new section"
	}
	s.logger.Info("section added", zap.String("course_code", req.CourseCode), zap.Int("section_number", req.SectionNumber), zap.Bool("class_created", result.ClassCreated))
	s.invalidate("add_class")
	return result, nil
}

// DeleteSection removes a section. Its ledger rows are kept, with every active
// row closed as dropped so a recreated section starts from an empty roster.
func (s *RegistrarService) DeleteSection(ctx context.Context, req dto.SectionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.WrapAs(err, appErrors.ErrValidation, "invalid section payload")
	}
	key := models.SectionKey{CourseCode: req.CourseCode, SectionNumber: req.SectionNumber}
	var closed int64
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.sections.GetForUpdate(ctx, key); err != nil {
			return err
		}
		var err error
		if closed, err = s.ledger.DropActiveForSection(ctx, key); err != nil {
			return err
		}
		return s.sections.Delete(ctx, key)
	})
	if err != nil {
		return s.wrap(err, "failed to delete section")
	}
	s.logger.Info("section deleted", zap.String("course_code", key.CourseCode), zap.Int("section_number", key.SectionNumber), zap.Int64("registrations_dropped", closed))
	s.invalidate("delete_section")
	return nil
}

// ChangeInstructor reassigns the instructor of record.
func (s *RegistrarService) ChangeInstructor(ctx context.Context, req dto.ChangeInstructorRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.WrapAs(err, appErrors.ErrValidation, "invalid change instructor payload")
	}
	if err := s.requireInstructor(ctx, req.InstructorID); err != nil {
		return err
	}
	key := models.SectionKey{CourseCode: req.CourseCode, SectionNumber: req.SectionNumber}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.sections.GetForUpdate(ctx, key); err != nil {
			return err
		}
		return s.sections.UpdateInstructor(ctx, key, req.InstructorID)
	})
	if err != nil {
		return s.wrap(err, "failed to change instructor")
	}
	s.invalidate("change_instructor")
	return nil
}

// FreezeEnrollment closes a section to new registrations. Drops keep working.
func (s *RegistrarService) FreezeEnrollment(ctx context.Context, req dto.SectionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.WrapAs(err, appErrors.ErrValidation, "invalid section payload")
	}
	key := models.SectionKey{CourseCode: req.CourseCode, SectionNumber: req.SectionNumber}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.sections.GetForUpdate(ctx, key); err != nil {
			return err
		}
		return s.sections.UpdateStatus(ctx, key, models.SectionClosed)
	})
	if err != nil {
		return s.wrap(err, "failed to freeze enrollment")
	}
	s.invalidate("freeze_enrollment")
	return nil
}

// AuditSection reports whether a section's counters agree with its ledger rows.
func (s *RegistrarService) AuditSection(ctx context.Context, key models.SectionKey) (*models.SectionAudit, error) {
	var audit models.SectionAudit
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		section, err := s.sections.GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		counts, err := s.ledger.CountByStatus(ctx, key)
		if err != nil {
			return err
		}
		audit = models.SectionAudit{
			Section:          *section,
			LedgerEnrolled:   counts[models.RegistrationEnrolled],
			LedgerWaitlisted: counts[models.RegistrationWaitlisted],
			LedgerDropped:    counts[models.RegistrationDropped],
		}
		audit.Consistent = section.CurrentEnrollment == audit.LedgerEnrolled && section.Waitlist == audit.LedgerWaitlisted
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "failed to audit section")
	}
	if !audit.Consistent {
		s.logger.Warn("section counters disagree with ledger",
			zap.String("course_code", key.CourseCode),
			zap.Int("section_number", key.SectionNumber),
			zap.Int("current_enrollment", audit.Section.CurrentEnrollment),
			zap.Int("ledger_enrolled", audit.LedgerEnrolled),
			zap.Int("waitlist", audit.Section.Waitlist),
			zap.Int("ledger_waitlisted", audit.LedgerWaitlisted),
		)
	}
	return &audit, nil
}

func (s *RegistrarService) requireInstructor(ctx context.Context, id int64) error {
	role, err := s.users.RoleOf(ctx, id)
	if err != nil {
		return appErrors.WrapAs(err, appErrors.ErrInternal, "failed to resolve instructor role")
	}
	if role != models.RoleInstructor {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("user %d is not an instructor", id))
	}
	return nil
}

func (s *RegistrarService) wrap(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "section not found")
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.WrapAs(err, appErrors.ErrInternal, message)
}

func (s *RegistrarService) invalidate(reason string) {
	if s.catalog != nil {
		s.catalog.InvalidateAsync(reason)
	}
}
