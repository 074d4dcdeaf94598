package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/dto"
	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/clock"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type userRoleReader interface {
	RoleOf(ctx context.Context, id int64) (models.UserRole, error)
}

type sectionStore interface {
	Get(ctx context.Context, key models.SectionKey) (*models.Section, error)
	GetForUpdate(ctx context.Context, key models.SectionKey) (*models.Section, error)
	AdjustCounters(ctx context.Context, key models.SectionKey, enrolledDelta, waitlistDelta int) error
}

type ledgerStore interface {
	FindActive(ctx context.Context, studentID int64, key models.SectionKey) (*models.Registration, error)
	FindLatestForUpdate(ctx context.Context, studentID int64, key models.SectionKey) (*models.Registration, error)
	Insert(ctx context.Context, reg *models.Registration) error
	MarkDropped(ctx context.Context, id int64) error
}

type catalogInvalidator interface {
	InvalidateAsync(reason string)
}

// DropHook runs inside the drop transaction after the ledger row and counters were
// updated. The section row is still locked and prior is the status the row held
// before the drop. Returning an error aborts the drop.
type DropHook func(ctx context.Context, section *models.Section, dropped *models.Registration, prior models.RegistrationStatus) error

// RegistrationOption customises a RegistrationService.
type RegistrationOption func(*RegistrationService)

// WithDropHook installs a hook executed by every successful drop.
func WithDropHook(hook DropHook) RegistrationOption {
	return func(s *RegistrationService) { s.dropHook = hook }
}

// WithClock overrides the clock stamping enrollment dates.
func WithClock(c clock.Clock) RegistrationOption {
	return func(s *RegistrationService) { s.clock = c }
}

// WithRegistrationMetrics records transaction timings and outcomes.
func WithRegistrationMetrics(metrics *MetricsService) RegistrationOption {
	return func(s *RegistrationService) { s.metrics = metrics }
}

// WithCatalogInvalidator schedules catalog cache invalidation after committed writes.
func WithCatalogInvalidator(inv catalogInvalidator) RegistrationOption {
	return func(s *RegistrationService) { s.catalog = inv }
}

// RegistrationService coordinates enroll and drop. Each operation runs in one
// transaction that locks the section row before reading anything it decides on.
type RegistrationService struct {
	tx          txRunner
	users       userRoleReader
	sections    sectionStore
	ledger      ledgerStore
	validator   *validator.Validate
	logger      *zap.Logger
	clock       clock.Clock
	metrics     *MetricsService
	catalog     catalogInvalidator
	dropHook    DropHook
	waitlistCap int
}

// NewRegistrationService constructs the coordinator. A negative waitlistCap is treated as zero.
func NewRegistrationService(tx txRunner, users userRoleReader, sections sectionStore, ledger ledgerStore, validate *validator.Validate, logger *zap.Logger, waitlistCap int, opts ...RegistrationOption) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if waitlistCap < 0 {
		waitlistCap = 0
	}
	s := &RegistrationService{
		tx:          tx,
		users:       users,
		sections:    sections,
		ledger:      ledger,
		validator:   validate,
		logger:      logger,
		clock:       clock.NewSystem(),
		waitlistCap: waitlistCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enroll registers a student in a section or places them on its waitlist.
// Repeating an enroll for an active registration reports the existing row.
func (s *RegistrationService) Enroll(ctx context.Context, req dto.EnrollmentRequest) (*models.EnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid enrollment payload")
	}

	role, err := s.users.RoleOf(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrRegistrationFailed, "failed to resolve student role")
	}
	if role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "enrollment not authorized for role: "+string(role))
	}

	key := req.Key()
	var result *models.EnrollmentResult
	wrote := false
	start := time.Now()

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		section, err := s.lockSection(ctx, key)
		if err != nil {
			return err
		}

		active, err := s.ledger.FindActive(ctx, req.StudentID, key)
		if err != nil {
			return err
		}
		if active != nil {
			result = existingEnrollment(active)
			return nil
		}

		if section.Status != models.SectionOpen {
			return appErrors.Clone(appErrors.ErrSectionClosed, "")
		}

		var (
			status                       models.RegistrationStatus
			enrolledDelta, waitlistDelta int
		)
		switch Evaluate(section.Snapshot(), s.waitlistCap) {
		case models.EligibilityEnrolled:
			status, enrolledDelta = models.RegistrationEnrolled, 1
		case models.EligibilityWaitlisted:
			status, waitlistDelta = models.RegistrationWaitlisted, 1
		case models.EligibilityNotEligible:
			result = &models.EnrollmentResult{
				StudentID:     req.StudentID,
				CourseCode:    key.CourseCode,
				SectionNumber: key.SectionNumber,
				Status:        models.OutcomeNotEligible,
			}
			return nil
		}

		reg := &models.Registration{
			StudentID:      req.StudentID,
			CourseCode:     key.CourseCode,
			SectionNumber:  key.SectionNumber,
			Status:         status,
			EnrollmentDate: s.clock.Now(),
		}
		if err := s.ledger.Insert(ctx, reg); err != nil {
			return err
		}
		if err := s.sections.AdjustCounters(ctx, key, enrolledDelta, waitlistDelta); err != nil {
			return err
		}

		enrolledAt := reg.EnrollmentDate
		result = &models.EnrollmentResult{
			StudentID:      req.StudentID,
			CourseCode:     key.CourseCode,
			SectionNumber:  key.SectionNumber,
			Status:         models.EnrollmentOutcome(status),
			EnrollmentDate: &enrolledAt,
		}
		wrote = true
		return nil
	})
	s.metrics.ObserveTransaction("enroll", err == nil, time.Since(start))
	if err != nil {
		return nil, s.failure(err, appErrors.ErrRegistrationFailed, "enroll", req.StudentID, key)
	}

	s.metrics.RecordOutcome("enroll", string(result.Status))
	s.logger.Info("enrollment processed",
		zap.Int64("student_id", req.StudentID),
		zap.String("course_code", key.CourseCode),
		zap.Int("section_number", key.SectionNumber),
		zap.String("outcome", string(result.Status)),
	)
	if wrote && s.catalog != nil {
		s.catalog.InvalidateAsync("enroll")
	}
	return result, nil
}

// Drop withdraws a student from a section. Dropping an already dropped registration
// succeeds with the dropped_already outcome.
func (s *RegistrationService) Drop(ctx context.Context, req dto.EnrollmentRequest) (*models.DropResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid drop payload")
	}

	key := req.Key()
	var result *models.DropResult
	start := time.Now()

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		section, err := s.lockSection(ctx, key)
		if err != nil {
			return err
		}

		reg, err := s.ledger.FindLatestForUpdate(ctx, req.StudentID, key)
		if err != nil {
			return err
		}
		if reg == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "no registration found for the section")
		}

		result = &models.DropResult{
			StudentID:     req.StudentID,
			CourseCode:    key.CourseCode,
			SectionNumber: key.SectionNumber,
			PriorStatus:   reg.Status,
		}
		if !reg.Status.Active() {
			result.Status = models.OutcomeDroppedAlready
			return nil
		}

		if err := s.dropRow(ctx, section, reg); err != nil {
			return err
		}
		result.Status = models.OutcomeDropped
		return nil
	})
	s.metrics.ObserveTransaction("drop", err == nil, time.Since(start))
	if err != nil {
		return nil, s.failure(err, appErrors.ErrDropFailed, "drop", req.StudentID, key)
	}

	s.afterDrop("drop", result)
	return result, nil
}

// InstructorDrop lets the instructor of record remove an enrolled or waitlisted student.
func (s *RegistrationService) InstructorDrop(ctx context.Context, req dto.DropStudentRequest) (*models.DropResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid drop payload")
	}

	role, err := s.users.RoleOf(ctx, req.InstructorID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrDropFailed, "failed to resolve instructor role")
	}
	if role != models.RoleInstructor {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "drop student not authorized for role: "+string(role))
	}

	key := req.Key()
	if err := s.requireInstructorOf(ctx, key, req.InstructorID); err != nil {
		return nil, s.failure(err, appErrors.ErrDropFailed, "instructor_drop", req.StudentID, key)
	}

	var result *models.DropResult
	start := time.Now()

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		section, err := s.lockSection(ctx, key)
		if err != nil {
			return err
		}
		// The instructor may have been reassigned since the unlocked check.
		if section.InstructorID != req.InstructorID {
			return appErrors.Clone(appErrors.ErrForbidden, "instructor does not teach the section")
		}

		reg, err := s.ledger.FindLatestForUpdate(ctx, req.StudentID, key)
		if err != nil {
			return err
		}
		if reg == nil || !reg.Status.Active() {
			return appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in the section")
		}

		if err := s.dropRow(ctx, section, reg); err != nil {
			return err
		}
		result = &models.DropResult{
			StudentID:     req.StudentID,
			CourseCode:    key.CourseCode,
			SectionNumber: key.SectionNumber,
			Status:        models.OutcomeDropped,
			PriorStatus:   reg.Status,
		}
		return nil
	})
	s.metrics.ObserveTransaction("instructor_drop", err == nil, time.Since(start))
	if err != nil {
		return nil, s.failure(err, appErrors.ErrDropFailed, "instructor_drop", req.StudentID, key)
	}

	s.afterDrop("instructor_drop", result)
	return result, nil
}

// requireInstructorOf rejects a foreign instructor without taking the section lock.
func (s *RegistrationService) requireInstructorOf(ctx context.Context, key models.SectionKey, instructorID int64) error {
	section, err := s.sections.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return err
	}
	if section.InstructorID != instructorID {
		return appErrors.Clone(appErrors.ErrForbidden, "instructor does not teach the section")
	}
	return nil
}

func (s *RegistrationService) lockSection(ctx context.Context, key models.SectionKey) (*models.Section, error) {
	section, err := s.sections.GetForUpdate(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, err
	}
	return section, nil
}

// dropRow marks an active row dropped and releases the seat or waitlist slot it held.
func (s *RegistrationService) dropRow(ctx context.Context, section *models.Section, reg *models.Registration) error {
	var enrolledDelta, waitlistDelta int
	switch reg.Status {
	case models.RegistrationEnrolled:
		enrolledDelta = -1
	case models.RegistrationWaitlisted:
		waitlistDelta = -1
	case models.RegistrationDropped:
		return nil
	}

	if err := s.ledger.MarkDropped(ctx, reg.ID); err != nil {
		return err
	}
	if err := s.sections.AdjustCounters(ctx, section.Key(), enrolledDelta, waitlistDelta); err != nil {
		return err
	}
	section.CurrentEnrollment += enrolledDelta
	section.Waitlist += waitlistDelta

	if s.dropHook != nil {
		dropped := *reg
		dropped.Status = models.RegistrationDropped
		if err := s.dropHook(ctx, section, &dropped, reg.Status); err != nil {
			return err
		}
	}
	return nil
}

func (s *RegistrationService) afterDrop(operation string, result *models.DropResult) {
	s.metrics.RecordOutcome(operation, string(result.Status))
	s.logger.Info("drop processed",
		zap.String("operation", operation),
		zap.Int64("student_id", result.StudentID),
		zap.String("course_code", result.CourseCode),
		zap.Int("section_number", result.SectionNumber),
		zap.String("outcome", string(result.Status)),
		zap.String("prior_status", string(result.PriorStatus)),
	)
	if result.Status == models.OutcomeDropped && s.catalog != nil {
		s.catalog.InvalidateAsync(operation)
	}
}

// failure passes typed rejections through and folds store errors into the operation's failure code.
func (s *RegistrationService) failure(err error, failed *appErrors.Error, operation string, studentID int64, key models.SectionKey) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		s.metrics.RecordOutcome(operation, appErr.Code)
		return appErr
	}
	s.metrics.RecordOutcome(operation, failed.Code)
	s.logger.Error("registration transaction rolled back",
		zap.String("operation", operation),
		zap.Int64("student_id", studentID),
		zap.String("course_code", key.CourseCode),
		zap.Int("section_number", key.SectionNumber),
		zap.Error(err),
	)
	return appErrors.WrapAs(err, failed, "")
}

func existingEnrollment(active *models.Registration) *models.EnrollmentResult {
	outcome := models.OutcomeAlreadyEnrolled
	if active.Status == models.RegistrationWaitlisted {
		outcome = models.OutcomeAlreadyWaitlisted
	}
	enrolledAt := active.EnrollmentDate
	return &models.EnrollmentResult{
		StudentID:      active.StudentID,
		CourseCode:     active.CourseCode,
		SectionNumber:  active.SectionNumber,
		Status:         outcome,
		EnrollmentDate: &enrolledAt,
	}
}
