package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/database"
)

// ErrTxRequired is returned by locking reads issued outside a transaction.
var ErrTxRequired = errors.New("operation requires an active transaction")

// SectionRepository persists classes and the capacity state of their sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionColumns = `course_code, section_number, instructor_id, max_enrollment, current_enrollment, waitlist, status`

// Get returns a section without locking it.
func (r *SectionRepository) Get(ctx context.Context, key models.SectionKey) (*models.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE course_code = $1 AND section_number = $2`
	var section models.Section
	if err := database.Conn(ctx, r.db).GetContext(ctx, &section, query, key.CourseCode, key.SectionNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get section: %w", err)
	}
	return &section, nil
}

// GetForUpdate reads a section and holds its row lock until the surrounding
// transaction ends. Every mutation of a section's counters goes through this lock.
func (r *SectionRepository) GetForUpdate(ctx context.Context, key models.SectionKey) (*models.Section, error) {
	tx := database.TxFromContext(ctx)
	if tx == nil {
		return nil, ErrTxRequired
	}
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE course_code = $1 AND section_number = $2 FOR UPDATE`
	var section models.Section
	if err := tx.GetContext(ctx, &section, query, key.CourseCode, key.SectionNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock section: %w", err)
	}
	return &section, nil
}

// AdjustCounters applies deltas to current_enrollment and waitlist.
func (r *SectionRepository) AdjustCounters(ctx context.Context, key models.SectionKey, enrolledDelta, waitlistDelta int) error {
	const query = `UPDATE sections SET current_enrollment = current_enrollment + $3, waitlist = waitlist + $4
WHERE course_code = $1 AND section_number = $2`
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, key.CourseCode, key.SectionNumber, enrolledDelta, waitlistDelta)
	if err != nil {
		return fmt.Errorf("adjust section counters: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust section counters rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClassExists reports whether a catalog entry exists for the course code.
func (r *SectionRepository) ClassExists(ctx context.Context, courseCode string) (bool, error) {
	const query = `SELECT 1 FROM classes WHERE course_code = $1 LIMIT 1`
	var exists int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &exists, query, courseCode); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class exists: %w", err)
	}
	return true, nil
}

// CreateClass inserts a catalog entry.
func (r *SectionRepository) CreateClass(ctx context.Context, class *models.Class) error {
	const query = `INSERT INTO classes (course_code, name, department) VALUES (:course_code, :name, :department)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, class); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// CreateSection inserts an open section with zeroed counters.
func (r *SectionRepository) CreateSection(ctx context.Context, section *models.Section) error {
	section.CurrentEnrollment = 0
	section.Waitlist = 0
	section.Status = models.SectionOpen
	query := `INSERT INTO sections (` + sectionColumns + `)
VALUES (:course_code, :section_number, :instructor_id, :max_enrollment, :current_enrollment, :waitlist, :status)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, section); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Delete removes a section. Ledger rows for it are kept.
func (r *SectionRepository) Delete(ctx context.Context, key models.SectionKey) error {
	const query = `DELETE FROM sections WHERE course_code = $1 AND section_number = $2`
	return r.execOne(ctx, "delete section", query, key.CourseCode, key.SectionNumber)
}

// UpdateInstructor reassigns the instructor of record.
func (r *SectionRepository) UpdateInstructor(ctx context.Context, key models.SectionKey, instructorID int64) error {
	const query = `UPDATE sections SET instructor_id = $3 WHERE course_code = $1 AND section_number = $2`
	return r.execOne(ctx, "update section instructor", query, key.CourseCode, key.SectionNumber, instructorID)
}

// UpdateStatus opens or closes a section.
func (r *SectionRepository) UpdateStatus(ctx context.Context, key models.SectionKey, status models.SectionStatus) error {
	const query = `UPDATE sections SET status = $3 WHERE course_code = $1 AND section_number = $2`
	return r.execOne(ctx, "update section status", query, key.CourseCode, key.SectionNumber, status)
}

// ListAvailable returns the sections offered by a department with instructor names.
func (r *SectionRepository) ListAvailable(ctx context.Context, department string) ([]models.AvailableClass, error) {
	const query = `SELECT c.course_code, c.name AS course_name, c.department, s.section_number,
	u.first_name AS instructor_first_name, u.last_name AS instructor_last_name,
	s.current_enrollment, s.max_enrollment, s.waitlist, s.status
FROM classes c
JOIN sections s ON s.course_code = c.course_code
JOIN users u ON u.id = s.instructor_id
WHERE c.department = $1
ORDER BY c.course_code, s.section_number`
	classes := []models.AvailableClass{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &classes, query, department); err != nil {
		return nil, fmt.Errorf("list available classes: %w", err)
	}
	return classes, nil
}

func (r *SectionRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
