package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/database"
)

// ErrDuplicate is returned when an insert collides with a unique key, including
// the one-active-registration-per-student-and-section index.
var ErrDuplicate = errors.New("duplicate record")

// RegistrationRepository is the registration ledger. Rows are inserted and
// updated, never deleted.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, student_id, course_code, section_number, status, enrollment_date`

// FindActive returns the enrolled or waitlisted row for the key, or nil when none exists.
func (r *RegistrationRepository) FindActive(ctx context.Context, studentID int64, key models.SectionKey) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
WHERE student_id = $1 AND course_code = $2 AND section_number = $3 AND status <> $4
LIMIT 1`
	var reg models.Registration
	if err := database.Conn(ctx, r.db).GetContext(ctx, &reg, query, studentID, key.CourseCode, key.SectionNumber, models.RegistrationDropped); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active registration: %w", err)
	}
	return &reg, nil
}

// FindLatestForUpdate locks the row a drop acts on: the active row when one
// exists, otherwise the most recent dropped row. Returns nil when the key has no rows.
func (r *RegistrationRepository) FindLatestForUpdate(ctx context.Context, studentID int64, key models.SectionKey) (*models.Registration, error) {
	tx := database.TxFromContext(ctx)
	if tx == nil {
		return nil, ErrTxRequired
	}
	query := `SELECT ` + registrationColumns + ` FROM registrations
WHERE student_id = $1 AND course_code = $2 AND section_number = $3
ORDER BY (status <> 'dropped') DESC, enrollment_date DESC, id DESC
LIMIT 1
FOR UPDATE`
	var reg models.Registration
	if err := tx.GetContext(ctx, &reg, query, studentID, key.CourseCode, key.SectionNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lock registration: %w", err)
	}
	return &reg, nil
}

// Insert appends a ledger row and populates its generated id.
func (r *RegistrationRepository) Insert(ctx context.Context, reg *models.Registration) error {
	if !reg.Status.Active() {
		return fmt.Errorf("insert registration: invalid status %q", reg.Status)
	}
	const query = `INSERT INTO registrations (student_id, course_code, section_number, status, enrollment_date)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	err := database.Conn(ctx, r.db).QueryRowxContext(ctx, query, reg.StudentID, reg.CourseCode, reg.SectionNumber, reg.Status, reg.EnrollmentDate).Scan(&reg.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// MarkDropped moves an active row to the terminal dropped status.
func (r *RegistrationRepository) MarkDropped(ctx context.Context, id int64) error {
	const query = `UPDATE registrations SET status = $2 WHERE id = $1 AND status <> $2`
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id, models.RegistrationDropped)
	if err != nil {
		return fmt.Errorf("mark registration dropped: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark registration dropped rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DropActiveForSection closes every enrolled or waitlisted row of a section
// and reports how many rows changed.
func (r *RegistrationRepository) DropActiveForSection(ctx context.Context, key models.SectionKey) (int64, error) {
	const query = `UPDATE registrations SET status = $3
WHERE course_code = $1 AND section_number = $2 AND status <> $3`
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, key.CourseCode, key.SectionNumber, models.RegistrationDropped)
	if err != nil {
		return 0, fmt.Errorf("drop section registrations: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("drop section registrations rows: %w", err)
	}
	return affected, nil
}

// WaitlistPositions ranks every waitlisted row of the student within its section.
// The rank is computed in one statement so concurrent drops cannot skew it.
func (r *RegistrationRepository) WaitlistPositions(ctx context.Context, studentID int64) ([]models.WaitlistPosition, error) {
	const query = `WITH ranked AS (
	SELECT student_id, course_code, section_number,
		ROW_NUMBER() OVER (PARTITION BY course_code, section_number ORDER BY enrollment_date, id) AS position
	FROM registrations
	WHERE status = 'waitlisted'
)
SELECT course_code, section_number, position
FROM ranked
WHERE student_id = $1
ORDER BY course_code, section_number`
	positions := []models.WaitlistPosition{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &positions, query, studentID); err != nil {
		return nil, fmt.Errorf("waitlist positions: %w", err)
	}
	return positions, nil
}

// SectionWaitlist lists waitlisted students of a section in rank order.
func (r *RegistrationRepository) SectionWaitlist(ctx context.Context, key models.SectionKey) ([]models.WaitlistEntry, error) {
	const query = `SELECT r.student_id,
	CONCAT_WS(' ', u.first_name, NULLIF(u.middle_name, ''), u.last_name) AS student_name,
	r.enrollment_date
FROM registrations r
JOIN users u ON u.id = r.student_id
WHERE r.course_code = $1 AND r.section_number = $2 AND r.status = 'waitlisted'
ORDER BY r.enrollment_date, r.id`
	entries := []models.WaitlistEntry{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &entries, query, key.CourseCode, key.SectionNumber); err != nil {
		return nil, fmt.Errorf("section waitlist: %w", err)
	}
	return entries, nil
}

// ListRoster returns ledger rows of one status across the instructor's sections.
func (r *RegistrationRepository) ListRoster(ctx context.Context, filter models.RosterFilter) ([]models.RosterEntry, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT u.id AS student_id, u.first_name AS student_first_name, u.last_name AS student_last_name,
	c.course_code, s.section_number, c.name AS class_name, r.status
FROM registrations r
JOIN users u ON u.id = r.student_id
JOIN sections s ON s.course_code = r.course_code AND s.section_number = r.section_number
JOIN classes c ON c.course_code = s.course_code
WHERE s.instructor_id = $1 AND r.status = $2`)

	args := []interface{}{filter.InstructorID, filter.Status}
	if filter.CourseCode != "" {
		args = append(args, filter.CourseCode)
		fmt.Fprintf(&query, " AND s.course_code = $%d", len(args))
	}
	if filter.SectionNumber != nil {
		args = append(args, *filter.SectionNumber)
		fmt.Fprintf(&query, " AND s.section_number = $%d", len(args))
	}
	query.WriteString("\nORDER BY c.course_code, s.section_number, u.last_name, u.first_name")

	entries := []models.RosterEntry{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &entries, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return entries, nil
}

// CountByStatus tallies ledger rows of a section per status.
func (r *RegistrationRepository) CountByStatus(ctx context.Context, key models.SectionKey) (map[models.RegistrationStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM registrations
WHERE course_code = $1 AND section_number = $2
GROUP BY status`
	var rows []struct {
		Status models.RegistrationStatus `db:"status"`
		Total  int                       `db:"total"`
	}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &rows, query, key.CourseCode, key.SectionNumber); err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	counts := map[models.RegistrationStatus]int{
		models.RegistrationEnrolled:   0,
		models.RegistrationWaitlisted: 0,
		models.RegistrationDropped:    0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
