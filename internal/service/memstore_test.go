package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/internal/repository"
)

type memTxKey struct{}

// fatalHelper is satisfied by *testing.T and *rapid.T.
type fatalHelper interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

// memStore is an in-memory stand-in for the section store, ledger and user
// lookups. WithTx holds a store-wide lock and restores the prior state when
// fn fails, which mirrors the section lock and rollback of the real store.
type memStore struct {
	mu       sync.Mutex
	users    map[int64]models.UserRole
	names    map[int64]string
	sections map[models.SectionKey]*models.Section
	classes  map[string]models.Class
	regs     []models.Registration
	nextID   int64
	txCount  int

	insertErr error
	adjustErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]models.UserRole),
		names:    make(map[int64]string),
		sections: make(map[models.SectionKey]*models.Section),
		classes:  make(map[string]models.Class),
	}
}

func (m *memStore) addUser(id int64, role models.UserRole, name string) {
	m.users[id] = role
	m.names[id] = name
}

func (m *memStore) addSection(section models.Section) {
	if section.Status == "" {
		section.Status = models.SectionOpen
	}
	m.sections[section.Key()] = &section
}

func (m *memStore) section(key models.SectionKey) models.Section {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.sections[key]
}

func inTx(ctx context.Context) bool {
	return ctx.Value(memTxKey{}) != nil
}

func (m *memStore) guard(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	savedSections := make(map[models.SectionKey]models.Section, len(m.sections))
	for k, v := range m.sections {
		savedSections[k] = *v
	}
	savedClasses := make(map[string]models.Class, len(m.classes))
	for k, v := range m.classes {
		savedClasses[k] = v
	}
	savedRegs := append([]models.Registration(nil), m.regs...)
	savedID := m.nextID

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.sections = make(map[models.SectionKey]*models.Section, len(savedSections))
		for k, v := range savedSections {
			restored := v
			m.sections[k] = &restored
		}
		m.classes = savedClasses
		m.regs = savedRegs
		m.nextID = savedID
		return err
	}
	return nil
}

func (m *memStore) RoleOf(_ context.Context, id int64) (models.UserRole, error) {
	role, ok := m.users[id]
	if !ok {
		return models.RoleNotFound, nil
	}
	return role, nil
}

func (m *memStore) Get(ctx context.Context, key models.SectionKey) (*models.Section, error) {
	defer m.guard(ctx)()
	section, ok := m.sections[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *section
	return &copied, nil
}

func (m *memStore) GetForUpdate(ctx context.Context, key models.SectionKey) (*models.Section, error) {
	if !inTx(ctx) {
		return nil, repository.ErrTxRequired
	}
	section, ok := m.sections[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *section
	return &copied, nil
}

func (m *memStore) AdjustCounters(ctx context.Context, key models.SectionKey, enrolledDelta, waitlistDelta int) error {
	defer m.guard(ctx)()
	if m.adjustErr != nil {
		return m.adjustErr
	}
	section, ok := m.sections[key]
	if !ok {
		return sql.ErrNoRows
	}
	section.CurrentEnrollment += enrolledDelta
	section.Waitlist += waitlistDelta
	return nil
}

func (m *memStore) FindActive(ctx context.Context, studentID int64, key models.SectionKey) (*models.Registration, error) {
	defer m.guard(ctx)()
	for i := range m.regs {
		r := m.regs[i]
		if r.StudentID == studentID && r.Key() == key && r.Status.Active() {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindLatestForUpdate(ctx context.Context, studentID int64, key models.SectionKey) (*models.Registration, error) {
	if !inTx(ctx) {
		return nil, repository.ErrTxRequired
	}
	var latest *models.Registration
	for i := range m.regs {
		r := m.regs[i]
		if r.StudentID != studentID || r.Key() != key {
			continue
		}
		if r.Status.Active() {
			return &r, nil
		}
		if latest == nil || r.ID > latest.ID {
			latest = &r
		}
	}
	return latest, nil
}

func (m *memStore) Insert(ctx context.Context, reg *models.Registration) error {
	defer m.guard(ctx)()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, r := range m.regs {
		if r.StudentID == reg.StudentID && r.Key() == reg.Key() && r.Status.Active() {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	reg.ID = m.nextID
	m.regs = append(m.regs, *reg)
	return nil
}

func (m *memStore) MarkDropped(ctx context.Context, id int64) error {
	defer m.guard(ctx)()
	for i := range m.regs {
		if m.regs[i].ID == id && m.regs[i].Status.Active() {
			m.regs[i].Status = models.RegistrationDropped
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memStore) WaitlistPositions(ctx context.Context, studentID int64) ([]models.WaitlistPosition, error) {
	defer m.guard(ctx)()
	byKey := make(map[models.SectionKey][]models.Registration)
	for _, r := range m.regs {
		if r.Status == models.RegistrationWaitlisted {
			byKey[r.Key()] = append(byKey[r.Key()], r)
		}
	}
	positions := []models.WaitlistPosition{}
	for key, rows := range byKey {
		sortByRank(rows)
		for i, r := range rows {
			if r.StudentID == studentID {
				positions = append(positions, models.WaitlistPosition{CourseCode: key.CourseCode, SectionNumber: key.SectionNumber, Position: i + 1})
			}
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].CourseCode != positions[j].CourseCode {
			return positions[i].CourseCode < positions[j].CourseCode
		}
		return positions[i].SectionNumber < positions[j].SectionNumber
	})
	return positions, nil
}

func (m *memStore) SectionWaitlist(ctx context.Context, key models.SectionKey) ([]models.WaitlistEntry, error) {
	defer m.guard(ctx)()
	var rows []models.Registration
	for _, r := range m.regs {
		if r.Key() == key && r.Status == models.RegistrationWaitlisted {
			rows = append(rows, r)
		}
	}
	sortByRank(rows)
	entries := []models.WaitlistEntry{}
	for _, r := range rows {
		entries = append(entries, models.WaitlistEntry{StudentID: r.StudentID, StudentName: m.names[r.StudentID], EnrollmentDate: r.EnrollmentDate})
	}
	return entries, nil
}

func (m *memStore) ClassExists(ctx context.Context, courseCode string) (bool, error) {
	defer m.guard(ctx)()
	_, ok := m.classes[courseCode]
	return ok, nil
}

func (m *memStore) CreateClass(ctx context.Context, class *models.Class) error {
	defer m.guard(ctx)()
	if _, ok := m.classes[class.CourseCode]; ok {
		return repository.ErrDuplicate
	}
	m.classes[class.CourseCode] = *class
	return nil
}

func (m *memStore) CreateSection(ctx context.Context, section *models.Section) error {
	defer m.guard(ctx)()
	if _, ok := m.sections[section.Key()]; ok {
		return repository.ErrDuplicate
	}
	section.CurrentEnrollment, section.Waitlist, section.Status = 0, 0, models.SectionOpen
	copied := *section
	m.sections[section.Key()] = &copied
	return nil
}

func (m *memStore) Delete(ctx context.Context, key models.SectionKey) error {
	defer m.guard(ctx)()
	if _, ok := m.sections[key]; !ok {
		return sql.ErrNoRows
	}
	delete(m.sections, key)
	return nil
}

func (m *memStore) UpdateInstructor(ctx context.Context, key models.SectionKey, instructorID int64) error {
	defer m.guard(ctx)()
	section, ok := m.sections[key]
	if !ok {
		return sql.ErrNoRows
	}
	section.InstructorID = instructorID
	return nil
}

func (m *memStore) UpdateStatus(ctx context.Context, key models.SectionKey, status models.SectionStatus) error {
	defer m.guard(ctx)()
	section, ok := m.sections[key]
	if !ok {
		return sql.ErrNoRows
	}
	section.Status = status
	return nil
}

func (m *memStore) CountByStatus(ctx context.Context, key models.SectionKey) (map[models.RegistrationStatus]int, error) {
	defer m.guard(ctx)()
	counts := map[models.RegistrationStatus]int{}
	for _, r := range m.regs {
		if r.Key() == key {
			counts[r.Status]++
		}
	}
	return counts, nil
}

func (m *memStore) DropActiveForSection(ctx context.Context, key models.SectionKey) (int64, error) {
	defer m.guard(ctx)()
	var n int64
	for i := range m.regs {
		if m.regs[i].Key() == key && m.regs[i].Status.Active() {
			m.regs[i].Status = models.RegistrationDropped
			n++
		}
	}
	return n, nil
}

func (m *memStore) countByStatus(key models.SectionKey, status models.RegistrationStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.regs {
		if r.Key() == key && r.Status == status {
			n++
		}
	}
	return n
}

// requireConsistent checks the capacity, waitlist and single-active-row invariants.
func (m *memStore) requireConsistent(t fatalHelper) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make(map[[2]interface{}]int)
	enrolled := make(map[models.SectionKey]int)
	waitlisted := make(map[models.SectionKey]int)
	for _, r := range m.regs {
		switch r.Status {
		case models.RegistrationEnrolled:
			enrolled[r.Key()]++
		case models.RegistrationWaitlisted:
			waitlisted[r.Key()]++
		case models.RegistrationDropped:
			continue
		}
		k := [2]interface{}{r.StudentID, r.Key()}
		active[k]++
		if active[k] > 1 {
			t.Fatalf("student %d has %d active rows in %v", r.StudentID, active[k], r.Key())
		}
	}
	for key, s := range m.sections {
		if s.CurrentEnrollment < 0 || s.CurrentEnrollment > s.MaxEnrollment {
			t.Fatalf("section %v current_enrollment %d outside [0,%d]", key, s.CurrentEnrollment, s.MaxEnrollment)
		}
		if s.Waitlist < 0 {
			t.Fatalf("section %v waitlist %d negative", key, s.Waitlist)
		}
		if s.CurrentEnrollment != enrolled[key] {
			t.Fatalf("section %v current_enrollment %d, ledger has %d enrolled", key, s.CurrentEnrollment, enrolled[key])
		}
		if s.Waitlist != waitlisted[key] {
			t.Fatalf("section %v waitlist %d, ledger has %d waitlisted", key, s.Waitlist, waitlisted[key])
		}
	}
}

func sortByRank(rows []models.Registration) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].EnrollmentDate.Equal(rows[j].EnrollmentDate) {
			return rows[i].EnrollmentDate.Before(rows[j].EnrollmentDate)
		}
		return rows[i].ID < rows[j].ID
	})
}

// stepClock advances one second on every read so enrollment dates are strictly ordered.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingInvalidator struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recordingInvalidator) InvalidateAsync(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *recordingInvalidator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}
