package registrations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/levelup-events/backend/internal/models"
	"github.com/levelup-events/backend/pkg/queue"
)

// memStore is an in-memory Store whose TransitionStatus is a real
// compare-and-set: the condition is evaluated under the same lock as the
// write, mirroring the atomicity the database gives a single-row UPDATE.
type memStore struct {
	mu   sync.Mutex
	regs map[uuid.UUID]*models.Registration
}

func newMemStore() *memStore {
	return &memStore{regs: make(map[uuid.UUID]*models.Registration)}
}

func (m *memStore) Create(_ context.Context, r *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.regs[r.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) FindActive(_ context.Context, eventID uuid.UUID, corpEmail string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.EventID == eventID && r.CorpEmail == corpEmail && r.Status != models.StatusCancelled {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Registration
	for _, r := range m.regs {
		if r.EventID == eventID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) UpdateAttendee(_ context.Context, r *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.regs[r.ID]
	if !ok {
		return ErrNotFound
	}
	cur.FirstName = r.FirstName
	cur.LastName = r.LastName
	cur.CorpEmail = r.CorpEmail
	cur.CorpSID = r.CorpSID
	cur.PersonalEmail = r.PersonalEmail
	cur.GithubUsername = r.GithubUsername
	cur.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) TransitionStatus(_ context.Context, id uuid.UUID, target models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok {
		return ErrNotFound
	}
	if !models.CanTransition(r.Status, target) {
		return ErrConditionFailed
	}
	r.Status = target
	r.UpdatedAt = time.Now()
	return nil
}

type memEvents struct {
	events map[uuid.UUID]*models.Event
}

func (m *memEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

type memQueue struct {
	mu   sync.Mutex
	jobs []queue.EmailPayload
}

func (m *memQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, p)
	return nil
}

func testEvent(status string) *models.Event {
	return &models.Event{
		ID:        uuid.New(),
		Name:      "Level Up Chandler",
		Location:  "Chandler, AZ",
		NumSeats:  120,
		StartDate: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Status:    status,
	}
}

func newTestService(e *models.Event) (*Service, *memStore, *memQueue) {
	store := newMemStore()
	q := &memQueue{}
	svc := NewService(store, &memEvents{events: map[uuid.UUID]*models.Event{e.ID: e}}, q, nil)
	return svc, store, q
}

func input(email string) RegisterInput {
	return RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		CorpEmail: email,
		CorpSID:   "a123456",
	}
}

func TestRegisterWindowPolicy(t *testing.T) {
	e := testEvent(models.EventStatusOpen)
	tests := []struct {
		name string
		now  time.Time
		want models.Status
	}{
		{"during event", time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), models.StatusAttended},
		{"in advance", time.Date(2023, 12, 31, 9, 0, 0, 0, time.UTC), models.StatusRegistered},
		{"at start exactly", e.StartDate, models.StatusRegistered},
		{"at end exactly", e.EndDate, models.StatusRegistered},
	}
	for i, tt := range tests {
		svc, _, _ := newTestService(e)
		svc.now = func() time.Time { return tt.now }
		r, err := svc.Register(context.Background(), e.ID, input("ada"+string(rune('a'+i))+"@example.com"))
		if err != nil {
			t.Fatalf("%s: Register: %v", tt.name, err)
		}
		if r.Status != tt.want {
			t.Errorf("%s: status = %s, want %s", tt.name, r.Status, tt.want)
		}
	}
}

func TestRegisterDuplicateGuard(t *testing.T) {
	e := testEvent(models.EventStatusOpen)
	svc, _, _ := newTestService(e)
	ctx := context.Background()

	first, err := svc.Register(ctx, e.ID, input("ada@example.com"))
	if err != nil {
		t.Fatalf("first register: %v", err)
	}

	if _, err := svc.Register(ctx, e.ID, input("ada@example.com")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second register: err = %v, want ErrDuplicate", err)
	}

	// After cancellation the same email may register again.
	if _, err := svc.Cancel(ctx, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Register(ctx, e.ID, input("ada@example.com")); err != nil {
		t.Fatalf("register after cancel: %v", err)
	}
}

func TestUpdateSkipsDuplicateGuard(t *testing.T) {
	e := testEvent(models.EventStatusOpen)
	svc, _, _ := newTestService(e)
	ctx := context.Background()

	if _, err := svc.Register(ctx, e.ID, input("ada@example.com")); err != nil {
		t.Fatalf("register ada: %v", err)
	}
	other, err := svc.Register(ctx, e.ID, input("grace@example.com"))
	if err != nil {
		t.Fatalf("register grace: %v", err)
	}

	// Editing grace's registration to ada's email is not blocked.
	updated, err := svc.Update(ctx, other.ID, input("ada@example.com"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CorpEmail != "ada@example.com" {
		t.Errorf("corp_email = %s after edit", updated.CorpEmail)
	}
	if updated.Status != other.Status {
		t.Errorf("edit changed status: %s -> %s", other.Status, updated.Status)
	}
}

func TestRegisterClosedEvent(t *testing.T) {
	e := testEvent(models.EventStatusClosed)
	svc, _, _ := newTestService(e)
	if _, err := svc.Register(context.Background(), e.ID, input("ada@example.com")); !errors.Is(err, ErrEventNotOpen) {
		t.Fatalf("err = %v, want ErrEventNotOpen", err)
	}
}

func TestCheckInLifecycle(t *testing.T) {
	e := testEvent(models.EventStatusOpen)
	svc, store, _ := newTestService(e)
	ctx := context.Background()

	// Advance registration, created well before the event window.
	svc.now = func() time.Time { return time.Date(2023, 12, 31, 9, 0, 0, 0, time.UTC) }
	r, err := svc.Register(ctx, e.ID, input("ada@example.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.Status != models.StatusRegistered {
		t.Fatalf("initial status = %s", r.Status)
	}

	out, err := svc.CheckIn(ctx, r.ID)
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if !out.Applied {
		t.Fatalf("first check-in rejected: %s", out.Message)
	}
	if out.Registration.Status != models.StatusAttended {
		t.Errorf("status after check-in = %s", out.Registration.Status)
	}
	if !strings.Contains(out.Message, "Ada") {
		t.Errorf("greeting does not address attendee by first name: %q", out.Message)
	}

	// Second scan: expected rejection naming the current stored status.
	out, err = svc.CheckIn(ctx, r.ID)
	if err != nil {
		t.Fatalf("second check-in: %v", err)
	}
	if out.Applied {
		t.Fatal("second check-in applied")
	}
	if !strings.Contains(out.Message, string(models.StatusAttended)) {
		t.Errorf("rejection message does not name current status: %q", out.Message)
	}

	stored, _ := store.GetByID(ctx, r.ID)
	if stored.Status != models.StatusAttended {
		t.Errorf("stored status = %s", stored.Status)
	}
}

func TestConcurrentCheckIn(t *testing.T) {
	e := testEvent(models.EventStatusOpen)
	svc, _, _ := newTestService(e)
	ctx := context.Background()

	svc.now = func() time.Time { return time.Date(2023, 12, 31, 9, 0, 0, 0, time.UTC) }
	r, err := svc.Register(ctx, e.ID, input("ada@example.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	const attempts = 50
	var applied, rejected, failed int32
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			out, err := svc.CheckIn(ctx, r.ID)
			switch {
			case err != nil:
				atomic.AddInt32(&failed, 1)
			case out.Applied:
				atomic.AddInt32(&applied, 1)
			default:
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	if applied != 1 {
		t.Errorf("applied = %d, want exactly 1", applied)
	}
	if rejected != attempts-1 {
		t.Errorf("rejected = %d, want %d", rejected, attempts-1)
	}
	if failed != 0 {
		t.Errorf("hard failures = %d, want 0", failed)
	}
}

func TestCancelPolicy(t *testing.T) {
	e := testEvent(models.EventStatusOpen)
	svc, _, _ := newTestService(e)
	ctx := context.Background()

	svc.now = func() time.Time { return time.Date(2023, 12, 31, 9, 0, 0, 0, time.UTC) }
	r, err := svc.Register(ctx, e.ID, input("ada@example.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Cancel after check-in is allowed (cancellation wins).
	if _, err := svc.CheckIn(ctx, r.ID); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	out, err := svc.Cancel(ctx, r.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !out.Applied {
		t.Fatalf("cancel rejected: %s", out.Message)
	}

	// Cancelled is terminal: a second cancel and a late check-in both report
	// the current status instead of mutating.
	out, err = svc.Cancel(ctx, r.ID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if out.Applied {
		t.Fatal("second cancel applied")
	}
	if !strings.Contains(out.Message, string(models.StatusCancelled)) {
		t.Errorf("rejection message does not name current status: %q", out.Message)
	}

	out, err = svc.CheckIn(ctx, r.ID)
	if err != nil {
		t.Fatalf("check-in after cancel: %v", err)
	}
	if out.Applied {
		t.Fatal("check-in out of cancelled applied")
	}
	if out.Registration.Status != models.StatusCancelled {
		t.Errorf("status = %s", out.Registration.Status)
	}
}

func TestEmailsQueued(t *testing.T) {
	e := testEvent(models.EventStatusOpen)
	svc, _, q := newTestService(e)
	ctx := context.Background()

	r, err := svc.Register(ctx, e.ID, input("ada@example.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Cancel(ctx, r.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if len(q.jobs) != 2 {
		t.Fatalf("queued jobs = %d, want 2", len(q.jobs))
	}
	if q.jobs[0].EmailType != models.EmailTypeConfirmation {
		t.Errorf("first job type = %s", q.jobs[0].EmailType)
	}
	if q.jobs[1].EmailType != models.EmailTypeCancellation {
		t.Errorf("second job type = %s", q.jobs[1].EmailType)
	}
	if q.jobs[0].RecipientEmail != "ada@example.com" {
		t.Errorf("recipient = %s", q.jobs[0].RecipientEmail)
	}
}

func TestSearch(t *testing.T) {
	e := testEvent(models.EventStatusOpen)
	svc, _, _ := newTestService(e)
	ctx := context.Background()

	r, err := svc.Register(ctx, e.ID, input("ada@example.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	found, err := svc.Search(ctx, e.ID, "ada@example.com")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if found.ID != r.ID {
		t.Errorf("search returned %s, want %s", found.ID, r.ID)
	}

	// Cancelled registrations are invisible to search.
	if _, err := svc.Cancel(ctx, r.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Search(ctx, e.ID, "ada@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("search after cancel: err = %v, want ErrNotFound", err)
	}
}
