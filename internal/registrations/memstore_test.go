package registrations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/backend/internal/models"
)

// memStore mirrors the repository's guarantees with a single mutex.
type memStore struct {
	mu      sync.Mutex
	classes map[uuid.UUID]*models.DemoClass
	regs    map[uuid.UUID]*models.Registration
	pending map[uuid.UUID]bool
	writes  int
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		classes: make(map[uuid.UUID]*models.DemoClass),
		regs:    make(map[uuid.UUID]*models.Registration),
		pending: make(map[uuid.UUID]bool),
	}
}

func (m *memStore) addClass(capacity, priceCents int) *models.DemoClass {
	m.mu.Lock()
	defer m.mu.Unlock()
	dc := &models.DemoClass{
		ID:           uuid.New(),
		Title:        "Intro to Go",
		ScheduledAt:  time.Now().Add(48 * time.Hour),
		MaxAttendees: capacity,
		PriceCents:   priceCents,
		Status:       models.DemoClassScheduled,
	}
	m.classes[dc.ID] = dc
	return dc
}

// linkOrder attaches a pending order to the registration, as placing an order does.
func (m *memStore) linkOrder(regID uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	orderID := uuid.New()
	m.regs[regID].OrderID = &orderID
	m.pending[orderID] = true
	return orderID
}

func (m *memStore) settleOrder(orderID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, orderID)
}

func (m *memStore) count(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classes[id].RegisteredCount
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memStore) view(r *models.Registration) *models.RegistrationView {
	dc := m.classes[r.DemoClassID]
	return &models.RegistrationView{Registration: *r, DemoClassTitle: dc.Title, ScheduledAt: dc.ScheduledAt}
}

func (m *memStore) CreateWithSeat(_ context.Context, p CreateParams) (*models.RegistrationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dc, ok := m.classes[p.DemoClassID]
	if !ok {
		return nil, ErrDemoClassNotFound
	}
	if dc.Status != models.DemoClassScheduled {
		return nil, ErrClassNotOpen
	}
	if dc.RegisteredCount >= dc.MaxAttendees {
		return nil, ErrClassFull
	}
	if p.UserID != nil {
		for _, r := range m.regs {
			if r.DemoClassID == p.DemoClassID && r.UserID != nil && *r.UserID == *p.UserID && r.ApprovalStatus != models.ApprovalRejected {
				return nil, ErrDuplicate
			}
		}
	}
	now := time.Now()
	r := &models.Registration{
		ID:             uuid.New(),
		DemoClassID:    p.DemoClassID,
		UserID:         p.UserID,
		Name:           p.Name,
		Email:          p.Email,
		Phone:          p.Phone,
		Notes:          p.Notes,
		ApprovalStatus: models.ApprovalPending,
		PaymentStatus:  models.InitialPaymentStatus(dc.PriceCents),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	dc.RegisteredCount++
	m.regs[r.ID] = r
	m.writes++
	return m.view(r), nil
}

func (m *memStore) Decide(_ context.Context, id uuid.UUID, to models.ApprovalStatus, adminNotes *string) (*models.RegistrationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.ApprovalStatus.Terminal() {
		return nil, ErrAlreadyDecided
	}
	if to == models.ApprovalApproved && m.classes[r.DemoClassID].IsPaid() && r.PaymentStatus != models.PaymentCompleted {
		return nil, ErrPaymentRequired
	}
	r.ApprovalStatus = to
	if adminNotes != nil {
		r.AdminNotes = *adminNotes
	}
	r.UpdatedAt = time.Now()
	m.writes++
	return m.view(r), nil
}

func (m *memStore) Cancel(_ context.Context, id, userID uuid.UUID) (*models.RegistrationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok || r.UserID == nil || *r.UserID != userID {
		return nil, ErrNotFound
	}
	if r.ApprovalStatus != models.ApprovalPending || (m.classes[r.DemoClassID].IsPaid() && r.PaymentStatus == models.PaymentCompleted) {
		return nil, ErrNotCancellable
	}
	if r.OrderID != nil && m.pending[*r.OrderID] {
		return nil, ErrNotCancellable
	}
	v := m.view(r)
	delete(m.regs, id)
	if dc := m.classes[r.DemoClassID]; dc.RegisteredCount > 0 {
		dc.RegisteredCount--
	}
	m.writes++
	return v, nil
}

func (m *memStore) SetPaymentStatus(_ context.Context, id uuid.UUID, status models.PaymentStatus) (*models.RegistrationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.PaymentStatus = status
	r.UpdatedAt = time.Now()
	m.writes++
	return m.view(r), nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*models.RegistrationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.view(r), nil
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]models.RegistrationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.RegistrationView{}
	for _, r := range m.regs {
		if f.Status != nil && r.ApprovalStatus != *f.Status {
			continue
		}
		if f.DemoClassID != nil && r.DemoClassID != *f.DemoClassID {
			continue
		}
		out = append(out, *m.view(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListByUser(_ context.Context, userID uuid.UUID, updatedSince *time.Time) ([]models.RegistrationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.RegistrationView{}
	for _, r := range m.regs {
		if r.UserID == nil || *r.UserID != userID {
			continue
		}
		if updatedSince != nil && !r.UpdatedAt.After(*updatedSince) {
			continue
		}
		out = append(out, *m.view(r))
	}
	return out, nil
}
