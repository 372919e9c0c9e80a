package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/backend/internal/models"
)

// memStore mirrors the repository's transactional rules in memory.
type memStore struct {
	mu          sync.Mutex
	items       map[uuid.UUID]*Item
	regs        map[uuid.UUID]*RegistrationRef
	enrollments map[[2]uuid.UUID]bool
	customers   map[uuid.UUID]Customer
	coupons     map[string]*models.Coupon
	orders      map[uuid.UUID]*models.Order
}

func newMemStore() *memStore {
	return &memStore{
		items:       map[uuid.UUID]*Item{},
		regs:        map[uuid.UUID]*RegistrationRef{},
		enrollments: map[[2]uuid.UUID]bool{},
		customers:   map[uuid.UUID]Customer{},
		coupons:     map[string]*models.Coupon{},
		orders:      map[uuid.UUID]*models.Order{},
	}
}

func (m *memStore) addItem(t models.ItemType, priceCents int) *Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := &Item{Type: t, ID: uuid.New(), Title: string(t) + " item", PriceCents: priceCents, Currency: "INR", ForSale: true}
	m.items[it.ID] = it
	return it
}

func (m *memStore) addRegistration(demoClassID, userID uuid.UUID) *RegistrationRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := &RegistrationRef{ID: uuid.New(), DemoClassID: demoClassID, UserID: &userID, PaymentStatus: models.PaymentPending}
	m.regs[ref.ID] = ref
	return ref
}

func (m *memStore) removeRegistration(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.regs, id)
}

func (m *memStore) addCoupon(c *models.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	m.coupons[c.Code] = c
}

func (m *memStore) enrolled(userID, courseID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollments[[2]uuid.UUID{userID, courseID}]
}

func (m *memStore) payment(regID uuid.UUID) models.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[regID].PaymentStatus
}

func (m *memStore) used(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coupons[code].UsedCount
}

func (m *memStore) Item(_ context.Context, t models.ItemType, id uuid.UUID) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.Type != t {
		return nil, ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memStore) Registration(_ context.Context, id uuid.UUID) (*RegistrationRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.regs[id]
	if !ok {
		return nil, ErrRegistrationOwner
	}
	cp := *ref
	return &cp, nil
}

func (m *memStore) Enrolled(_ context.Context, userID, courseID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollments[[2]uuid.UUID{userID, courseID}], nil
}

func (m *memStore) Customer(_ context.Context, userID uuid.UUID) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.customers[userID]; ok {
		return &c, nil
	}
	return &Customer{Name: "Student", Email: userID.String() + "@learnhub.test"}, nil
}

func (m *memStore) CouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok {
		return nil, ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CreateCoupon(_ context.Context, c *models.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.coupons[c.Code]; ok {
		return ErrCouponCodeTaken
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	cp := *c
	m.coupons[c.Code] = &cp
	return nil
}

func (m *memStore) ListCoupons(context.Context) ([]models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Coupon, 0, len(m.coupons))
	for _, c := range m.coupons {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memStore) CreateOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = uuid.New()
	o.Status = models.OrderPending
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memStore) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListOrders(_ context.Context, f OrderFilter) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if off := f.offset(); off < len(out) {
		out = out[off:]
	} else {
		out = out[:0]
	}
	if len(out) > f.limit() {
		out = out[:f.limit()]
	}
	return out, nil
}

func (m *memStore) lockPending(id uuid.UUID) (*models.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.Status != models.OrderPending {
		return nil, ErrOrderNotPending
	}
	return o, nil
}

func (m *memStore) Confirm(_ context.Context, id uuid.UUID, paymentRef string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.lockPending(id)
	if err != nil {
		return nil, err
	}
	var ref *RegistrationRef
	if o.RegistrationID != nil {
		if ref = m.regs[*o.RegistrationID]; ref == nil {
			return nil, ErrRegistrationGone
		}
	}
	if o.CouponCode != "" {
		c := m.coupons[o.CouponCode]
		if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
			return nil, ErrCouponExhausted
		}
		c.UsedCount++
	}
	o.Status = models.OrderCompleted
	o.PaymentRef = paymentRef
	o.UpdatedAt = time.Now()
	switch {
	case o.ItemType == models.ItemCourse:
		m.enrollments[[2]uuid.UUID{o.UserID, o.ItemID}] = true
	case ref != nil:
		ref.PaymentStatus = models.PaymentCompleted
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) Fail(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.lockPending(id)
	if err != nil {
		return nil, err
	}
	o.Status = models.OrderFailed
	o.UpdatedAt = time.Now()
	if o.RegistrationID != nil {
		if ref := m.regs[*o.RegistrationID]; ref != nil && ref.PaymentStatus != models.PaymentCompleted {
			ref.PaymentStatus = models.PaymentFailed
		}
	}
	cp := *o
	return &cp, nil
}
