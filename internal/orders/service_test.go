package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/learnhub/backend/internal/mocks"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/realtime"
	"github.com/learnhub/backend/internal/registrations"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/broker"
	"github.com/learnhub/backend/pkg/queue"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []queue.EmailPayload
}

func (q *recordingQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, p)
	return nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func activeCoupon(code, discountType string, value int) *models.Coupon {
	return &models.Coupon{
		Code:          code,
		DiscountType:  discountType,
		DiscountValue: value,
		Active:        true,
		ValidFrom:     time.Now().Add(-time.Hour),
	}
}

func TestService_Quote(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	course := store.addItem(models.ItemCourse, 49900)
	store.addCoupon(activeCoupon("SAVE10", models.CouponDiscountPercent, 10))
	svc := NewService(store, nil, nil, nil, nil)

	q, err := svc.Quote(context.Background(), models.ItemCourse, course.ID, " save10 ")
	req.NoError(err)
	req.Equal(4990, q.DiscountCents)
	req.Equal(44910, q.TotalCents)
	req.Equal("SAVE10", q.CouponCode)

	_, err = svc.Quote(context.Background(), models.ItemCourse, course.ID, "NOPE")
	req.True(apperr.Is(err, apperr.CodeNotFound))

	_, err = svc.Quote(context.Background(), models.ItemDemoClass, course.ID, "SAVE10")
	req.True(apperr.Is(err, apperr.CodeNotFound))
}

func TestService_Quote_CouponRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *models.Coupon)
		code   apperr.Code
		want   error
	}{
		{"inactive", func(c *models.Coupon) { c.Active = false }, apperr.CodeValidation, ErrCouponInactive},
		{"expired", func(c *models.Coupon) {
			past := time.Now().Add(-time.Minute)
			c.ValidUntil = &past
		}, apperr.CodeValidation, ErrCouponExpired},
		{"exhausted", func(c *models.Coupon) { c.MaxUses, c.UsedCount = 1, 1 }, apperr.CodeConflict, ErrCouponExhausted},
		{"minimum", func(c *models.Coupon) { c.MinOrderCents = 100000 }, apperr.CodeValidation, ErrCouponMinOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			store := newMemStore()
			course := store.addItem(models.ItemCourse, 49900)
			c := activeCoupon("CODE", models.CouponDiscountFixed, 1000)
			tt.mutate(c)
			store.addCoupon(c)

			_, err := NewService(store, nil, nil, nil, nil).Quote(context.Background(), models.ItemCourse, course.ID, "CODE")
			req.True(apperr.Is(err, tt.code))
			req.ErrorIs(err, tt.want)
		})
	}
}

func TestService_CourseOrderConfirmActivatesEnrollment(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	store := newMemStore()
	course := store.addItem(models.ItemCourse, 49900)
	store.addCoupon(activeCoupon("WELCOME", models.CouponDiscountFixed, 9900))
	emails := &recordingQueue{}
	events := &recordingPublisher{}
	svc := NewService(store, emitter, emails, events, nil)
	userID := uuid.New()

	emitter.EXPECT().EmitToAdmins(realtime.EventOrderNew, gomock.Any()).Times(1)
	o, err := svc.Create(context.Background(), userID, CreateParams{ItemType: models.ItemCourse, ItemID: course.ID, CouponCode: "welcome"})
	req.NoError(err)
	req.Equal(models.OrderPending, o.Status)
	req.Equal(40000, o.TotalCents)
	req.Equal(0, store.used("WELCOME"), "coupon is redeemed on confirm, not on create")
	req.False(store.enrolled(userID, course.ID))

	emitter.EXPECT().EmitToUser(userID, realtime.EventOrderConfirmed, gomock.Any()).
		Do(func(_ uuid.UUID, _ string, payload any) {
			req.Equal(models.OrderCompleted, payload.(OrderPayload).Status)
		}).Times(1)
	o, err = svc.Confirm(context.Background(), o.ID, "UPI-123")
	req.NoError(err)
	req.Equal(models.OrderCompleted, o.Status)
	req.Equal("UPI-123", o.PaymentRef)
	req.True(store.enrolled(userID, course.ID))
	req.Equal(1, store.used("WELCOME"))

	req.Len(emails.jobs, 1)
	req.Equal(models.EmailTypeOrderConfirmed, emails.jobs[0].EmailType)
	req.Equal("INR 400.00", emails.jobs[0].Data["total"])
	req.Equal([]string{broker.OrderConfirmed}, events.keys)

	_, err = svc.Confirm(context.Background(), o.ID, "again")
	req.True(apperr.Is(err, apperr.CodeConflict))
	_, err = svc.Fail(context.Background(), o.ID)
	req.ErrorIs(err, ErrOrderNotPending)
}

func TestService_Create_AlreadyEnrolled(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().EmitToAdmins(gomock.Any(), gomock.Any()).AnyTimes()
	emitter.EXPECT().EmitToUser(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	store := newMemStore()
	course := store.addItem(models.ItemCourse, 1000)
	svc := NewService(store, emitter, nil, nil, nil)
	userID := uuid.New()

	o, err := svc.Create(context.Background(), userID, CreateParams{ItemType: models.ItemCourse, ItemID: course.ID})
	req.NoError(err)
	_, err = svc.Confirm(context.Background(), o.ID, "")
	req.NoError(err)

	_, err = svc.Create(context.Background(), userID, CreateParams{ItemType: models.ItemCourse, ItemID: course.ID})
	req.True(apperr.Is(err, apperr.CodeConflict))
	req.ErrorIs(err, ErrAlreadyEnrolled)
}

func TestService_Create_NotForSale(t *testing.T) {
	store := newMemStore()
	course := store.addItem(models.ItemCourse, 1000)
	store.items[course.ID].ForSale = false

	_, err := NewService(store, nil, nil, nil, nil).Create(context.Background(), uuid.New(), CreateParams{ItemType: models.ItemCourse, ItemID: course.ID})
	require.ErrorIs(t, err, ErrItemNotForSale)
}

func TestService_DemoClassOrderRules(t *testing.T) {
	store := newMemStore()
	dc := store.addItem(models.ItemDemoClass, 19900)
	other := store.addItem(models.ItemDemoClass, 19900)
	owner := uuid.New()
	reg := store.addRegistration(dc.ID, owner)
	paid := store.addRegistration(dc.ID, owner)
	paid.PaymentStatus = models.PaymentCompleted
	svc := NewService(store, nil, nil, nil, nil)

	tests := []struct {
		name   string
		userID uuid.UUID
		itemID uuid.UUID
		regID  *uuid.UUID
		code   apperr.Code
	}{
		{"missing registration", owner, dc.ID, nil, apperr.CodeValidation},
		{"someone else's registration", uuid.New(), dc.ID, &reg.ID, apperr.CodeValidation},
		{"registration for another class", owner, other.ID, &reg.ID, apperr.CodeValidation},
		{"already paid", owner, dc.ID, &paid.ID, apperr.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.userID, CreateParams{ItemType: models.ItemDemoClass, ItemID: tt.itemID, RegistrationID: tt.regID})
			require.True(t, apperr.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestService_DemoClassConfirmCompletesRegistrationPayment(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	store := newMemStore()
	dc := store.addItem(models.ItemDemoClass, 19900)
	userID := uuid.New()
	reg := store.addRegistration(dc.ID, userID)
	svc := NewService(store, emitter, nil, nil, nil)

	emitter.EXPECT().EmitToAdmins(realtime.EventOrderNew, gomock.Any())
	o, err := svc.Create(context.Background(), userID, CreateParams{ItemType: models.ItemDemoClass, ItemID: dc.ID, RegistrationID: &reg.ID})
	req.NoError(err)
	req.Equal(reg.ID, *o.RegistrationID)

	gomock.InOrder(
		emitter.EXPECT().EmitToUser(userID, realtime.EventOrderConfirmed, gomock.Any()),
		emitter.EXPECT().EmitToUser(userID, realtime.EventPaymentUpdated, registrations.PaymentPayload{
			RegistrationID: reg.ID,
			DemoClassID:    dc.ID,
			DemoClassTitle: dc.Title,
			PaymentStatus:  models.PaymentCompleted,
		}),
	)
	_, err = svc.Confirm(context.Background(), o.ID, "CASH")
	req.NoError(err)
	req.Equal(models.PaymentCompleted, store.payment(reg.ID))
}

func TestService_ConfirmRollsBackWhenRegistrationRemoved(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	store := newMemStore()
	dc := store.addItem(models.ItemDemoClass, 19900)
	store.addCoupon(activeCoupon("DEMO10", models.CouponDiscountPercent, 10))
	userID := uuid.New()
	reg := store.addRegistration(dc.ID, userID)
	events := &recordingPublisher{}
	svc := NewService(store, emitter, nil, events, nil)

	emitter.EXPECT().EmitToAdmins(realtime.EventOrderNew, gomock.Any())
	o, err := svc.Create(context.Background(), userID, CreateParams{ItemType: models.ItemDemoClass, ItemID: dc.ID, CouponCode: "DEMO10", RegistrationID: &reg.ID})
	req.NoError(err)
	store.removeRegistration(reg.ID)

	// no confirmation or payment event may go out
	_, err = svc.Confirm(context.Background(), o.ID, "CASH")

	req.True(apperr.Is(err, apperr.CodeConflict))
	req.ErrorIs(err, ErrRegistrationGone)
	got, err := store.GetOrder(context.Background(), o.ID)
	req.NoError(err)
	req.Equal(models.OrderPending, got.Status)
	req.Zero(store.used("DEMO10"))
	req.Empty(events.keys)
}

func TestService_FailMarksRegistrationPaymentFailed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	store := newMemStore()
	dc := store.addItem(models.ItemDemoClass, 19900)
	userID := uuid.New()
	reg := store.addRegistration(dc.ID, userID)
	svc := NewService(store, emitter, nil, nil, nil)

	emitter.EXPECT().EmitToAdmins(realtime.EventOrderNew, gomock.Any())
	o, err := svc.Create(context.Background(), userID, CreateParams{ItemType: models.ItemDemoClass, ItemID: dc.ID, RegistrationID: &reg.ID})
	req.NoError(err)

	emitter.EXPECT().EmitToUser(userID, realtime.EventPaymentUpdated, gomock.Any())
	o, err = svc.Fail(context.Background(), o.ID)
	req.NoError(err)
	req.Equal(models.OrderFailed, o.Status)
	req.Equal(models.PaymentFailed, store.payment(reg.ID))

	_, err = svc.Fail(context.Background(), uuid.New())
	req.True(apperr.Is(err, apperr.CodeNotFound))
}

func TestService_FreeOrderIsConfirmedImmediately(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	store := newMemStore()
	course := store.addItem(models.ItemCourse, 5000)
	store.addCoupon(activeCoupon("FREE", models.CouponDiscountPercent, 100))
	userID := uuid.New()

	emitter.EXPECT().EmitToAdmins(realtime.EventOrderNew, gomock.Any())
	emitter.EXPECT().EmitToUser(userID, realtime.EventOrderConfirmed, gomock.Any())
	o, err := NewService(store, emitter, nil, nil, nil).Create(context.Background(), userID, CreateParams{ItemType: models.ItemCourse, ItemID: course.ID, CouponCode: "FREE"})
	req.NoError(err)
	req.Equal(models.OrderCompleted, o.Status)
	req.Equal(freePaymentRef, o.PaymentRef)
	req.True(store.enrolled(userID, course.ID))
}

func TestService_CouponRedeemedAtMostMaxUses(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().EmitToAdmins(gomock.Any(), gomock.Any()).AnyTimes()
	emitter.EXPECT().EmitToUser(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	store := newMemStore()
	course := store.addItem(models.ItemCourse, 10000)
	c := activeCoupon("ONCE", models.CouponDiscountFixed, 1000)
	c.MaxUses = 1
	store.addCoupon(c)
	svc := NewService(store, emitter, nil, nil, nil)

	// Both orders price while the coupon is unused; only one may redeem it.
	var ids []uuid.UUID
	for range 2 {
		o, err := svc.Create(context.Background(), uuid.New(), CreateParams{ItemType: models.ItemCourse, ItemID: course.ID, CouponCode: "ONCE"})
		req.NoError(err)
		ids = append(ids, o.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Confirm(context.Background(), id, "")
		}()
	}
	wg.Wait()

	var ok, exhausted int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.Is(err, apperr.CodeConflict):
			exhausted++
		}
	}
	req.Equal(1, ok)
	req.Equal(1, exhausted)
	req.Equal(1, store.used("ONCE"))
}

func TestService_CreateCoupon(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	svc := NewService(store, nil, nil, nil, nil)

	c, err := svc.CreateCoupon(context.Background(), &models.Coupon{Code: " spring ", DiscountType: models.CouponDiscountPercent, DiscountValue: 15, Active: true})
	req.NoError(err)
	req.Equal("SPRING", c.Code)
	req.False(c.ValidFrom.IsZero())

	_, err = svc.CreateCoupon(context.Background(), &models.Coupon{Code: "SPRING", DiscountType: models.CouponDiscountFixed, DiscountValue: 100})
	req.True(apperr.Is(err, apperr.CodeConflict))

	_, err = svc.CreateCoupon(context.Background(), &models.Coupon{Code: "HUGE", DiscountType: models.CouponDiscountPercent, DiscountValue: 150})
	req.True(apperr.Is(err, apperr.CodeValidation))

	start := time.Now()
	_, err = svc.CreateCoupon(context.Background(), &models.Coupon{Code: "BACKWARDS", DiscountType: models.CouponDiscountFixed, DiscountValue: 1, ValidFrom: start, ValidUntil: &start})
	req.True(apperr.Is(err, apperr.CodeValidation))

	list, err := svc.ListCoupons(context.Background())
	req.NoError(err)
	req.Len(list, 1)
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "INR 499.00", FormatAmount(49900, "INR"))
	require.Equal(t, "USD 0.05", FormatAmount(5, "USD"))
}
