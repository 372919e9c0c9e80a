package democlasses

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/realtime"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/storage"
)

var (
	ErrNotFound           = errors.New("demo class not found")
	ErrCapacityBelowCount = errors.New("max attendees cannot drop below registered count")
	ErrCoverStorageOff    = errors.New("cover storage is not configured")
)

// ListFilter narrows List.
type ListFilter struct {
	Status       *models.DemoClassStatus
	UpcomingOnly bool
	Limit        int
	Offset       int
}

func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return 50
	case f.Limit > 200:
		return 200
	}
	return f.Limit
}

// UpdateParams holds a partial update. Nil fields are left unchanged.
type UpdateParams struct {
	Title           *string
	Description     *string
	Instructor      *string
	ScheduledAt     *time.Time
	DurationMinutes *int
	PriceCents      *int
	MaxAttendees    *int
	Status          *models.DemoClassStatus
}

// Store persists demo classes.
type Store interface {
	Create(ctx context.Context, d *models.DemoClass) error
	Get(ctx context.Context, id uuid.UUID) (*models.DemoClass, error)
	List(ctx context.Context, f ListFilter) ([]models.DemoClass, error)
	Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*models.DemoClass, error)
	SetCover(ctx context.Context, id uuid.UUID, key string) (*models.DemoClass, string, error)
}

// CoverStore holds cover images.
type CoverStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, publicRead bool) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// UpdatedPayload is broadcast to every connection on demo-class:updated.
type UpdatedPayload struct {
	DemoClassID uuid.UUID              `json:"demoClassId"`
	Title       string                 `json:"title"`
	Status      models.DemoClassStatus `json:"status"`
	ScheduledAt time.Time              `json:"scheduledAt"`
	SeatsLeft   int                    `json:"seatsLeft"`
}

// Service manages the demo class catalogue.
type Service struct {
	store   Store
	covers  CoverStore
	emitter realtime.Emitter
	logger  *zap.Logger
}

// NewService creates a demo class service. covers may be nil when S3 is not configured.
func NewService(store Store, covers CoverStore, emitter realtime.Emitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, covers: covers, emitter: emitter, logger: logger}
}

// Create adds a scheduled demo class.
func (s *Service) Create(ctx context.Context, d *models.DemoClass) (*models.DemoClass, error) {
	if d.Currency == "" {
		d.Currency = "INR"
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, mapErr(err)
	}
	return s.withURL(d), nil
}

// Get returns one demo class.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.DemoClass, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return s.withURL(d), nil
}

// List returns the catalogue.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.DemoClass, error) {
	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, mapErr(err)
	}
	for i := range list {
		s.withURL(&list[i])
	}
	return list, nil
}

// Update applies p and broadcasts the new state.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*models.DemoClass, error) {
	if p.Status != nil && !p.Status.Valid() {
		return nil, apperr.Validation("invalid status", "status: must be one of scheduled, completed, cancelled")
	}
	d, err := s.store.Update(ctx, id, p)
	if err != nil {
		return nil, mapErr(err)
	}
	s.broadcast(d)
	return s.withURL(d), nil
}

// UploadCover validates and stores a cover image, replacing any previous one.
func (s *Service) UploadCover(ctx context.Context, id uuid.UUID, body io.Reader) (*models.DemoClass, error) {
	if s.covers == nil {
		return nil, apperr.Internal("cover upload unavailable", ErrCoverStorageOff)
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, mapErr(err)
	}
	contentType, ext, content, err := storage.DetectImage(body)
	if errors.Is(err, storage.ErrUnsupportedType) {
		return nil, apperr.Validation("unsupported image type", "cover: must be jpeg, png, webp or gif")
	}
	if err != nil {
		return nil, apperr.Internal("failed to read upload", err)
	}

	key := storage.CoverKey(id.String(), ext, time.Now())
	if _, err := s.covers.Upload(ctx, key, contentType, content, true); err != nil {
		return nil, apperr.Internal("failed to store cover", err)
	}
	d, oldKey, err := s.store.SetCover(ctx, id, key)
	if err != nil {
		if delErr := s.covers.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned cover object", zap.String("key", key), zap.Error(delErr))
		}
		return nil, mapErr(err)
	}
	if oldKey != "" && oldKey != key {
		if err := s.covers.Delete(ctx, oldKey); err != nil {
			s.logger.Warn("delete previous cover failed", zap.String("key", oldKey), zap.Error(err))
		}
	}
	s.logger.Info("cover uploaded", zap.String("demo_class_id", id.String()), zap.String("key", key))
	s.broadcast(d)
	return s.withURL(d), nil
}

func (s *Service) broadcast(d *models.DemoClass) {
	s.emitter.EmitToAll(realtime.EventDemoClassUpdated, UpdatedPayload{
		DemoClassID: d.ID,
		Title:       d.Title,
		Status:      d.Status,
		ScheduledAt: d.ScheduledAt,
		SeatsLeft:   d.SeatsLeft(),
	})
}

func (s *Service) withURL(d *models.DemoClass) *models.DemoClass {
	if s.covers != nil && d.CoverImageKey != "" {
		d.CoverImageURL = s.covers.PublicURL(d.CoverImageKey)
	}
	return d
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(err.Error()).Wrap(err)
	case errors.Is(err, ErrCapacityBelowCount):
		return apperr.Conflict(err.Error()).Wrap(err)
	default:
		return apperr.Internal("demo class store failure", err)
	}
}
