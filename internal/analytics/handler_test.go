package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
)

type fakeSource map[uuid.UUID]*Counts

func (f fakeSource) DemoClassCounts(_ context.Context, id uuid.UUID) (*Counts, error) {
	if id == uuid.Nil {
		return nil, errors.New("db down")
	}
	c, ok := f[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func TestSummarize(t *testing.T) {
	req := require.New(t)
	s := Summarize(&Counts{Capacity: 20, Registered: 15, Pending: 5, Approved: 6, Rejected: 4, RevenueCents: 59700, EmailsSent: 12})

	req.Equal(5, s.SeatsLeft)
	req.Equal(15, s.TotalRegistrations)
	req.InDelta(0.75, s.FillRate, 1e-9)
	req.NotNil(s.ApprovalRate)
	req.InDelta(0.6, *s.ApprovalRate, 1e-9)
	req.Equal(int64(59700), *s.RevenueCents)
}

func TestSummarize_EmptyClass(t *testing.T) {
	req := require.New(t)
	s := Summarize(&Counts{Capacity: 10})

	req.Equal(10, s.SeatsLeft)
	req.Nil(s.ApprovalRate)
	req.Nil(s.RevenueCents)
	req.Zero(s.FillRate)
}

func TestHandler_GetByDemoClass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	known := uuid.New()
	r := gin.New()
	r.Use(middleware.Errors(zap.NewNop()))
	r.GET("/admin/demo-classes/:id/analytics", NewHandler(fakeSource{known: {DemoClassID: known, Title: "Intro", Capacity: 5, Registered: 5}}).GetByDemoClass)

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"found", known.String(), http.StatusOK},
		{"unknown", uuid.NewString(), http.StatusNotFound},
		{"malformed", "nope", http.StatusBadRequest},
		{"store failure", uuid.Nil.String(), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/demo-classes/"+tt.id+"/analytics", nil))
			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}
			var body struct {
				Data SummaryResponse `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.Equal(t, 0, body.Data.SeatsLeft)
			require.Equal(t, "Intro", body.Data.Title)
		})
	}
}
