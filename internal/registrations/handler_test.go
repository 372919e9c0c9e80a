package registrations

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/mocks"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/realtime"
	"github.com/learnhub/backend/pkg/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const adminToken = "admin-token"

var adminID = uuid.New()

// tokens are either the admin token or a student's user id.
func testValidator(token string) (middleware.Identity, error) {
	if token == adminToken {
		return middleware.Identity{UserID: adminID, Role: string(models.RoleAdmin)}, nil
	}
	id, err := uuid.Parse(token)
	if err != nil {
		return middleware.Identity{}, errors.New("bad token")
	}
	return middleware.Identity{UserID: id, Role: string(models.RoleStudent)}, nil
}

func newTestRouter(svc *Service) *gin.Engine {
	h := NewHandler(svc, zap.NewNop())
	r := gin.New()
	r.Use(middleware.Errors(zap.NewNop()))
	r.POST("/demo-classes/:id/register", middleware.OptionalJWT(testValidator), h.Register)

	me := r.Group("/registrations", middleware.JWT(testValidator))
	me.GET("/me", h.Mine)
	me.DELETE("/:id", h.Cancel)

	admin := r.Group("/admin/registrations", middleware.JWT(testValidator), middleware.RequireRole(string(models.RoleAdmin)))
	admin.GET("", h.List)
	admin.GET("/:id", h.Get)
	admin.PATCH("/:id/approve", h.Approve)
	admin.PATCH("/:id/reject", h.Reject)
	admin.PATCH("/:id/payment", h.UpdatePayment)
	return r
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    apperr.Code `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	httpReq := httptest.NewRequest(method, path, &buf)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httpReq)

	var out apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func registerBody(name string) RegisterRequest {
	return RegisterRequest{Name: name, Email: name + "@learnhub.test", Phone: "+9100000000"}
}

func TestHandler_LastSeatGoesToExactlyOneCaller(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().EmitToAdmins(realtime.EventRegistrationNew, gomock.Any()).Times(1)
	store := newMemStore()
	dc := store.addClass(1, 0)
	r := newTestRouter(NewService(store, emitter, nil, nil, nil))

	users := []uuid.UUID{uuid.New(), uuid.New()}
	codes := make([]int, len(users))
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, u uuid.UUID) {
			defer wg.Done()
			w, _ := do(t, r, http.MethodPost, "/demo-classes/"+dc.ID.String()+"/register", u.String(), registerBody("student"))
			codes[i] = w.Code
		}(i, u)
	}
	wg.Wait()

	req.ElementsMatch([]int{http.StatusCreated, http.StatusConflict}, codes)
	req.Equal(1, store.count(dc.ID))
}

func TestHandler_ApproveFlow(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	store := newMemStore()
	dc := store.addClass(5, 0)
	student := uuid.New()
	r := newTestRouter(NewService(store, emitter, nil, nil, nil))

	emitter.EXPECT().EmitToAdmins(realtime.EventRegistrationNew, gomock.Any())
	w, res := do(t, r, http.MethodPost, "/demo-classes/"+dc.ID.String()+"/register", student.String(), registerBody("asha"))
	req.Equal(http.StatusCreated, w.Code)
	var created models.RegistrationView
	req.NoError(json.Unmarshal(res.Data, &created))
	req.Equal(student, *created.UserID)
	req.Equal(models.ApprovalPending, created.ApprovalStatus)

	// students cannot decide
	w, _ = do(t, r, http.MethodPatch, "/admin/registrations/"+created.ID.String()+"/approve", student.String(), nil)
	req.Equal(http.StatusForbidden, w.Code)

	emitter.EXPECT().EmitToUser(student, realtime.EventRegistrationApproved, gomock.Any()).Times(1)
	w, res = do(t, r, http.MethodPatch, "/admin/registrations/"+created.ID.String()+"/approve", adminToken,
		DecisionRequest{AdminNotes: strPtr("welcome")})
	req.Equal(http.StatusOK, w.Code)
	var approved models.RegistrationView
	req.NoError(json.Unmarshal(res.Data, &approved))
	req.Equal(models.ApprovalApproved, approved.ApprovalStatus)
	req.Equal("welcome", approved.AdminNotes)

	// a second decision is refused and leaves the row alone
	w, res = do(t, r, http.MethodPatch, "/admin/registrations/"+created.ID.String()+"/reject", adminToken, nil)
	req.Equal(http.StatusConflict, w.Code)
	req.Equal(apperr.CodeConflict, res.Error.Code)
}

func TestHandler_UnknownAndMalformedIDs(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	r := newTestRouter(NewService(newMemStore(), mocks.NewMockEmitter(ctrl), nil, nil, nil))

	w, res := do(t, r, http.MethodPatch, "/admin/registrations/"+uuid.NewString()+"/approve", adminToken, nil)
	req.Equal(http.StatusNotFound, w.Code)
	req.Equal(apperr.CodeNotFound, res.Error.Code)

	w, res = do(t, r, http.MethodGet, "/admin/registrations/not-a-uuid", adminToken, nil)
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal(apperr.CodeValidation, res.Error.Code)

	w, _ = do(t, r, http.MethodPost, "/demo-classes/"+uuid.NewString()+"/register", "", registerBody("x"))
	req.Equal(http.StatusNotFound, w.Code)
}

func TestHandler_RegisterValidation(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := newMemStore()
	dc := store.addClass(5, 0)
	r := newTestRouter(NewService(store, mocks.NewMockEmitter(ctrl), nil, nil, nil))

	w, res := do(t, r, http.MethodPost, "/demo-classes/"+dc.ID.String()+"/register", "",
		RegisterRequest{Name: "x", Email: "not-an-email", Phone: "+9100000000"})

	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal(apperr.CodeValidation, res.Error.Code)
	req.Zero(store.count(dc.ID))
}

func TestHandler_MineAndCancel(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	emitter.EXPECT().EmitToAdmins(realtime.EventRegistrationNew, gomock.Any())
	emitter.EXPECT().EmitToAdmins(realtime.EventRegistrationCancelled, gomock.Any())
	store := newMemStore()
	dc := store.addClass(5, 0)
	student := uuid.New()
	r := newTestRouter(NewService(store, emitter, nil, nil, nil))

	w, res := do(t, r, http.MethodPost, "/demo-classes/"+dc.ID.String()+"/register", student.String(), registerBody("ravi"))
	req.Equal(http.StatusCreated, w.Code)
	var created models.RegistrationView
	req.NoError(json.Unmarshal(res.Data, &created))

	w, res = do(t, r, http.MethodGet, "/registrations/me", student.String(), nil)
	req.Equal(http.StatusOK, w.Code)
	var mine struct {
		Registrations []models.RegistrationView `json:"registrations"`
	}
	req.NoError(json.Unmarshal(res.Data, &mine))
	req.Len(mine.Registrations, 1)

	w, _ = do(t, r, http.MethodGet, "/registrations/me?updated_since=yesterday", student.String(), nil)
	req.Equal(http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodDelete, "/registrations/"+created.ID.String(), student.String(), nil)
	req.Equal(http.StatusNoContent, w.Code)
	req.Zero(store.count(dc.ID))
}

func strPtr(s string) *string { return &s }
