package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dealdocs/engine/internal/api/handlers"
	mw "github.com/dealdocs/engine/internal/api/middleware"
	"github.com/dealdocs/engine/internal/auth"
	"github.com/dealdocs/engine/internal/models"
	"github.com/dealdocs/engine/internal/queue/tasks"
	"github.com/dealdocs/engine/internal/services"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("test-secret")

func TestMain(m *testing.M) {
	logger.Replace(zap.NewNop())
	m.Run()
}

type mockGeneration struct{ mock.Mock }

func (m *mockGeneration) Generate(ctx context.Context, p auth.Principal, dealID, attemptID uuid.UUID) (*services.GenerationResult, error) {
	args := m.Called(ctx, p, dealID, attemptID)
	res, _ := args.Get(0).(*services.GenerationResult)
	return res, args.Error(1)
}

type mockStatus struct{ mock.Mock }

func (m *mockStatus) GetStatus(ctx context.Context, p auth.Principal, dealID uuid.UUID) (*services.GenerationStatus, error) {
	args := m.Called(ctx, p, dealID)
	st, _ := args.Get(0).(*services.GenerationStatus)
	return st, args.Error(1)
}

type mockDocuments struct{ mock.Mock }

func (m *mockDocuments) ListByDeal(ctx context.Context, p auth.Principal, dealID uuid.UUID) ([]models.DocumentInstance, error) {
	args := m.Called(ctx, p, dealID)
	docs, _ := args.Get(0).([]models.DocumentInstance)
	return docs, args.Error(1)
}

func (m *mockDocuments) DownloadURL(ctx context.Context, p auth.Principal, documentID uuid.UUID) (string, error) {
	args := m.Called(ctx, p, documentID)
	return args.String(0), args.Error(1)
}

func (m *mockDocuments) Transition(ctx context.Context, p auth.Principal, documentID uuid.UUID, to string) (*models.DocumentInstance, error) {
	args := m.Called(ctx, p, documentID, to)
	doc, _ := args.Get(0).(*models.DocumentInstance)
	return doc, args.Error(1)
}

type mockAuth struct{ mock.Mock }

func (m *mockAuth) Register(ctx context.Context, dealershipID uuid.UUID, email, password, name string) (*models.User, error) {
	args := m.Called(ctx, dealershipID, email, password, name)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	args := m.Called(ctx, email, password)
	u, _ := args.Get(1).(*models.User)
	return args.String(0), u, args.Error(2)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

type fixture struct {
	router     http.Handler
	generation *mockGeneration
	status     *mockStatus
	documents  *mockDocuments
	auth       *mockAuth
	queue      *mockQueue
	principal  auth.Principal
	token      string
}

func newFixture(t *testing.T, withQueue bool) *fixture {
	t.Helper()
	f := &fixture{
		generation: &mockGeneration{},
		status:     &mockStatus{},
		documents:  &mockDocuments{},
		auth:       &mockAuth{},
		queue:      &mockQueue{},
		principal:  auth.Principal{RequesterID: uuid.New(), DealershipID: uuid.New()},
	}
	var queue tasks.Enqueuer
	if withQueue {
		queue = f.queue
	}
	f.router = NewRouter(Dependencies{
		HMACSecret:       secret,
		AuthHandler:      handlers.NewAuthHandler(f.auth),
		DealsHandler:     handlers.NewDealsHandler(f.generation, f.status, f.documents, queue, time.Minute),
		DocumentsHandler: handlers.NewDocumentsHandler(f.documents, 15*time.Minute),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Check{
			"db": func(context.Context) error { return nil },
		}),
	})

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           f.principal.RequesterID.String(),
		"dealership_id": f.principal.DealershipID.String(),
		"exp":           time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)
	f.token = tok
	return f
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t, false)
	f.token = "garbage"

	rr, env := f.do(t, http.MethodGet, "/api/v1/deals/"+uuid.NewString()+"/documents/status", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthorized", env.Error.Code)
}

func TestTokenWithoutDealershipRejected(t *testing.T) {
	f := newFixture(t, false)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)
	f.token = tok

	rr, _ := f.do(t, http.MethodGet, "/api/v1/deals/"+uuid.NewString()+"/documents", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGenerateSyncUsesIdempotencyKey(t *testing.T) {
	f := newFixture(t, false)
	dealID := uuid.New()
	attemptID := uuid.New()
	f.generation.On("Generate", mock.Anything, f.principal, dealID, attemptID).Return(&services.GenerationResult{
		Success:            true,
		AttemptID:          attemptID,
		DocumentsGenerated: 2,
	}, nil).Once()

	rr, env := f.do(t, http.MethodPost, "/api/v1/deals/"+dealID.String()+"/documents/generate", "",
		map[string]string{handlers.IdempotencyHeader: attemptID.String()})
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, env.Success)

	var res services.GenerationResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, attemptID, res.AttemptID)
	assert.Equal(t, 2, res.DocumentsGenerated)
	f.generation.AssertExpectations(t)
}

func TestGenerateRejectsMalformedIdempotencyKey(t *testing.T) {
	f := newFixture(t, false)

	rr, env := f.do(t, http.MethodPost, "/api/v1/deals/"+uuid.NewString()+"/documents/generate", "",
		map[string]string{handlers.IdempotencyHeader: "not-a-uuid"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid", env.Error.Code)
	f.generation.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateMapsErrorCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"conflict", appErr.New(appErr.CodeConflict, "generation already in progress"), http.StatusConflict},
		{"forbidden", appErr.New(appErr.CodeForbidden, "deal belongs to another dealership"), http.StatusForbidden},
		{"not found", appErr.New(appErr.CodeNotFound, "deal not found"), http.StatusNotFound},
		{"precondition", appErr.New(appErr.CodeFailedPrecondition, "no active templates"), http.StatusUnprocessableEntity},
		{"internal", appErr.New(appErr.CodeInternal, "failed to generate any documents"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.generation.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err)

			rr, env := f.do(t, http.MethodPost, "/api/v1/deals/"+uuid.NewString()+"/documents/generate", "", nil)
			require.Equal(t, tc.status, rr.Code)
			require.False(t, env.Success)
			require.Equal(t, string(appErr.CodeOf(tc.err)), env.Error.Code)
		})
	}
}

func TestGenerateAsyncEnqueuesTask(t *testing.T) {
	f := newFixture(t, true)
	dealID := uuid.New()
	attemptID := uuid.New()

	f.queue.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var p tasks.GeneratePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return false
		}
		return task.Type() == tasks.TypeGenerateDocuments &&
			p.DealID == dealID.String() &&
			p.AttemptID == attemptID.String() &&
			p.DealershipID == f.principal.DealershipID.String()
	})).Return(&asynq.TaskInfo{ID: attemptID.String()}, nil).Once()

	rr, env := f.do(t, http.MethodPost, "/api/v1/deals/"+dealID.String()+"/documents/generate?async=true", "",
		map[string]string{handlers.IdempotencyHeader: attemptID.String()})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var accepted struct {
		AttemptID string `json:"attemptId"`
		TaskID    string `json:"taskId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	assert.Equal(t, attemptID.String(), accepted.AttemptID)
	assert.Equal(t, attemptID.String(), accepted.TaskID)
	f.queue.AssertExpectations(t)
	f.generation.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateAsyncReplayIsAccepted(t *testing.T) {
	f := newFixture(t, true)
	f.queue.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, asynq.ErrTaskIDConflict).Once()

	rr, _ := f.do(t, http.MethodPost, "/api/v1/deals/"+uuid.NewString()+"/documents/generate?async=true", "", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
}

func TestGenerateAsyncQueueFailures(t *testing.T) {
	f := newFixture(t, false)
	rr, _ := f.do(t, http.MethodPost, "/api/v1/deals/"+uuid.NewString()+"/documents/generate?async=true", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	f = newFixture(t, true)
	f.queue.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, errors.New("redis down")).Once()
	rr, env := f.do(t, http.MethodPost, "/api/v1/deals/"+uuid.NewString()+"/documents/generate?async=true", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "unavailable", env.Error.Code)
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t, false)
	dealID := uuid.New()
	f.status.On("GetStatus", mock.Anything, f.principal, dealID).Return(&services.GenerationStatus{
		Total: 3, Ready: 2, Signed: 1, AllReady: true, Source: services.StatusSourceInstances,
	}, nil).Once()

	rr, env := f.do(t, http.MethodGet, "/api/v1/deals/"+dealID.String()+"/documents/status", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var st services.GenerationStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 3, st.Total)
	assert.True(t, st.AllReady)
	assert.False(t, st.AllSigned)
}

func TestStatusRejectsBadDealID(t *testing.T) {
	f := newFixture(t, false)
	rr, _ := f.do(t, http.MethodGet, "/api/v1/deals/nope/documents/status", "", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListDocuments(t *testing.T) {
	f := newFixture(t, false)
	dealID := uuid.New()
	f.documents.On("ListByDeal", mock.Anything, f.principal, dealID).Return([]models.DocumentInstance{
		{ID: uuid.New(), DealID: dealID, Name: "Bill of Sale", Status: models.DocumentStatusReady},
	}, nil).Once()

	rr, env := f.do(t, http.MethodGet, "/api/v1/deals/"+dealID.String()+"/documents", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var docs []models.DocumentInstance
	require.NoError(t, json.Unmarshal(env.Data, &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "Bill of Sale", docs[0].Name)
}

func TestDownloadAndLifecycle(t *testing.T) {
	f := newFixture(t, false)
	docID := uuid.New()
	f.documents.On("DownloadURL", mock.Anything, f.principal, docID).Return("https://minio.local/doc.pdf?sig=1", nil).Once()
	f.documents.On("Transition", mock.Anything, f.principal, docID, models.DocumentStatusSigned).
		Return(&models.DocumentInstance{ID: docID, Status: models.DocumentStatusSigned}, nil).Once()
	f.documents.On("Transition", mock.Anything, f.principal, docID, models.DocumentStatusVoid).
		Return(nil, appErr.New(appErr.CodeFailedPrecondition, "document is not in status DRAFT|READY|SIGNED")).Once()

	rr, env := f.do(t, http.MethodGet, "/api/v1/documents/"+docID.String()+"/download", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var dl struct {
		URL       string `json:"url"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &dl))
	assert.Equal(t, "https://minio.local/doc.pdf?sig=1", dl.URL)
	assert.Equal(t, 900, dl.ExpiresIn)

	rr, _ = f.do(t, http.MethodPost, "/api/v1/documents/"+docID.String()+"/sign", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, _ = f.do(t, http.MethodPost, "/api/v1/documents/"+docID.String()+"/void", "", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	f.documents.AssertExpectations(t)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, false)
	user := &models.User{Email: "sam@dealer.test", Name: "Sam", DealershipID: f.principal.DealershipID}
	f.auth.On("Login", mock.Anything, "sam@dealer.test", "hunter22").Return("tok", user, nil).Once()
	f.auth.On("Login", mock.Anything, "sam@dealer.test", "wrong").
		Return("", nil, appErr.New(appErr.CodeUnauthorized, "invalid credentials")).Once()

	rr, env := f.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"sam@dealer.test","password":"hunter22"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, string(env.Data), `"access_token":"tok"`)

	rr, _ = f.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"sam@dealer.test","password":"wrong"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = f.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"not-an-email","password":"x"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegisterValidatesDealership(t *testing.T) {
	f := newFixture(t, false)
	rr, env := f.do(t, http.MethodPost, "/api/v1/auth/register",
		`{"dealership_id":"x","email":"a@b.test","password":"longenough","name":"A"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid", env.Error.Code)

	dealershipID := uuid.New()
	f.auth.On("Register", mock.Anything, dealershipID, "a@b.test", "longenough", "A").
		Return(&models.User{Email: "a@b.test", Name: "A", DealershipID: dealershipID}, nil).Once()
	rr, _ = f.do(t, http.MethodPost, "/api/v1/auth/register",
		`{"dealership_id":"`+dealershipID.String()+`","email":"a@b.test","password":"longenough","name":"A"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func healthzFrom(h http.Handler, remote, forwarded string) int {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = remote
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	h := NewRouter(Dependencies{HMACSecret: secret, Limiter: mw.NewLimiter(0.001, 1)})

	require.Equal(t, http.StatusOK, healthzFrom(h, "203.0.113.7:4000", ""))
	assert.Equal(t, http.StatusTooManyRequests, healthzFrom(h, "203.0.113.7:4000", "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, healthzFrom(h, "203.0.113.7:4001", "198.51.100.2"))
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	h := NewRouter(Dependencies{HMACSecret: secret, TrustProxy: true, Limiter: mw.NewLimiter(0.001, 1)})

	require.Equal(t, http.StatusOK, healthzFrom(h, "10.0.0.1:4000", "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, healthzFrom(h, "10.0.0.1:4000", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, healthzFrom(h, "10.0.0.1:4000", "198.51.100.2"))
}
