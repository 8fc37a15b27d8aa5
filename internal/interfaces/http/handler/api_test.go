package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	caisseapp "github.com/procurement/backend/internal/application/caisse"
	"github.com/procurement/backend/internal/application/document"
	appevent "github.com/procurement/backend/internal/application/event"
	procapp "github.com/procurement/backend/internal/application/procurement"
	"github.com/procurement/backend/internal/application/unitofwork"
	"github.com/procurement/backend/internal/domain/sequence"
	"github.com/procurement/backend/internal/domain/shared"
	infraevent "github.com/procurement/backend/internal/infrastructure/event"
	"github.com/procurement/backend/internal/infrastructure/persistence"
	"github.com/procurement/backend/internal/infrastructure/storage"
	"github.com/procurement/backend/internal/interfaces/http/dto"
	"github.com/procurement/backend/internal/interfaces/http/handler"
	"github.com/procurement/backend/internal/interfaces/http/router"
	"github.com/procurement/backend/tests/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// api serves the full route table against a private SQLite database
type api struct {
	engine  *gin.Engine
	db      *gorm.DB
	outbox  *infraevent.GormOutboxRepository
	storage *storage.MemoryObjectStorage
	member  shared.Actor
	admin   shared.Actor
	ready   error
}

func newAPI(t *testing.T) *api {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	scope := persistence.NewGormTransactionScope(db, testutil.NewRecordingOutbox())
	issuer := sequence.NewIssuer(persistence.NewGormSequenceGenerator(db)).WithClock(func() time.Time {
		return time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)
	})
	policy := unitofwork.RetryPolicy{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

	orders := procapp.NewOrderService(scope, persistence.NewGormOrderRepository(db), issuer, nil)
	orders.SetRetryPolicy(policy)
	requests := procapp.NewPaymentRequestService(scope, persistence.NewGormPaymentRequestRepository(db), issuer, nil)
	requests.SetRetryPolicy(policy)
	register := caisseapp.NewService(scope, persistence.NewGormFundingRequestRepository(db), persistence.NewGormCaisseLedger(db), issuer, nil)
	register.SetRetryPolicy(policy)

	a := &api{
		db:      db,
		outbox:  infraevent.NewGormOutboxRepository(db),
		storage: storage.NewMemoryObjectStorage(""),
		member:  testutil.TestMember(),
		admin:   testutil.TestAdmin(),
	}
	health := handler.NewHealthHandler(map[string]handler.Check{
		"database": func(context.Context) error { return a.ready },
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	engine, err := router.NewEngine(ctx, router.EngineConfig{ServiceName: "procurement-test", Health: health}, router.Handlers{
		Orders:          handler.NewOrderHandler(orders),
		PaymentRequests: handler.NewPaymentRequestHandler(requests),
		Caisse:          handler.NewCaisseHandler(register),
		Documents:       handler.NewDocumentHandler(document.NewService(a.storage, 0, nil)),
		Deliveries:      handler.NewDeliveryHandler(appevent.NewDeliveryService(a.outbox, nil)),
	})
	require.NoError(t, err)
	a.engine = engine
	return a
}

// do sends a request as actor; a zero actor sends no actor headers
func (a *api) do(t *testing.T, actor shared.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor.ID != uuid.Nil {
		req.Header.Set(testutil.HeaderActorID, actor.ID.String())
		if actor.Admin {
			req.Header.Set(testutil.HeaderActorRole, "admin")
		}
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

// envelope is dto.Response with the data left raw
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// data decodes a successful response into T
func data[T any](t *testing.T, w *httptest.ResponseRecorder, status int) T {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	env := decode(t, w)
	require.True(t, env.Success)
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// failure asserts an error response and returns its code
func failure(t *testing.T, w *httptest.ResponseRecorder, status int) string {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	env := decode(t, w)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.NotEmpty(t, env.Error.RequestID)
	return env.Error.Code
}
