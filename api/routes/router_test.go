package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/api/controllers"
	"github.com/angelmondragon/vendorledger/internal/balances"
	"github.com/angelmondragon/vendorledger/internal/cashevents"
	"github.com/angelmondragon/vendorledger/internal/creditguard"
	"github.com/angelmondragon/vendorledger/internal/notifications"
	"github.com/angelmondragon/vendorledger/internal/reporting"
	"github.com/angelmondragon/vendorledger/internal/settlements"
	"github.com/angelmondragon/vendorledger/internal/testutil"
	"github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/internal/withdrawals"
	"github.com/angelmondragon/vendorledger/pkg/auth"
	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
)

type memoryStore struct {
	mu       sync.Mutex
	data     map[string]string
	counters map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, counters: map[string]int64{}}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = fmt.Sprint(value)
	return nil
}

func (s *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	switch v := value.(type) {
	case string:
		s.data[key] = v
	case []byte:
		s.data[key] = string(v)
	default:
		s.data[key] = fmt.Sprint(v)
	}
	return true, nil
}

func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (s *memoryStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[scope]++
	return s.counters[scope] <= limit, s.counters[scope], nil
}

type harness struct {
	handler http.Handler
	conn    *gorm.DB
	cfg     *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, conn := testutil.NewClient(t)
	emitter := testutil.NewOutbox(conn)
	reg := prometheus.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(reg)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	vendorRepo := vendors.NewRepository(conn)

	vendorSvc, err := vendors.NewService(vendorRepo, 1000000)
	require.NoError(t, err)
	balanceSvc, err := balances.NewService(vendorRepo, balances.NewHistoryRepository(conn), client, emitter, ledgerMetrics, logg)
	require.NoError(t, err)
	cashSvc, err := cashevents.NewService(cashevents.NewRepository(conn), vendorRepo, client, emitter, ledgerMetrics, logg)
	require.NoError(t, err)
	guardSvc, err := creditguard.NewService(vendorRepo, client, emitter, ledgerMetrics, logg)
	require.NoError(t, err)
	settlementSvc, err := settlements.NewService(settlements.NewRepository(conn), vendorRepo, client, emitter, ledgerMetrics, logg)
	require.NoError(t, err)
	withdrawalSvc, err := withdrawals.NewService(withdrawals.NewRepository(conn), vendorRepo, client, emitter, ledgerMetrics, logg)
	require.NoError(t, err)
	reportingSvc, err := reporting.NewService(reporting.NewRepository(conn))
	require.NoError(t, err)
	notificationSvc, err := notifications.NewService(notifications.NewRepository(conn))
	require.NoError(t, err)

	cfg := &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "vendorledger", ExpirationMinutes: 5},
		RateLimit: config.RateLimitConfig{
			Window:              time.Minute,
			SubmissionVendorMax: 3,
		},
	}

	handler := NewRouter(cfg, logg, newMemoryStore(), map[string]controllers.Pinger{"db": client}, reg, Services{
		Vendors:       vendorSvc,
		Balances:      balanceSvc,
		CashEvents:    cashSvc,
		CreditGuard:   guardSvc,
		Settlements:   settlementSvc,
		Withdrawals:   withdrawalSvc,
		Reporting:     reportingSvc,
		Notifications: notificationSvc,
		DeadLetters:   outbox.NewDLQRepository(conn),
	})
	return &harness{handler: handler, conn: conn, cfg: cfg}
}

func (h *harness) token(t *testing.T, role enums.ActorRole, vendorID *uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(h.cfg.JWT, time.Now(), auth.AccessTokenPayload{
		ActorID:  uuid.New(),
		VendorID: vendorID,
		Role:     role,
	})
	require.NoError(t, err)
	return token
}

func (h *harness) do(t *testing.T, method, path, token, idemKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func data(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
	return envelope.Data
}

func TestOpsRoutes(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/live", "", "", "").Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/ready", "", "", "").Code)

	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/admin/v1/settlements/pending", "", "", "").Code)

	metricsResp := h.do(t, http.MethodGet, "/metrics", "", "", "")
	require.Equal(t, http.StatusOK, metricsResp.Code)
	body := metricsResp.Body.String()
	require.Contains(t, body, "http_requests_total{")
	require.Contains(t, body, `status="4xx"`)
	require.NotContains(t, body, `route="/health/live"`)
}

func TestRouteGroupsEnforceRoles(t *testing.T) {
	h := newHarness(t)
	vendor := testutil.SeedVendor(t, h.conn, 100000, 0, 0)
	vendorToken := h.token(t, enums.ActorRoleVendor, &vendor.ID)
	adminToken := h.token(t, enums.ActorRoleAdmin, nil)
	systemToken := h.token(t, enums.ActorRoleSystem, nil)

	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, "/api/admin/v1/settlements/pending", "", "", "").Code)
	require.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/api/admin/v1/settlements/pending", vendorToken, "", "").Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/admin/v1/settlements/pending", adminToken, "", "").Code)

	require.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/api/v1/vendor/balance", adminToken, "", "").Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/vendor/balance", vendorToken, "", "").Code)

	body := fmt.Sprintf(`{"vendorId":"%s","type":"cash_collected","amount":10}`, vendor.ID)
	require.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/api/internal/v1/cash-events", adminToken, "k1", body).Code)
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/internal/v1/cash-events", systemToken, "k1", body).Code)
}

func TestMutatingRoutesRequireIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	vendor := testutil.SeedVendor(t, h.conn, 100000, 5000, 0)
	vendorToken := h.token(t, enums.ActorRoleVendor, &vendor.ID)

	resp := h.do(t, http.MethodPost, "/api/v1/vendor/settlements", vendorToken, "", `{"amount":50,"paymentMethod":"upi","paymentReference":"UPI-1"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	var count int64
	require.NoError(t, h.conn.Model(&models.Settlement{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSettlementLifecycleThroughRouter(t *testing.T) {
	h := newHarness(t)
	vendor := testutil.SeedVendor(t, h.conn, 100000, 0, 0)
	vendorToken := h.token(t, enums.ActorRoleVendor, &vendor.ID)
	adminToken := h.token(t, enums.ActorRoleAdmin, nil)
	systemToken := h.token(t, enums.ActorRoleSystem, nil)

	collected := fmt.Sprintf(`{"vendorId":"%s","bookingId":"%s","type":"cash_collected","amount":1200}`, vendor.ID, uuid.New())
	resp := h.do(t, http.MethodPost, "/api/internal/v1/cash-events", systemToken, "booking-1", collected)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Equal(t, true, data(t, resp)["vendorBlocked"])

	balance := data(t, h.do(t, http.MethodGet, "/api/v1/vendor/balance", vendorToken, "", ""))
	require.Equal(t, 1200.0, balance["dueBalance"])
	require.Equal(t, true, balance["isBlocked"])

	submit := `{"amount":1200,"paymentMethod":"bank_transfer","paymentReference":"NEFT-42"}`
	first := h.do(t, http.MethodPost, "/api/v1/vendor/settlements", vendorToken, "settle-1", submit)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	replay := h.do(t, http.MethodPost, "/api/v1/vendor/settlements", vendorToken, "settle-1", submit)
	require.Equal(t, http.StatusCreated, replay.Code)
	require.JSONEq(t, first.Body.String(), replay.Body.String())

	var count int64
	require.NoError(t, h.conn.Model(&models.Settlement{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	settlementID := data(t, first)["id"].(string)
	approved := h.do(t, http.MethodPost, "/api/admin/v1/settlements/"+settlementID+"/approve", adminToken, "approve-1", "")
	require.Equal(t, http.StatusOK, approved.Code, approved.Body.String())
	require.Equal(t, string(enums.SettlementApproved), data(t, approved)["status"])

	again := h.do(t, http.MethodPost, "/api/admin/v1/settlements/"+settlementID+"/approve", adminToken, "approve-2", "")
	require.Equal(t, http.StatusUnprocessableEntity, again.Code)

	balance = data(t, h.do(t, http.MethodGet, "/api/v1/vendor/balance", vendorToken, "", ""))
	require.Equal(t, 0.0, balance["dueBalance"])
	require.Equal(t, true, balance["isBlocked"])

	unblocked := h.do(t, http.MethodPost, "/api/admin/v1/vendors/"+vendor.ID.String()+"/unblock", adminToken, "unblock-1", "")
	require.Equal(t, http.StatusOK, unblocked.Code, unblocked.Body.String())
	require.Equal(t, false, data(t, unblocked)["isBlocked"])
}

func TestWithdrawalRequestIsRateLimitedPerVendor(t *testing.T) {
	h := newHarness(t)
	vendor := testutil.SeedVendor(t, h.conn, 100000, 0, 500000)
	vendorToken := h.token(t, enums.ActorRoleVendor, &vendor.ID)

	body := `{"amount":10,"bankDetails":{"account_holder":"Asha Rao","account_number":"001234567890","ifsc":"HDFC0001234"}}`
	for i := 0; i < h.cfg.RateLimit.SubmissionVendorMax; i++ {
		resp := h.do(t, http.MethodPost, "/api/v1/vendor/withdrawals", vendorToken, fmt.Sprintf("w-%d", i), body)
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	}
	resp := h.do(t, http.MethodPost, "/api/v1/vendor/withdrawals", vendorToken, "w-over", body)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	list := h.do(t, http.MethodGet, "/api/v1/vendor/withdrawals", vendorToken, "", "")
	require.Equal(t, http.StatusOK, list.Code)
	items := data(t, list)["items"].([]any)
	require.Len(t, items, h.cfg.RateLimit.SubmissionVendorMax)
}

func TestAnalyticsRouteUnavailableWithoutBigQuery(t *testing.T) {
	h := newHarness(t)
	adminToken := h.token(t, enums.ActorRoleAdmin, nil)
	resp := h.do(t, http.MethodGet, "/api/admin/v1/analytics/ledger", adminToken, "", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestDeadLetterReplayThroughRouter(t *testing.T) {
	h := newHarness(t)
	adminToken := h.token(t, enums.ActorRoleAdmin, nil)

	event := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventSettlementApproved, AggregateType: enums.AggregateSettlement, AggregateID: uuid.New(), Payload: []byte(`{}`), AttemptCount: 10}
	require.NoError(t, h.conn.Create(&event).Error)
	require.NoError(t, outbox.NewDLQRepository(h.conn).InsertTx(h.conn, event.DeadLetter(enums.OutboxDLQReasonMaxAttempts, errors.New("deadline exceeded"), time.Now())))

	list := h.do(t, http.MethodGet, "/api/admin/v1/outbox/dlq", adminToken, "", "")
	require.Equal(t, http.StatusOK, list.Code, list.Body.String())
	items := data(t, list)["items"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, event.ID.String(), items[0].(map[string]any)["eventId"])

	replay := h.do(t, http.MethodPost, "/api/admin/v1/outbox/dlq/"+event.ID.String()+"/replay", adminToken, "replay-1", "")
	require.Equal(t, http.StatusOK, replay.Code, replay.Body.String())
	require.Equal(t, true, data(t, replay)["queued"])

	var stored models.OutboxEvent
	require.NoError(t, h.conn.First(&stored, "id = ?", event.ID).Error)
	require.Zero(t, stored.AttemptCount)

	missing := h.do(t, http.MethodPost, "/api/admin/v1/outbox/dlq/"+uuid.NewString()+"/replay", adminToken, "replay-2", "")
	require.Equal(t, http.StatusNotFound, missing.Code)
}
