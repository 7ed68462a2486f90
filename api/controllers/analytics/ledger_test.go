package analytics

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withFixedNow(t *testing.T, now time.Time) {
	t.Helper()
	prev := timeNowUTC
	timeNowUTC = func() time.Time { return now }
	t.Cleanup(func() { timeNowUTC = prev })
}

func TestLedgerAnalyticsDefaultsToThirtyDays(t *testing.T) {
	withFixedNow(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	svc := &testAnalyticsService{response: &types.LedgerQueryResponse{AutoBlocks: 4}}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/analytics/ledger", nil)
	resp := httptest.NewRecorder()
	LedgerAnalytics(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.period() != 30*24*time.Hour {
		t.Fatalf("expected 30d window got %v", svc.period())
	}
	var envelope struct {
		Data types.LedgerQueryResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.AutoBlocks != 4 {
		t.Fatalf("expected auto blocks 4 got %d", envelope.Data.AutoBlocks)
	}
}

func TestLedgerAnalyticsExplicitRangeAndVendor(t *testing.T) {
	svc := &testAnalyticsService{}
	vendorID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/?from=2026-01-01T00:00:00Z&to=2026-01-08T00:00:00Z&vendorId="+vendorID.String(), nil)
	resp := httptest.NewRecorder()
	LedgerAnalytics(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.last.VendorID != vendorID.String() {
		t.Fatalf("expected vendor filter %s got %q", vendorID, svc.last.VendorID)
	}
	if svc.period() != 7*24*time.Hour {
		t.Fatalf("expected 7d window got %v", svc.period())
	}
}

func TestLedgerAnalyticsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"half range":   "/?from=2026-01-01T00:00:00Z",
		"inverted":     "/?from=2026-01-08T00:00:00Z&to=2026-01-01T00:00:00Z",
		"bad preset":   "/?preset=1y",
		"bad vendorId": "/?vendorId=nope",
		"bad date":     "/?from=2026-13-01&to=2026-01-08",
		"too wide":     "/?from=2024-01-01&to=2026-01-01",
	}
	for name, target := range cases {
		svc := &testAnalyticsService{}
		resp := httptest.NewRecorder()
		LedgerAnalytics(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, target, nil))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", name, resp.Code)
		}
		if svc.calls != 0 {
			t.Fatalf("%s: service should not be called", name)
		}
	}
}

func TestLedgerAnalyticsUnavailable(t *testing.T) {
	resp := httptest.NewRecorder()
	LedgerAnalytics(nil, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestLedgerAnalyticsServiceError(t *testing.T) {
	svc := &testAnalyticsService{err: errors.New("bq down")}
	resp := httptest.NewRecorder()
	LedgerAnalytics(svc, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestLedgerQueryAcceptsBareDates(t *testing.T) {
	req, err := ledgerQuery(url.Values{"from": {"2026-01-01"}, "to": {"2026-01-31T12:00:00+02:00"}}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Start.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", req.Start)
	}
	if req.End.Location() != time.UTC || req.End.Hour() != 10 {
		t.Fatalf("expected end normalized to UTC, got %v", req.End)
	}
}

func TestLedgerQueryPresetIsCaseInsensitive(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	req, err := ledgerQuery(url.Values{"preset": {" 7D "}}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := req.End.Sub(req.Start); got != 7*24*time.Hour || !req.End.Equal(now) {
		t.Fatalf("unexpected window %v ending %v", got, req.End)
	}
}
