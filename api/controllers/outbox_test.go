package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

type testDeadLetters struct {
	params   pagination.Params
	replayed uuid.UUID
	err      error
}

func (d *testDeadLetters) List(ctx context.Context, params pagination.Params) (pagination.Page[models.OutboxDLQ], error) {
	d.params = params
	msg := "deadline exceeded"
	return pagination.Page[models.OutboxDLQ]{Items: []models.OutboxDLQ{{
		EventID:      uuid.New(),
		EventType:    enums.EventCashEventRecorded,
		ErrorReason:  enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage: &msg,
		AttemptCount: 10,
		FailedAt:     time.Now(),
	}}}, nil
}

func (d *testDeadLetters) Replay(ctx context.Context, eventID uuid.UUID) (*models.OutboxEvent, error) {
	d.replayed = eventID
	if d.err != nil {
		return nil, d.err
	}
	return &models.OutboxEvent{ID: eventID, EventType: enums.EventCashEventRecorded}, nil
}

func TestAdminListDeadLetters(t *testing.T) {
	dlq := &testDeadLetters{}
	req := asActor(newRequest(http.MethodGet, "/api/admin/v1/outbox/dlq?limit=5", ""), enums.ActorRoleAdmin, nil)
	resp := httptest.NewRecorder()
	AdminListDeadLetters(dlq, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if dlq.params.Limit != 5 {
		t.Fatalf("expected limit 5 got %d", dlq.params.Limit)
	}
	var page struct {
		Items []struct {
			ErrorReason  string `json:"errorReason"`
			AttemptCount int    `json:"attemptCount"`
		} `json:"items"`
	}
	decodeData(t, resp, &page)
	if len(page.Items) != 1 || page.Items[0].ErrorReason != "max_attempts" || page.Items[0].AttemptCount != 10 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestAdminReplayDeadLetter(t *testing.T) {
	dlq := &testDeadLetters{}
	eventID := uuid.New()
	req := asActor(newRequest(http.MethodPost, "/api/admin/v1/outbox/dlq/"+eventID.String()+"/replay", ""), enums.ActorRoleAdmin, nil)
	req = addRouteParam(req, "eventId", eventID.String())
	resp := httptest.NewRecorder()
	AdminReplayDeadLetter(dlq, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if dlq.replayed != eventID {
		t.Fatalf("replayed %s, want %s", dlq.replayed, eventID)
	}
}

func TestAdminReplayDeadLetterNotFound(t *testing.T) {
	dlq := &testDeadLetters{err: pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")}
	req := asActor(newRequest(http.MethodPost, "/", ""), enums.ActorRoleAdmin, nil)
	req = addRouteParam(req, "eventId", uuid.NewString())
	resp := httptest.NewRecorder()
	AdminReplayDeadLetter(dlq, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp); code != string(pkgerrors.CodeNotFound) {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestAdminReplayDeadLetterRejectsBadID(t *testing.T) {
	req := asActor(newRequest(http.MethodPost, "/", ""), enums.ActorRoleAdmin, nil)
	req = addRouteParam(req, "eventId", "nope")
	resp := httptest.NewRecorder()
	AdminReplayDeadLetter(&testDeadLetters{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
