package controllers

import (
	"net/http"

	"github.com/angelmondragon/vendorledger/api/controllers/dto"
	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/api/validators"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
)

// AdminListDeadLetters pages through events the publisher parked.
func AdminListDeadLetters(dlq outbox.DeadLetters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dlq == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "outbox unavailable"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := dlq.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MapPage(page, dto.DeadLetterFrom))
	}
}

// AdminReplayDeadLetter requeues a parked event with a fresh attempt budget.
func AdminReplayDeadLetter(dlq outbox.DeadLetters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dlq == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "outbox unavailable"))
			return
		}
		eventID, err := validators.ParseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := dlq.Replay(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithFields(r.Context(), map[string]any{
			"event_id":   event.ID.String(),
			"event_type": event.EventType,
		}), "outbox.dlq_replayed")
		responses.WriteSuccess(w, dto.ReplayedEvent{
			EventID:   event.ID,
			EventType: event.EventType,
			Queued:    event.PublishedAt == nil,
		})
	}
}
