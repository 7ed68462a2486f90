package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/api/controllers/dto"
	"github.com/angelmondragon/vendorledger/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/api/validators"
	"github.com/angelmondragon/vendorledger/internal/cashevents"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/money"
)

// adjustmentRequest is a manual wallet correction entered by an admin.
type adjustmentRequest struct {
	Type   string       `json:"type" validate:"required,oneof=credit debit"`
	Amount money.Amount `json:"amount" validate:"gt=0"`
	Note   *string      `json:"note,omitempty" validate:"omitempty,max=500"`
}

// bookingCashEventRequest is posted by the booking service.
type bookingCashEventRequest struct {
	VendorID  uuid.UUID    `json:"vendorId" validate:"required"`
	BookingID *uuid.UUID   `json:"bookingId,omitempty"`
	Type      string       `json:"type" validate:"required"`
	Amount    money.Amount `json:"amount" validate:"gt=0"`
	Note      *string      `json:"note,omitempty" validate:"omitempty,max=500"`
}

func AdminListCashEvents(svc cashevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash event service unavailable"))
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listCashEvents(w, r, svc, logg, vendorID)
	}
}

func VendorListCashEvents(svc cashevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash event service unavailable"))
			return
		}
		vendorID, err := vendorcontext.ResolveVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listCashEvents(w, r, svc, logg, vendorID)
	}
}

func listCashEvents(w http.ResponseWriter, r *http.Request, svc cashevents.Service, logg *logger.Logger, vendorID uuid.UUID) {
	params, err := validators.ParsePagination(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	var filter cashevents.ListFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		eventType, err := enums.ParseCashEventType(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
			return
		}
		filter.Type = &eventType
	}
	page, err := svc.ListByVendor(r.Context(), vendorID, filter, params)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, dto.MapPage(page, func(e models.CashEvent) dto.CashEvent {
		return dto.CashEventFrom(&e)
	}))
}

// AdminRecordCashEvent posts a credit or debit adjustment against the vendor wallet.
func AdminRecordCashEvent(svc cashevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash event service unavailable"))
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := vendorcontext.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body adjustmentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Record(r.Context(), cashevents.RecordInput{
			VendorID:    vendorID,
			Type:        enums.CashEventType(body.Type),
			AmountCents: body.Amount.Cents(),
			Note:        body.Note,
			Actor:       actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.RecordedCashEventFrom(result))
	}
}

// InternalRecordCashEvent is the booking collaborator's entry point. A replayed
// booking answers 200 with the original event instead of 201.
func InternalRecordCashEvent(svc cashevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash event service unavailable"))
			return
		}
		actor, err := vendorcontext.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body bookingCashEventRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventType, err := enums.ParseCashEventType(strings.TrimSpace(body.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
			return
		}
		result, err := svc.Record(r.Context(), cashevents.RecordInput{
			VendorID:    body.VendorID,
			BookingID:   body.BookingID,
			Type:        eventType,
			AmountCents: body.Amount.Cents(),
			Note:        body.Note,
			Actor:       actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, dto.RecordedCashEventFrom(result))
	}
}
