package settlements

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/vendorledger/api/controllers/dto"
	"github.com/angelmondragon/vendorledger/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/api/validators"
	internalsettlements "github.com/angelmondragon/vendorledger/internal/settlements"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// VendorSubmit records the vendor's claim of having remitted cash.
func VendorSubmit(svc internalsettlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		vendorID, err := vendorcontext.ResolveVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := vendorcontext.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body submitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settlement, err := svc.Submit(r.Context(), internalsettlements.SubmitInput{
			VendorID:         vendorID,
			AmountCents:      body.Amount.Cents(),
			PaymentMethod:    enums.SettlementPaymentMethod(body.PaymentMethod),
			PaymentReference: validators.SanitizeString(body.PaymentReference, validators.MaxReferenceLen),
			PaymentProofURL:  body.PaymentProof,
			VendorNotes:      body.VendorNotes,
			Actor:            actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.SettlementFrom(settlement))
	}
}

// VendorList pages the caller's own settlements, optionally filtered by status.
func VendorList(svc internalsettlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		vendorID, err := vendorcontext.ResolveVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.SettlementStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseSettlementStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		page, err := svc.ListByVendor(r.Context(), vendorID, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MapPage(page, settlementDTO))
	}
}

func VendorGet(svc internalsettlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		vendorID, err := vendorcontext.ResolveVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "settlementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settlement, err := svc.GetForVendor(r.Context(), vendorID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.SettlementFrom(settlement))
	}
}

func settlementDTO(s models.Settlement) dto.Settlement {
	return dto.SettlementFrom(&s)
}
