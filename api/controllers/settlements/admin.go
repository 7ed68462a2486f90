// Package settlements serves the admin review queue and the vendor
// self-service routes for cash settlements.
package settlements

import (
	"net/http"

	"github.com/angelmondragon/vendorledger/api/controllers/dto"
	"github.com/angelmondragon/vendorledger/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/api/validators"
	internalsettlements "github.com/angelmondragon/vendorledger/internal/settlements"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// AdminListPending returns the settlements awaiting review, oldest first.
func AdminListPending(svc internalsettlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListPending(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MapPage(page, settlementDTO))
	}
}

func AdminGet(svc internalsettlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "settlementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settlement, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.SettlementFrom(settlement))
	}
}

// AdminApprove applies a pending settlement to the vendor's due balance.
func AdminApprove(svc internalsettlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "settlementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := vendorcontext.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settlement, err := svc.Approve(r.Context(), internalsettlements.ApproveInput{
			SettlementID: id,
			Actor:        actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.SettlementFrom(settlement))
	}
}

func AdminReject(svc internalsettlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "settlementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := vendorcontext.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body rejectRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settlement, err := svc.Reject(r.Context(), internalsettlements.RejectInput{
			SettlementID: id,
			Reason:       validators.SanitizeString(body.Reason, validators.MaxReasonLen),
			Actor:        actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.SettlementFrom(settlement))
	}
}
