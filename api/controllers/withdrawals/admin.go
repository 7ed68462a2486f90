// Package withdrawals serves the payout review queue and vendor withdrawal requests.
package withdrawals

import (
	"net/http"

	"github.com/angelmondragon/vendorledger/api/controllers/dto"
	"github.com/angelmondragon/vendorledger/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/api/validators"
	internalwithdrawals "github.com/angelmondragon/vendorledger/internal/withdrawals"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// AdminListPending returns pending withdrawals with unmasked bank details for payout.
func AdminListPending(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
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
		responses.WriteSuccess(w, dto.MapPage(page, func(wr models.WithdrawalRequest) dto.Withdrawal {
			return dto.WithdrawalFrom(&wr, true)
		}))
	}
}

func AdminGet(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withdrawal, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.WithdrawalFrom(withdrawal, true))
	}
}

// AdminApprove records the payout reference and debits the vendor wallet.
func AdminApprove(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := vendorcontext.Actor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body approveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withdrawal, err := svc.Approve(r.Context(), internalwithdrawals.ApproveInput{
			WithdrawalID:         id,
			TransactionReference: validators.SanitizeString(body.TransactionReference, validators.MaxReferenceLen),
			AdminNotes:           body.AdminNotes,
			Actor:                actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.WithdrawalFrom(withdrawal, true))
	}
}

func AdminReject(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "withdrawalId")
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
		withdrawal, err := svc.Reject(r.Context(), internalwithdrawals.RejectInput{
			WithdrawalID: id,
			Reason:       validators.SanitizeString(body.Reason, validators.MaxReasonLen),
			AdminNotes:   body.AdminNotes,
			Actor:        actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.WithdrawalFrom(withdrawal, true))
	}
}
