package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/api/controllers/dto"
	"github.com/angelmondragon/vendorledger/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/api/validators"
	"github.com/angelmondragon/vendorledger/internal/balances"
	"github.com/angelmondragon/vendorledger/internal/creditguard"
	"github.com/angelmondragon/vendorledger/internal/vendors"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/money"
)

type registerVendorRequest struct {
	ID        *uuid.UUID    `json:"id,omitempty"`
	Name      string        `json:"name" validate:"required,max=200"`
	CashLimit *money.Amount `json:"cashLimit,omitempty" validate:"omitempty,gte=0"`
}

type blockVendorRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type cashLimitRequest struct {
	Limit *money.Amount `json:"limit" validate:"required,gte=0"`
}

// AdminRegisterVendor creates the ledger record for a vendor onboarded upstream.
func AdminRegisterVendor(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor service unavailable"))
			return
		}
		var body registerVendorRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := vendors.RegisterInput{Name: validators.SanitizeString(body.Name, validators.MaxVendorNameLen)}
		if body.ID != nil {
			input.ID = *body.ID
		}
		if body.CashLimit != nil {
			cents := body.CashLimit.Cents()
			input.CashLimitCents = &cents
		}
		vendor, err := svc.Register(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.VendorFrom(vendor))
	}
}

func AdminGetVendor(svc vendors.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor service unavailable"))
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendor, err := svc.Get(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.VendorFrom(vendor))
	}
}

func AdminVendorBalance(svc balances.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "balance service unavailable"))
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.Snapshot(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.BalanceFrom(snapshot))
	}
}

// AdminReconcileVendor compares cached balances against the event history.
// With ?repair=true the cached values are overwritten by the derived ones.
func AdminReconcileVendor(svc balances.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "balance service unavailable"))
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		repair, err := validators.ParseQueryBool(r, "repair")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		drift, err := svc.Reconcile(r.Context(), vendorID, repair != nil && *repair)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.DriftFrom(drift))
	}
}

func AdminBlockVendor(svc creditguard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit guard unavailable"))
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
		var body blockVendorRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendor, err := svc.BlockVendor(r.Context(), creditguard.BlockInput{
			VendorID: vendorID,
			Reason:   validators.SanitizeString(body.Reason, validators.MaxReasonLen),
			Actor:    actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.VendorFrom(vendor))
	}
}

func AdminUnblockVendor(svc creditguard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit guard unavailable"))
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
		vendor, err := svc.UnblockVendor(r.Context(), vendorID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.VendorFrom(vendor))
	}
}

// AdminUpdateCashLimit changes the limit and re-evaluates the block state.
// Raising the limit does not lift an existing block.
func AdminUpdateCashLimit(svc creditguard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit guard unavailable"))
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
		var body cashLimitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendor, err := svc.UpdateCashLimit(r.Context(), creditguard.UpdateCashLimitInput{
			VendorID:       vendorID,
			CashLimitCents: body.Limit.Cents(),
			Actor:          actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.VendorFrom(vendor))
	}
}

// VendorBalance returns the caller's own due, wallet and block state.
func VendorBalance(svc balances.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "balance service unavailable"))
			return
		}
		vendorID, err := vendorcontext.ResolveVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.Snapshot(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.BalanceFrom(snapshot))
	}
}
