package controllers

import (
	"net/http"

	"github.com/angelmondragon/vendorledger/api/controllers/dto"
	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/api/validators"
	"github.com/angelmondragon/vendorledger/internal/reporting"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

func AdminDashboard(svc reporting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reporting service unavailable"))
			return
		}
		dashboard, err := svc.Dashboard(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.DashboardFrom(dashboard))
	}
}

// AdminVendorBalances lists vendors with their balances. filterDue=true keeps
// vendors that owe cash; blocked narrows by block state when present.
func AdminVendorBalances(svc reporting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reporting service unavailable"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filterDue, err := validators.ParseQueryBool(r, "filterDue")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		blocked, err := validators.ParseQueryBool(r, "blocked")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := reporting.VendorBalanceFilter{Blocked: blocked}
		if filterDue != nil {
			filter.FilterDue = *filterDue
		}
		page, err := svc.VendorBalances(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MapPage(page, dto.VendorBalanceFrom))
	}
}
