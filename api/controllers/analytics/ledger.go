package analytics

import (
	"net/http"

	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/internal/analytics"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// LedgerAnalytics serves ledger KPIs from the BigQuery projection. The service
// is nil when the API runs without a BigQuery dataset.
func LedgerAnalytics(service analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if service == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "analytics unavailable"))
			return
		}

		req, err := ledgerQuery(r.URL.Query(), timeNowUTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := service.Query(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
