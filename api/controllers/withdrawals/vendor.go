package withdrawals

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/vendorledger/api/controllers/dto"
	"github.com/angelmondragon/vendorledger/api/controllers/vendorcontext"
	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/api/validators"
	internalwithdrawals "github.com/angelmondragon/vendorledger/internal/withdrawals"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

func VendorRequest(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
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
		var body withdrawalRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bank := body.BankDetails
		bank.AccountHolder = validators.SanitizeString(bank.AccountHolder, validators.MaxAccountHolderLen)
		bank.AccountNumber = validators.SanitizeCode(bank.AccountNumber, validators.MaxAccountNumberLen)
		bank.IFSC = validators.SanitizeCode(bank.IFSC, validators.MaxIFSCLen)
		bank.BankName = validators.SanitizeString(bank.BankName, validators.MaxBankNameLen)

		withdrawal, err := svc.Request(r.Context(), internalwithdrawals.RequestInput{
			VendorID:    vendorID,
			AmountCents: body.Amount.Cents(),
			BankDetails: bank,
			Actor:       actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto.WithdrawalFrom(withdrawal, false))
	}
}

func VendorList(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
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
		var status *enums.WithdrawalStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseWithdrawalStatus(raw)
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
		responses.WriteSuccess(w, dto.MapPage(page, func(wr models.WithdrawalRequest) dto.Withdrawal {
			return dto.WithdrawalFrom(&wr, false)
		}))
	}
}

func VendorGet(svc internalwithdrawals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawal service unavailable"))
			return
		}
		vendorID, err := vendorcontext.ResolveVendorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "withdrawalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withdrawal, err := svc.GetForVendor(r.Context(), vendorID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.WithdrawalFrom(withdrawal, false))
	}
}
