package withdrawals

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/api/middleware"
	internalwithdrawals "github.com/angelmondragon/vendorledger/internal/withdrawals"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

type fakeWithdrawalService struct {
	requested *internalwithdrawals.RequestInput
	approved  *internalwithdrawals.ApproveInput
	rejected  *internalwithdrawals.RejectInput
	err       error
}

func (f *fakeWithdrawalService) Request(ctx context.Context, input internalwithdrawals.RequestInput) (*models.WithdrawalRequest, error) {
	f.requested = &input
	if f.err != nil {
		return nil, f.err
	}
	return &models.WithdrawalRequest{ID: uuid.New(), VendorID: input.VendorID, AmountCents: input.AmountCents, BankDetails: input.BankDetails, Status: enums.WithdrawalPending}, nil
}

func (f *fakeWithdrawalService) Approve(ctx context.Context, input internalwithdrawals.ApproveInput) (*models.WithdrawalRequest, error) {
	f.approved = &input
	if f.err != nil {
		return nil, f.err
	}
	ref := input.TransactionReference
	return &models.WithdrawalRequest{ID: input.WithdrawalID, Status: enums.WithdrawalApproved, TransactionReference: &ref, BankDetails: sampleBank()}, nil
}

func (f *fakeWithdrawalService) Reject(ctx context.Context, input internalwithdrawals.RejectInput) (*models.WithdrawalRequest, error) {
	f.rejected = &input
	if f.err != nil {
		return nil, f.err
	}
	return &models.WithdrawalRequest{ID: input.WithdrawalID, Status: enums.WithdrawalRejected}, nil
}

func (f *fakeWithdrawalService) Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return &models.WithdrawalRequest{ID: id}, f.err
}

func (f *fakeWithdrawalService) GetForVendor(ctx context.Context, vendorID, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return &models.WithdrawalRequest{ID: id, VendorID: vendorID, BankDetails: sampleBank()}, f.err
}

func (f *fakeWithdrawalService) ListPending(ctx context.Context, params pagination.Params) (pagination.Page[models.WithdrawalRequest], error) {
	return pagination.Page[models.WithdrawalRequest]{Items: []models.WithdrawalRequest{{ID: uuid.New(), BankDetails: sampleBank()}}}, f.err
}

func (f *fakeWithdrawalService) ListByVendor(ctx context.Context, vendorID uuid.UUID, status *enums.WithdrawalStatus, params pagination.Params) (pagination.Page[models.WithdrawalRequest], error) {
	return pagination.Page[models.WithdrawalRequest]{Items: []models.WithdrawalRequest{{ID: uuid.New(), VendorID: vendorID, BankDetails: sampleBank()}}}, f.err
}

func sampleBank() types.BankDetails {
	return types.BankDetails{AccountHolder: "Asha Rao", AccountNumber: "001234567890", IFSC: "HDFC0001234", BankName: "HDFC"}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func request(role enums.ActorRole, vendorID *uuid.UUID, method, target, body string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := middleware.WithActor(req.Context(), uuid.New(), role)
	if vendorID != nil {
		ctx = middleware.WithVendorID(ctx, *vendorID)
	}
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	return req.WithContext(ctx)
}

func bankAccountFrom(t *testing.T, body []byte, list bool) string {
	t.Helper()
	type item struct {
		BankDetails struct {
			AccountNumber string `json:"account_number"`
		} `json:"bankDetails"`
	}
	if list {
		var envelope struct {
			Data struct {
				Items []item `json:"items"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(envelope.Data.Items) == 0 {
			t.Fatal("expected items")
		}
		return envelope.Data.Items[0].BankDetails.AccountNumber
	}
	var envelope struct {
		Data item `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return envelope.Data.BankDetails.AccountNumber
}

func TestVendorRequestMasksBankDetails(t *testing.T) {
	svc := &fakeWithdrawalService{}
	vendorID := uuid.New()
	body := `{"amount": 250.75, "bankDetails": {"account_holder": "Asha Rao", "account_number": "001234567890", "ifsc": "hdfc0001234"}}`

	resp := httptest.NewRecorder()
	VendorRequest(svc, testLogger())(resp, request(enums.ActorRoleVendor, &vendorID, http.MethodPost, "/", body, nil))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.requested.AmountCents != 25075 {
		t.Fatalf("expected 25075 got %d", svc.requested.AmountCents)
	}
	if svc.requested.BankDetails.IFSC != "HDFC0001234" {
		t.Fatalf("expected upper-cased ifsc got %q", svc.requested.BankDetails.IFSC)
	}
	if got := bankAccountFrom(t, resp.Body.Bytes(), false); got != "********7890" {
		t.Fatalf("expected masked account got %q", got)
	}
}

func TestVendorRequestValidatesBankDetails(t *testing.T) {
	svc := &fakeWithdrawalService{}
	vendorID := uuid.New()
	body := `{"amount": 10, "bankDetails": {"account_holder": "Asha"}}`

	resp := httptest.NewRecorder()
	VendorRequest(svc, testLogger())(resp, request(enums.ActorRoleVendor, &vendorID, http.MethodPost, "/", body, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.requested != nil {
		t.Fatal("service should not be called")
	}
}

func TestVendorRequestInsufficientBalance(t *testing.T) {
	svc := &fakeWithdrawalService{err: pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient wallet balance")}
	vendorID := uuid.New()
	body := `{"amount": 10, "bankDetails": {"account_holder": "Asha", "account_number": "12345678", "ifsc": "HDFC0001"}}`

	resp := httptest.NewRecorder()
	VendorRequest(svc, testLogger())(resp, request(enums.ActorRoleVendor, &vendorID, http.MethodPost, "/", body, nil))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestAdminApproveRequiresReference(t *testing.T) {
	svc := &fakeWithdrawalService{}
	resp := httptest.NewRecorder()
	AdminApprove(svc, testLogger())(resp, request(enums.ActorRoleAdmin, nil, http.MethodPost, "/", `{"adminNotes":"x"}`, map[string]string{"withdrawalId": uuid.NewString()}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.approved != nil {
		t.Fatal("service should not be called")
	}
}

func TestAdminApproveShowsFullBankDetails(t *testing.T) {
	svc := &fakeWithdrawalService{}
	id := uuid.New()
	resp := httptest.NewRecorder()
	AdminApprove(svc, testLogger())(resp, request(enums.ActorRoleAdmin, nil, http.MethodPost, "/", `{"transactionReference":"NEFT-991"}`, map[string]string{"withdrawalId": id.String()}))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.approved.WithdrawalID != id || svc.approved.TransactionReference != "NEFT-991" {
		t.Fatalf("unexpected approve input %+v", svc.approved)
	}
	if got := bankAccountFrom(t, resp.Body.Bytes(), false); got != "001234567890" {
		t.Fatalf("expected full account number got %q", got)
	}
}

func TestAdminRejectPassesNotes(t *testing.T) {
	svc := &fakeWithdrawalService{}
	resp := httptest.NewRecorder()
	AdminReject(svc, testLogger())(resp, request(enums.ActorRoleAdmin, nil, http.MethodPost, "/", `{"reason":"name mismatch","adminNotes":"call vendor"}`, map[string]string{"withdrawalId": uuid.NewString()}))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.rejected.Reason != "name mismatch" {
		t.Fatalf("unexpected reason %q", svc.rejected.Reason)
	}
	if svc.rejected.AdminNotes == nil || *svc.rejected.AdminNotes != "call vendor" {
		t.Fatal("expected admin notes forwarded")
	}
}

func TestVendorListMasksAndAdminListDoesNot(t *testing.T) {
	svc := &fakeWithdrawalService{}
	vendorID := uuid.New()

	resp := httptest.NewRecorder()
	VendorList(svc, testLogger())(resp, request(enums.ActorRoleVendor, &vendorID, http.MethodGet, "/", "", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := bankAccountFrom(t, resp.Body.Bytes(), true); got != "********7890" {
		t.Fatalf("expected masked got %q", got)
	}

	resp = httptest.NewRecorder()
	AdminListPending(svc, testLogger())(resp, request(enums.ActorRoleAdmin, nil, http.MethodGet, "/", "", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := bankAccountFrom(t, resp.Body.Bytes(), true); got != "001234567890" {
		t.Fatalf("expected full got %q", got)
	}
}
