package escrows

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/influencehub-backend/api/middleware"
	"github.com/angelmondragon/influencehub-backend/internal/escrow"
	"github.com/angelmondragon/influencehub-backend/internal/gateway"
	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/influencehub-backend/pkg/errors"
)

type stubService struct {
	create   func(ctx context.Context, actor escrow.Actor, input escrow.CreateInput) (*escrow.Result, error)
	fund     func(ctx context.Context, actor escrow.Actor, input escrow.FundInput) (*escrow.Result, error)
	release  func(ctx context.Context, actor escrow.Actor, input escrow.ReleaseInput) (*escrow.Result, error)
	refund   func(ctx context.Context, actor escrow.Actor, input escrow.RefundInput) (*escrow.Result, error)
	dispute  func(ctx context.Context, actor escrow.Actor, input escrow.DisputeInput) (*escrow.Result, error)
	status   func(ctx context.Context, actor escrow.Actor, escrowID uuid.UUID) (*escrow.Result, error)
	disputes func(ctx context.Context, actor escrow.Actor, escrowID uuid.UUID) (*escrow.Result, error)
}

func (s *stubService) CreateEscrowAccount(ctx context.Context, actor escrow.Actor, input escrow.CreateInput) (*escrow.Result, error) {
	return s.create(ctx, actor, input)
}

func (s *stubService) FundEscrow(ctx context.Context, actor escrow.Actor, input escrow.FundInput) (*escrow.Result, error) {
	return s.fund(ctx, actor, input)
}

func (s *stubService) ReleaseFunds(ctx context.Context, actor escrow.Actor, input escrow.ReleaseInput) (*escrow.Result, error) {
	return s.release(ctx, actor, input)
}

func (s *stubService) RefundToBrand(ctx context.Context, actor escrow.Actor, input escrow.RefundInput) (*escrow.Result, error) {
	return s.refund(ctx, actor, input)
}

func (s *stubService) HandleDispute(ctx context.Context, actor escrow.Actor, input escrow.DisputeInput) (*escrow.Result, error) {
	return s.dispute(ctx, actor, input)
}

func (s *stubService) GetEscrowStatus(ctx context.Context, actor escrow.Actor, escrowID uuid.UUID) (*escrow.Result, error) {
	return s.status(ctx, actor, escrowID)
}

func (s *stubService) ListDisputes(ctx context.Context, actor escrow.Actor, escrowID uuid.UUID) (*escrow.Result, error) {
	return s.disputes(ctx, actor, escrowID)
}

type resultBody struct {
	Success  bool   `json:"success"`
	EscrowID string `json:"escrowId"`
	Status   string `json:"status"`
	Error    *struct {
		Kind                string `json:"kind"`
		Message             string `json:"message"`
		Retryable           bool   `json:"retryable"`
		RetryAdvice         string `json:"retryAdvice"`
		PendingConfirmation bool   `json:"pendingConfirmation"`
	} `json:"error"`
}

func newRequest(t *testing.T, method, target, body string, user uuid.UUID, role enums.UserRole, params map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if user != uuid.Nil {
		ctx = middleware.WithUserID(ctx, user.String())
	}
	if role != "" {
		ctx = middleware.WithRole(ctx, role)
	}
	return req.WithContext(ctx)
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) resultBody {
	t.Helper()
	var body resultBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreatePassesActorAndInput(t *testing.T) {
	brandID := uuid.New()
	campaignID := uuid.New()
	escrowID := uuid.New()
	var got escrow.CreateInput
	var gotActor escrow.Actor
	svc := &stubService{create: func(_ context.Context, actor escrow.Actor, input escrow.CreateInput) (*escrow.Result, error) {
		gotActor = actor
		got = input
		return &escrow.Result{Success: true, EscrowID: &escrowID, Status: enums.EscrowStatusPendingPayment}, nil
	}}

	body := `{"campaignId":"` + campaignID.String() + `","amount":"1000.00","currency":"USD"}`
	req := newRequest(t, http.MethodPost, "/api/v1/escrows", body, brandID, enums.UserRoleBrand, nil)
	rec := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, brandID, gotActor.UserID)
	assert.Equal(t, enums.UserRoleBrand, gotActor.Role)
	assert.Equal(t, campaignID, got.CampaignID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("1000")))
	assert.Equal(t, "USD", got.Currency)

	res := decodeResult(t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, escrowID.String(), res.EscrowID)
	assert.Equal(t, "pending_payment", res.Status)
}

func TestCreateAcceptsNumericAmount(t *testing.T) {
	var got escrow.CreateInput
	svc := &stubService{create: func(_ context.Context, _ escrow.Actor, input escrow.CreateInput) (*escrow.Result, error) {
		got = input
		return &escrow.Result{Success: true}, nil
	}}

	body := `{"campaignId":"` + uuid.NewString() + `","amount":250.5,"currency":"USD"}`
	rec := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodPost, "/api/v1/escrows", body, uuid.New(), enums.UserRoleBrand, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("250.5")))
}

func TestCreateRejectsMalformedBodyWithResultShape(t *testing.T) {
	svc := &stubService{create: func(context.Context, escrow.Actor, escrow.CreateInput) (*escrow.Result, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"unknown field", `{"campaignId":"` + uuid.NewString() + `","amount":"1","currency":"USD","extra":1}`},
		{"missing campaign", `{"amount":"1","currency":"USD"}`},
		{"bad campaign id", `{"campaignId":"abc","amount":"1","currency":"USD"}`},
		{"bad currency", `{"campaignId":"` + uuid.NewString() + `","amount":"1","currency":"US"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Create(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodPost, "/api/v1/escrows", tt.body, uuid.New(), enums.UserRoleBrand, nil))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			res := decodeResult(t, rec)
			assert.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, "validation_error", res.Error.Kind)
			assert.Equal(t, "with_new_input", res.Error.RetryAdvice)
		})
	}
}

func TestCreateRequiresActor(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, newRequest(t, http.MethodPost, "/api/v1/escrows", `{}`, uuid.Nil, "", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFailureKindsMapToStatus(t *testing.T) {
	escrowID := uuid.New()
	tests := []struct {
		name    string
		kind    enums.EscrowErrorKind
		pending bool
		status  int
	}{
		{"declined", enums.ErrorKindPaymentDeclined, false, http.StatusPaymentRequired},
		{"invalid state", enums.ErrorKindInvalidState, false, http.StatusUnprocessableEntity},
		{"gateway", enums.ErrorKindGatewayError, false, http.StatusBadGateway},
		{"pending confirmation", enums.ErrorKindGatewayTimeout, true, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{fund: func(context.Context, escrow.Actor, escrow.FundInput) (*escrow.Result, error) {
				return &escrow.Result{
					EscrowID: &escrowID,
					Error: &escrow.ResultError{
						Kind:                tt.kind,
						Message:             "failed",
						RetryAdvice:         gateway.AdviceFor(tt.kind),
						PendingConfirmation: tt.pending,
					},
				}, nil
			}}
			req := newRequest(t, http.MethodPost, "/api/v1/escrows/"+escrowID.String()+"/fund", `{"paymentMethodId":"pm_card_visa"}`,
				uuid.New(), enums.UserRoleBrand, map[string]string{"escrowId": escrowID.String()})
			rec := httptest.NewRecorder()
			Fund(svc, nil).ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			res := decodeResult(t, rec)
			require.NotNil(t, res.Error)
			assert.Equal(t, string(tt.kind), res.Error.Kind)
			assert.Equal(t, tt.pending, res.Error.PendingConfirmation)
		})
	}
}

func TestReleaseDefaultsToFullAmount(t *testing.T) {
	escrowID := uuid.New()
	influencerID := uuid.New()
	var got escrow.ReleaseInput
	svc := &stubService{release: func(_ context.Context, _ escrow.Actor, input escrow.ReleaseInput) (*escrow.Result, error) {
		got = input
		return &escrow.Result{Success: true, EscrowID: &escrowID, Status: enums.EscrowStatusReleased}, nil
	}}

	body := `{"influencerId":"` + influencerID.String() + `","reason":"  delivered  "}`
	req := newRequest(t, http.MethodPost, "/", body, uuid.New(), enums.UserRoleBrand, map[string]string{"escrowId": escrowID.String()})
	rec := httptest.NewRecorder()
	Release(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, escrowID, got.EscrowID)
	assert.Equal(t, influencerID, got.InfluencerID)
	assert.True(t, got.Amount.IsZero())
	assert.Equal(t, "delivered", got.Reason)
}

func TestRefundPassesPartialAmount(t *testing.T) {
	escrowID := uuid.New()
	var got escrow.RefundInput
	svc := &stubService{refund: func(_ context.Context, _ escrow.Actor, input escrow.RefundInput) (*escrow.Result, error) {
		got = input
		return &escrow.Result{Success: true}, nil
	}}

	req := newRequest(t, http.MethodPost, "/", `{"amount":"400.00"}`, uuid.New(), enums.UserRoleAdmin, map[string]string{"escrowId": escrowID.String()})
	rec := httptest.NewRecorder()
	Refund(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("400")))
}

func TestOpenDisputeCreated(t *testing.T) {
	escrowID := uuid.New()
	var got escrow.DisputeInput
	svc := &stubService{dispute: func(_ context.Context, _ escrow.Actor, input escrow.DisputeInput) (*escrow.Result, error) {
		got = input
		return &escrow.Result{Success: true, Status: enums.EscrowStatusDisputed}, nil
	}}

	body := `{"disputeType":"non_delivery","description":"no post published","evidence":{"url":"https://example.com"}}`
	req := newRequest(t, http.MethodPost, "/", body, uuid.New(), enums.UserRoleBrand, map[string]string{"escrowId": escrowID.String()})
	rec := httptest.NewRecorder()
	OpenDispute(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "non_delivery", got.DisputeType)
	assert.Equal(t, "https://example.com", got.Evidence["url"])
}

func TestStatusRejectsInvalidEscrowID(t *testing.T) {
	svc := &stubService{status: func(context.Context, escrow.Actor, uuid.UUID) (*escrow.Result, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}
	req := newRequest(t, http.MethodGet, "/", "", uuid.New(), enums.UserRoleBrand, map[string]string{"escrowId": "nope"})
	rec := httptest.NewRecorder()
	Status(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	res := decodeResult(t, rec)
	require.NotNil(t, res.Error)
	assert.Equal(t, "validation_error", res.Error.Kind)
}

func TestServiceErrorUsesErrorEnvelope(t *testing.T) {
	escrowID := uuid.New()
	svc := &stubService{disputes: func(context.Context, escrow.Actor, uuid.UUID) (*escrow.Result, error) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "list disputes")
	}}
	req := newRequest(t, http.MethodGet, "/", "", uuid.New(), enums.UserRoleAdmin, map[string]string{"escrowId": escrowID.String()})
	rec := httptest.NewRecorder()
	Disputes(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(pkgerrors.CodeDependency), body.Error.Code)
}
