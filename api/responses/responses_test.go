package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/influencehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/influencehub-backend/pkg/errors"
	"github.com/angelmondragon/influencehub-backend/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", got)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "amount"})
	WriteError(context.Background(), nil, w, err)

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "bad input" {
		t.Fatalf("unexpected message %s", body.Error.Message)
	}
	if body.Error.Details == nil {
		t.Fatalf("expected details in public payload")
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-Id", "req-42")
	WriteError(context.Background(), nil, w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
	if body.Error.RequestID != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", body.Error.RequestID)
	}
}

func TestCodeForKind(t *testing.T) {
	tests := []struct {
		kind    enums.EscrowErrorKind
		pending bool
		status  int
	}{
		{enums.ErrorKindValidation, false, http.StatusBadRequest},
		{enums.ErrorKindInvalidState, false, http.StatusUnprocessableEntity},
		{enums.ErrorKindRefundExceedsCaptured, false, http.StatusUnprocessableEntity},
		{enums.ErrorKindPaymentDeclined, false, http.StatusPaymentRequired},
		{enums.ErrorKindGatewayError, false, http.StatusBadGateway},
		{enums.ErrorKindGatewayTimeout, true, http.StatusAccepted},
		{enums.ErrorKindGatewayError, true, http.StatusAccepted},
	}
	for _, tt := range tests {
		got := pkgerrors.MetadataFor(CodeForKind(tt.kind, tt.pending)).HTTPStatus
		if got != tt.status {
			t.Fatalf("%s pending=%v: expected %d got %d", tt.kind, tt.pending, tt.status, got)
		}
	}
}

func TestWriteResultIsUnwrapped(t *testing.T) {
	w := httptest.NewRecorder()
	WriteResult(w, http.StatusCreated, map[string]any{"success": true, "status": "pending_payment"})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != true {
		t.Fatalf("expected top-level success flag, got %v", body)
	}
	if _, wrapped := body["data"]; wrapped {
		t.Fatal("result should not be wrapped in a data envelope")
	}
}
