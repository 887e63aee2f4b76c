package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/influencehub-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	f.data[key] = str
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func newIdempotentRequest(method, url string, body io.Reader) *http.Request {
	return httptest.NewRequest(method, url, body)
}

const fundPattern = "/api/v1/escrows/{escrowId}/fund"

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"create", http.MethodPost, "/api/v1/escrows", defaultIdempotencyTTL, true},
		{"fund pattern", http.MethodPost, fundPattern, criticalIdempotencyTTL, true},
		{"release raw path", http.MethodPost, "/api/v1/escrows/123/release", criticalIdempotencyTTL, true},
		{"refund", http.MethodPost, "/api/v1/escrows/123/refund", criticalIdempotencyTTL, true},
		{"dispute", http.MethodPost, "/api/v1/escrows/123/disputes", defaultIdempotencyTTL, true},
		{"status read", http.MethodGet, "/api/v1/escrows/123", 0, false},
		{"fees", http.MethodGet, "/api/v1/fees", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := newIdempotentRequest(http.MethodPost, "/api/v1/escrows", strings.NewReader(`{"amount":"1"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	req := newIdempotentRequest(http.MethodPost, "/api/v1/escrows/e1/fund", strings.NewReader(`{"paymentMethodId":"pm"}`))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected first response 200 got %d", resp.Code)
	}

	replay := newIdempotentRequest(http.MethodPost, "/api/v1/escrows/e1/fund", strings.NewReader(`{"paymentMethodId":"pm"}`))
	replay.Header.Set("Idempotency-Key", "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected replay status 200 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareSkipsPendingAndServerFailures(t *testing.T) {
	for _, status := range []int{http.StatusAccepted, http.StatusBadGateway} {
		store := newFakeStore()
		mw := Idempotency(store, nil)
		var calls int
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(status)
		})

		for i := 0; i < 2; i++ {
			req := newIdempotentRequest(http.MethodPost, "/api/v1/escrows/e1/fund", strings.NewReader(`{}`))
			req.Header.Set("Idempotency-Key", "retry")
			mw(handler).ServeHTTP(httptest.NewRecorder(), req)
		}

		if calls != 2 {
			t.Fatalf("status %d: handler executed %d times, expected 2", status, calls)
		}
		if len(store.data) != 0 {
			t.Fatalf("status %d: expected nothing persisted", status)
		}
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := newIdempotentRequest(http.MethodPost, "/api/v1/escrows", strings.NewReader(`{"amount":"1"}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := newIdempotentRequest(http.MethodPost, "/api/v1/escrows", strings.NewReader(`{"amount":"2"}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyMiddlewareIgnoresReads(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := newIdempotentRequest(http.MethodGet, "/api/v1/escrows/e1", nil)
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Fatal("expected read to pass through")
	}
	if len(store.data) != 0 {
		t.Fatal("reads should not be persisted")
	}
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	var inner http.Handler
	inner = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// a duplicate arrives while the first request still holds the key
			dup := newIdempotentRequest(http.MethodPost, "/api/v1/escrows/e1/release", strings.NewReader(`{"influencerId":"i"}`))
			dup.Header.Set("Idempotency-Key", "same")
			resp := httptest.NewRecorder()
			mw(inner).ServeHTTP(resp, dup)
			if resp.Code != http.StatusConflict {
				t.Errorf("expected 409 for in-flight duplicate, got %d", resp.Code)
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	req := newIdempotentRequest(http.MethodPost, "/api/v1/escrows/e1/release", strings.NewReader(`{"influencerId":"i"}`))
	req.Header.Set("Idempotency-Key", "same")
	resp := httptest.NewRecorder()
	mw(inner).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareReleasesKeyOnPanic(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := newIdempotentRequest(http.MethodPost, "/api/v1/escrows", strings.NewReader(`{}`))
	req.Header.Set("Idempotency-Key", "crash")
	func() {
		defer func() { _ = recover() }()
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}()

	if len(store.data) != 0 {
		t.Fatalf("expected key released after panic, found %v", store.data)
	}
}
