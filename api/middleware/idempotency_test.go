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

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/lms-engagements/pkg/errors"
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

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"dispatch", http.MethodPost, "/api/admin/v1/events", dispatchIdempotencyTTL, true},
		{"create definition", http.MethodPost, "/api/admin/v1/engagements", defaultIdempotencyTTL, true},
		{"trailing slash", http.MethodPost, "/api/admin/v1/engagements/", defaultIdempotencyTTL, true},
		{"list definitions", http.MethodGet, "/api/admin/v1/engagements", 0, false},
		{"trash", http.MethodPost, "/api/admin/v1/engagements/{id}/trash", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		require.Equal(t, tt.ok, ok, tt.name)
		if ok {
			assert.Equal(t, tt.want, ttl, tt.name)
		}
	}
}

func TestRoutePatternFallsBackToPathForWildcards(t *testing.T) {
	req := requestWithPattern(http.MethodPost, "/api/admin/v1/events", "/api/admin/v1/*", nil)
	assert.Equal(t, "/api/admin/v1/events", routePattern(req))

	req = requestWithPattern(http.MethodPost, "/api/admin/v1/engagements/9/trash", "/api/admin/v1/engagements/{id}/trash", nil)
	assert.Equal(t, "/api/admin/v1/engagements/{id}/trash", routePattern(req))
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/api/admin/v1/events", "/api/admin/v1/events", strings.NewReader(`{"event":"course.completed"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, handlerCalled, "handler should not run without idempotency key")
}

func TestIdempotencyMiddlewareSkipsOtherRoutes(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodGet, "/api/admin/v1/engagements", "/api/admin/v1/engagements", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := requestWithPattern(http.MethodPost, "/api/admin/v1/events", "/api/admin/v1/events", strings.NewReader(`{"event":"course.completed"}`))
	req.Header.Set(IdempotencyKeyHeader, "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	require.Equal(t, http.StatusAccepted, resp.Code)

	replay := requestWithPattern(http.MethodPost, "/api/admin/v1/events", "/api/admin/v1/events", strings.NewReader(`{"event":"course.completed"}`))
	replay.Header.Set(IdempotencyKeyHeader, "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, `{"ok":true}`, strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyMiddlewareDoesNotStoreServerErrors(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/admin/v1/events", "/api/admin/v1/events", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyKeyHeader, "retry-me")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodPost, "/api/admin/v1/engagements", "/api/admin/v1/engagements", strings.NewReader(`{"title":"a"}`))
	req.Header.Set(IdempotencyKeyHeader, "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := requestWithPattern(http.MethodPost, "/api/admin/v1/engagements", "/api/admin/v1/engagements", strings.NewReader(`{"title":"b"}`))
	replay.Header.Set(IdempotencyKeyHeader, "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	require.Equal(t, http.StatusConflict, resp.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeConflict), payload.Error.Code)
}
