package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/formloft/formloft/internal/openai"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestIDMiddleware(t *testing.T) {
	var gotCtxID string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCtxID, _ = r.Context().Value(RequestIDKey).(string)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	headerID := w.Header().Get("X-Request-ID")
	if headerID == "" {
		t.Fatal("X-Request-ID header not set")
	}
	if gotCtxID != headerID {
		t.Errorf("context id = %q, header id = %q", gotCtxID, headerID)
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot) // error responses carry CORS headers too
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/submit/abc", nil))

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Errorf("Allow-Methods = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Errorf("Allow-Headers = %q", got)
	}
}

func TestHandlePreflight(t *testing.T) {
	handler := CORSMiddleware(http.HandlerFunc(HandlePreflight))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/submit/abc", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(rate.Limit(1), 2)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest("POST", "/submit/abc", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if got := send("10.0.0.1:1234"); got != http.StatusOK {
		t.Fatalf("first request = %d, want 200", got)
	}
	if got := send("10.0.0.1:1234"); got != http.StatusOK {
		t.Fatalf("second request = %d, want 200", got)
	}
	if got := send("10.0.0.1:1234"); got != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", got)
	}

	// Another client has its own bucket.
	if got := send("10.0.0.2:1234"); got != http.StatusOK {
		t.Fatalf("other client = %d, want 200", got)
	}
}

func TestVisitorLimiterBoundedUnderDistinctIPs(t *testing.T) {
	vl := newVisitorLimiter(rate.Limit(1), 1)
	vl.maxVisitors = 3

	// All entries stay fresh; the cap must hold via least-recently-seen
	// eviction, not TTL pruning.
	for i := 0; i < 10; i++ {
		vl.allow(fmt.Sprintf("10.0.0.%d", i))
	}

	if len(vl.visitors) > 3 {
		t.Fatalf("visitors = %d, want at most 3", len(vl.visitors))
	}
	if _, ok := vl.visitors["10.0.0.9"]; !ok {
		t.Error("most recent visitor was evicted")
	}
}

func TestVisitorLimiterEvictsStaleEntriesFirst(t *testing.T) {
	vl := newVisitorLimiter(rate.Limit(1), 1)
	vl.maxVisitors = 3

	vl.allow("10.0.0.1")
	vl.allow("10.0.0.2")
	vl.allow("10.0.0.3")
	vl.visitors["10.0.0.1"].lastSeen = time.Now().Add(-visitorTTL - time.Minute)

	vl.allow("10.0.0.4")

	if _, ok := vl.visitors["10.0.0.1"]; ok {
		t.Error("stale visitor survived eviction")
	}
	for _, ip := range []string{"10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		if _, ok := vl.visitors[ip]; !ok {
			t.Errorf("fresh visitor %s was evicted while a stale entry existed", ip)
		}
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadlineSet bool
	handler := TimeoutMiddleware(time.Second)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, deadlineSet = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if !deadlineSet {
		t.Error("request context has no deadline")
	}
}

func TestVerifyKeyHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		verifyErr  error
		wantStatus int
	}{
		{
			name:       "valid key",
			body:       `{"api_key":"sk-good"}`,
			verifyErr:  nil,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing key",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid key",
			body:       `{"api_key":"sk-bad"}`,
			verifyErr:  &openai.APIError{StatusCode: http.StatusUnauthorized, Message: "bad key"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "rate limited key",
			body:       `{"api_key":"sk-limited"}`,
			verifyErr:  &openai.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "upstream failure",
			body:       `{"api_key":"sk-any"}`,
			verifyErr:  errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verify := func(_ context.Context, _ string) error { return tt.verifyErr }
			handler := VerifyKeyHandler(verify, testLogger())

			req := httptest.NewRequest("POST", "/api/verify-openai-key", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleSubmitSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	HandleSubmitSuccess(w, httptest.NewRequest("GET", "/submit-success?return_url=https://acme.example", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `href="https://acme.example"`) {
		t.Errorf("body missing return link: %s", w.Body.String())
	}
}

func TestHandleSubmitSuccess_RejectsNonHTTPReturnURL(t *testing.T) {
	w := httptest.NewRecorder()
	HandleSubmitSuccess(w, httptest.NewRequest("GET", "/submit-success?return_url=javascript:alert(1)", nil))

	if strings.Contains(w.Body.String(), "javascript:") {
		t.Errorf("body leaked unsafe return url: %s", w.Body.String())
	}
}
