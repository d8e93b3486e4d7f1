package spam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/formloft/formloft/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFields() []domain.Field {
	return []domain.Field{
		{Name: "name", Value: "John"},
		{Name: "message", Value: "Hi"},
	}
}

// fakeOpenAI returns a chat-completions endpoint whose single choice carries
// the given content string.
func fakeOpenAI(t *testing.T, content string, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if capture != nil {
			body, _ := io.ReadAll(r.Body)
			var req map[string]any
			json.Unmarshal(body, &req)
			req["authorization"] = r.Header.Get("Authorization")
			*capture = req
		}
		fmt.Fprintf(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":%q}}]}`, content)
	}))
}

func TestCheck_SpamVerdict(t *testing.T) {
	srv := fakeOpenAI(t, `{"spam":true}`, nil)
	defer srv.Close()

	checker := NewOpenAIChecker(testLogger(), WithBaseURL(srv.URL))
	if got := checker.Check(context.Background(), testFields(), "sk-team", "prompt"); got != Spam {
		t.Errorf("Check() = %v, want Spam", got)
	}
}

func TestCheck_HamVerdict(t *testing.T) {
	srv := fakeOpenAI(t, `{"spam":false}`, nil)
	defer srv.Close()

	checker := NewOpenAIChecker(testLogger(), WithBaseURL(srv.URL))
	if got := checker.Check(context.Background(), testFields(), "sk-team", "prompt"); got != Ham {
		t.Errorf("Check() = %v, want Ham", got)
	}
}

func TestCheck_UsesTeamKeyAndPrompt(t *testing.T) {
	var captured map[string]any
	srv := fakeOpenAI(t, `{"spam":false}`, &captured)
	defer srv.Close()

	checker := NewOpenAIChecker(testLogger(), WithBaseURL(srv.URL), WithModel("gpt-4o-mini"))
	checker.Check(context.Background(), testFields(), "sk-team-123", "You are a spam filter.")

	if captured["authorization"] != "Bearer sk-team-123" {
		t.Errorf("Authorization = %v, want the team key", captured["authorization"])
	}
	if captured["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", captured["model"])
	}

	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v, want system + user", captured["messages"])
	}
	system := messages[0].(map[string]any)
	if system["role"] != "system" || system["content"] != "You are a spam filter." {
		t.Errorf("system message = %v", system)
	}
	user := messages[1].(map[string]any)
	if user["content"] != FormatFields(testFields()) {
		t.Errorf("user message = %v", user["content"])
	}
}

func TestCheck_UpstreamErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"type":"server_error","message":"boom"}}`))
	}))
	defer srv.Close()

	checker := NewOpenAIChecker(testLogger(), WithBaseURL(srv.URL))
	if got := checker.Check(context.Background(), testFields(), "sk-team", "prompt"); got != Unavailable {
		t.Errorf("Check() = %v, want Unavailable", got)
	}
}

func TestCheck_UnreachableHostIsUnavailable(t *testing.T) {
	checker := NewOpenAIChecker(testLogger(),
		WithBaseURL("http://127.0.0.1:1"),
		WithTimeout(time.Second))
	if got := checker.Check(context.Background(), testFields(), "sk-team", "prompt"); got != Unavailable {
		t.Errorf("Check() = %v, want Unavailable", got)
	}
}

func TestCheck_UnparseableVerdictIsUnavailable(t *testing.T) {
	srv := fakeOpenAI(t, `not json at all`, nil)
	defer srv.Close()

	checker := NewOpenAIChecker(testLogger(), WithBaseURL(srv.URL))
	if got := checker.Check(context.Background(), testFields(), "sk-team", "prompt"); got != Unavailable {
		t.Errorf("Check() = %v, want Unavailable", got)
	}
}

func TestCheck_EmptyChoicesIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	checker := NewOpenAIChecker(testLogger(), WithBaseURL(srv.URL))
	if got := checker.Check(context.Background(), testFields(), "sk-team", "prompt"); got != Unavailable {
		t.Errorf("Check() = %v, want Unavailable", got)
	}
}

func TestShouldBlock(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    bool
	}{
		{Ham, false},
		{Spam, true},
		{Unavailable, false}, // fail-open
	}
	for _, tt := range tests {
		if got := ShouldBlock(tt.outcome); got != tt.want {
			t.Errorf("ShouldBlock(%v) = %v, want %v", tt.outcome, got, tt.want)
		}
	}
}

func TestFormatFields(t *testing.T) {
	got := FormatFields(testFields())
	want := "name: John\n message: Hi\n"
	if got != want {
		t.Errorf("FormatFields() = %q, want %q", got, want)
	}
}
