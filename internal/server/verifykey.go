package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/formloft/formloft/internal/openai"
)

// VerifyKeyFunc checks a team-supplied API key against the upstream API.
type VerifyKeyFunc func(ctx context.Context, apiKey string) error

// OpenAIKeyVerifier verifies a key by listing models with it.
func OpenAIKeyVerifier(opts ...openai.ClientOption) VerifyKeyFunc {
	return func(ctx context.Context, apiKey string) error {
		client := openai.NewClient(apiKey, opts...)
		_, err := client.ListModels(ctx)
		return err
	}
}

type verifyKeyRequest struct {
	APIKey string `json:"api_key"`
}

type verifyKeyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// VerifyKeyHandler lets the dashboard validate an OpenAI key before a team
// saves it.
func VerifyKeyHandler(verify VerifyKeyFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
			writeVerifyResponse(w, http.StatusBadRequest, verifyKeyResponse{
				Valid: false, Error: "API key is required",
			})
			return
		}

		err := verify(r.Context(), req.APIKey)
		if err == nil {
			writeVerifyResponse(w, http.StatusOK, verifyKeyResponse{Valid: true})
			return
		}

		AddError(r.Context(), err)
		logger.Error("OpenAI key verification failed", slog.String("error", err.Error()))

		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusUnauthorized:
				writeVerifyResponse(w, http.StatusUnauthorized, verifyKeyResponse{
					Valid: false, Error: "Invalid API key",
				})
				return
			case http.StatusTooManyRequests:
				writeVerifyResponse(w, http.StatusTooManyRequests, verifyKeyResponse{
					Valid: false, Error: "Rate limit exceeded. The key may be valid but has usage limits.",
				})
				return
			}
		}

		writeVerifyResponse(w, http.StatusInternalServerError, verifyKeyResponse{
			Valid: false, Error: "Failed to verify API key",
		})
	}
}

func writeVerifyResponse(w http.ResponseWriter, status int, body verifyKeyResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
