// Package submit implements the submission intake pipeline: request
// classification, payload guards, honeypot handling, spam filtering, and
// email delivery. Control flows strictly downward; each stage can
// short-circuit with a response, and no stage keeps state across requests.
package submit

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/formloft/formloft/internal/domain"
	"github.com/formloft/formloft/internal/mailer"
	"github.com/formloft/formloft/internal/spam"
	"github.com/formloft/formloft/internal/storage"
)

// Handler handles one submission per request.
type Handler struct {
	store   storage.FormStore
	checker spam.Checker
	mailer  mailer.Mailer
	limits  Limits
	logger  *slog.Logger
}

// NewHandler wires the pipeline's collaborators.
func NewHandler(store storage.FormStore, checker spam.Checker, m mailer.Mailer, limits Limits, logger *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		checker: checker,
		mailer:  m,
		limits:  limits,
		logger:  logger,
	}
}

// HandleSubmit is the POST /submit/{form_id} handler.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Early payload-size guard using the declared Content-Length. The header
	// can lie; MaxBytesReader below is the real enforcement.
	if r.ContentLength > h.limits.MaxBytes {
		h.logger.Warn("rejected submission: declared payload size exceeds limit",
			slog.Int64("content_length", r.ContentLength))
		writeJSON(w, http.StatusRequestEntityTooLarge, "Payload too large.", false)
		return
	}

	format := Classify(r.Header)
	if r.URL.Query().Get("format") == "json" {
		format = FormatJSON
	}
	h.logger.Info("form submission received", slog.String("client", format.String()))

	formID := chi.URLParam(r, "form_id")
	if formID == "" {
		writeJSON(w, http.StatusBadRequest, "Missing parameter: form_id.", false)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxBytes)
	fields, err := ExtractFields(r, h.limits)
	if err != nil {
		h.rejectParseError(w, err)
		return
	}

	returnURL := buildReturnURL(r)

	// A filled honeypot gets the same response shape as a genuine success so
	// a probing submitter cannot tell "accepted" from "dropped as a bot".
	if hasHoneypot(fields, h.limits.Honeypots) {
		h.logger.Info("honeypot detected, not sending email", slog.String("form_id", formID))
		writeSuccess(w, format, returnURL, "Form submitted.")
		return
	}
	fields = stripHoneypots(fields, h.limits.Honeypots)

	form, err := h.store.FindFormByPublicID(ctx, formID)
	if errors.Is(err, storage.ErrFormNotFound) {
		writeJSON(w, http.StatusBadRequest, "Form ID does not exist in database.", false)
		return
	}
	if err != nil {
		h.logger.Error("form lookup failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, "An unexpected error occurred.", false)
		return
	}

	team, ok := form.Team.Resolved()
	if !ok || team.ID == "" {
		writeJSON(w, http.StatusInternalServerError, "Error: Team field is not set up correctly.", false)
		return
	}

	if h.checker != nil && form.SpamFilterEnabled && team.OpenAIKey != "" && form.SpamFilterPrompt != "" {
		outcome := h.checker.Check(ctx, fields, team.OpenAIKey, form.SpamFilterPrompt)
		if spam.ShouldBlock(outcome) {
			// Same disguised success as the honeypot path.
			h.logger.Info("spam detected, not sending email", slog.String("form_id", formID))
			writeSuccess(w, format, returnURL, "Form submitted.")
			return
		}
	}

	if len(form.Recipients) == 0 {
		writeJSON(w, http.StatusInternalServerError, "Error: Recipients field is not set up correctly.", false)
		return
	}

	body := buildEmailBody(fields)
	subject := "Submission - " + form.Name

	for _, ref := range form.Recipients {
		rec, ok := ref.Resolved()
		if !ok {
			// Dangling reference; the form still delivers to the rest.
			continue
		}
		msg := mailer.Message{To: rec.Email, Subject: subject, Text: body}
		if err := h.mailer.Send(ctx, msg); err != nil {
			// Delivery failures never fail the request: the submitter's form
			// was received regardless of downstream mail issues.
			h.logger.Error("failed to send submission email",
				slog.String("recipient", rec.Email),
				slog.String("error", err.Error()))
		}
	}

	writeSuccess(w, format, returnURL, "Form submitted.")
}

func (h *Handler) rejectParseError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, errTooManyFields):
		writeJSON(w, http.StatusRequestEntityTooLarge, "Too many fields in submission.", false)
	case errors.As(err, &maxBytesErr):
		h.logger.Warn("rejected submission: payload size exceeds limit")
		writeJSON(w, http.StatusRequestEntityTooLarge, "Payload too large.", false)
	default:
		h.logger.Error("failed to parse submission", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, "An unexpected error occurred.", false)
	}
}

// buildEmailBody composes the plain-text message: one name/value block per
// field, separated by blank lines.
func buildEmailBody(fields []domain.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + ":\n" + f.Value + "\n"
	}
	return strings.Join(parts, "\n")
}
