package submit

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/formloft/formloft/internal/domain"
)

// Limits are the per-request abuse guards. The Content-Length pre-check is
// best effort (the header can lie); the parse-time checks are the actual
// enforcement.
type Limits struct {
	MaxBytes    int64
	MaxFields   int
	MaxFieldLen int
	MaxNameLen  int
	Honeypots   []string
}

// DefaultLimits returns the product defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxBytes:    500_000,
		MaxFields:   100,
		MaxFieldLen: 3000,
		MaxNameLen:  200,
		Honeypots:   []string{"are_you_human"},
	}
}

// truncationMarker is appended to field values cut at MaxFieldLen so the
// recipient can see truncation occurred. Names are cut silently.
const truncationMarker = " [max length reached]"

// errTooManyFields is returned when a submission exceeds Limits.MaxFields.
var errTooManyFields = errors.New("too many fields in submission")

// ExtractFields parses a form-encoded or multipart body into an ordered field
// list, applying the field-count ceiling and the value/name truncation rules.
// The caller is expected to have capped r.Body with http.MaxBytesReader.
func ExtractFields(r *http.Request, limits Limits) ([]domain.Field, error) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "application/x-www-form-urlencoded"
	}

	var fields []domain.Field
	if mediaType == "multipart/form-data" {
		fields, err = extractMultipart(r.Body, params["boundary"], limits)
	} else {
		fields, err = extractURLEncoded(r.Body, limits)
	}
	if err != nil {
		return nil, err
	}

	for i, f := range fields {
		fields[i] = domain.Field{
			Name:  truncate(f.Name, limits.MaxNameLen),
			Value: truncateMarked(f.Value, limits.MaxFieldLen),
		}
	}

	return fields, nil
}

func extractMultipart(body io.Reader, boundary string, limits Limits) ([]domain.Field, error) {
	if boundary == "" {
		return nil, errors.New("multipart body without boundary")
	}

	mr := multipart.NewReader(body, boundary)
	var fields []domain.Field

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read multipart body: %w", err)
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		value, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read multipart part: %w", err)
		}

		fields = append(fields, domain.Field{Name: name, Value: string(value)})
		if len(fields) > limits.MaxFields {
			return nil, errTooManyFields
		}
	}

	return fields, nil
}

// extractURLEncoded parses pairs by hand so submission order is preserved;
// url.ParseQuery would collapse fields into an unordered map.
func extractURLEncoded(body io.Reader, limits Limits) ([]domain.Field, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var fields []domain.Field
	for _, pair := range strings.Split(string(raw), "&") {
		if pair == "" {
			continue
		}

		name, value, _ := strings.Cut(pair, "=")
		decodedName, err := url.QueryUnescape(name)
		if err != nil {
			return nil, fmt.Errorf("failed to decode field name: %w", err)
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode field value: %w", err)
		}

		fields = append(fields, domain.Field{Name: decodedName, Value: decodedValue})
		if len(fields) > limits.MaxFields {
			return nil, errTooManyFields
		}
	}

	return fields, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func truncateMarked(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + truncationMarker
}

// hasHoneypot reports whether any configured honeypot field carries a value.
func hasHoneypot(fields []domain.Field, honeypots []string) bool {
	for _, f := range fields {
		if f.Value != "" && isHoneypot(f.Name, honeypots) {
			return true
		}
	}
	return false
}

// stripHoneypots removes honeypot fields so they never reach recipient emails
// or the spam classifier.
func stripHoneypots(fields []domain.Field, honeypots []string) []domain.Field {
	out := fields[:0]
	for _, f := range fields {
		if !isHoneypot(f.Name, honeypots) {
			out = append(out, f)
		}
	}
	return out
}

func isHoneypot(name string, honeypots []string) bool {
	for _, h := range honeypots {
		if name == h {
			return true
		}
	}
	return false
}
