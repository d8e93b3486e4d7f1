package submit

import (
	"encoding/json"
	"net/http"
	"net/url"
)

type responseBody struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// writeJSON writes a JSON response with an explicit status. Every early
// rejection uses this shape regardless of the classifier verdict; only the
// success path branches on format.
func writeJSON(w http.ResponseWriter, status int, message string, success bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(responseBody{Message: message, Success: success})
}

// writeSuccess writes the format-appropriate success response: a 303 redirect
// to the success page for browser posts, 200 JSON for programmatic clients.
func writeSuccess(w http.ResponseWriter, format Format, returnURL, message string) {
	w.Header().Set("Content-Type", "application/json")
	if format == FormatHTML {
		w.Header().Set("Location", returnURL)
		w.WriteHeader(http.StatusSeeOther)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(responseBody{Message: message, Success: true})
}

// buildReturnURL points the browser at the hosted success page, carrying the
// original request origin so the page can offer a "return to site" link.
func buildReturnURL(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "http"
	}

	q := url.Values{}
	q.Set("return_url", r.Header.Get("Origin"))

	return proto + "://" + r.Host + "/submit-success?" + q.Encode()
}
