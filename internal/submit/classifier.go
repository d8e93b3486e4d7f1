package submit

import (
	"net/http"
	"strings"
)

// Format is the negotiated success-response shape.
type Format int

const (
	// FormatJSON is the programmatic shape: 200 with a JSON body.
	FormatJSON Format = iota
	// FormatHTML is the browser shape: 303 redirect to the success page.
	FormatHTML
)

func (f Format) String() string {
	if f == FormatHTML {
		return "html"
	}
	return "programmatic"
}

// Classify decides whether the caller is a browser-native form post or a
// programmatic client. First matching rule wins; when no signal is present we
// fail closed to the more informative JSON response.
func Classify(h http.Header) Format {
	secMode := strings.ToLower(h.Get("Sec-Fetch-Mode"))
	secDest := strings.ToLower(h.Get("Sec-Fetch-Dest"))
	secUser := strings.ToLower(h.Get("Sec-Fetch-User"))
	accept := strings.ToLower(h.Get("Accept"))
	xrw := strings.ToLower(h.Get("X-Requested-With"))
	htmx := strings.ToLower(h.Get("HX-Request")) == "true"

	switch {
	case secMode == "navigate" || secDest == "document" || secUser == "?1":
		return FormatHTML
	case xrw == "xmlhttprequest" || xrw == "fetch" || htmx:
		return FormatJSON
	case strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html"):
		return FormatJSON
	case strings.Contains(accept, "text/html"):
		return FormatHTML
	}
	return FormatJSON
}
