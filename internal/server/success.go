package server

import (
	"html/template"
	"net/http"
	"net/url"
)

// successPage is the page browser submissions are redirected to. It offers a
// "return to site" link when the submitting page's origin was carried over.
var successPage = template.Must(template.New("success").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Form submitted</title></head>
<body>
<h1>Thank you!</h1>
<p>Your form was submitted successfully.</p>
{{if .ReturnURL}}<p><a href="{{.ReturnURL}}">Return to site</a></p>{{end}}
</body>
</html>
`))

// HandleSubmitSuccess renders the success page. Only http(s) return URLs are
// linked; anything else is dropped.
func HandleSubmitSuccess(w http.ResponseWriter, r *http.Request) {
	returnURL := r.URL.Query().Get("return_url")
	if u, err := url.Parse(returnURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		returnURL = ""
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	successPage.Execute(w, struct{ ReturnURL string }{ReturnURL: returnURL})
}
