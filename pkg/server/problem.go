package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Problem is an RFC 7807 problem document. Errors carries per-field
// validation messages and is present only on 400 responses.
type Problem struct {
	Type     string              `json:"type"`
	Title    string              `json:"title"`
	Instance string              `json:"instance"`
	TraceID  string              `json:"traceId"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

const (
	validationTitle  = "Validation Failed"
	unavailableTitle = "Service Temporarily Unavailable"
)

func writeProblem(w http.ResponseWriter, r *http.Request, status int, title string, fieldErrors map[string][]string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Instance: r.URL.RequestURI(),
		TraceID:  uuid.NewString(),
		Errors:   fieldErrors,
	})
}
