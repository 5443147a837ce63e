// Package httpx renders JSON bodies and RFC7807 problem documents.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeProblem = "application/problem+json"

	// MaxBodyBytes caps every decoded request body.
	MaxBodyBytes = 1 << 20
)

// ErrBodyTooLarge is returned by DecodeJSON when a body exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("request body too large")

// ProblemDetail represents RFC7807 problem details. Type defaults to
// about:blank, in which case Title is the HTTP status phrase.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`

	RequiredPermission string `json:"required_permission,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, contentTypeJSON, status, data)
}

// NoContent acknowledges a mutation that has nothing to return.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	WriteProblem(w, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// WriteProblem sends a fully populated problem document.
func WriteProblem(w http.ResponseWriter, problem ProblemDetail) {
	if problem.Type == "" {
		problem.Type = "about:blank"
	}
	if problem.Title == "" {
		problem.Title = http.StatusText(problem.Status)
	}
	write(w, contentTypeProblem, problem.Status, problem)
}

// DecodeJSON decodes a single JSON document from the request body into
// target. Bodies larger than MaxBodyBytes and trailing data are rejected.
func DecodeJSON(r *http.Request, target any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return err
	}
	if len(raw) > MaxBodyBytes {
		return ErrBodyTooLarge
	}
	return json.Unmarshal(raw, target)
}

func write(w http.ResponseWriter, contentType string, status int, data any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
