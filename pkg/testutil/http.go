// Package testutil holds request and response helpers shared by the lead
// and admin handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ErrorBody is the JSON error envelope written by httputil.WriteError.
type ErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Field       string `json:"field"`
}

// NewJSONRequest builds a request with body encoded as JSON. A nil body
// sends no payload.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	if body == nil {
		req := httptest.NewRequest(method, path, http.NoBody)
		req.Header.Set("Content-Type", "application/json")
		return req
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err, "encode %s %s body", method, path)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithBearer attaches an admin session token.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// WithSession sets the browsing-session header used by the exit-intent API.
func WithSession(req *http.Request, sessionID string) *http.Request {
	req.Header.Set("X-Session-ID", sessionID)
	return req
}

func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// UnmarshalResponse decodes the recorded JSON body into a T.
func UnmarshalResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	out := new(T)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), "decode body %q", rec.Body.String())
	return out
}

func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	assert.Equal(t, want, rec.Code, "body: %s", rec.Body.String())
}

// AssertStatusAndError checks the status and the envelope's error code and
// returns the decoded envelope for further checks.
func AssertStatusAndError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) *ErrorBody {
	t.Helper()
	AssertStatus(t, rec, status)
	body := UnmarshalResponse[ErrorBody](t, rec)
	assert.Equal(t, code, body.Error)
	return body
}
