package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Error is a non-2xx answer from the service. Message is the service's own
// text and is meant to be shown to the user as-is.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Status
	}
	return 0
}

// errorBody covers both the identity API shapes ({msg}, {error,
// error_description}) and the row API shape ({message, code}).
type errorBody struct {
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
}

func readErrorResponse(resp *http.Response) error {
	out := &Error{Status: resp.StatusCode}

	var payload errorBody
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		for _, candidate := range []string{payload.Message, payload.Msg, payload.ErrorDescription, payload.Error} {
			if strings.TrimSpace(candidate) != "" {
				out.Message = candidate
				break
			}
		}
		out.Code = payload.ErrorCode
		if out.Code == "" && len(payload.Code) > 0 {
			var code string
			if json.Unmarshal(payload.Code, &code) == nil {
				out.Code = code
			}
		}
	}
	if out.Message == "" {
		out.Message = resp.Status
	}
	return out
}
