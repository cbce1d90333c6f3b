package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/jrsteele09/go-agent-chat/authflow"
	"github.com/rs/zerolog/log"
)

// OutcomeResponse is the JSON form of an auth flow outcome.
type OutcomeResponse struct {
	Flow       string `json:"flow"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`
	Email      string `json:"email,omitempty"`
	RestartSSO bool   `json:"restartSso,omitempty"`
	Next       string `json:"next,omitempty"` // where a browser would be sent
}

func newOutcomeResponse(out authflow.Outcome, next string) OutcomeResponse {
	resp := OutcomeResponse{
		Flow:       out.Flow.String(),
		State:      out.State.String(),
		Message:    out.Message,
		Email:      out.Email,
		RestartSSO: out.RestartSSO,
		Next:       next,
	}
	if out.Failed() {
		resp.Reason = out.Reason.String()
	}
	return resp
}

type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{Status: status, Message: message})
}

// outcomeStatus maps a flow outcome to the HTTP status of its response.
func outcomeStatus(out authflow.Outcome) int {
	switch out.Reason {
	case authflow.ReasonNone:
		return http.StatusOK
	case authflow.ReasonBusy:
		return http.StatusConflict
	case authflow.ReasonRateLimited:
		return http.StatusTooManyRequests
	case authflow.ReasonSSOFailed, authflow.ReasonLoginFailed, authflow.ReasonSignupFailed, authflow.ReasonVerificationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

// readForm returns the named fields from a url-encoded, multipart or JSON
// body.
func readForm(r *http.Request, fields ...string) (map[string]string, error) {
	values := make(map[string]string, len(fields))
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]string
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			return nil, err
		}
		for _, f := range fields {
			values[f] = body[f]
		}
		return values, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for _, f := range fields {
		values[f] = r.FormValue(f)
	}
	return values, nil
}

func badForm(w http.ResponseWriter, r *http.Request, err error) {
	log.Debug().Err(err).Str("path", r.URL.Path).Msg("invalid form data")
	if wantsJSON(r) {
		writeJSONError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}
	http.Error(w, "Invalid form data", http.StatusBadRequest)
}
