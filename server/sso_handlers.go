package server

import (
	"net/http"

	"github.com/jrsteele09/go-agent-chat/authflow"
)

// SSOInitiateHandler starts company SSO for a work email (POST /auth/sso)
func (s *Server) SSOInitiateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := readForm(r, "email")
		if err != nil {
			badForm(w, r, err)
			return
		}

		inst := instanceFromContext(r.Context())
		out := inst.Flows.InitiateSSO(r.Context(), form["email"])

		switch out.State {
		case authflow.StateAwaitingVerification:
			s.succeed(w, r, out, RouteSSOVerify)
		case authflow.StateAuthenticated:
			s.succeed(w, r, out, RouteChat)
		default:
			s.renderLoginOutcome(w, r, "sso", form["email"], "", out)
		}
	}
}

// SSOVerifyGetHandler renders the SSO code page (GET /auth/sso/verify)
func (s *Server) SSOVerifyGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())
		email, ok := inst.Flows.PendingSSOEmail(r.Context())
		if !ok {
			redirectSuccess(w, r, RouteLogin+"?tab=sso")
			return
		}
		data := s.newPageData()
		data.Email = email
		s.renderTemplate(w, http.StatusOK, "sso_verify.html", data)
	}
}

// SSOVerifyPostHandler completes company SSO (POST /auth/sso/verify).
// Failures that need a fresh initiation go back to the SSO tab.
func (s *Server) SSOVerifyPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := readForm(r, "code")
		if err != nil {
			badForm(w, r, err)
			return
		}

		inst := instanceFromContext(r.Context())
		out := inst.Flows.VerifySSO(r.Context(), form["code"])

		switch {
		case out.State == authflow.StateAuthenticated:
			s.succeed(w, r, out, RouteChat)
		case out.RestartSSO:
			s.renderLoginOutcome(w, r, "sso", out.Email, "", out)
		default:
			if wantsJSON(r) {
				writeJSON(w, r, outcomeStatus(out), newOutcomeResponse(out, RouteSSOVerify))
				return
			}
			data := s.newPageData()
			data.Email = out.Email
			data.Error = out.Message
			s.renderTemplate(w, outcomeStatus(out), "sso_verify.html", data)
		}
	}
}
