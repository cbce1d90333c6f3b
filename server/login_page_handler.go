package server

import (
	"net/http"

	"github.com/jrsteele09/go-agent-chat/authflow"
	"github.com/jrsteele09/go-agent-chat/session"
)

// IndexHandler sends the client to chat or to the login page
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())
		redirectSuccess(w, r, string(inst.Publisher.Route()))
	}
}

// LoginPageUIHandler displays the login page (GET /login)
func (s *Server) LoginPageUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())
		if inst.Publisher.Route() == session.RouteChat {
			redirectSuccess(w, r, RouteChat)
			return
		}

		data := s.newPageData()
		switch tab := r.URL.Query().Get("tab"); tab {
		case "signup":
			data.Tab = tab
		case "sso":
			if data.SSOEnabled {
				data.Tab = tab
			}
		}
		data.Email = r.URL.Query().Get("email")
		s.renderTemplate(w, http.StatusOK, "login.html", data)
	}
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := readForm(r, "email", "password")
		if err != nil {
			badForm(w, r, err)
			return
		}

		inst := instanceFromContext(r.Context())
		out := inst.Flows.Login(r.Context(), form["email"], form["password"])
		if out.State == authflow.StateAuthenticated {
			s.succeed(w, r, out, RouteChat)
			return
		}
		s.renderLoginOutcome(w, r, "login", form["email"], "", out)
	}
}

// LogoutHandler signs the client out. Provider failures are logged by the
// publisher and never block the redirect.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())
		inst.Publisher.SignOut(r.Context())
		inst.Chat.NewChat()

		if wantsJSON(r) {
			writeJSON(w, r, http.StatusOK, sessionResponse(inst.Publisher))
			return
		}
		redirectSuccess(w, r, RouteLogin)
	}
}

// succeed answers a successful flow step with a redirect, or JSON for API
// clients.
func (s *Server) succeed(w http.ResponseWriter, r *http.Request, out authflow.Outcome, next string) {
	if wantsJSON(r) {
		writeJSON(w, r, http.StatusOK, newOutcomeResponse(out, next))
		return
	}
	redirectSuccess(w, r, next)
}

// renderLoginOutcome re-renders the login page on tab with the outcome's
// message. Failures show as errors, anything else as information.
func (s *Server) renderLoginOutcome(w http.ResponseWriter, r *http.Request, tab, email, name string, out authflow.Outcome) {
	status := outcomeStatus(out)
	if wantsJSON(r) {
		writeJSON(w, r, status, newOutcomeResponse(out, RouteLogin))
		return
	}

	data := s.newPageData()
	data.Tab = tab
	data.Email = email
	data.Name = name
	if out.Failed() {
		data.Error = out.Message
	} else {
		data.Info = out.Message
	}
	s.renderTemplate(w, status, "login.html", data)
}
