package server

import (
	"net/http"

	"github.com/jrsteele09/go-agent-chat/authflow"
)

// SignupPostHandler handles the registration form (POST /auth/signup)
func (s *Server) SignupPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := readForm(r, "email", "name", "password", "confirm_password")
		if err != nil {
			badForm(w, r, err)
			return
		}

		inst := instanceFromContext(r.Context())
		out := inst.Flows.Signup(r.Context(), authflow.SignupForm{
			Email:           form["email"],
			Name:            form["name"],
			Password:        form["password"],
			ConfirmPassword: form["confirm_password"],
		})

		switch out.State {
		case authflow.StateAwaitingConfirmation:
			s.succeed(w, r, out, RouteVerify)
		case authflow.StateAuthenticated:
			s.succeed(w, r, out, RouteChat)
		case authflow.StateCompleteManualLogin:
			s.renderLoginOutcome(w, r, "login", out.Email, "", out)
		default:
			s.renderLoginOutcome(w, r, "signup", form["email"], form["name"], out)
		}
	}
}

// VerifyGetHandler renders the confirmation code page (GET /auth/verify)
func (s *Server) VerifyGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())
		email, ok := inst.Flows.PendingSignupEmail()
		if !ok {
			redirectSuccess(w, r, RouteLogin+"?tab=signup")
			return
		}
		data := s.newPageData()
		data.Email = email
		s.renderTemplate(w, http.StatusOK, "verify.html", data)
	}
}

// VerifyPostHandler submits the confirmation code (POST /auth/verify)
func (s *Server) VerifyPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := readForm(r, "code")
		if err != nil {
			badForm(w, r, err)
			return
		}

		inst := instanceFromContext(r.Context())
		out := inst.Flows.ConfirmSignup(r.Context(), form["code"])

		switch {
		case out.State == authflow.StateAuthenticated:
			s.succeed(w, r, out, RouteChat)
		case out.State == authflow.StateCompleteManualLogin:
			s.renderLoginOutcome(w, r, "login", out.Email, "", out)
		case out.Reason == authflow.ReasonNoPendingSignup:
			s.renderLoginOutcome(w, r, "signup", "", "", out)
		default:
			if wantsJSON(r) {
				writeJSON(w, r, outcomeStatus(out), newOutcomeResponse(out, RouteVerify))
				return
			}
			data := s.newPageData()
			data.Email = out.Email
			data.Error = out.Message
			s.renderTemplate(w, outcomeStatus(out), "verify.html", data)
		}
	}
}

// VerifyCancelHandler abandons the pending signup
func (s *Server) VerifyCancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst := instanceFromContext(r.Context())
		inst.Flows.CancelSignup()
		if wantsJSON(r) {
			writeJSON(w, r, http.StatusOK, newOutcomeResponse(authflow.Outcome{Flow: authflow.FlowSignup, State: authflow.StateIdle}, RouteLogin))
			return
		}
		redirectSuccess(w, r, RouteLogin)
	}
}
