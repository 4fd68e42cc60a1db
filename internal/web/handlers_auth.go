package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/stockroom/internal/core"
	mw "github.com/JonMunkholm/stockroom/internal/web/middleware"
	"github.com/JonMunkholm/stockroom/internal/web/templates"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := core.ActorFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	msg := flashMessages[r.URL.Query().Get("ok")]
	s.render(w, r, templates.LoginPage(msg, "", r.URL.Query().Get("next")))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	err := bind(r, &in, func(f *formReader) {
		in.Username = f.text("username")
		in.Password = f.values.Get("password")
	})
	var user *core.User
	if err == nil {
		user, err = s.service.Authenticate(r.Context(), in.Username, in.Password)
	}
	if err != nil {
		if wantsJSON(r) {
			s.fail(w, r, err)
			return
		}
		msg := core.MapError(err)
		s.renderStatus(w, r, statusFor(err), templates.LoginPage(msg.Message, in.Username, r.URL.Query().Get("next")))
		return
	}

	token := s.sessions.Create(user.Actor())
	http.SetCookie(w, s.sessionCookie(token, int(s.sessions.ttl.Seconds())))

	if wantsJSON(r) {
		writeJSON(w, map[string]interface{}{"user": user, "token": token})
		return
	}
	http.Redirect(w, r, safeRedirect(r.URL.Query().Get("next")), http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(mw.SessionCookie); err == nil {
		s.sessions.Delete(c.Value)
	}
	http.SetCookie(w, s.sessionCookie("", -1))
	done(w, r, http.StatusNoContent, nil, "/login")
}

func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     mw.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.Security.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, templates.RegisterPage("", core.UserInput{}))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in core.UserInput
	err := bind(r, &in, func(f *formReader) {
		in.FullName = f.text("fullName")
		in.Email = f.text("email")
		in.Username = f.text("username")
		in.Password = f.values.Get("password")
	})
	var id int
	if err == nil {
		id, err = s.service.Register(r.Context(), in)
	}
	if err != nil {
		if wantsJSON(r) {
			s.fail(w, r, err)
			return
		}
		in.Password = ""
		s.renderStatus(w, r, statusFor(err), templates.RegisterPage(core.MapError(err).Message, in))
		return
	}
	done(w, r, http.StatusCreated, map[string]int{"id": id}, withFlash("/login", "registered"))
}

type passwordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleChangePassword sets a password by email. Users may only change
// their own; admins may change anyone's.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in passwordRequest
	if err := bind(r, &in, func(f *formReader) {
		in.Email = f.text("email")
		in.Password = f.values.Get("password")
	}); err != nil {
		s.fail(w, r, err)
		return
	}

	a := actor(r)
	if !a.IsAdmin() || in.Email == "" {
		self, err := s.service.UserByID(r.Context(), a.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if in.Email != "" && in.Email != self.Email {
			s.fail(w, r, core.ErrForbidden)
			return
		}
		in.Email = self.Email
	}

	if err := s.service.UpdatePassword(r.Context(), in.Email, in.Password); err != nil {
		if errors.Is(err, core.ErrNotFound) && !a.IsAdmin() {
			err = core.ErrForbidden
		}
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusNoContent, nil, withFlash("/", "password"))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, actor(r))
}

// handleCreateUser lets an admin create an account with any role.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in core.UserInput
	if err := bind(r, &in, func(f *formReader) {
		in.FullName = f.text("fullName")
		in.Email = f.text("email")
		in.Username = f.text("username")
		in.Password = f.values.Get("password")
		in.Role = f.text("role")
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.service.CreateUser(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]int{"id": id})
}
