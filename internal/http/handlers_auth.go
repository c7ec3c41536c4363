package http

import (
	"errors"
	"net/http"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  loginUser `json:"user"`
}

type loginUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, err := s.authSvc.Signup(r.Context(), req.Name, req.Email, req.Mobile, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicateIdentifier):
			writeMessage(w, http.StatusBadRequest, "Email or Mobile already exists")
		case isValidationError(err):
			writeMessage(w, http.StatusBadRequest, err.Error())
		default:
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Signup failed",
				applog.FieldOperation, applog.OpSignup,
				applog.FieldError, err)
			writeMessage(w, http.StatusInternalServerError, "Signup failed")
		}
		return
	}

	writeMessage(w, http.StatusCreated, "Signup successful")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, user, err := s.authSvc.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		// Unknown identifier and wrong password share one status and one
		// message so the response never reveals which part failed.
		if errors.Is(err, core.ErrInvalidCredentials) {
			writeMessage(w, http.StatusBadRequest, "Invalid identifier or password")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Login failed",
			applog.FieldOperation, applog.OpLogin,
			applog.FieldError, err)
		writeMessage(w, http.StatusInternalServerError, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  loginUser{ID: user.ID, Name: user.Name},
	})
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrEmptyName,
		core.ErrInvalidEmail,
		core.ErrInvalidMobile,
		core.ErrEmptyPassword,
		core.ErrMissingIncome,
		core.ErrInvalidAmount,
		core.ErrEmptyDescription,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
