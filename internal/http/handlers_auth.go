package http

import (
	"errors"
	"net/http"
	"strings"

	"agrogestion/internal/auth"
	"agrogestion/internal/core"
	"agrogestion/internal/log"
)

type registerInput struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Name     string         `json:"name"`
	FarmName string         `json:"farmName"`
	Location *core.GeoPoint `json:"location"`
}

type credentialsInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileInput struct {
	Name     *string        `json:"name"`
	Email    *string        `json:"email"`
	FarmName *string        `json:"farmName"`
	Location *core.GeoPoint `json:"location"`
}

type resetInput struct {
	Email string `json:"email"`
}

type resetConfirmInput struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	id, err := s.deps.Auth.Register(r.Context(), sanitizeInput(in.Email), in.Password, auth.Profile{
		Name:     sanitizeInput(in.Name),
		FarmName: sanitizeInput(in.FarmName),
		Location: in.Location,
	})
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "User registered",
		log.FieldOperation, log.OpRegister,
		log.FieldOwnerID, id.UserID)
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(authResponse{Token: id.Token, User: auth.UserFromIdentity(id)}).
		Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentialsInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	id, err := s.deps.Auth.Authenticate(r.Context(), sanitizeInput(in.Email), in.Password)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged in",
		log.FieldOperation, log.OpLogin,
		log.FieldOwnerID, id.UserID)
	NewJSONResponse().Body(authResponse{Token: id.Token, User: auth.UserFromIdentity(id)}).Write(w)
}

// handleLogout only acknowledges; access tokens expire on their own and the
// client drops its session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, u core.User) {
	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged out",
		log.FieldOperation, log.OpLogout,
		log.FieldOwnerID, u.ID)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, u core.User) {
	NewJSONResponse().Body(u).Write(w)
}

// handleUpdateMe applies the fields present in the body and re-persists the
// whole profile. A new token is returned since the email may have changed.
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request, u core.User) {
	updater, ok := s.deps.Auth.(auth.ProfileUpdater)
	if !ok {
		ErrorResponse(http.StatusNotImplemented, "profile updates are not supported by this identity provider").Write(w)
		return
	}
	var in profileInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if in.Name != nil {
		u.Name = sanitizeInput(*in.Name)
	}
	if in.Email != nil {
		u.Email = sanitizeInput(*in.Email)
	}
	if in.FarmName != nil {
		u.FarmName = sanitizeInput(*in.FarmName)
	}
	if in.Location != nil {
		loc := *in.Location
		u.Location = &loc
	}
	if err := u.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	id, err := updater.UpdateProfile(r.Context(), bearerToken(r), u)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	NewJSONResponse().Body(authResponse{Token: id.Token, User: auth.UserFromIdentity(id)}).Write(w)
}

// handlePasswordReset answers 202 whether or not the email is registered.
func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var in resetInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if !strings.Contains(in.Email, "@") {
		UnprocessableEntityError("a valid email is required").Write(w)
		return
	}
	if err := s.deps.Auth.RequestPasswordReset(r.Context(), sanitizeInput(in.Email)); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).Body(map[string]string{"status": "requested"}).Write(w)
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var in resetConfirmInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	err := s.deps.Auth.ConfirmPasswordReset(r.Context(), strings.TrimSpace(in.Token), in.Password)
	if errors.Is(err, auth.ErrInvalidToken) {
		BadRequestError("reset token is invalid, expired or already used").Write(w)
		return
	}
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Password reset confirmed", log.FieldOperation, log.OpReset)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
