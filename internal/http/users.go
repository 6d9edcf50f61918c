package httpserver

import (
	"net/http"
	"strings"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/service"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordUpdateRequest struct {
	UserID      int64  `json:"userId"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Self-registration can only create plain users and store owners.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	role := domain.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if role == domain.RoleSystemAdministrator && !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	user, err := s.svc.Users.Register(r.Context(), service.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Address:  strings.TrimSpace(req.Address),
		Role:     role,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	user, err := s.svc.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var role *domain.Role
	if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
		parsed, err := domain.ParseRole(strings.ToUpper(raw))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		role = &parsed
	}

	users, err := s.svc.Users.List(r.Context(), role)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u))
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathID(w, r, "userId")
	if !ok {
		return
	}

	user, err := s.svc.Users.Get(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.UserID <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId must be a positive integer")
		return
	}

	if err := s.svc.Users.UpdatePassword(r.Context(), req.UserID, req.OldPassword, req.NewPassword); err != nil {
		s.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
