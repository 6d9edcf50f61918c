package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/service"
)

type storeCreateRequest struct {
	StoreName string             `json:"storeName"`
	Address   string             `json:"address"`
	Owner     ownerCreateRequest `json:"owner"`
}

type ownerCreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
	Role     string `json:"role"`
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req storeCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	st, err := s.svc.Stores.Create(r.Context(), service.CreateStoreParams{
		StoreName: req.StoreName,
		Address:   strings.TrimSpace(req.Address),
		Owner: service.OwnerParams{
			Name:     req.Owner.Name,
			Email:    req.Owner.Email,
			Password: req.Owner.Password,
			Address:  strings.TrimSpace(req.Owner.Address),
			Role:     domain.Role(strings.ToUpper(strings.TrimSpace(req.Owner.Role))),
		},
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/stores/%d", st.ID))
	s.respondJSON(w, http.StatusCreated, toStoreResponse(st))
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.svc.Queries.GetAllStores(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	items := make([]storeDetailsResponse, 0, len(stores))
	for _, st := range stores {
		items = append(items, toStoreDetailsResponse(st))
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	storeID, ok := s.pathID(w, r, "storeId")
	if !ok {
		return
	}

	details, err := s.svc.Queries.GetStore(r.Context(), storeID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toStoreDetailsResponse(details))
}

func (s *Server) handleGetStoreByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.pathID(w, r, "ownerId")
	if !ok {
		return
	}

	st, err := s.svc.Stores.GetByOwner(r.Context(), ownerID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toStoreResponse(st))
}
