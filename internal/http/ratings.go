package httpserver

import (
	"net/http"
)

type ratingCreateRequest struct {
	UserID int64 `json:"userId"`
	Rating int   `json:"rating"`
}

type ratingUpdateRequest struct {
	Rating int `json:"rating"`
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	storeID, ok := s.pathID(w, r, "storeId")
	if !ok {
		return
	}

	var req ratingCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.UserID <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId must be a positive integer")
		return
	}

	rating, err := s.svc.Ratings.AddRating(r.Context(), req.UserID, storeID, req.Rating)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toRatingResponse(rating))
}

func (s *Server) handleUpdateRating(w http.ResponseWriter, r *http.Request) {
	ratingID, ok := s.pathID(w, r, "ratingId")
	if !ok {
		return
	}

	var req ratingUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	rating, err := s.svc.Ratings.UpdateRating(r.Context(), ratingID, req.Rating)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingResponse(rating))
}

func (s *Server) handleListStoreRatings(w http.ResponseWriter, r *http.Request) {
	storeID, ok := s.pathID(w, r, "storeId")
	if !ok {
		return
	}

	ratings, err := s.svc.Queries.GetRatingsForStore(r.Context(), storeID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingResponses(ratings))
}

func (s *Server) handleGetUserRating(w http.ResponseWriter, r *http.Request) {
	storeID, ok := s.pathID(w, r, "storeId")
	if !ok {
		return
	}
	userID, ok := s.pathID(w, r, "userId")
	if !ok {
		return
	}

	rating, found, err := s.svc.Queries.GetRating(r.Context(), storeID, userID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !found {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "user has not rated this store")
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingResponse(rating))
}

func (s *Server) handleListRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := s.svc.Queries.GetAllRatings(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingResponses(ratings))
}
