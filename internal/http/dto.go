package httpserver

import "github.com/Clark-Hu/store-ratings/internal/domain"

type userResponse struct {
	UserID  int64  `json:"userId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Role    string `json:"role"`
}

type storeResponse struct {
	StoreID       int64  `json:"storeId"`
	StoreName     string `json:"storeName"`
	Address       string `json:"address"`
	OverallRating int    `json:"overAllRating"`
	OwnerID       int64  `json:"ownerId"`
}

type storeDetailsResponse struct {
	storeResponse
	Owner   userResponse     `json:"owner"`
	Ratings []ratingResponse `json:"ratings"`
}

type ratingResponse struct {
	RatingID int64 `json:"ratingId"`
	UserID   int64 `json:"userId"`
	StoreID  int64 `json:"storeId"`
	Rating   int   `json:"rating"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		UserID:  u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Address: u.Address,
		Role:    string(u.Role),
	}
}

func toStoreResponse(st domain.Store) storeResponse {
	return storeResponse{
		StoreID:       st.ID,
		StoreName:     st.Name,
		Address:       st.Address,
		OverallRating: st.OverallRating,
		OwnerID:       st.OwnerID,
	}
}

func toStoreDetailsResponse(d domain.StoreDetails) storeDetailsResponse {
	return storeDetailsResponse{
		storeResponse: toStoreResponse(d.Store),
		Owner:         toUserResponse(d.Owner),
		Ratings:       toRatingResponses(d.Ratings),
	}
}

func toRatingResponse(r domain.Rating) ratingResponse {
	return ratingResponse{
		RatingID: r.ID,
		UserID:   r.UserID,
		StoreID:  r.StoreID,
		Rating:   r.Value,
	}
}

func toRatingResponses(ratings []domain.Rating) []ratingResponse {
	out := make([]ratingResponse, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, toRatingResponse(r))
	}
	return out
}
