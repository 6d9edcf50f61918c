package domain

// MaxOverallRating bounds Store.OverallRating; 0 means "no ratings yet".
const MaxOverallRating = 5

// Store is a rateable shop owned by exactly one user.
type Store struct {
	ID            int64
	Name          string
	Address       string
	OverallRating int
	OwnerID       int64
}

// StoreDetails is a store with its owner and ratings attached.
type StoreDetails struct {
	Store
	Owner   User
	Ratings []Rating
}
