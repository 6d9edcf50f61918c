package domain

const (
	MinRatingValue = 1
	MaxRatingValue = 5
)

// Rating represents a single user's rating for a store.
type Rating struct {
	ID      int64
	UserID  int64
	StoreID int64
	Value   int
}

// ValidRatingValue reports whether v lies in the accepted 1..5 range.
func ValidRatingValue(v int) bool {
	return v >= MinRatingValue && v <= MaxRatingValue
}

// RatingAggregate carries the sum and count of a store's ratings.
type RatingAggregate struct {
	Sum   int64
	Count int64
}

// Overall returns the mean rounded half-up, or 0 when there are no ratings.
// Integer arithmetic keeps x.5 exact: (2*sum + count) / (2*count).
func (a RatingAggregate) Overall() int {
	if a.Count <= 0 {
		return 0
	}
	return int((2*a.Sum + a.Count) / (2 * a.Count))
}
