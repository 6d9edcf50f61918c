package httpserver

import (
	"fmt"
	"net/http"
	"testing"
)

func BenchmarkHandleSubmitRating(b *testing.B) {
	srv := buildTestServer(b)
	st := createStore(b, srv, "bench")

	users := make([]userResponse, b.N)
	for i := range users {
		users[i] = registerUser(b, srv, fmt.Sprintf("bench-%d@bench.test", i))
	}
	path := fmt.Sprintf("/stores/%d/ratings", st.StoreID)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := do(b, srv, http.MethodPost, path, fmt.Sprintf(`{"userId":%d,"rating":%d}`, users[i].UserID, i%5+1))
		if rec.Code != http.StatusCreated {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}
