package httpserver

import (
	"strconv"
	"testing"
)

func FuzzParseID(f *testing.F) {
	for _, seed := range []string{"1", "0", "-1", "abc", " 7 ", "99999999999999999999", ""} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		id, err := parseID(raw)
		if err != nil {
			if id != 0 {
				t.Fatalf("parseID(%q) returned %d alongside an error", raw, id)
			}
			return
		}
		if id <= 0 {
			t.Fatalf("parseID(%q) = %d, want positive", raw, id)
		}
		if _, convErr := strconv.ParseInt(strconv.FormatInt(id, 10), 10, 64); convErr != nil {
			t.Fatalf("round trip failed for %d", id)
		}
	})
}
