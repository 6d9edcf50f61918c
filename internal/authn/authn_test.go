package authn_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/store-ratings/internal/authn"
	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/repository"
)

type fakeUsers map[string]domain.User

func (f fakeUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	user, ok := f[email]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func TestHasher(t *testing.T) {
	c := qt.New(t)
	h := authn.NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret!")
	c.Assert(err, qt.IsNil)
	c.Assert(hash, qt.Not(qt.Equals), "s3cret!")
	c.Assert(h.Compare(hash, "s3cret!"), qt.IsNil)
	c.Assert(h.Compare(hash, "wrong"), qt.ErrorIs, authn.ErrInvalidCredentials)
	c.Assert(h.Compare("not-a-hash", "s3cret!"), qt.Not(qt.ErrorIs), authn.ErrInvalidCredentials)

	long := strings.Repeat("x", authn.MaxPasswordBytes+1)
	_, err = h.Hash(long)
	c.Assert(err, qt.ErrorIs, bcrypt.ErrPasswordTooLong)
	c.Assert(h.Compare(hash, long), qt.ErrorIs, authn.ErrInvalidCredentials)
}

func TestLocalVerifier(t *testing.T) {
	c := qt.New(t)
	h := authn.NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("pa55word")
	c.Assert(err, qt.IsNil)

	v := authn.NewLocalVerifier(fakeUsers{
		"owner@example.test": {ID: 7, Email: "owner@example.test", PasswordHash: hash, Role: domain.RoleStoreOwner},
	}, h)

	identity, err := v.Verify(context.Background(), "owner@example.test", "pa55word")
	c.Assert(err, qt.IsNil)
	c.Assert(identity, qt.DeepEquals, authn.Identity{Email: "owner@example.test", Role: domain.RoleStoreOwner})

	_, err = v.Verify(context.Background(), "owner@example.test", "nope")
	c.Assert(err, qt.ErrorIs, authn.ErrInvalidCredentials)

	_, err = v.Verify(context.Background(), "ghost@example.test", "pa55word")
	c.Assert(err, qt.ErrorIs, authn.ErrInvalidCredentials)
}

func TestHTTPVerifier(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != "key" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Password != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": true, "email": req.Email, "role": "SYSTEM_ADMINISTRATOR"})
	}))
	defer srv.Close()

	v, err := authn.NewHTTPVerifier(srv.URL+"/", "key", time.Second, nil)
	c.Assert(err, qt.IsNil)

	identity, err := v.Verify(context.Background(), "admin@example.test", "good")
	c.Assert(err, qt.IsNil)
	c.Assert(identity.Role, qt.Equals, domain.RoleSystemAdministrator)

	_, err = v.Verify(context.Background(), "admin@example.test", "bad")
	c.Assert(err, qt.ErrorIs, authn.ErrInvalidCredentials)

	badKey, err := authn.NewHTTPVerifier(srv.URL, "wrong", time.Second, nil)
	c.Assert(err, qt.IsNil)
	_, err = badKey.Verify(context.Background(), "admin@example.test", "good")
	c.Assert(err, qt.ErrorMatches, `authn: upstream returned 500`)
	c.Assert(errors.Is(err, authn.ErrInvalidCredentials), qt.IsFalse)
}
