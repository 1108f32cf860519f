package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"researchhub-chat/internal/user"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(tokenString string) (user.Principal, error) {
	if tokenString == "good" {
		return user.Principal{ID: 7, Name: "alice"}, nil
	}
	return user.Principal{}, errors.New("bad token")
}

func echoPrincipal(t *testing.T, got *user.Principal) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		require.True(t, ok)
		*got = p
	})
}

func Test_Auth_Accepts_Bearer_Header(t *testing.T) {
	req := require.New(t)
	var got user.Principal
	h := NewAuth(stubValidator{}).Handle(echoPrincipal(t, &got))

	r := httptest.NewRequest(http.MethodGet, "/api/chat/conversations", nil)
	r.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	req.Equal(http.StatusOK, w.Code)
	req.Equal(7, got.ID)
	req.Equal("alice", got.Name)
}

func Test_Auth_Accepts_Query_Token(t *testing.T) {
	req := require.New(t)
	var got user.Principal
	h := NewAuth(stubValidator{}).Handle(echoPrincipal(t, &got))

	r := httptest.NewRequest(http.MethodGet, "/ws?token=good", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	req.Equal(http.StatusOK, w.Code)
	req.Equal(7, got.ID)
}

func Test_Auth_Rejects_Missing_And_Invalid_Tokens(t *testing.T) {
	req := require.New(t)
	h := NewAuth(stubValidator{}).Handle(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	req.Equal(http.StatusUnauthorized, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/ws?token=forged", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	req.Equal(http.StatusUnauthorized, w.Code)
}
