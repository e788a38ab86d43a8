package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad input", "email"), http.StatusBadRequest},
		{"stock", New(KindInsufficientStock, "not enough stock"), http.StatusBadRequest},
		{"signature", New(KindSignature, "bad signature"), http.StatusBadRequest},
		{"unauthenticated", New(KindUnauthenticated, "login required"), http.StatusUnauthorized},
		{"forbidden", New(KindForbidden, "admins only"), http.StatusForbidden},
		{"not found", New(KindNotFound, "missing"), http.StatusNotFound},
		{"conflict", New(KindConflict, "stale"), http.StatusConflict},
		{"persistence", Persistence("save cart", errors.New("db down")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("outer: %w", New(KindNotFound, "missing")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := Validation("missing required fields", "firstName", "city")
	assert.Equal(t, "missing required fields: firstName, city", err.Error())
	assert.Equal(t, []string{"firstName", "city"}, FieldsOf(fmt.Errorf("wrap: %w", err)))
}

func TestPublicMessage_HidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")

	assert.Equal(t, "internal server error", PublicMessage(Persistence("save order", cause)))
	assert.Equal(t, "internal server error", PublicMessage(cause))
	assert.Equal(t, "missing", PublicMessage(New(KindNotFound, "missing")))
}

func TestSentinelIdentity(t *testing.T) {
	sentinel := New(KindNotFound, "item not found")
	wrapped := fmt.Errorf("update quantity: %w", sentinel)

	assert.ErrorIs(t, wrapped, sentinel)
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, "not_found", KindOf(wrapped).String())
}
