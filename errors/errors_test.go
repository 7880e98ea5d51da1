package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"empty content", ErrEmptyContent, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("%w: field content", ErrEmptyContent), http.StatusBadRequest},
		{"not authorized", ErrNotAuthorized, http.StatusForbidden},
		{"not a member", ErrNotMember, http.StatusForbidden},
		{"message not found", ErrMessageNotFound, http.StatusNotFound},
		{"bad token", ErrInvalidToken, http.StatusUnauthorized},
		{"store", fmt.Errorf("%w: disk full", ErrStoreUnavailable), http.StatusInternalServerError},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MapToHTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage_HidesInternalDetails(t *testing.T) {
	req := require.New(t)

	req.Equal("not authorized", PublicMessage(ErrNotAuthorized))
	req.Equal("not a member", PublicMessage(fmt.Errorf("group 42: %w", ErrNotMember)))
	req.Equal("message not found", PublicMessage(ErrMessageNotFound))
	req.Equal("service unavailable", PublicMessage(fmt.Errorf("badger: value log truncated")))
}
