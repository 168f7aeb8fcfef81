package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: AAPL", ErrNoData), http.StatusNotFound},
		{fmt.Errorf("%w: stock_api_key", ErrMissingCredential), http.StatusBadRequest},
		{fmt.Errorf("%w: %q", ErrUnsupportedProvider, "bloomberg"), http.StatusBadRequest},
		{fmt.Errorf("%w: telegram_token not set", ErrNotConfigured), http.StatusBadRequest},
		{fmt.Errorf("%w: notification 7", ErrAlreadySent), http.StatusBadRequest},
		{fmt.Errorf("%w: status 500", ErrUpstream), http.StatusBadGateway},
		{fmt.Errorf("%w: rejected", ErrDelivery), http.StatusBadGateway},
		{fmt.Errorf("%w: insert failed", ErrPersistence), http.StatusInternalServerError},
		{fmt.Errorf("plain failure"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err))
	}
}

func TestIsConfiguration(t *testing.T) {
	assert.True(t, IsConfiguration(fmt.Errorf("%w: x", ErrMissingCredential)))
	assert.True(t, IsConfiguration(ErrNotConfigured))
	assert.False(t, IsConfiguration(ErrUpstream))
	assert.False(t, IsConfiguration(nil))
}
