package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rufatasadov/sober-driver-backend/internal/authz"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"10.0.0.7:5555":  "10.0.0.7",
		"not-a-hostport": "not-a-hostport",
		"":               "unknown",
	}
	for remote, want := range cases {
		r := httptest.NewRequest("GET", "http://example/", nil)
		r.RemoteAddr = remote
		require.Equal(t, want, clientIP(r), remote)
	}
}

func TestClientKey_PrefersAccount(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "http://example/", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	require.Equal(t, "ip:10.0.0.7", clientKey(r))

	r = r.WithContext(authz.WithActor(r.Context(), domain.Actor{UserID: "u-1", Role: domain.RoleCustomer}))
	require.Equal(t, "user:u-1", clientKey(r))
}
