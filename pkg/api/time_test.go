package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatParseTime(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 30, 0, 123000000, time.FixedZone("X", 3*3600))

	s := FormatTime(ts)
	assert.Equal(t, "2026-10-19T09:30:00.123Z", s)

	got, err := ParseTime(s)
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
}

func TestParseTime_Variants(t *testing.T) {
	_, err := ParseTime("2026-10-19T09:30:00Z")
	assert.NoError(t, err)

	_, err = ParseTime("2026-10-19T09:30:00+03:00")
	assert.NoError(t, err)

	_, err = ParseTime("")
	assert.Error(t, err)

	_, err = ParseTime("tomorrow")
	assert.Error(t, err)
}

func TestAuthResponse_Presence(t *testing.T) {
	var nilResp *AuthResponse
	assert.False(t, nilResp.HasCSRF())
	assert.False(t, nilResp.HasSession())

	csrfOnly := &AuthResponse{CSRFToken: "c1", ExpiresAt: "2026-10-19T09:30:00Z"}
	assert.True(t, csrfOnly.HasCSRF())
	assert.False(t, csrfOnly.HasSession())

	full := &AuthResponse{SessionToken: "s1", CSRFToken: "c1", ExpiresAt: "2026-10-19T09:30:00Z"}
	assert.True(t, full.HasCSRF())
	assert.True(t, full.HasSession())

	noExpiry := &AuthResponse{SessionToken: "s1", CSRFToken: "c1"}
	assert.False(t, noExpiry.HasCSRF())
	assert.False(t, noExpiry.HasSession())
}
