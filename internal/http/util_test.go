package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x", nil)
	assert.Equal(t, 5, parseIntQuery(r, "limit", 10))
	assert.Equal(t, 10, parseIntQuery(r, "bad", 10))
	assert.Equal(t, 10, parseIntQuery(r, "missing", 10))
}

func TestParseWait(t *testing.T) {
	tests := []struct {
		query string
		want  time.Duration
		err   bool
	}{
		{"", 0, false},
		{"wait=5", 5 * time.Second, false},
		{"wait=250ms", 250 * time.Millisecond, false},
		{"wait=2m", 30 * time.Second, false},
		{"wait=0", 0, false},
		{"wait=-1", 0, true},
		{"wait=later", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			got, err := parseWait(r, 30*time.Second)
			if tt.err {
				require.ErrorIs(t, err, errInvalidWait)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
