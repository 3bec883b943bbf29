package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

var errInvalidWait = errors.New("wait must be a non-negative duration such as 10s or a number of seconds")

// parseWait reads ?wait= as a Go duration ("10s", "1m") or bare seconds ("10").
// The result is clamped to maxWait. Missing means no waiting.
func parseWait(r *http.Request, maxWait time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("wait"))
	if raw == "" {
		return 0, nil
	}

	var d time.Duration
	if secs, err := strconv.Atoi(raw); err == nil {
		d = time.Duration(secs) * time.Second
	} else {
		parsed, perr := time.ParseDuration(raw)
		if perr != nil {
			return 0, fmt.Errorf("%w: %q", errInvalidWait, raw)
		}
		d = parsed
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidWait, raw)
	}
	if maxWait > 0 && d > maxWait {
		d = maxWait
	}
	return d, nil
}
