package httpapi

import (
	"time"

	"inferd/internal/stream"
)

// maxBodyBytes controls the maximum allowed request body size for JSON
// endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// streamPace is the inter-chunk delay applied in proxied delivery mode.
var streamPace = stream.DefaultPace

// SetStreamPace configures the proxied-mode pacing delay.
func SetStreamPace(d time.Duration) {
	if d <= 0 {
		streamPace = stream.DefaultPace
		return
	}
	streamPace = d
}

// CORS configuration. Empty origins means allow every origin, which suits a
// daemon that only listens on localhost.
var corsAllowedOrigins = []string{"*"}

// SetCORSOrigins configures the allowed CORS origins.
func SetCORSOrigins(origins []string) {
	if len(origins) == 0 {
		corsAllowedOrigins = []string{"*"}
		return
	}
	corsAllowedOrigins = append([]string(nil), origins...)
}
