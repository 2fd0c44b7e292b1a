package util

import (
	"net"
	"net/http"
	"strings"
)

// SentinelIP is used when no valid client address can be determined. All such
// clients share one rate-limit bucket.
const SentinelIP = "0.0.0.0"

// ClientIP extracts the originating client address, preferring forwarding
// headers over the socket peer. The first entry of a comma-separated
// X-Forwarded-For chain wins. Anything unparsable collapses to SentinelIP.
func ClientIP(r *http.Request) string {
	for _, header := range []string{"Client-Ip", "X-Forwarded-For"} {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		if idx := strings.IndexByte(value, ','); idx >= 0 {
			value = value[:idx]
		}
		value = strings.TrimSpace(value)
		if ip := net.ParseIP(value); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(strings.TrimSpace(host)); ip != nil {
		return ip.String()
	}
	return SentinelIP
}
