package ratelimit

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/common/logging"

	"github.com/samber/lo"
)

// HTTPMiddleware rejects requests whose key has exhausted its bucket with 429
func (rl *Limiter) HTTPMiddleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.AllowKey(key) {
				logging.WithContext(r.Context()).Warn("Rate limit exceeded",
					logging.String("key", key),
					logging.String("path", r.URL.Path),
				)

				appErr := errors.RateLimitError(key)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSeconds(rl.config.RequestsPerSecond)))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   string(appErr.Type),
					"message": appErr.Message,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(rps float64) int {
	if rps >= 1 {
		return 1
	}
	return int(1/rps + 0.5)
}

// IPBasedKey keys requests by the peer address. Forwarding headers are
// ignored; use ClientIPKey behind a proxy.
func IPBasedKey(r *http.Request) string {
	return "ip:" + peerAddress(r)
}

// ClientIPKey keys requests by client address. X-Forwarded-For and X-Real-IP
// are honoured only when the peer is one of trusted, given as IPs or CIDR
// ranges. With no trusted proxies it behaves like IPBasedKey.
func ClientIPKey(trusted []string) (func(*http.Request) string, error) {
	prefixes := make([]netip.Prefix, 0, len(trusted))
	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		prefix, err := parseTrusted(entry)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, prefix)
	}
	if len(prefixes) == 0 {
		return IPBasedKey, nil
	}

	isTrusted := func(raw string) bool {
		addr, err := netip.ParseAddr(strings.TrimSpace(raw))
		if err != nil {
			return false
		}
		addr = addr.Unmap()
		return lo.ContainsBy(prefixes, func(p netip.Prefix) bool {
			return p.Contains(addr)
		})
	}

	return func(r *http.Request) string {
		peer := peerAddress(r)
		if !isTrusted(peer) {
			return "ip:" + peer
		}

		// Rightmost hop not added by one of our proxies is the client.
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			hops := strings.Split(forwarded, ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if hop != "" && !isTrusted(hop) {
					return "ip:" + hop
				}
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return "ip:" + realIP
		}
		return "ip:" + peer
	}, nil
}

func parseTrusted(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func peerAddress(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
