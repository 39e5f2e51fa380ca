// Package metadata records the caller's network origin and device on the
// request context. The origin feeds the velocity index.
package metadata

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"rollguard/pkg/requestcontext"
)

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them, plus a short device label, to the context. Apply it early.
// Proxy headers are honoured only from peers in trusted.
func ClientMetadata(trusted TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userAgent := r.Header.Get("User-Agent")
			ctx := requestcontext.WithClientMetadata(r.Context(), trusted.ClientIP(r), userAgent)
			ctx = requestcontext.WithDeviceLabel(ctx, DeviceLabel(userAgent))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeviceLabel condenses a User-Agent into "Browser on OS", "bot: name" or
// "unknown".
func DeviceLabel(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "unknown"
	}
	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	if ua.Bot() {
		return "bot: " + browser
	}
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		label := browser + " on " + os
		if ua.Mobile() {
			label += " (mobile)"
		}
		return label
	case browser != "":
		return browser
	}
	return "unknown"
}

// TrustedProxies lists the networks whose X-Forwarded-For and X-Real-IP
// headers are believed. The zero value trusts nobody.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies accepts bare IPs and CIDRs.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", raw)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		out = append(out, network)
	}
	return out, nil
}

func (t TrustedProxies) contains(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, network := range t {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address, or the forwarded origin when the peer
// is a trusted proxy.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	remote := remoteHost(r)
	if !t.contains(remote) {
		return remote
	}
	// X-Forwarded-For lists client, proxy1, proxy2...; the first is the origin.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return remote
}

func remoteHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
