// Package device classifies the client platform from its User-Agent.
package device

import (
	"context"
	"net"
	"net/http"
	"regexp"
)

// Platforms reported in transaction and session metadata.
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformWindows = "windows"
	PlatformMac     = "mac"
	PlatformLinux   = "linux"
	PlatformWeb     = "web"
)

// Info describes the client that issued a request.
type Info struct {
	Platform  string `json:"platform"`
	UserAgent string `json:"userAgent"`
	IPAddress string `json:"ipAddress,omitempty"`
}

// Checked in order; the first match wins, so Android phones whose agent
// also mentions Linux classify as android.
var platformPatterns = []struct {
	platform string
	pattern  *regexp.Regexp
}{
	{PlatformAndroid, regexp.MustCompile(`(?i)android`)},
	{PlatformIOS, regexp.MustCompile(`(?i)iphone|ipad|ipod`)},
	{PlatformWindows, regexp.MustCompile(`(?i)windows`)},
	{PlatformMac, regexp.MustCompile(`(?i)mac`)},
	{PlatformLinux, regexp.MustCompile(`(?i)linux`)},
}

// FromUserAgent classifies ua, defaulting to web.
func FromUserAgent(ua string) Info {
	info := Info{Platform: PlatformWeb, UserAgent: ua}
	for _, p := range platformPatterns {
		if p.pattern.MatchString(ua) {
			info.Platform = p.platform
			break
		}
	}
	return info
}

type contextKey struct{}

// WithInfo stores info in ctx.
func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, contextKey{}, info)
}

// FromContext returns the Info stored by Middleware, or a web Info when
// the request did not pass through it.
func FromContext(ctx context.Context) Info {
	if ctx != nil {
		if info, ok := ctx.Value(contextKey{}).(Info); ok {
			return info
		}
	}
	return Info{Platform: PlatformWeb}
}

// Middleware classifies every request. It expects RemoteAddr to already
// reflect the client (chi's RealIP runs first).
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := FromUserAgent(r.UserAgent())
		info.IPAddress = clientIP(r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
	})
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
