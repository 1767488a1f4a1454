package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sofatutor/portfolio-api/internal/logging"
)

// ProxyTrust decides whose forwarding headers are believed.
type ProxyTrust struct {
	all   bool
	nets  []*net.IPNet
	addrs []net.IP
}

// NewProxyTrust parses IPs, CIDRs and "*". Entries that fail to parse are
// skipped and returned in invalid.
func NewProxyTrust(entries []string) (trust *ProxyTrust, invalid []string) {
	trust = &ProxyTrust{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		switch {
		case e == "":
		case e == "*":
			trust.all = true
		case strings.Contains(e, "/"):
			_, n, err := net.ParseCIDR(e)
			if err != nil {
				invalid = append(invalid, e)
				continue
			}
			trust.nets = append(trust.nets, n)
		default:
			ip := net.ParseIP(e)
			if ip == nil {
				invalid = append(invalid, e)
				continue
			}
			trust.addrs = append(trust.addrs, ip)
		}
	}
	return trust, invalid
}

// Trusts reports whether peer may set forwarding headers.
func (t *ProxyTrust) Trusts(peer string) bool {
	if t == nil {
		return false
	}
	if t.all {
		return true
	}
	ip := net.ParseIP(peer)
	if ip == nil {
		return false
	}
	for _, a := range t.addrs {
		if a.Equal(ip) {
			return true
		}
	}
	for _, n := range t.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ResolveClientIP returns the first X-Forwarded-For hop, then X-Real-IP,
// then the peer address. Headers are used only when the peer is trusted.
func ResolveClientIP(r *http.Request, trust *ProxyTrust) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if trust.Trusts(peer) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}
	if peer == "" {
		return "unknown"
	}
	return peer
}

const clientIPKey = "client_ip"

// ClientIP resolves the client address once per request and stores it in
// the gin and request contexts.
func ClientIP(trust *ProxyTrust) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ResolveClientIP(c.Request, trust)
		c.Set(clientIPKey, ip)
		c.Request = c.Request.WithContext(logging.WithClientIP(c.Request.Context(), ip))
		c.Next()
	}
}

// GetClientIP returns the address stored by ClientIP.
func GetClientIP(c *gin.Context) string {
	if ip := c.GetString(clientIPKey); ip != "" {
		return ip
	}
	return ResolveClientIP(c.Request, nil)
}
