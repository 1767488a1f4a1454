package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sofatutor/portfolio-api/internal/logging"
)

func TestResolveClientIP(t *testing.T) {
	all, _ := NewProxyTrust([]string{"*"})
	lan, invalid := NewProxyTrust([]string{"10.0.0.0/8", "192.168.1.1", "not-an-ip", "10.0.0.0/99"})
	assert.Equal(t, []string{"not-an-ip", "10.0.0.0/99"}, invalid)

	tests := []struct {
		name    string
		trust   *ProxyTrust
		remote  string
		headers map[string]string
		want    string
	}{
		{"forwarded first hop", all, "10.1.1.1:5555", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "203.0.113.7"},
		{"real ip when no xff", all, "10.1.1.1:5555", map[string]string{"X-Real-IP": "198.51.100.3"}, "198.51.100.3"},
		{"xff beats real ip", all, "10.1.1.1:5555", map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.3"}, "203.0.113.7"},
		{"remote addr fallback", all, "192.0.2.10:1234", nil, "192.0.2.10"},
		{"cidr trusted", lan, "10.2.3.4:80", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "203.0.113.7"},
		{"single ip trusted", lan, "192.168.1.1:80", map[string]string{"X-Real-IP": "203.0.113.8"}, "203.0.113.8"},
		{"untrusted peer ignores headers", lan, "192.0.2.10:1234", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "192.0.2.10"},
		{"nil trust ignores headers", nil, "192.0.2.10:1234", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "192.0.2.10"},
		{"empty xff hop falls through", all, "192.0.2.10:1234", map[string]string{"X-Forwarded-For": " , 10.0.0.1"}, "192.0.2.10"},
		{"ipv6 peer", nil, "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"no remote", nil, "", nil, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ResolveClientIP(req, tt.trust))
		})
	}
}

func TestClientIPMiddleware(t *testing.T) {
	trust, _ := NewProxyTrust([]string{"*"})
	var fromGin, fromCtx string
	r := gin.New()
	r.Use(ClientIP(trust))
	r.GET("/", func(c *gin.Context) {
		fromGin = GetClientIP(c)
		fromCtx, _ = logging.ClientIPFromContext(c.Request.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.50", fromGin)
	assert.Equal(t, "203.0.113.50", fromCtx)
}
