package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masa162/imgbase/internal/config"
	"github.com/masa162/imgbase/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(cfg config.AuthConfig) *gin.Engine {
	r := gin.New()
	r.GET("/private", BasicAuth(cfg), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func doAuth(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestBasicAuthAcceptsConfiguredCredentials(t *testing.T) {
	r := newAuthRouter(config.AuthConfig{Username: "admin", Password: "pa:ss"})

	w := doAuth(r, basic("admin", "pa:ss"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestBasicAuthChallenges(t *testing.T) {
	r := newAuthRouter(config.AuthConfig{Username: "admin", Password: "secret"})

	for name, header := range map[string]string{
		"missing":        "",
		"bearer":         "Bearer abc",
		"undecodable":    "Basic %%%",
		"empty password": basic("admin", ""),
		"empty user":     basic("", "secret"),
		"wrong password": basic("admin", "secreT"),
		"wrong user":     basic("Admin", "secret"),
		"longer":         basic("admin", "secret1"),
	} {
		t.Run(name, func(t *testing.T) {
			w := doAuth(r, header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, `Basic realm="imgbase", charset="UTF-8"`, w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestBasicAuthCustomRealm(t *testing.T) {
	r := newAuthRouter(config.AuthConfig{Realm: "gallery", Username: "admin", Password: "secret"})

	w := doAuth(r, "")
	assert.Equal(t, `Basic realm="gallery", charset="UTF-8"`, w.Header().Get("WWW-Authenticate"))
}

func TestBasicAuthUnconfigured(t *testing.T) {
	r := newAuthRouter(config.AuthConfig{Username: "admin"})

	w := doAuth(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doAuth(r, basic("admin", "anything"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "ServerMisconfigured")
}

func TestBasicAuthHashedPassword(t *testing.T) {
	hash, err := security.HashPasswordWithParams("secret", security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 16, SaltLen: 8})
	require.NoError(t, err)
	r := newAuthRouter(config.AuthConfig{Username: "admin", Password: hash})

	assert.Equal(t, http.StatusOK, doAuth(r, basic("admin", "secret")).Code)
	assert.Equal(t, http.StatusUnauthorized, doAuth(r, basic("admin", hash)).Code)
}
