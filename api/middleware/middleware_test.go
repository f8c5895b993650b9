package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
)

func newSecuredRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecretKeyAuthMiddleware())
	r.GET("/admin/queue", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestSecretKeyAuthMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		secretKey    string
		clientKey    string
		expectedCode int
	}{
		{
			name:         "Valid key",
			secretKey:    "master-key",
			clientKey:    "master-key",
			expectedCode: http.StatusOK,
		},
		{
			name:         "Missing key",
			secretKey:    "master-key",
			clientKey:    "",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "Wrong key",
			secretKey:    "master-key",
			clientKey:    "other-key",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "Secret not configured",
			secretKey:    "",
			clientKey:    "master-key",
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config.MockConfig(&config.Configuration{
				Server: config.ServerConfig{Secure: true, SecretKey: tt.secretKey},
			})

			router := newSecuredRouter()
			req := httptest.NewRequest("GET", "/admin/queue", nil)
			if tt.clientKey != "" {
				req.Header.Set("X-Bot-Key", tt.clientKey)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestTelegramSecretMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{SecretKey: "hook-secret"},
	})

	r := gin.New()
	r.Use(TelegramSecretMiddleware())
	r.POST("/webhook/telegram", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest("POST", "/webhook/telegram", nil)
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "hook-secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("POST", "/webhook/telegram", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(&config.Configuration{}))
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 20; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
