package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/printdispatch/internal/infrastructure/auth"
	"github.com/erp/printdispatch/internal/infrastructure/config"
	"github.com/erp/printdispatch/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestJWTAuth(t *testing.T) {
	svc := auth.NewJWTService(config.JWTConfig{
		Secret:          "test-secret-key-at-least-32-chars",
		Issuer:          "printd",
		TokenExpiration: time.Minute,
	})
	core, recorded := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(logger.GinMiddleware(zap.New(core)))
	r.Use(JWTAuth(svc))
	r.GET("/prints", func(c *gin.Context) {
		logger.FromContext(c.Request.Context()).Info("listing")
		c.String(http.StatusOK, GetJWTSubject(c))
	})

	serve := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/prints", nil)
		if header != "" {
			req.Header.Set(AuthHeaderKey, header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	errorCode := func(t *testing.T, w *httptest.ResponseRecorder) string {
		t.Helper()
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body.Error.Code
	}

	t.Run("valid token", func(t *testing.T) {
		token, _, err := svc.GenerateToken("erp-backend", 0)
		require.NoError(t, err)

		w := serve(BearerPrefix + token)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "erp-backend", w.Body.String())
		entries := recorded.FilterMessage("listing").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "erp-backend", entries[0].ContextMap()["subject"])
	})

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{name: "missing header", header: "", code: "ERR_INVALID_TOKEN"},
		{name: "not a bearer token", header: "Basic dXNlcjpwYXNz", code: "ERR_INVALID_TOKEN"},
		{name: "empty bearer token", header: BearerPrefix, code: "ERR_INVALID_TOKEN"},
		{name: "forged token", header: BearerPrefix + "a.b.c", code: "ERR_INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.header)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}
