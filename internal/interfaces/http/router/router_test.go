package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRouter_Setup(t *testing.T) {
	engine := NewEngine(EngineConfig{Mode: gin.TestMode}, zap.NewNop())

	group := NewDomainGroup("things", "/things")
	group.GET("", func(c *gin.Context) { c.String(http.StatusOK, "list") })
	group.POST("", func(c *gin.Context) { c.String(http.StatusCreated, "created") })
	group.GET("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

	NewRouter(engine, WithAPIVersion("v2")).Register(group).Setup()

	tests := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{http.MethodGet, "/api/v2/things", http.StatusOK, "list"},
		{http.MethodPost, "/api/v2/things", http.StatusCreated, "created"},
		{http.MethodGet, "/api/v2/things/42", http.StatusOK, "42"},
		{http.MethodGet, "/api/v1/things", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestDomainGroup(t *testing.T) {
	group := NewDomainGroup("prints", "/prints")
	assert.Equal(t, "prints", group.Name())
	assert.Equal(t, "/prints", group.Prefix())
}
