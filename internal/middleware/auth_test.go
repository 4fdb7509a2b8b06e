package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/renthive/renthive-backend/internal/models"
	"github.com/renthive/renthive-backend/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware("secret"), func(c *gin.Context) {
		c.JSON(200, gin.H{"id": c.GetUint("userId"), "type": c.GetString("userType")})
	})
	r.POST("/listings", AuthMiddleware("secret"), RequireUserType(models.UserTypeVendor), func(c *gin.Context) {
		c.Status(201)
	})
	return r
}

func token(t *testing.T, id uint, userType models.UserType) string {
	t.Helper()
	tok, err := utils.GenerateToken(&models.User{Model: gorm.Model{ID: id}, UserType: userType}, "secret")
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/me", nil))
	assert.Equal(t, 401, w.Code)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 401, w.Code)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 5, models.UserTypeLessor))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"id":5,"type":"lessor"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/me?token="+token(t, 6, models.UserTypeVendor), nil))
	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"id":6,"type":"vendor"}`, w.Body.String())
}

func TestRequireUserType(t *testing.T) {
	r := newRouter()

	req := httptest.NewRequest("POST", "/listings", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 5, models.UserTypeLessor))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest("POST", "/listings", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 6, models.UserTypeVendor))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	r.GET("/health", func(c *gin.Context) { c.Status(200) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"path":"/health"`)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
