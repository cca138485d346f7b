package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
	}
}

func TestGenerateTokens(t *testing.T) {
	cfg := testConfig()
	user := &models.User{Role: models.RoleDoctor}
	user.ID = "U1"

	access, refresh, err := GenerateTokens(user, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	claims, err := ValidateToken(access, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "U1", claims.UserID)
	assert.Equal(t, models.RoleDoctor, claims.Role)

	_, err = ValidateToken(access, cfg.JWTRefreshSecret)
	assert.Error(t, err)

	claims, err = ValidateToken(refresh, cfg.JWTRefreshSecret)
	require.NoError(t, err)
	assert.Equal(t, "U1", claims.Subject)

	_, again, err := GenerateTokens(user, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, refresh, again)
}

type bindRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func TestBindAndValidate(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		ok     bool
		expect string
	}{
		{"valid", `{"email":"a@b.co","password":"secret1"}`, true, ""},
		{"missing email", `{"password":"secret1"}`, false, "email is a required field"},
		{"short password", `{"email":"a@b.co","password":"123"}`, false, "password must be at least 6 characters"},
		{"malformed", `{"email":`, false, "Invalid request payload"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req bindRequest
			assert.Equal(t, tc.ok, BindAndValidate(c, &req))
			if tc.ok {
				return
			}

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp ResponseData
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tc.expect)
		})
	}
}

func TestErrorResponsesStopTheChain(t *testing.T) {
	router := gin.New()
	reached := false
	router.GET("/",
		func(c *gin.Context) {
			c.Header(RequestIDHeader, "req-42")
			Conflict(c, "slot is being booked")
		},
		func(c *gin.Context) { reached = true },
	)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, reached)
	assert.Equal(t, http.StatusConflict, w.Code)
	var resp ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ResponseData{
		Status:    http.StatusConflict,
		Message:   "An error occurred",
		Error:     "slot is being booked",
		RequestID: "req-42",
	}, resp)
}

func TestSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Created(c, "created", map[string]string{"id": "a1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"status":201,"message":"created","data":{"id":"a1"}}`, w.Body.String())
}
