package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/utils"
)

const refreshCookie = "refresh_token"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB  *gorm.DB
	Cfg *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg}
}

// RegisterRequest represents the request body for user registration.
// Self-registration can create patients and doctors, never admins.
type RegisterRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	INN       string `json:"inn" binding:"required,numeric,len=12"`
	Phone     string `json:"phone" binding:"required"`
	Password  string `json:"password" binding:"required,min=6"`
	Role      string `json:"role" binding:"omitempty,oneof=patient doctor PATIENT DOCTOR"`
}

// Register handles user registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	taken, err := identityTaken(h.DB.WithContext(c.Request.Context()), req.Email, req.INN, "")
	if err != nil {
		internalError(c, err, "Database error")
		return
	}
	if taken {
		utils.BadRequest(c, "User with this email or INN already exists")
		return
	}

	user := models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		INN:       req.INN,
		Phone:     req.Phone,
		Role:      models.ParseRole(req.Role),
	}

	if err := user.SetPassword(req.Password); err != nil {
		internalError(c, err, "Failed to hash password")
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		internalError(c, err, "Failed to create user")
		return
	}

	utils.Created(c, "User registered successfully", user.Sanitize())
}

// LoginRequest represents the request body for user login.
// Identifier is either the email or the INN.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	err := h.DB.WithContext(c.Request.Context()).
		Where("email = ? OR inn = ?", req.Identifier, req.Identifier).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid credentials")
		} else {
			internalError(c, err, "Database error")
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid credentials")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(c, h.DB, &user)
	if err != nil {
		internalError(c, err, "Failed to generate tokens")
		return
	}

	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Sanitize(),
	})
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken exchanges a refresh token for a new token pair. The presented
// token is revoked.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	presented, err := c.Cookie(refreshCookie)
	if err != nil || presented == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		presented = req.RefreshToken
	}

	claims, err := utils.ValidateToken(presented, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token: "+err.Error())
		return
	}

	var user models.User
	var accessToken, refresh string
	err = h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var stored models.RefreshToken
		if err := tx.Where("token = ? AND user_id = ?", presented, claims.UserID).First(&stored).Error; err != nil {
			return err
		}
		if !stored.Active(time.Now()) {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Model(&stored).Update("is_revoked", true).Error; err != nil {
			return err
		}
		if err := tx.First(&user, "id = ?", claims.UserID).Error; err != nil {
			return err
		}

		var err error
		accessToken, refresh, err = h.issueTokens(c, tx, &user)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		} else {
			internalError(c, err, "Failed to refresh token")
		}
		return
	}

	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refresh,
	})
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout revokes the presented refresh token. Unknown tokens are not an error.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(refreshCookie)
	}
	if req.RefreshToken == "" {
		utils.BadRequest(c, "Refresh token is required")
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Model(&models.RefreshToken{}).
		Where("token = ? AND is_revoked = ?", req.RefreshToken, false).
		Updates(map[string]interface{}{"is_revoked": true, "expires_at": time.Now()}).Error
	if err != nil {
		internalError(c, err, "Failed to revoke refresh token")
		return
	}

	c.SetCookie(refreshCookie, "", -1, "/", "", h.Cfg.Environment != "development", true)
	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating user profile.
// Email and INN identify the user and change only through the admin API.
type UpdateProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// UpdateProfile handles updating the currently authenticated user's profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}

	if err := h.DB.WithContext(c.Request.Context()).Save(user).Error; err != nil {
		internalError(c, err, "Failed to update profile")
		return
	}

	utils.Success(c, "Profile updated successfully", user.Sanitize())
}

func (h *AuthHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return nil, false
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User profile not found")
		} else {
			internalError(c, err, "Database error")
		}
		return nil, false
	}
	return &user, true
}

// issueTokens signs a token pair, stores the refresh token and sets it as an
// HTTP-only cookie.
func (h *AuthHandler) issueTokens(c *gin.Context, db *gorm.DB, user *models.User) (string, string, error) {
	accessToken, refreshToken, err := utils.GenerateTokens(user, h.Cfg)
	if err != nil {
		return "", "", err
	}

	ttl := utils.RefreshTTL(h.Cfg)
	stored := models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := db.WithContext(c.Request.Context()).Create(&stored).Error; err != nil {
		return "", "", err
	}

	c.SetCookie(refreshCookie, refreshToken, int(ttl.Seconds()), "/", "", h.Cfg.Environment != "development", true)
	return accessToken, refreshToken, nil
}
