package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/utils"
)

// UserHandler handles user-related requests (typically admin operations).
type UserHandler struct {
	DB *gorm.DB
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{DB: db}
}

// CreateUserRequest represents the request body for creating a user by an admin.
type CreateUserRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	INN       string `json:"inn" binding:"required,numeric,len=12"`
	Phone     string `json:"phone" binding:"required"`
	Password  string `json:"password" binding:"required,min=6"`
	Role      string `json:"role" binding:"required,oneof=PATIENT DOCTOR ADMIN"`
}

// CreateUser handles creating a new user (admin).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
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

	utils.Created(c, "User created successfully", user.Sanitize())
}

// GetUsers handles fetching all users (admin).
func (h *UserHandler) GetUsers(c *gin.Context) {
	h.listByRole(c, "", "Users fetched successfully")
}

// GetPatients lists all patients. Doctors use it to pick a patient for a test.
func (h *UserHandler) GetPatients(c *gin.Context) {
	h.listByRole(c, models.RolePatient, "Patients fetched successfully")
}

func (h *UserHandler) listByRole(c *gin.Context, role models.Role, message string) {
	q := h.DB.WithContext(c.Request.Context()).Order("last_name asc, first_name asc")
	if role != "" {
		q = q.Where("role = ?", role)
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		internalError(c, err, "Failed to fetch users")
		return
	}

	sanitized := make([]models.UserSanitized, len(users))
	for i := range users {
		sanitized[i] = users[i].Sanitize()
	}
	utils.Success(c, message, sanitized)
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, ok := h.find(c)
	if !ok {
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// UpdateUserRequest represents the request body for updating a user by an admin.
type UpdateUserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" binding:"omitempty,email"`
	INN       string `json:"inn" binding:"omitempty,numeric,len=12"`
	Phone     string `json:"phone"`
	Role      string `json:"role" binding:"omitempty,oneof=PATIENT DOCTOR ADMIN"`
}

// UpdateUser handles updating a user by ID (admin).
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, ok := h.find(c)
	if !ok {
		return
	}

	if req.Email != "" || req.INN != "" {
		taken, err := identityTaken(h.DB.WithContext(c.Request.Context()), req.Email, req.INN, user.ID)
		if err != nil {
			internalError(c, err, "Database error")
			return
		}
		if taken {
			utils.BadRequest(c, "Email or INN is already in use")
			return
		}
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.INN != "" {
		user.INN = req.INN
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.Role != "" {
		user.Role = models.ParseRole(req.Role)
	}

	if err := h.DB.WithContext(c.Request.Context()).Save(user).Error; err != nil {
		internalError(c, err, "Failed to update user")
		return
	}

	utils.Success(c, "User updated successfully", user.Sanitize())
}

// DeleteUser handles deleting a user by ID (admin).
func (h *UserHandler) DeleteUser(c *gin.Context) {
	user, ok := h.find(c)
	if !ok {
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.DoctorProfile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", user.ID).Error
	})
	if err != nil {
		internalError(c, err, "Failed to delete user")
		return
	}

	utils.Success(c, "User deleted successfully", nil)
}

func (h *UserHandler) find(c *gin.Context) (*models.User, bool) {
	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			internalError(c, err, "Database error")
		}
		return nil, false
	}
	return &user, true
}

// identityTaken reports whether another user than exceptID already uses the
// email or INN. Empty values are ignored.
func identityTaken(db *gorm.DB, email, inn, exceptID string) (bool, error) {
	q := db.Model(&models.User{})
	switch {
	case email != "" && inn != "":
		q = q.Where("email = ? OR inn = ?", email, inn)
	case email != "":
		q = q.Where("email = ?", email)
	case inn != "":
		q = q.Where("inn = ?", inn)
	default:
		return false, nil
	}
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
