package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/utils"
)

// DoctorHandler serves doctor profiles.
type DoctorHandler struct {
	DB *gorm.DB
}

func NewDoctorHandler(db *gorm.DB) *DoctorHandler {
	return &DoctorHandler{DB: db}
}

// GetSpecializations lists the specializations a profile may have.
func (h *DoctorHandler) GetSpecializations(c *gin.Context) {
	utils.Success(c, "Specializations fetched successfully", models.Specializations)
}

// GetDoctors lists doctor profiles, optionally filtered by ?specialization=.
func (h *DoctorHandler) GetDoctors(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Preload("User").Order("created_at asc")
	if spec := c.Query("specialization"); spec != "" {
		if !validSpecialization(models.Specialization(spec)) {
			utils.BadRequest(c, "Invalid specialization")
			return
		}
		q = q.Where("specialization = ?", spec)
	}

	var profiles []models.DoctorProfile
	if err := q.Find(&profiles).Error; err != nil {
		internalError(c, err, "Failed to fetch doctors")
		return
	}

	views := make([]models.DoctorView, len(profiles))
	for i := range profiles {
		views[i] = profiles[i].View()
	}
	utils.Success(c, "Doctors fetched successfully", views)
}

// GetDoctorByID accepts either the profile id or the doctor's user id.
func (h *DoctorHandler) GetDoctorByID(c *gin.Context) {
	profile, ok := h.find(c, c.Param("id"))
	if !ok {
		return
	}
	utils.Success(c, "Doctor fetched successfully", profile.View())
}

// CreateDoctorRequest promotes an existing user to a doctor.
type CreateDoctorRequest struct {
	UserID         string                `json:"userId" binding:"required"`
	Specialization models.Specialization `json:"specialization" binding:"required,oneof=therapist cardiologist neurologist pediatrician surgeon dentist ophthalmologist dermatologist psychiatrist endocrinologist"`
	Education      string                `json:"education" binding:"required"`
	Experience     string                `json:"experience" binding:"required"`
	Description    string                `json:"description" binding:"required"`
}

// CreateDoctor creates a profile for the user and gives them the DOCTOR role.
func (h *DoctorHandler) CreateDoctor(c *gin.Context) {
	var req CreateDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	profile := models.DoctorProfile{
		UserID:         req.UserID,
		Specialization: req.Specialization,
		Education:      req.Education,
		Experience:     req.Experience,
		Description:    req.Description,
	}

	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&profile.User, "id = ?", req.UserID).Error; err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&models.DoctorProfile{}).Where("user_id = ?", req.UserID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return gorm.ErrDuplicatedKey
		}
		if err := tx.Model(&profile.User).Update("role", models.RoleDoctor).Error; err != nil {
			return err
		}
		profile.User.Role = models.RoleDoctor
		return tx.Omit("User").Create(&profile).Error
	})
	switch {
	case err == nil:
		utils.Created(c, "Doctor created successfully", profile.View())
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.NotFound(c, "User not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		utils.BadRequest(c, "User already has a doctor profile")
	default:
		internalError(c, err, "Failed to create doctor")
	}
}

// UpdateDoctorRequest holds the profile fields an admin may change.
type UpdateDoctorRequest struct {
	Specialization models.Specialization `json:"specialization" binding:"omitempty,oneof=therapist cardiologist neurologist pediatrician surgeon dentist ophthalmologist dermatologist psychiatrist endocrinologist"`
	Education      string                `json:"education"`
	Experience     string                `json:"experience"`
	Description    string                `json:"description"`
}

// UpdateDoctor updates the non-empty fields of a profile.
func (h *DoctorHandler) UpdateDoctor(c *gin.Context) {
	var req UpdateDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	profile, ok := h.find(c, c.Param("id"))
	if !ok {
		return
	}

	if req.Specialization != "" {
		profile.Specialization = req.Specialization
	}
	if req.Education != "" {
		profile.Education = req.Education
	}
	if req.Experience != "" {
		profile.Experience = req.Experience
	}
	if req.Description != "" {
		profile.Description = req.Description
	}

	if err := h.DB.WithContext(c.Request.Context()).Omit("User").Save(profile).Error; err != nil {
		internalError(c, err, "Failed to update doctor")
		return
	}
	utils.Success(c, "Doctor updated successfully", profile.View())
}

// DeleteDoctor removes the profile and demotes the user to PATIENT.
// Existing appointments are kept.
func (h *DoctorHandler) DeleteDoctor(c *gin.Context) {
	profile, ok := h.find(c, c.Param("id"))
	if !ok {
		return
	}

	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.DoctorProfile{}, "id = ?", profile.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", profile.UserID).Update("role", models.RolePatient).Error
	})
	if err != nil {
		internalError(c, err, "Failed to delete doctor")
		return
	}
	utils.Success(c, "Doctor deleted successfully", nil)
}

func (h *DoctorHandler) find(c *gin.Context, id string) (*models.DoctorProfile, bool) {
	var profile models.DoctorProfile
	err := h.DB.WithContext(c.Request.Context()).Preload("User").
		Where("id = ? OR user_id = ?", id, id).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			internalError(c, err, "Database error")
		}
		return nil, false
	}
	return &profile, true
}

func validSpecialization(s models.Specialization) bool {
	for _, known := range models.Specializations {
		if s == known {
			return true
		}
	}
	return false
}
