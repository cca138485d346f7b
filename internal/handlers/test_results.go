package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/utils"
)

// TestResultHandler handles test result requests.
type TestResultHandler struct {
	DB *gorm.DB
}

// NewTestResultHandler creates a new TestResultHandler.
func NewTestResultHandler(db *gorm.DB) *TestResultHandler {
	return &TestResultHandler{DB: db}
}

// CreateTestResultRequest represents the request body for ordering a test.
type CreateTestResultRequest struct {
	PatientID   string                  `json:"patientId" binding:"required"`
	DoctorID    string                  `json:"doctorId"`
	TestType    models.TestType         `json:"testType" binding:"required,oneof=BLOOD_TEST URINE_TEST X_RAY MRI CT_SCAN ULTRASOUND ECG EEG ALLERGY_TEST COVID_TEST"`
	TestDate    time.Time               `json:"testDate" binding:"required"`
	Status      models.TestResultStatus `json:"status" binding:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
	Description string                  `json:"description"`
	Results     string                  `json:"results"`
	Notes       string                  `json:"notes"`
}

// CreateTestResult records a test. Doctors record their own; admins name the doctor.
func (h *TestResultHandler) CreateTestResult(c *gin.Context) {
	var req CreateTestResultRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)

	doctorID := userID
	if role == models.RoleAdmin {
		if req.DoctorID == "" {
			utils.BadRequest(c, "doctorId is required")
			return
		}
		doctorID = req.DoctorID
	}

	db := h.DB.WithContext(c.Request.Context())
	var count int64
	if err := db.Model(&models.User{}).Where("id = ? AND role = ?", req.PatientID, models.RolePatient).Count(&count).Error; err != nil {
		internalError(c, err, "Database error")
		return
	}
	if count == 0 {
		utils.NotFound(c, "Patient not found")
		return
	}
	if err := db.Model(&models.User{}).Where("id = ? AND role = ?", doctorID, models.RoleDoctor).Count(&count).Error; err != nil {
		internalError(c, err, "Database error")
		return
	}
	if count == 0 {
		utils.NotFound(c, "Doctor not found")
		return
	}

	status := req.Status
	if status == "" {
		status = models.TestPending
	}
	result := models.TestResult{
		PatientID:   req.PatientID,
		DoctorID:    doctorID,
		TestType:    req.TestType,
		TestDate:    req.TestDate.UTC(),
		Status:      status,
		Description: req.Description,
		Results:     req.Results,
		Notes:       req.Notes,
	}
	if err := db.Create(&result).Error; err != nil {
		internalError(c, err, "Failed to create test result")
		return
	}

	utils.Created(c, "Test result created successfully", result)
}

// GetAllTestResults lists every test result (admin).
func (h *TestResultHandler) GetAllTestResults(c *gin.Context) {
	h.list(c, "")
}

// GetMyTestResults lists the authenticated patient's test results.
func (h *TestResultHandler) GetMyTestResults(c *gin.Context) {
	h.list(c, "patient_id = ?")
}

// GetDoctorTestResults lists the test results ordered by the authenticated doctor.
func (h *TestResultHandler) GetDoctorTestResults(c *gin.Context) {
	h.list(c, "doctor_id = ?")
}

func (h *TestResultHandler) list(c *gin.Context, where string) {
	q := h.DB.WithContext(c.Request.Context()).Preload("Patient").Preload("Doctor").Order("test_date desc")
	if where != "" {
		userID, _ := middleware.GetUserIDFromContext(c)
		q = q.Where(where, userID)
	}

	results := []models.TestResult{}
	if err := q.Find(&results).Error; err != nil {
		internalError(c, err, "Failed to fetch test results")
		return
	}
	utils.Success(c, "Test results fetched successfully", results)
}

// GetTestResultByID returns a result to an admin, the assigned doctor or the patient.
func (h *TestResultHandler) GetTestResultByID(c *gin.Context) {
	result, ok := h.find(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	if role != models.RoleAdmin && userID != result.DoctorID && userID != result.PatientID {
		utils.Forbidden(c, "Access denied")
		return
	}
	utils.Success(c, "Test result fetched successfully", result)
}

// UpdateTestResultRequest holds the fields a doctor may change.
type UpdateTestResultRequest struct {
	TestType    models.TestType         `json:"testType" binding:"omitempty,oneof=BLOOD_TEST URINE_TEST X_RAY MRI CT_SCAN ULTRASOUND ECG EEG ALLERGY_TEST COVID_TEST"`
	TestDate    *time.Time              `json:"testDate"`
	Status      models.TestResultStatus `json:"status" binding:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
	Description string                  `json:"description"`
	Results     string                  `json:"results"`
	Notes       string                  `json:"notes"`
}

// UpdateTestResult updates the non-empty fields. Only the assigned doctor or an admin may.
func (h *TestResultHandler) UpdateTestResult(c *gin.Context) {
	var req UpdateTestResultRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	result, ok := h.find(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	if role != models.RoleAdmin && userID != result.DoctorID {
		utils.Forbidden(c, "Access denied")
		return
	}

	if req.TestType != "" {
		result.TestType = req.TestType
	}
	if req.TestDate != nil {
		result.TestDate = req.TestDate.UTC()
	}
	if req.Status != "" {
		result.Status = req.Status
	}
	if req.Description != "" {
		result.Description = req.Description
	}
	if req.Results != "" {
		result.Results = req.Results
	}
	if req.Notes != "" {
		result.Notes = req.Notes
	}

	if err := h.DB.WithContext(c.Request.Context()).Omit("Patient", "Doctor").Save(result).Error; err != nil {
		internalError(c, err, "Failed to update test result")
		return
	}
	utils.Success(c, "Test result updated successfully", result)
}

// DeleteTestResult removes a test result (admin).
func (h *TestResultHandler) DeleteTestResult(c *gin.Context) {
	result, ok := h.find(c)
	if !ok {
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Delete(&models.TestResult{}, "id = ?", result.ID).Error; err != nil {
		internalError(c, err, "Failed to delete test result")
		return
	}
	utils.Success(c, "Test result deleted successfully", nil)
}

func (h *TestResultHandler) find(c *gin.Context) (*models.TestResult, bool) {
	var result models.TestResult
	err := h.DB.WithContext(c.Request.Context()).Preload("Patient").Preload("Doctor").
		First(&result, "id = ?", c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Test result not found")
		} else {
			internalError(c, err, "Database error")
		}
		return nil, false
	}
	return &result, true
}
