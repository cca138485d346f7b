package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"clinic-booking-server/internal/events"
	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/repository"
	"clinic-booking-server/internal/scheduling"
	"clinic-booking-server/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	DB        *gorm.DB
	Repo      *repository.AppointmentRepository
	Guard     *scheduling.Guard
	Planner   *scheduling.Planner
	Publisher events.Publisher
	Now       func() time.Time
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB, repo *repository.AppointmentRepository, guard *scheduling.Guard, planner *scheduling.Planner, publisher events.Publisher) *AppointmentHandler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &AppointmentHandler{
		DB:        db,
		Repo:      repo,
		Guard:     guard,
		Planner:   planner,
		Publisher: publisher,
		Now:       time.Now,
	}
}

// GetAvailableSlots returns the doctor's slots for the week starting at ?date=.
func (h *AppointmentHandler) GetAvailableSlots(c *gin.Context) {
	ctx := c.Request.Context()
	doctorID := c.Param("doctorId")

	if ok := h.requireUser(c, doctorID, models.RoleDoctor, "Doctor not found"); !ok {
		return
	}

	anchor, err := scheduling.ParseAnchorDate(c.Query("date"), h.Planner.Location(), h.Now())
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	from, to := h.Planner.Window(anchor)
	existing, err := h.Repo.FindAppointments(ctx, doctorID, from, to)
	if err != nil {
		internalError(c, err, "Failed to get available slots")
		return
	}

	plan, err := h.Planner.Plan(doctorID, anchor, existing)
	if err != nil {
		h.bookingError(c, err, "Failed to get available slots")
		return
	}
	utils.Success(c, "Available slots fetched successfully", plan)
}

// CreateAppointmentRequest represents the request body for creating an appointment.
type CreateAppointmentRequest struct {
	DoctorID   string `json:"doctorId" binding:"required"`
	TimeSlotID string `json:"timeSlotId" binding:"required"`
	// PatientID is honoured for admins only; patients always book for themselves.
	PatientID string `json:"patientId"`
	Notes     string `json:"notes"`
}

// CreateAppointment books a slot through the booking guard.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)

	patientID := userID
	if role == models.RoleAdmin {
		if req.PatientID == "" {
			utils.BadRequest(c, "patientId is required when booking on behalf of a patient")
			return
		}
		patientID = req.PatientID
	} else if req.PatientID != "" && req.PatientID != userID {
		utils.Forbidden(c, "Patients can only book appointments for themselves.")
		return
	}

	at, ok := h.slotTime(c, req.TimeSlotID)
	if !ok {
		return
	}

	if ok := h.requireUser(c, req.DoctorID, models.RoleDoctor, "Doctor not found"); !ok {
		return
	}
	if ok := h.requireUser(c, patientID, models.RolePatient, "Patient not found"); !ok {
		return
	}

	appt, err := h.Guard.Book(c.Request.Context(), scheduling.BookingRequest{
		DoctorID:        req.DoctorID,
		PatientID:       patientID,
		AppointmentDate: at,
		Notes:           req.Notes,
	})
	if err != nil {
		h.bookingError(c, err, "Failed to create appointment")
		return
	}

	h.publish(c, events.FromAppointment(events.AppointmentCreated, appt))
	utils.Created(c, "Appointment created successfully", appt)
}

// GetMyAppointments lists the authenticated patient's appointments.
func (h *AppointmentHandler) GetMyAppointments(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	appointments, err := h.Repo.ListByPatient(c.Request.Context(), userID)
	if err != nil {
		internalError(c, err, "Failed to fetch appointments")
		return
	}
	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetDoctorAppointments lists the authenticated doctor's appointments.
func (h *AppointmentHandler) GetDoctorAppointments(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	appointments, err := h.Repo.ListByDoctor(c.Request.Context(), userID)
	if err != nil {
		internalError(c, err, "Failed to fetch appointments")
		return
	}
	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAllAppointments lists every appointment (admin).
func (h *AppointmentHandler) GetAllAppointments(c *gin.Context) {
	appointments, err := h.Repo.ListAll(c.Request.Context())
	if err != nil {
		internalError(c, err, "Failed to fetch appointments")
		return
	}
	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by involved patient, doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointment, ok := h.load(c)
	if !ok {
		return
	}

	if !involved(c, appointment) {
		utils.Forbidden(c, "You are not authorized to view this appointment")
		return
	}

	utils.Success(c, "Appointment fetched successfully", appointment)
}

// UpdateAppointmentStatusRequest represents the request body for updating an appointment's status.
type UpdateAppointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required,oneof=PENDING CONFIRMED CANCELLED COMPLETED"`
	Notes  string                   `json:"notes"`
}

// UpdateAppointmentStatus moves an appointment to a new status. Doctors and
// admins may apply any legal transition; patients may only cancel their own.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appointment, ok := h.load(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)

	switch {
	case role == models.RoleAdmin:
	case role == models.RoleDoctor && userID == appointment.DoctorID:
	case role == models.RolePatient && userID == appointment.PatientID:
		if req.Status != models.StatusCancelled {
			utils.Forbidden(c, "Patients can only cancel appointments.")
			return
		}
	default:
		utils.Forbidden(c, "You are not authorized to update this appointment's status.")
		return
	}

	h.changeStatus(c, appointment, req.Status, req.Notes, "Appointment status updated successfully")
}

// CancelAppointment cancels an appointment of the authenticated patient, or any appointment for admins.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	appointment, ok := h.load(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	if role != models.RoleAdmin && userID != appointment.PatientID {
		utils.NotFound(c, "Appointment not found")
		return
	}

	h.changeStatus(c, appointment, models.StatusCancelled, "", "Appointment cancelled successfully")
}

func (h *AppointmentHandler) changeStatus(c *gin.Context, appointment *models.Appointment, to models.AppointmentStatus, notes, message string) {
	previous := appointment.Status
	updated, err := h.Repo.UpdateStatus(c.Request.Context(), appointment.ID, to, notes)
	if err != nil {
		h.bookingError(c, err, "Failed to update appointment status")
		return
	}

	e := events.FromAppointment(events.AppointmentStatusChanged, updated)
	e.PreviousStatus = previous
	h.publish(c, e)
	utils.Success(c, message, updated)
}

// RescheduleAppointmentRequest represents the request body for rescheduling an appointment.
type RescheduleAppointmentRequest struct {
	TimeSlotID string `json:"timeSlotId" binding:"required"`
}

// RescheduleAppointment moves an appointment to another slot of the same doctor.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appointment, ok := h.load(c)
	if !ok {
		return
	}
	if !involved(c, appointment) {
		utils.Forbidden(c, "You are not authorized to reschedule this appointment.")
		return
	}

	at, ok := h.slotTime(c, req.TimeSlotID)
	if !ok {
		return
	}

	moved, err := h.Guard.Reschedule(c.Request.Context(), appointment.ID, appointment.DoctorID, at)
	if err != nil {
		h.bookingError(c, err, "Failed to reschedule appointment")
		return
	}

	h.publish(c, events.FromAppointment(events.AppointmentRescheduled, moved))
	utils.Success(c, "Appointment rescheduled successfully", moved)
}

// slotTime parses a slot id and writes a 400 unless it names a slot the
// planner offers.
func (h *AppointmentHandler) slotTime(c *gin.Context, id string) (time.Time, bool) {
	at, err := scheduling.ParseSlotID(id, h.Planner.Location())
	if err != nil {
		utils.BadRequest(c, err.Error())
		return time.Time{}, false
	}
	if !h.Planner.OnGrid(at) {
		utils.BadRequest(c, "Time slot is outside of working hours")
		return time.Time{}, false
	}
	return at, true
}

func (h *AppointmentHandler) load(c *gin.Context) (*models.Appointment, bool) {
	appointment, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			internalError(c, err, "Failed to fetch appointment")
		}
		return nil, false
	}
	return appointment, true
}

// requireUser writes a 404 unless a user with the given id and role exists.
func (h *AppointmentHandler) requireUser(c *gin.Context, id string, role models.Role, notFound string) bool {
	var user models.User
	err := h.DB.WithContext(c.Request.Context()).Where("id = ? AND role = ?", id, role).First(&user).Error
	switch {
	case err == nil:
		return true
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.NotFound(c, notFound)
	default:
		internalError(c, err, "Database error")
	}
	return false
}

func (h *AppointmentHandler) publish(c *gin.Context, e events.Event) {
	// Detached so a client disconnect does not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
	defer cancel()
	if err := h.Publisher.Publish(ctx, e); err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).
			Str("event", string(e.Type)).
			Str("appointment_id", e.AppointmentID).
			Msg("failed to publish appointment event")
	}
}

func (h *AppointmentHandler) bookingError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, scheduling.ErrSlotAlreadyBooked), errors.Is(err, repository.ErrConflict):
		utils.BadRequest(c, "This time slot is already booked")
	case errors.Is(err, scheduling.ErrSlotBeingBooked):
		utils.Conflict(c, err.Error())
	case errors.Is(err, scheduling.ErrInvalidInput), errors.Is(err, repository.ErrInvalidTransition):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		utils.NotFound(c, "Appointment not found")
	default:
		internalError(c, err, fallback)
	}
}

func internalError(c *gin.Context, err error, message string) {
	zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg(message)
	utils.InternalServerError(c, message)
}

func involved(c *gin.Context, appointment *models.Appointment) bool {
	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	return role == models.RoleAdmin || userID == appointment.PatientID || userID == appointment.DoctorID
}
