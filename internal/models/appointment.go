package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusCompleted AppointmentStatus = "COMPLETED"
)

// transitions lists the statuses reachable from each status.
// COMPLETED and CANCELLED are terminal.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is one of the known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s AppointmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Appointment represents a scheduled medical appointment
type Appointment struct {
	BaseModel
	PatientID       string            `gorm:"size:36;index" json:"patientId"`
	DoctorID        string            `gorm:"size:36;index:idx_appointments_doctor_date" json:"doctorId"`
	AppointmentDate time.Time         `gorm:"not null;index:idx_appointments_doctor_date" json:"appointmentDate"`
	Status          AppointmentStatus `gorm:"size:20;default:'PENDING'" json:"status"`
	Notes           string            `gorm:"type:text" json:"notes,omitempty"`

	// Relations
	Patient *User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  *User `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

// BookedSlot claims a doctor's timestamp for exactly one confirmed appointment.
// The composite primary key is the storage-level guarantee against double booking.
type BookedSlot struct {
	DoctorID      string    `gorm:"primaryKey;size:36"`
	SlotTime      time.Time `gorm:"primaryKey"`
	AppointmentID string    `gorm:"size:36;uniqueIndex;not null"`
	CreatedAt     time.Time
}
