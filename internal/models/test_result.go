package models

import (
	"time"
)

// TestType is the kind of lab or imaging test.
type TestType string

const (
	TestBlood      TestType = "BLOOD_TEST"
	TestUrine      TestType = "URINE_TEST"
	TestXRay       TestType = "X_RAY"
	TestMRI        TestType = "MRI"
	TestCTScan     TestType = "CT_SCAN"
	TestUltrasound TestType = "ULTRASOUND"
	TestECG        TestType = "ECG"
	TestEEG        TestType = "EEG"
	TestAllergy    TestType = "ALLERGY_TEST"
	TestCovid      TestType = "COVID_TEST"
)

// TestResultStatus represents the processing state of a test
type TestResultStatus string

const (
	TestPending    TestResultStatus = "PENDING"
	TestInProgress TestResultStatus = "IN_PROGRESS"
	TestCompleted  TestResultStatus = "COMPLETED"
	TestCancelled  TestResultStatus = "CANCELLED"
)

// TestResult represents a test ordered by a doctor for a patient
type TestResult struct {
	BaseModel
	PatientID   string           `gorm:"size:36;index" json:"patientId"`
	DoctorID    string           `gorm:"size:36;index" json:"doctorId"`
	TestType    TestType         `gorm:"size:32;not null" json:"testType"`
	TestDate    time.Time        `json:"testDate"`
	Status      TestResultStatus `gorm:"size:20;default:'PENDING'" json:"status"`
	Description string           `gorm:"type:text" json:"description,omitempty"`
	Results     string           `gorm:"type:text" json:"results,omitempty"`
	Notes       string           `gorm:"type:text" json:"notes,omitempty"`

	// Relations
	Patient *User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  *User `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}
