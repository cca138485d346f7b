package models

// Specialization of a doctor profile.
type Specialization string

const (
	SpecTherapist       Specialization = "therapist"
	SpecCardiologist    Specialization = "cardiologist"
	SpecNeurologist     Specialization = "neurologist"
	SpecPediatrician    Specialization = "pediatrician"
	SpecSurgeon         Specialization = "surgeon"
	SpecDentist         Specialization = "dentist"
	SpecOphthalmologist Specialization = "ophthalmologist"
	SpecDermatologist   Specialization = "dermatologist"
	SpecPsychiatrist    Specialization = "psychiatrist"
	SpecEndocrinologist Specialization = "endocrinologist"
)

// Specializations is the full list, in display order.
var Specializations = []Specialization{
	SpecTherapist, SpecCardiologist, SpecNeurologist, SpecPediatrician, SpecSurgeon,
	SpecDentist, SpecOphthalmologist, SpecDermatologist, SpecPsychiatrist, SpecEndocrinologist,
}

// DoctorProfile holds the public profile of a user with the doctor role.
type DoctorProfile struct {
	BaseModel
	UserID         string         `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	Specialization Specialization `gorm:"size:32;index" json:"specialization"`
	Education      string         `gorm:"type:text" json:"education"`
	Experience     string         `gorm:"type:text" json:"experience"`
	Description    string         `gorm:"type:text" json:"description"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// DoctorView is the API representation of a doctor profile.
type DoctorView struct {
	ID             string         `json:"id"`
	User           UserSanitized  `json:"user"`
	Specialization Specialization `json:"specialization"`
	Education      string         `json:"education"`
	Experience     string         `json:"experience"`
	Description    string         `json:"description"`
}

// View flattens the profile and its preloaded user.
func (d *DoctorProfile) View() DoctorView {
	return DoctorView{
		ID:             d.ID,
		User:           d.User.Sanitize(),
		Specialization: d.Specialization,
		Education:      d.Education,
		Experience:     d.Experience,
		Description:    d.Description,
	}
}
