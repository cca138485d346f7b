package models

import (
	"time"
)

// RefreshToken is an issued refresh JWT. Rotation revokes the previous row.
type RefreshToken struct {
	BaseModel
	UserID    string    `gorm:"size:36;index" json:"userId"`
	Token     string    `gorm:"type:text;not null" json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsRevoked bool      `gorm:"default:false" json:"isRevoked"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// Active reports whether the token can still be exchanged at the given time.
func (t *RefreshToken) Active(at time.Time) bool {
	return !t.IsRevoked && at.Before(t.ExpiresAt)
}
