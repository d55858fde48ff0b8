package models

import "time"

type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleFarmer UserRole = "FARMER"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:180;not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;size:180;not null" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"` // never serialized
	Role         UserRole  `gorm:"type:text;not null;default:'FARMER'" json:"role"`
	Phone        string    `gorm:"size:60" json:"phone,omitempty"`
	Village      string    `gorm:"size:120" json:"village,omitempty"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FarmerIdentity is the read-only projection of a User attached to
// collections and payments (id/name/email only).
type FarmerIdentity struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u User) Identity() FarmerIdentity {
	return FarmerIdentity{ID: u.ID, Name: u.Name, Email: u.Email}
}
