package model

import "time"

// User accounts for every role (table users)
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Username     string `gorm:"type:varchar(150);not null;uniqueIndex"         json:"username"`
	Email        string `gorm:"type:varchar(255);not null"                     json:"email"`
	FirstName    string `gorm:"type:varchar(100)"                              json:"first_name"`
	LastName     string `gorm:"type:varchar(100)"                              json:"last_name"`
	Phone        string `gorm:"type:varchar(30)"                               json:"phone,omitempty"`
	PasswordHash string `gorm:"type:varchar(255);not null"                     json:"-"`
	Role         string `gorm:"type:varchar(20);not null;default:'student'"    json:"role"` // student | teacher | administrator | company
	IsActive     bool   `gorm:"not null;default:true"                          json:"is_active"`
	// LastLoginAt is nil until the first successful login.
	LastLoginAt *time.Time `gorm:"type:timestamptz" json:"last_login_at,omitempty"`
	SoftDeleteModel
}

// TableName overrides the table name.
func (User) TableName() string { return "users" }

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}
