package models

// UserRole gates mutating endpoints.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleInvestor UserRole = "investor"
)

// IsValid reports whether r is a known role.
func (r UserRole) IsValid() bool {
	return r == RoleAdmin || r == RoleInvestor
}

// User represents the user model in the database
type User struct {
	Base
	Email    string   `gorm:"uniqueIndex;not null" json:"email"`
	Password string   `gorm:"not null" json:"-"`
	Name     string   `gorm:"not null" json:"name"`
	Role     UserRole `gorm:"type:varchar(16);not null;default:investor" json:"role"`
	Wallet   *Wallet  `gorm:"foreignKey:UserID" json:"wallet,omitempty"`
}
