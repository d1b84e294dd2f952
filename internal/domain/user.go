package domain

import (
	"strings"
)

// Roles, broadest first.
const (
	RoleAdmin       = "admin"
	RoleDnsZoneMgmt = "dnszone-mgmt"
	RoleSubnetMgmt  = "subnet-mgmt"
	RoleUser        = "user"
	RoleGuest       = "guest"
)

var roleRank = map[string]int{
	RoleAdmin:       4,
	RoleDnsZoneMgmt: 3,
	RoleSubnetMgmt:  2,
	RoleUser:        1,
	RoleGuest:       0,
}

// User is a local or directory-backed account. Directory accounts carry
// an empty password and authenticate through LDAP.
type User struct {
	Base
	Username string `gorm:"not null;size:255" json:"username"`
	Fullname string `gorm:"not null;default:'';size:255" json:"fullname"`
	Email    string `gorm:"not null;default:'';size:255" json:"email"`
	Password string `gorm:"not null;default:'';size:255" json:"-"`
	Role     string `gorm:"not null;default:'guest';size:20" json:"role"`
}

func (User) TableName() string { return "users" }
func (u *User) Kind() Kind     { return KindUser }

func (u *User) DisplayName() string {
	if u.Fullname != "" {
		return u.Fullname
	}
	return u.Username
}

func (u *User) Fields() map[string]any {
	return map[string]any{
		"username": u.Username,
		"fullname": u.Fullname,
		"email":    u.Email,
		"role":     u.Role,
		"notes":    u.Notes,
		"status":   u.Status.String(),
		"owner_id": refValue(u.OwnerID),
	}
}

func (u *User) Validate() error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	if u.Username == "" {
		return NewValidationError("username", "username is required")
	}
	if u.Email != "" && !strings.Contains(u.Email, "@") {
		return NewValidationError("email", "invalid email address")
	}
	if u.Role == "" {
		u.Role = RoleGuest
	}
	if _, ok := roleRank[u.Role]; !ok {
		return NewValidationError("role", "unknown role %q", u.Role)
	}
	return nil
}

// HasRole reports whether the user's role grants at least the given
// role's privileges. The two management roles are not ordered against
// each other; each also satisfies plain user access.
func (u *User) HasRole(role string) bool {
	if u.Role == role || u.Role == RoleAdmin {
		return true
	}
	switch role {
	case RoleUser, RoleGuest:
		return roleRank[u.Role] >= roleRank[role]
	}
	return false
}
