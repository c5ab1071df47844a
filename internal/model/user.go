package model

import "strings"

// Role is the flat permission level attached to a user account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSpecial Role = "special"
	RoleNormal  Role = "normal"
)

// ParseRole normalizes a stored role string. The second return value reports
// whether the input named one of the known roles.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleSpecial:
		return RoleSpecial, true
	case RoleNormal:
		return RoleNormal, true
	}
	return "", false
}

// User is one account in the users collection. Passwords are stored and
// compared in plaintext, matching the behaviour of the system this replaces.
type User struct {
	Email    string `json:"email"`
	Password string `json:"-"`
	Role     Role   `json:"role"`
}
