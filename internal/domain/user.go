package domain

// Role represents a user's role for authorization purposes.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleTeam  Role = "team"
)

// IsValid checks if the role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTeam:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// User is a dashboard user. TeamID is set only for team members.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	TeamID string `json:"teamId,omitempty"`
}

// IsAdmin reports whether the user may edit scores
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// LoginRequest is the body of a login call
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the session credential
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
