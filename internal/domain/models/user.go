package models

import "time"

// Role роль пользователя
type Role string

const (
	RoleUser    Role = "user"
	RoleSeller  Role = "seller"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

// User представляет пользователя
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	PassHash  []byte    `json:"-"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// HasRole проверяет, входит ли роль пользователя в список
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
