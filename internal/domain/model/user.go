package model

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal is the authenticated caller as read from the bearer token. Accounts themselves
// live in the auth service.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
