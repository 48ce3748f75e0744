// Package domain contains entity without logic, just meta-data
package domain

const RoleAdmin = "admin"

type UserID string

// User is the application record a verified subject resolves to.
type User struct {
	ID         UserID `json:"id"`
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	Active     bool   `json:"is_active"`
}

// Identity is what the identity provider vouches for after verifying a token.
type Identity struct {
	Subject string
	Claims  map[string]any
}

// Roles derives role strings from boolean claims.
func (i Identity) Roles() []string {
	var roles []string
	if admin, ok := i.Claims[RoleAdmin].(bool); ok && admin {
		roles = append(roles, RoleAdmin)
	}
	return roles
}
