package services

import "github.com/postapi/postapi/models"

// Principal is the caller identity a request carries into the services.
// The zero value is the anonymous principal.
type Principal struct {
	UserID   uint
	Username string
	Role     string
	// Admin is set by the transport for usernames configured as administrators.
	Admin bool
}

// Anonymous returns the principal of an unauthenticated request.
func Anonymous() Principal { return Principal{} }

func (p Principal) Authenticated() bool { return p.UserID != 0 }

func (p Principal) IsAdmin() bool {
	return p.Authenticated() && (p.Admin || p.Role == models.RoleAdmin)
}

// Is reports whether the principal is the user with the given id.
func (p Principal) Is(userID uint) bool {
	return p.Authenticated() && p.UserID == userID
}

// mayModify is the author-or-admin rule for posts, comments and messages.
func (p Principal) mayModify(authorID *uint) bool {
	if p.IsAdmin() {
		return true
	}
	return authorID != nil && p.Is(*authorID)
}
