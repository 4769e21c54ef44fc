// internal/account/domain.go
package account

// Role values returned by the backend.
const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

// User is the signed-in identity. It is passed explicitly through every
// purchase flow.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
