package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Role names the operator capability carried in a token.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// IsValid reports whether the role is known.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleViewer
}

// CanManage reports whether the role may change engagement definitions.
func (r Role) CanManage() bool {
	return r == RoleAdmin
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID int64
	Role   Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to operators.
type AccessTokenClaims struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
	jwt.RegisteredClaims
}
