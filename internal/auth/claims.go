package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	// TokenTypeAccess is a short-lived operator token for the ops API.
	TokenTypeAccess TokenType = "access"
	// TokenTypeService is minted by tlctl for automation with an explicit TTL.
	TokenTypeService TokenType = "service"
)

// Claims are the only supported JWT claims shape for the ops API.
// Call records carry no tenant, so WorkspaceID does not filter reads: it is
// required by rbac.RequireWorkspace and attributes each request in the logs.
type Claims struct {
	jwt.RegisteredClaims

	OperatorID  string    `json:"operator_id"`
	WorkspaceID string    `json:"workspace_id"`
	Role        string    `json:"role"`
	TokenType   TokenType `json:"token_type"`
}

func (c Claims) Identity() Identity {
	return Identity{OperatorID: c.OperatorID, WorkspaceID: c.WorkspaceID, Role: c.Role}
}
