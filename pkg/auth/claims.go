package auth

import (
	"github.com/gasflowhq/gasflow-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID     uuid.UUID
	Role       enums.ActorRole
	CustomerID *uuid.UUID
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to clients. CustomerID is
// set only for self-service customer tokens.
type AccessTokenClaims struct {
	UserID     uuid.UUID       `json:"user_id"`
	Role       enums.ActorRole `json:"role"`
	CustomerID *uuid.UUID      `json:"customer_id,omitempty"`
	jwt.RegisteredClaims
}
