package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CreateUserRequest registers a new user account.
type CreateUserRequest struct {
	ID         int64    `json:"cwid" validate:"required,gt=0"`
	FirstName  string   `json:"first_name" validate:"required"`
	MiddleName string   `json:"middle_name"`
	LastName   string   `json:"last_name" validate:"required"`
	Username   string   `json:"username" validate:"required,min=3,max=64"`
	Password   string   `json:"password" validate:"required,min=6"`
	Role       UserRole `json:"role" validate:"required,oneof=student instructor registrar"`
}

// AuthenticateRequest holds credentials for authenticating a user.
type AuthenticateRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse returns the issued access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	User        UserInfo  `json:"user"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   int64    `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}
