package models

import (
	"time"
)

const TokenTypeBearer = "Bearer"

type IssuedToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// LoginResult returned by password and federated logins
type LoginResult struct {
	Token     IssuedToken
	TokenType string
	ExpiresIn time.Duration
	Profile   Profile
}
