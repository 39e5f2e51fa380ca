package models

import (
	"strings"
	"time"

	dErrors "rollguard/pkg/domain-errors"
)

// LoginRequest is the operator login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.Username = strings.ToLower(strings.TrimSpace(r.Username))
	if r.Username == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "username and password are required")
	}
	return nil
}

// LoginResult carries the issued operator token.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Operator    Operator  `json:"user"`
}

type Operator struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}
