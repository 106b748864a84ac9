package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"webhook-relay/internal/core/ports"
	"webhook-relay/pkg/apperror"
)

// OperatorAuthService implements ports.AuthService against a single operator
// account held in configuration. The internal API has no user store; the
// operator credential pair is provisioned at deploy time.
type OperatorAuthService struct {
	username     string
	passwordHash string
	hashSvc      ports.HashService
	tokenSvc     ports.TokenService
}

// NewOperatorAuthService creates a new OperatorAuthService.
func NewOperatorAuthService(username, passwordHash string, hashSvc ports.HashService, tokenSvc ports.TokenService) *OperatorAuthService {
	return &OperatorAuthService{
		username:     username,
		passwordHash: passwordHash,
		hashSvc:      hashSvc,
		tokenSvc:     tokenSvc,
	}
}

// Login validates operator credentials and returns a JWT token.
func (s *OperatorAuthService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1

	// Always run the password check so a wrong username does not return
	// measurably faster than a wrong password.
	valid, err := s.hashSvc.Verify(password, s.passwordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !usernameOK || !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(s.username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}
