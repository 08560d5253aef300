package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

type AccessClaims struct {
	UserID    int64
	SID       string
	Role      string
	ExpiresAt time.Time
}

func (c AccessClaims) Identity() Identity {
	return Identity{
		UserID: c.UserID,
		SID:    c.SID,
		Role:   c.Role,
	}
}
