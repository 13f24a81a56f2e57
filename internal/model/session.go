// Package model defines the domain models of the console.
package model

import (
	"fmt"
	"time"
)

// Role is the access role carried by a backend account.
type Role string

const (
	// RoleAdmin can manage the driver registry and issue stickers.
	RoleAdmin Role = "admin"
	// RoleUser can browse and file stolen-vehicle reports.
	RoleUser Role = "user"
	// RoleDriver can view their own driver profile.
	RoleDriver Role = "driver"
)

// ParseRole validates a role string received from the backend.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleUser, RoleDriver:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// Session is the console-held record of who is logged in and with what role.
// The invariant is all-or-nothing: Token, Username and Role are either all
// set (authenticated) or all empty (anonymous). There is no partial session.
type Session struct {
	ID        string
	Token     string
	Username  string
	Role      Role
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Authenticated reports whether the session holds a complete identity.
func (s *Session) Authenticated() bool {
	if s == nil {
		return false
	}
	return s.Token != "" && s.Username != "" && s.Role != ""
}

// Valid reports whether the session is complete and not expired.
func (s *Session) Valid(now time.Time) bool {
	return s.Authenticated() && now.Before(s.ExpiresAt)
}

// Credentials is a transient username/password pair. It is used for exactly
// one login attempt and is never persisted or logged.
type Credentials struct {
	Username string
	Password string
}
