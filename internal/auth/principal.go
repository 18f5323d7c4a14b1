package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of account kinds.
type Role uint8

const (
	RolePatient Role = iota + 1
	RoleDoctor
)

func (r Role) String() string {
	switch r {
	case RolePatient:
		return "patient"
	case RoleDoctor:
		return "doctor"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "patient":
		return RolePatient, nil
	case "doctor":
		return RoleDoctor, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsDoctor() bool {
	switch p.Role {
	case RoleDoctor:
		return true
	case RolePatient:
		return false
	default:
		return false
	}
}

func (p Principal) IsPatient() bool {
	switch p.Role {
	case RolePatient:
		return true
	case RoleDoctor:
		return false
	default:
		return false
	}
}

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
