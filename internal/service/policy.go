package service

import (
	"fmt"
	"strings"

	"github.com/fjod/go_cart/order-service/internal/domain"
)

// StatusPolicy decides which admin status changes are accepted.
type StatusPolicy string

const (
	// StatusPolicyFree accepts any known status.
	StatusPolicyFree StatusPolicy = "free"
	// StatusPolicyStrict accepts only edges of the order state machine.
	StatusPolicyStrict StatusPolicy = "strict"
)

func ParseStatusPolicy(s string) (StatusPolicy, error) {
	switch p := StatusPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", StatusPolicyFree:
		return StatusPolicyFree, nil
	case StatusPolicyStrict:
		return StatusPolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown status policy %q", s)
	}
}

func (p StatusPolicy) Allows(from, to domain.OrderStatus) bool {
	if p == StatusPolicyStrict {
		return from.CanTransitionTo(to)
	}
	return to.IsValid()
}
