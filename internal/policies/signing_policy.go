package policies

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// SigningPolicy fixes the quorum parameters for publication signing:
// which authorizers may vote, how many approvals are needed, and how
// long a request may wait before it expires.
type SigningPolicy struct {
	Threshold   int
	Authorizers []string
	Deadline    time.Duration
}

// CeremonyPolicy governs key creation and revocation. These operations
// sit outside the normal request flow and require every participant.
type CeremonyPolicy struct {
	Participants []string
}

func NewSigningPolicy(threshold int, authorizers []string, deadline time.Duration) (SigningPolicy, error) {
	trimmed := make([]string, 0, len(authorizers))
	seen := map[string]struct{}{}
	for _, a := range authorizers {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			return SigningPolicy{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("duplicate authorizer: %s", a))
		}
		seen[a] = struct{}{}
		trimmed = append(trimmed, a)
	}
	if len(trimmed) == 0 {
		return SigningPolicy{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("signing policy requires at least one authorizer")
	}
	if threshold < 1 || threshold > len(trimmed) {
		return SigningPolicy{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("threshold %d out of range for %d authorizers", threshold, len(trimmed)))
	}
	if deadline <= 0 {
		return SigningPolicy{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("signing deadline must be positive")
	}
	return SigningPolicy{Threshold: threshold, Authorizers: trimmed, Deadline: deadline}, nil
}
