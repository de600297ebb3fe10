package policies

import (
	"crypto/subtle"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"reprosign/internal/types"
)

// AuthorityPolicy maps suspension authority tokens to the identities
// allowed to pull or reinstate artifacts. Separation of duties: these
// tokens are distinct from the publication quorum, so the party that
// can emergency-pull an artifact need not be one that approved it.
type AuthorityPolicy struct {
	tokens map[string]string // token -> authority name
}

func NewAuthorityPolicy(tokens map[string]string) AuthorityPolicy {
	clean := make(map[string]string, len(tokens))
	for token, name := range tokens {
		token = strings.TrimSpace(token)
		name = strings.TrimSpace(name)
		if token == "" || name == "" {
			continue
		}
		clean[token] = name
	}
	return AuthorityPolicy{tokens: clean}
}

// Authorize resolves a presented token to an authority name. Constant
// time comparison per candidate token.
func (p AuthorityPolicy) Authorize(token string) (string, error) {
	for candidate, name := range p.tokens {
		if len(candidate) == len(token) &&
			subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return name, nil
		}
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodePermissionDenied).
		WithMsg(types.ReasonAuthorityRequired)
}
