package types

import "time"

// KeyRecord describes one key in the hierarchy. Handle is an opaque
// reference into the vault; no type in this package can carry private
// key bytes.
type KeyRecord struct {
	ID        string     `json:"id"`
	Role      KeyRole    `json:"role"`
	Handle    string     `json:"handle"`
	ParentID  string     `json:"parent_id,omitempty"`
	PublicKey string     `json:"public_key"`
	State     KeyState   `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// AuthorizationRecord is one party's vote toward a signing quorum.
// BoundDigest ties the vote to the exact artifact digest; Proof is the
// authorizer's signature over request ID, digest and decision.
type AuthorizationRecord struct {
	ID           string       `json:"id"`
	RequestID    string       `json:"request_id"`
	AuthorizerID string       `json:"authorizer_id"`
	Decision     VoteDecision `json:"decision"`
	BoundDigest  string       `json:"bound_digest"`
	Proof        string       `json:"proof,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// SigningRequest binds a consensus decision to a target key and the
// votes collected so far. One outstanding request per artifact digest.
type SigningRequest struct {
	ID             string                `json:"id"`
	JobID          string                `json:"job_id"`
	ArtifactDigest string                `json:"artifact_digest"`
	KeyID          string                `json:"key_id"`
	Threshold      int                   `json:"threshold"`
	Required       []string              `json:"required"`
	State          RequestState          `json:"state"`
	Reason         string                `json:"reason,omitempty"`
	Votes          []AuthorizationRecord `json:"votes,omitempty"`
	Signature      string                `json:"signature,omitempty"`
	Deadline       time.Time             `json:"deadline"`
	CreatedAt      time.Time             `json:"created_at"`
}

// Approvals counts approve votes bound to the request's digest.
func (r SigningRequest) Approvals() int {
	n := 0
	for _, v := range r.Votes {
		if v.Decision == VoteApprove && v.BoundDigest == r.ArtifactDigest {
			n++
		}
	}
	return n
}

// HasVoted reports whether the authorizer already cast a vote.
func (r SigningRequest) HasVoted(authorizerID string) bool {
	for _, v := range r.Votes {
		if v.AuthorizerID == authorizerID {
			return true
		}
	}
	return false
}
