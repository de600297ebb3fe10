package app

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"reprosign/internal/core"
	"reprosign/internal/types"
)

// AuditRange returns a window of the audit log by sequence number.
func (s *Service) AuditRange(ctx context.Context, in AuditRangeRequest) ([]types.AuditEntry, error) {
	return s.Audit.Range(ctx, in.FromSeq, in.ToSeq)
}

// VerifyAuditChain replays a window of the audit log and checks every
// entry's seal and back-link. With from <= 1 the whole chain back to
// genesis is verified.
func (s *Service) VerifyAuditChain(ctx context.Context, fromSeq, toSeq uint64) (int, error) {
	entries, err := s.Audit.Range(ctx, fromSeq, toSeq)
	if err != nil {
		return 0, err
	}
	if fromSeq <= 1 && len(entries) > 0 {
		if entries[0].Seq != 1 || entries[0].PrevHash != types.GenesisHash {
			return len(entries), errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("audit chain does not start at genesis")
		}
	}
	if err := core.VerifyChain(entries); err != nil {
		return len(entries), err
	}
	return len(entries), nil
}
