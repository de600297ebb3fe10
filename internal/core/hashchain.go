package core

import (
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"reprosign/internal/shared"
	"reprosign/internal/types"
)

// EntryHash computes the linkage hash of an audit entry: the canonical
// JSON digest of the entry with its own Hash field blanked. PrevHash is
// part of the hashed content, which is what chains the entries.
func EntryHash(entry types.AuditEntry) (string, error) {
	entry.Hash = ""
	return shared.CanonicalDigest(entry)
}

// SealEntry fills in PrevHash and Hash for a new entry following prev.
// For the genesis entry pass a zero-value predecessor.
func SealEntry(entry types.AuditEntry, prev types.AuditEntry) (types.AuditEntry, error) {
	if prev.Hash == "" {
		entry.PrevHash = types.GenesisHash
		entry.Seq = 1
	} else {
		entry.PrevHash = prev.Hash
		entry.Seq = prev.Seq + 1
	}
	h, err := EntryHash(entry)
	if err != nil {
		return types.AuditEntry{}, err
	}
	entry.Hash = h
	return entry, nil
}

// VerifyChain recomputes every entry's linkage hash and checks the
// predecessor links. Any discrepancy is tampering and is a hard
// failure; the chain is never auto-repaired.
func VerifyChain(entries []types.AuditEntry) error {
	prevHash := ""
	var prevSeq uint64
	for i, entry := range entries {
		want, err := EntryHash(entry)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("audit entry %d: hash recomputation failed", entry.Seq)).
				WithCause(err)
		}
		if want != entry.Hash {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("audit entry %d: stored hash does not match content", entry.Seq))
		}
		if i == 0 {
			prevHash = entry.Hash
			prevSeq = entry.Seq
			continue
		}
		if entry.PrevHash != prevHash {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("audit entry %d: broken link to predecessor", entry.Seq))
		}
		if entry.Seq != prevSeq+1 {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("audit entry %d: sequence gap after %d", entry.Seq, prevSeq))
		}
		prevHash = entry.Hash
		prevSeq = entry.Seq
	}
	return nil
}
