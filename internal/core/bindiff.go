package core

import "reprosign/internal/types"

// maxDiffRanges caps the number of byte ranges recorded per report so
// a pathological disagreement cannot balloon the decision record.
const maxDiffRanges = 64

// DiffArtifacts computes a byte-range delta summary between two
// artifacts. The summary is diagnostic only; it is never used to merge
// or repair outputs.
func DiffArtifacts(idA, idB string, a, b []byte) types.DiffReport {
	report := types.DiffReport{
		ResultA:   idA,
		ResultB:   idB,
		SizeDelta: int64(len(b)) - int64(len(a)),
	}

	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}

	inRange := false
	var start int
	for i := 0; i < limit; i++ {
		if a[i] != b[i] {
			if !inRange {
				inRange = true
				start = i
			}
			continue
		}
		if inRange {
			inRange = false
			report.Ranges = append(report.Ranges, types.ByteRange{
				Offset: int64(start),
				Length: int64(i - start),
			})
			if len(report.Ranges) >= maxDiffRanges {
				report.TruncatedAt = i
				return report
			}
		}
	}
	if inRange {
		report.Ranges = append(report.Ranges, types.ByteRange{
			Offset: int64(start),
			Length: int64(limit - start),
		})
	}
	// Tail bytes beyond the shorter artifact are one trailing range.
	if len(a) != len(b) && len(report.Ranges) < maxDiffRanges {
		longer := len(a)
		if len(b) > longer {
			longer = len(b)
		}
		report.Ranges = append(report.Ranges, types.ByteRange{
			Offset: int64(limit),
			Length: int64(longer - limit),
		})
	}
	return report
}
