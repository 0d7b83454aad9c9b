package transform

import (
	"fmt"
	"sort"

	"github.com/signalize/signalize/internal/ir"
)

// edit replaces src[start:end) with text. Insertions have start == end. All
// edits are expressed against the original byte offsets and applied in one
// pass, so no pass ever scans another pass's output.
type edit struct {
	start, end int
	text       string
}

// applyEdits rewrites src left to right. Edits must not overlap; edits at
// the same start keep their arrival order. Violations are bugs in the pass
// that emitted the edits and surface as *ir.GenError.
func applyEdits(src []byte, edits []edit) ([]byte, error) {
	if len(edits) == 0 {
		return src, nil
	}
	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	out := make([]byte, 0, len(src)+len(src)/4)
	pos := 0
	for _, e := range sorted {
		if e.start < pos {
			return nil, &ir.GenError{Decl: "edit plan", Reason: fmt.Sprintf("overlapping edits at byte %d", e.start)}
		}
		if e.end < e.start || e.end > len(src) {
			return nil, &ir.GenError{Decl: "edit plan", Reason: fmt.Sprintf("edit out of range [%d:%d)", e.start, e.end)}
		}
		out = append(out, src[pos:e.start]...)
		out = append(out, e.text...)
		pos = e.end
	}
	return append(out, src[pos:]...), nil
}
