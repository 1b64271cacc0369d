package usecase

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// CheckTextDiff returns the lines that changed between two rendered CHECK
// texts, prefixed with "-" for removed and "+" for added lines.
func CheckTextDiff(before, after string) []string {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var changed []string
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			changed = append(changed, prefix+line)
		}
	}
	return changed
}
