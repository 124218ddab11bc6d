package gitutil

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ChangeType classifies what a diff represents.
type ChangeType string

const (
	ChangeCreate   ChangeType = "create"
	ChangeModify   ChangeType = "modify"
	ChangeDelete   ChangeType = "delete"
	ChangeNoChange ChangeType = "no_change"
)

// FileDiff is the line-oriented diff between an original and a proposed
// version of one file.
type FileDiff struct {
	Path       string
	Type       ChangeType
	Additions  int
	Deletions  int
	Text       string
	HasChanges bool
}

// CalculateDiff computes the line diff between original and proposed
// content. A missing side is treated as empty, so pure creates and
// deletes fall out naturally. Identical inputs yield an empty diff, and
// repeated calls on the same inputs produce identical output.
func CalculateDiff(original, proposed, path string) *FileDiff {
	d := &FileDiff{Path: path, Type: classifyChange(original, proposed)}
	if d.Type == ChangeNoChange {
		return d
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // unbounded: determinism over speed

	src, dst, lines := dmp.DiffLinesToChars(original, proposed)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(src, dst, false), lines)

	var b strings.Builder
	for _, diff := range diffs {
		prefix := " "
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}

		for _, line := range splitLines(diff.Text) {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteByte('\n')
			switch diff.Type {
			case diffmatchpatch.DiffInsert:
				d.Additions++
			case diffmatchpatch.DiffDelete:
				d.Deletions++
			}
		}
	}

	d.Text = b.String()
	d.HasChanges = d.Additions+d.Deletions > 0
	return d
}

func classifyChange(original, proposed string) ChangeType {
	switch {
	case original == "" && proposed != "":
		return ChangeCreate
	case original != "" && proposed == "":
		return ChangeDelete
	case original != proposed:
		return ChangeModify
	default:
		return ChangeNoChange
	}
}

func splitLines(text string) []string {
	trimmed := strings.TrimSuffix(text, "\n")
	if trimmed == "" && text == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
