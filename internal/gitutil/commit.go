package gitutil

import (
	"fmt"
	"strings"
)

// maxSubjectLength bounds the commit subject line. Longer summaries are
// truncated, never rejected.
const maxSubjectLength = 72

// BuildCommitMessage renders the fixed commit template: an imperative
// subject line, a blank line, then a bulleted list of touched files.
func BuildCommitMessage(summary string, files []string) string {
	subject := strings.TrimSpace(strings.SplitN(summary, "\n", 2)[0])
	if subject == "" {
		subject = defaultSubject(len(files))
	}
	if len(subject) > maxSubjectLength {
		subject = strings.TrimSpace(subject[:maxSubjectLength-3]) + "..."
	}

	var b strings.Builder
	b.WriteString(subject)
	if len(files) > 0 {
		b.WriteString("\n\n")
		for i, f := range files {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("- ")
			b.WriteString(f)
		}
	}
	return b.String()
}

func defaultSubject(fileCount int) string {
	if fileCount == 1 {
		return "Update 1 file"
	}
	return fmt.Sprintf("Update %d files", fileCount)
}
