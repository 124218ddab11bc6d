package generator

import (
	"fmt"
	"sort"
	"strings"
)

const systemPrompt = `You are an automated software engineer. You receive a repository ` +
	`description and a change request, and you answer with complete file contents.

Rules:
- Start with a one-paragraph summary of what you changed and why.
- Then output every touched file as a fenced code block whose info string is ` +
	"`file=<path>`" + `, for example:

` + "```file=src/app.py\nprint(\"hello\")\n```" + `

- Each block must contain the COMPLETE new content of that file, not a diff.
- Only touch files the request actually needs. Never touch secrets, keys or CI credentials.
- Paths are relative to the repository root.`

const maxPromptFiles = 200

// buildPrompt renders the repository context and the change request
// into the user message.
func buildPrompt(req *Request) string {
	var b strings.Builder

	b.WriteString("## Repository\n\n")
	if s := req.Summary; s != nil {
		fmt.Fprintf(&b, "Name: %s\n", s.FullName)
		if s.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", s.Description)
		}
		fmt.Fprintf(&b, "Default branch: %s\n", s.DefaultBranch)
		if len(s.Languages) > 0 {
			fmt.Fprintf(&b, "Languages: %s\n", joinLanguages(s.Languages))
		}
		if len(s.Frameworks) > 0 {
			fmt.Fprintf(&b, "Frameworks: %s\n", strings.Join(s.Frameworks, ", "))
		}

		if len(s.Files) > 0 {
			b.WriteString("\n## Files\n\n")
			files := s.Files
			if len(files) > maxPromptFiles {
				files = files[:maxPromptFiles]
			}
			for _, f := range files {
				fmt.Fprintf(&b, "- %s\n", f)
			}
			if len(s.Files) > maxPromptFiles {
				fmt.Fprintf(&b, "- ... and %d more\n", len(s.Files)-maxPromptFiles)
			}
		}

		if s.Readme != "" {
			b.WriteString("\n## README excerpt\n\n")
			b.WriteString(s.Readme)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n## Change request\n\n")
	b.WriteString(req.UserRequest)
	b.WriteString("\n")

	return b.String()
}

// joinLanguages lists languages largest first.
func joinLanguages(langs map[string]int) string {
	names := make([]string, 0, len(langs))
	for name := range langs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if langs[names[i]] != langs[names[j]] {
			return langs[names[i]] > langs[names[j]]
		}
		return names[i] < names[j]
	})
	return strings.Join(names, ", ")
}
