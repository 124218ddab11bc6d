package generator

import (
	"regexp"
	"strings"

	"github.com/forgeops/autopr/internal/apperr"
)

var (
	fencePattern = regexp.MustCompile("(?s)```([^\n]*)\n(.*?)```")

	// First-line path header inside a block whose info string carries
	// no file= marker, e.g. "# path: src/app.py" or "// file: main.go".
	headerPattern = regexp.MustCompile(`^(?:#|//|--|;)\s*(?:path|file)\s*:\s*(\S+)\s*$`)
)

// parseResult extracts the proposed files from a model response. The
// prose before the first fenced block becomes the change summary.
// Duplicate paths keep the last occurrence; models repeat a file when
// they correct themselves.
func parseResult(text string) (*Result, error) {
	matches := fencePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil, apperr.New(apperr.CodeGeneration, "model response contained no file blocks").
			WithDetail("response_length", len(text))
	}

	summary := strings.TrimSpace(text[:matches[0][0]])

	byPath := make(map[string]int)
	var files []ProposedFile
	for _, m := range matches {
		info := strings.TrimSpace(text[m[2]:m[3]])
		body := text[m[4]:m[5]]

		path, body := blockPath(info, body)
		if path == "" {
			continue
		}

		file := ProposedFile{
			Path:    path,
			Content: normalizeContent(body),
			Summary: firstLine(summary),
		}
		if i, seen := byPath[path]; seen {
			files[i] = file
			continue
		}
		byPath[path] = len(files)
		files = append(files, file)
	}

	if len(files) == 0 {
		return nil, apperr.New(apperr.CodeGeneration, "model response contained no usable file paths")
	}

	return &Result{Files: files, Summary: summary}, nil
}

// blockPath resolves the path of one fenced block: a file= token in
// the info string wins, otherwise a path header on the first body line
// is consumed.
func blockPath(info, body string) (string, string) {
	for _, token := range strings.Fields(info) {
		if p, ok := strings.CutPrefix(token, "file="); ok {
			return strings.Trim(p, `"'`), body
		}
	}

	line, rest, found := strings.Cut(body, "\n")
	if m := headerPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
		if found {
			return m[1], rest
		}
		return m[1], ""
	}

	return "", body
}

func normalizeContent(body string) string {
	body = strings.TrimRight(body, "\n")
	if body == "" {
		return ""
	}
	return body + "\n"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
