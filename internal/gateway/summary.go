package gateway

import (
	"sort"
	"strings"
)

// manifestFrameworks maps well-known manifest files to the toolchain
// they indicate.
var manifestFrameworks = map[string]string{
	"go.mod":           "Go modules",
	"package.json":     "Node.js",
	"requirements.txt": "Python packaging",
	"pyproject.toml":   "Python packaging",
	"setup.py":         "Python packaging",
	"cargo.toml":       "Rust crates",
	"pom.xml":          "Maven",
	"build.gradle":     "Gradle",
	"build.gradle.kts": "Gradle",
	"gemfile":          "Bundler",
	"composer.json":    "Composer",
	"dockerfile":       "Docker",
	"makefile":         "Make",
}

// detectFrameworks inspects root-level manifests and a few well-known
// paths to describe what the repository is built with.
func detectFrameworks(files []string) []string {
	found := make(map[string]bool)
	for _, f := range files {
		if fw, ok := manifestFrameworks[strings.ToLower(f)]; ok {
			found[fw] = true
		}
		if strings.HasPrefix(f, ".github/workflows/") {
			found["GitHub Actions"] = true
		}
		if strings.HasPrefix(f, "docker-compose") {
			found["Docker Compose"] = true
		}
	}

	frameworks := make([]string, 0, len(found))
	for fw := range found {
		frameworks = append(frameworks, fw)
	}
	sort.Strings(frameworks)
	return frameworks
}
