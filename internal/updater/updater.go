package updater

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Kind is the closed set of version-rewrite strategies. Config uses string
// tags; anything unrecognized maps to KindUnsupported, which is reported as
// a skip rather than silently dropped.
type Kind int

const (
	KindUnsupported Kind = iota
	KindJSON
	KindText
	KindPython
	KindRegex
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindText:
		return "text"
	case KindPython:
		return "python"
	case KindRegex:
		return "custom-regex"
	default:
		return "unsupported"
	}
}

// ParseKind maps a config type tag to a Kind. "npm" is an alias for json
// since package.json is the common case.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "npm":
		return KindJSON
	case "text":
		return KindText
	case "python":
		return KindPython
	case "custom-regex":
		return KindRegex
	}
	return KindUnsupported
}

// Target is one configured file to rewrite.
type Target struct {
	Path    string
	Kind    Kind
	Pattern string
}

// Result reports what happened to one target. Skips are expected degraded
// outcomes, not errors: the release continues with the remaining targets.
type Result struct {
	Updated    bool
	SkipReason string
}

var (
	jsonVersionRe   = regexp.MustCompile(`("version"\s*:\s*")[^"]*(")`)
	pythonVersionRe = regexp.MustCompile(`(__version__\s*=\s*["'])[^"']*(["'])`)
)

// Apply rewrites the version string in one target file. Files are edited in
// place with a targeted regex so surrounding formatting survives; a missing
// file, an unsupported kind, or a custom-regex target without a pattern is a
// skip, never a failure.
func Apply(repoPath string, t Target, version string) (Result, error) {
	if t.Kind == KindUnsupported {
		return Result{SkipReason: "unsupported updater type"}, nil
	}
	if t.Kind == KindRegex && t.Pattern == "" {
		return Result{SkipReason: "custom-regex target has no pattern"}, nil
	}

	path := filepath.Join(repoPath, t.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{SkipReason: "file does not exist"}, nil
		}
		return Result{}, fmt.Errorf("read %s: %w", t.Path, err)
	}

	content := string(data)
	var next string
	switch t.Kind {
	case KindJSON:
		next = jsonVersionRe.ReplaceAllString(content, "${1}"+version+"${2}")
	case KindPython:
		next = pythonVersionRe.ReplaceAllString(content, "${1}"+version+"${2}")
	case KindText:
		next = version + "\n"
	case KindRegex:
		re, err := regexp.Compile(t.Pattern)
		if err != nil {
			return Result{SkipReason: fmt.Sprintf("invalid pattern: %v", err)}, nil
		}
		next = replaceVersionMatch(re, content, version)
	}

	if next == content {
		return Result{SkipReason: "no version string found"}, nil
	}
	if err := os.WriteFile(path, []byte(next), 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", t.Path, err)
	}
	return Result{Updated: true}, nil
}

// replaceVersionMatch swaps the version inside each match of a custom
// pattern. When the pattern has a capture group, only the first group is
// replaced; otherwise the whole match is.
func replaceVersionMatch(re *regexp.Regexp, content, version string) string {
	return re.ReplaceAllStringFunc(content, func(m string) string {
		idx := re.FindStringSubmatchIndex(m)
		if len(idx) >= 4 && idx[2] >= 0 {
			return m[:idx[2]] + version + m[idx[3]:]
		}
		return version
	})
}
