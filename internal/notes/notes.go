package notes

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/madmti/release-kit/internal/commit"
	"github.com/madmti/release-kit/internal/semver"
)

// Build renders release notes for a batch of commits. Breaking changes come
// first, then one section per visible rule in declaration order. Hidden rules
// and rules with no matching commits produce no section; commits that match
// no rule stay unsectioned.
func Build(records []commit.Record, rules []commit.Rule) string {
	var b strings.Builder

	var breaking []string
	for _, r := range records {
		if r.Breaking {
			breaking = append(breaking, r.Subject)
		}
	}
	writeSection(&b, "Breaking Changes", breaking)

	for _, rule := range rules {
		if rule.Hidden {
			continue
		}
		var subjects []string
		for _, r := range records {
			if r.Type == rule.Type {
				subjects = append(subjects, r.Subject)
			}
		}
		writeSection(&b, rule.Section, subjects)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, heading string, subjects []string) {
	if len(subjects) == 0 {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, s := range subjects {
		fmt.Fprintf(b, "- %s\n", s)
	}
}

// ChangelogEntry formats one changelog entry: a version header with the ISO
// release date, then the notes body.
func ChangelogEntry(version semver.Version, body string, date time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", version, date.Format("2006-01-02"))
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String()
}

// Prepend writes an entry to the top of the changelog file, keeping the
// existing content untouched below it. A missing file is created. History is
// never rewritten or reordered.
func Prepend(path, entry string) error {
	prior, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read changelog: %w", err)
	}
	content := entry
	if len(prior) > 0 {
		content = entry + "\n" + string(prior)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write changelog: %w", err)
	}
	return nil
}
