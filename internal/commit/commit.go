package commit

import (
	"regexp"
	"strings"

	"github.com/madmti/release-kit/internal/semver"
)

// Rule maps a conventional-commit type tag to a changelog section and a bump
// level. Rules are evaluated in declaration order; the first rule whose tag
// matches a commit wins.
type Rule struct {
	Type    string
	Section string
	Bump    semver.Bump
	Hidden  bool
}

// Record is a single commit message plus the fields derived from it.
type Record struct {
	Subject  string `json:"subject"`
	Body     string `json:"body,omitempty"`
	Type     string `json:"type,omitempty"`
	Breaking bool   `json:"breaking,omitempty"`
}

var (
	subjectRe      = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9_-]*)(\(.+\))?(!)?:`)
	breakingFooter = "BREAKING CHANGE"
)

// ParseMessage derives a Record from a full commit message. The first line is
// the subject; the remainder is the body searched for a BREAKING CHANGE
// footer. A "!" between the type segment and the colon also marks the commit
// breaking, regardless of how its type is configured.
func ParseMessage(message string, rules []Rule) Record {
	subject, body, _ := strings.Cut(strings.TrimSpace(message), "\n")
	rec := Record{Subject: strings.TrimSpace(subject), Body: strings.TrimSpace(body)}

	m := subjectRe.FindStringSubmatch(rec.Subject)
	if m != nil {
		if m[3] == "!" {
			rec.Breaking = true
		}
		for _, r := range rules {
			if r.Type == m[1] {
				rec.Type = m[1]
				break
			}
		}
	}
	for _, line := range strings.Split(rec.Body, "\n") {
		if strings.HasPrefix(line, breakingFooter) {
			rec.Breaking = true
			break
		}
	}
	return rec
}

// ParseAll derives records for a batch of messages, preserving order.
func ParseAll(messages []string, rules []Rule) []Record {
	records := make([]Record, 0, len(messages))
	for _, m := range messages {
		records = append(records, ParseMessage(m, rules))
	}
	return records
}

// Classify reduces a batch of records to a single bump level. Any breaking
// commit short-circuits to major; the breaking override is hardcoded and not
// rule-configurable. Otherwise each level is tried from major down: the tags
// of all rules configured at that level form one anchored alternation, and
// the first level with a matching subject wins. No match means no release.
func Classify(records []Record, rules []Rule) semver.Bump {
	if len(records) == 0 {
		return semver.BumpNone
	}
	for _, r := range records {
		if r.Breaking {
			return semver.BumpMajor
		}
	}
	rules = dedupe(rules)
	for _, level := range []semver.Bump{semver.BumpMajor, semver.BumpMinor, semver.BumpPatch} {
		re := levelPattern(rules, level)
		if re == nil {
			continue
		}
		for _, r := range records {
			if re.MatchString(r.Subject) {
				return level
			}
		}
	}
	return semver.BumpNone
}

// dedupe keeps only the first rule for each type tag. Duplicate tags are a
// config validation error, but if one slips through, declaration order wins
// rather than whichever level happens to be scanned first.
func dedupe(rules []Rule) []Rule {
	seen := make(map[string]bool, len(rules))
	out := rules[:0:0]
	for _, r := range rules {
		if seen[r.Type] {
			continue
		}
		seen[r.Type] = true
		out = append(out, r)
	}
	return out
}

func levelPattern(rules []Rule, level semver.Bump) *regexp.Regexp {
	var tags []string
	for _, r := range rules {
		if r.Bump == level {
			tags = append(tags, regexp.QuoteMeta(r.Type))
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return regexp.MustCompile(`^(` + strings.Join(tags, "|") + `)(\(.+\))?:`)
}

// DefaultRules is the conventional-commit rule set used when the config file
// does not declare its own.
func DefaultRules() []Rule {
	return []Rule{
		{Type: "feat", Section: "Features", Bump: semver.BumpMinor},
		{Type: "fix", Section: "Bug Fixes", Bump: semver.BumpPatch},
		{Type: "perf", Section: "Performance", Bump: semver.BumpPatch},
		{Type: "revert", Section: "Reverts", Bump: semver.BumpPatch},
		{Type: "docs", Section: "Documentation", Bump: semver.BumpNone, Hidden: true},
		{Type: "refactor", Section: "Refactoring", Bump: semver.BumpNone, Hidden: true},
		{Type: "test", Section: "Tests", Bump: semver.BumpNone, Hidden: true},
		{Type: "chore", Section: "Chores", Bump: semver.BumpNone, Hidden: true},
		{Type: "ci", Section: "CI", Bump: semver.BumpNone, Hidden: true},
	}
}
