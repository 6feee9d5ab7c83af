package gitcli

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// VCS is the version-control seam the release engine drives. The production
// adapter shells out to git; tests substitute an in-memory fake.
type VCS interface {
	// LastMatchingTag returns the newest tag matching the strict release
	// pattern, or "" when the repository has never been released.
	LastMatchingTag() (string, error)
	// MessagesSince returns full commit messages (subject plus body) for
	// every commit after the given tag, or all reachable commits when the
	// tag is empty. Ordered newest first.
	MessagesSince(tag string) ([]string, error)
	ShortHash() (string, error)
	LastSubject() (string, error)
	LastAuthor() (string, error)
	Stage(paths ...string) error
	HasStagedChanges() (bool, error)
	Commit(message string) error
	Tag(name string) error
	ForceTag(name string) error
	PushBranchAndTags() error
	ForcePushTag(name string) error
	ConfigureIdentity(name, email string) error
}

// releaseTagRe is the strict concrete-version tag shape. Floating tags like
// "latest" or "v2" never match.
var releaseTagRe = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)

// CLI wraps git operations for one repository. Kept small and focused on
// readability.
type CLI struct {
	RepoPath string
}

func (c CLI) git(args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", c.RepoPath}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func (c CLI) LastMatchingTag() (string, error) {
	out, err := c.git("tag", "--list", "v*", "--sort=-v:refname")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		tag := strings.TrimSpace(line)
		if releaseTagRe.MatchString(tag) {
			return tag, nil
		}
	}
	return "", nil
}

func (c CLI) MessagesSince(tag string) ([]string, error) {
	args := []string{"log", "--pretty=format:%B%x1e"}
	if tag != "" {
		args = append(args, tag+"..HEAD")
	}
	out, err := c.git(args...)
	if err != nil {
		return nil, err
	}
	var messages []string
	for _, raw := range strings.Split(out, "\x1e") {
		if m := strings.TrimSpace(raw); m != "" {
			messages = append(messages, m)
		}
	}
	return messages, nil
}

func (c CLI) ShortHash() (string, error) {
	return c.git("rev-parse", "--short", "HEAD")
}

func (c CLI) LastSubject() (string, error) {
	return c.git("log", "-1", "--pretty=format:%s")
}

func (c CLI) LastAuthor() (string, error) {
	return c.git("log", "-1", "--pretty=format:%an")
}

func (c CLI) Stage(paths ...string) error {
	_, err := c.git(append([]string{"add", "--"}, paths...)...)
	return err
}

func (c CLI) HasStagedChanges() (bool, error) {
	cmd := exec.Command("git", "-C", c.RepoPath, "diff", "--cached", "--quiet")
	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff --cached: %w", err)
}

func (c CLI) Commit(message string) error {
	_, err := c.git("commit", "-m", message)
	return err
}

func (c CLI) Tag(name string) error {
	_, err := c.git("tag", name)
	return err
}

func (c CLI) ForceTag(name string) error {
	_, err := c.git("tag", "-f", name)
	return err
}

func (c CLI) PushBranchAndTags() error {
	if _, err := c.git("push"); err != nil {
		return err
	}
	_, err := c.git("push", "--tags")
	return err
}

func (c CLI) ForcePushTag(name string) error {
	_, err := c.git("push", "--force", "origin", name)
	return err
}

func (c CLI) ConfigureIdentity(name, email string) error {
	if _, err := c.git("config", "user.name", name); err != nil {
		return err
	}
	_, err := c.git("config", "user.email", email)
	return err
}
