package hosting

import (
	"fmt"
	"os/exec"
	"strings"
)

// Host is the release-hosting seam. The production adapter drives the gh
// CLI; tests substitute an in-memory fake.
type Host interface {
	// Available reports whether the hosting tool can be invoked at all.
	Available() bool
	CreateRelease(tag, title, body string) error
	// DeleteRelease removes a remote release by name. A release that does
	// not exist is treated as already deleted.
	DeleteRelease(name string) error
	// CreateFloatingRelease publishes a mutable release that mirrors a real
	// tag. It is never marked as the repository's latest release so it
	// cannot shadow the true newest semantic release.
	CreateFloatingRelease(name, title, body string) error
}

// GitHubCLI publishes releases through the gh tool.
type GitHubCLI struct {
	RepoPath string
}

func (g GitHubCLI) gh(args ...string) (string, error) {
	cmd := exec.Command("gh", args...)
	cmd.Dir = g.RepoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("gh %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func (g GitHubCLI) Available() bool {
	_, err := exec.LookPath("gh")
	return err == nil
}

func (g GitHubCLI) CreateRelease(tag, title, body string) error {
	_, err := g.gh("release", "create", tag, "--title", title, "--notes", body)
	return err
}

func (g GitHubCLI) DeleteRelease(name string) error {
	out, err := g.gh("release", "delete", name, "--yes")
	if err != nil && strings.Contains(strings.ToLower(out), "not found") {
		return nil
	}
	return err
}

func (g GitHubCLI) CreateFloatingRelease(name, title, body string) error {
	_, err := g.gh("release", "create", name, "--title", title, "--notes", body, "--latest=false")
	return err
}
