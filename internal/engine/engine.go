package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/madmti/release-kit/internal/commit"
	"github.com/madmti/release-kit/internal/config"
	"github.com/madmti/release-kit/internal/gitcli"
	"github.com/madmti/release-kit/internal/hosting"
	"github.com/madmti/release-kit/internal/notes"
	"github.com/madmti/release-kit/internal/semver"
	"github.com/madmti/release-kit/internal/updater"
)

// releaseCommitPrefix is both the start of the message the engine writes and
// the marker the loop-prevention check looks for, so the automation never
// reacts to its own release commit.
const releaseCommitPrefix = "chore: release v"

// Engine drives one release run: tag discovery, classification, version
// computation, notes, file updates, commit/tag/push, floating tags and
// platform publication. One run per repository state; callers serialize.
type Engine struct {
	VCS      gitcli.VCS
	Host     hosting.Host
	Config   *config.Config
	RepoPath string
	Log      zerolog.Logger
	Now      func() time.Time
	// Update is the file-updater seam, swappable in tests.
	Update func(repoPath string, t updater.Target, version string) (updater.Result, error)
}

func New(repoPath string, cfg *config.Config, log zerolog.Logger) Engine {
	return Engine{
		VCS:      gitcli.CLI{RepoPath: repoPath},
		Host:     hosting.GitHubCLI{RepoPath: repoPath},
		Config:   cfg,
		RepoPath: repoPath,
		Log:      log,
		Now:      time.Now,
		Update:   updater.Apply,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// PhaseError reports which orchestration phase failed. The run stops at the
// failing phase; already-applied git operations are left visible rather than
// rolled back.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string { return fmt.Sprintf("%s: %v", e.Phase, e.Err) }
func (e *PhaseError) Unwrap() error { return e.Err }

func phaseErr(phase string, err error) error {
	return &PhaseError{Phase: phase, Err: err}
}

// Decision is the computed release plan. Built once per run, never mutated
// afterwards; the mutation phases only consume it.
type Decision struct {
	PreviousTag string          `json:"previous_tag"`
	Bump        semver.Bump     `json:"-"`
	BumpName    string          `json:"bump"`
	Next        semver.Version  `json:"-"`
	NextVersion string          `json:"next_version"`
	Commits     []commit.Record `json:"commits"`
	Notes       string          `json:"notes"`
}

// Outcome reports how a run ended. Released false with a Reason is a benign
// early exit (loop prevention, nothing to release), not a failure.
type Outcome struct {
	Released bool
	Reason   string
	Decision *Decision
}

// Plan computes the release decision without mutating anything: last tag,
// commits since, bump level, next version and notes. Used by the dry-run
// command and as the first half of Release.
func (e Engine) Plan() (*Decision, error) {
	tag, err := e.VCS.LastMatchingTag()
	if err != nil {
		return nil, phaseErr("tag-discovery", err)
	}
	since := tag
	if tag == "" {
		// never released: baseline, not an error
		tag = "v0.0.0"
	}
	e.Log.Info().Str("tag", tag).Msg("last release tag")

	messages, err := e.VCS.MessagesSince(since)
	if err != nil {
		return nil, phaseErr("commit-collection", err)
	}

	rules := e.Config.Rules()
	records := commit.ParseAll(messages, rules)
	bump := commit.Classify(records, rules)
	current := semver.Parse(tag)
	next := current.Next(bump)

	d := &Decision{
		PreviousTag: tag,
		Bump:        bump,
		BumpName:    bump.String(),
		Next:        next,
		NextVersion: next.String(),
		Commits:     records,
		Notes:       notes.Build(records, rules),
	}
	e.Log.Info().
		Int("commits", len(records)).
		Str("bump", bump.String()).
		Str("from", current.String()).
		Str("to", next.String()).
		Msg("release decision")
	return d, nil
}

// Release runs the full orchestration. It is a single forward pass: each
// phase either succeeds, ends the run as a benign no-op, or aborts it with
// the phase name attached.
func (e Engine) Release() (Outcome, error) {
	// Loop prevention runs before any mutation: a release commit authored by
	// the automation identity means this run was triggered by our own push.
	subject, err := e.VCS.LastSubject()
	if err != nil {
		return Outcome{}, phaseErr("loop-check", err)
	}
	author, err := e.VCS.LastAuthor()
	if err != nil {
		return Outcome{}, phaseErr("loop-check", err)
	}
	if strings.HasPrefix(subject, releaseCommitPrefix) && author == e.Config.Identity.Name {
		e.Log.Info().Str("subject", subject).Msg("last commit is our own release commit, nothing to do")
		return Outcome{Reason: "loop prevention"}, nil
	}

	// A missing hosting tool is a configuration defect; fail before mutating.
	if e.Config.Hosting.Enabled && !e.Host.Available() {
		return Outcome{}, phaseErr("publish", errors.New("hosting is enabled but the gh tool is not available"))
	}

	d, err := e.Plan()
	if err != nil {
		return Outcome{}, err
	}
	if len(d.Commits) == 0 {
		e.Log.Info().Str("tag", d.PreviousTag).Msg("no commits since last release")
		return Outcome{Reason: "no new commits", Decision: d}, nil
	}
	if d.Bump == semver.BumpNone {
		e.Log.Info().Int("commits", len(d.Commits)).Msg("no release-worthy commits")
		return Outcome{Reason: "no release-worthy commits", Decision: d}, nil
	}

	tag := d.Next.Tag()

	if err := e.VCS.ConfigureIdentity(e.Config.Identity.Name, e.Config.Identity.Email); err != nil {
		return Outcome{}, phaseErr("identity", err)
	}

	if err := e.updateFiles(d); err != nil {
		return Outcome{}, err
	}
	if err := e.writeChangelog(d); err != nil {
		return Outcome{}, err
	}
	if err := e.commitAndTag(tag); err != nil {
		return Outcome{}, err
	}
	floating, err := e.moveFloatingTags(tag)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.publish(d, tag, floating); err != nil {
		return Outcome{}, err
	}

	e.Log.Info().Str("tag", tag).Msg("release complete")
	return Outcome{Released: true, Decision: d}, nil
}

// updateFiles rewrites version strings in each configured target and stages
// the ones that changed. Skips degrade gracefully: the remaining targets and
// the release itself proceed.
func (e Engine) updateFiles(d *Decision) error {
	for _, f := range e.Config.Files {
		t := updater.Target{Path: f.Path, Kind: updater.ParseKind(f.Type), Pattern: f.Pattern}
		res, err := e.Update(e.RepoPath, t, d.Next.String())
		if err != nil {
			return phaseErr("file-updates", err)
		}
		if res.SkipReason != "" {
			e.Log.Warn().Str("path", f.Path).Str("type", f.Type).Msg("skipped: " + res.SkipReason)
			continue
		}
		if err := e.VCS.Stage(f.Path); err != nil {
			return phaseErr("file-updates", err)
		}
		e.Log.Info().Str("path", f.Path).Msg("version updated")
	}
	return nil
}

func (e Engine) writeChangelog(d *Decision) error {
	if !e.Config.Changelog.Enabled {
		return nil
	}
	entry := notes.ChangelogEntry(d.Next, d.Notes, e.now())
	path := filepath.Join(e.RepoPath, e.Config.Changelog.Path)
	if err := notes.Prepend(path, entry); err != nil {
		return phaseErr("changelog", err)
	}
	if err := e.VCS.Stage(e.Config.Changelog.Path); err != nil {
		return phaseErr("changelog", err)
	}
	e.Log.Info().Str("path", e.Config.Changelog.Path).Msg("changelog updated")
	return nil
}

// commitAndTag commits staged changes when there are any, then always
// creates the version tag (a tag-only release is valid when no files needed
// updating) and pushes branch and tags. Push failures are fatal.
func (e Engine) commitAndTag(tag string) error {
	staged, err := e.VCS.HasStagedChanges()
	if err != nil {
		return phaseErr("commit-and-tag", err)
	}
	if staged {
		if err := e.VCS.Commit("chore: release " + tag); err != nil {
			return phaseErr("commit-and-tag", err)
		}
	}
	if err := e.VCS.Tag(tag); err != nil {
		return phaseErr("commit-and-tag", err)
	}
	if err := e.VCS.PushBranchAndTags(); err != nil {
		return phaseErr("push", err)
	}
	e.Log.Info().Str("tag", tag).Bool("commit", staged).Msg("tagged and pushed")
	return nil
}

// moveFloatingTags force-moves the opt-in mutable tags and returns the names
// it moved so publication can mirror them as floating releases.
func (e Engine) moveFloatingTags(tag string) ([]string, error) {
	var moved []string
	if e.Config.Tags.UpdateLatest {
		if err := e.forceMove("latest"); err != nil {
			return nil, err
		}
		moved = append(moved, "latest")
	}
	if e.Config.Tags.UpdateMajors {
		major, ok := semver.MajorTag(tag)
		if !ok {
			e.Log.Info().Str("tag", tag).Msg("tag is already major-only, skipping major tag")
		} else {
			if err := e.forceMove(major); err != nil {
				return nil, err
			}
			moved = append(moved, major)
		}
	}
	return moved, nil
}

func (e Engine) forceMove(name string) error {
	if err := e.VCS.ForceTag(name); err != nil {
		return phaseErr("floating-tags", err)
	}
	if err := e.VCS.ForcePushTag(name); err != nil {
		return phaseErr("floating-tags", err)
	}
	e.Log.Info().Str("tag", name).Msg("floating tag moved")
	return nil
}

// publish creates the hosted release for the new tag, then recreates one
// floating release per moved floating tag. Floating releases are deleted
// first (a missing one counts as deleted) and are never marked latest.
func (e Engine) publish(d *Decision, tag string, floating []string) error {
	if !e.Config.Hosting.Enabled {
		return nil
	}
	body := d.Notes
	if body == "" {
		body = "Automated release " + tag
	}
	if err := e.Host.CreateRelease(tag, tag, body); err != nil {
		return phaseErr("publish", err)
	}
	e.Log.Info().Str("tag", tag).Msg("release published")

	for _, name := range floating {
		if err := e.Host.DeleteRelease(name); err != nil {
			return phaseErr("publish", err)
		}
		title := fmt.Sprintf("%s (Matches %s)", name, tag)
		mirror := fmt.Sprintf("Floating release tracking %s. See the %s release for notes.", tag, tag)
		if err := e.Host.CreateFloatingRelease(name, title, mirror); err != nil {
			return phaseErr("publish", err)
		}
		e.Log.Info().Str("name", name).Msg("floating release published")
	}
	return nil
}
