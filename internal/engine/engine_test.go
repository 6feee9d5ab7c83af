package engine_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/madmti/release-kit/internal/config"
	"github.com/madmti/release-kit/internal/engine"
	"github.com/madmti/release-kit/internal/updater"
)

type fakeVCS struct {
	tag      string
	messages []string
	subject  string
	author   string

	staged bool
	calls  []string
	failOn string
}

func (f *fakeVCS) call(name string) error {
	f.calls = append(f.calls, name)
	if f.failOn == name {
		return fmt.Errorf("%s exploded", name)
	}
	return nil
}

func (f *fakeVCS) LastMatchingTag() (string, error) {
	return f.tag, f.call("last-tag")
}

func (f *fakeVCS) MessagesSince(tag string) ([]string, error) {
	return f.messages, f.call("messages-since " + tag)
}

func (f *fakeVCS) ShortHash() (string, error)   { return "abc1234", f.call("short-hash") }
func (f *fakeVCS) LastSubject() (string, error) { return f.subject, f.call("last-subject") }
func (f *fakeVCS) LastAuthor() (string, error)  { return f.author, f.call("last-author") }

func (f *fakeVCS) Stage(paths ...string) error {
	f.staged = true
	return f.call("stage " + strings.Join(paths, " "))
}

func (f *fakeVCS) HasStagedChanges() (bool, error) { return f.staged, f.call("has-staged") }
func (f *fakeVCS) Commit(message string) error     { return f.call("commit " + message) }
func (f *fakeVCS) Tag(name string) error           { return f.call("tag " + name) }
func (f *fakeVCS) ForceTag(name string) error      { return f.call("force-tag " + name) }
func (f *fakeVCS) PushBranchAndTags() error        { return f.call("push") }
func (f *fakeVCS) ForcePushTag(name string) error  { return f.call("force-push " + name) }
func (f *fakeVCS) ConfigureIdentity(name, email string) error {
	return f.call("identity " + name)
}

func (f *fakeVCS) did(call string) bool {
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

type fakeHost struct {
	available bool
	created   []string
	deleted   []string
	floating  []string
}

func (f *fakeHost) Available() bool { return f.available }

func (f *fakeHost) CreateRelease(tag, title, body string) error {
	f.created = append(f.created, tag)
	return nil
}

func (f *fakeHost) DeleteRelease(name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeHost) CreateFloatingRelease(name, title, body string) error {
	f.floating = append(f.floating, name+"|"+title)
	return nil
}

type testEnv struct {
	Engine engine.Engine
	VCS    *fakeVCS
	Host   *fakeHost
	Dir    string
}

func newTestEnv(t *testing.T, vcs *fakeVCS) testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	host := &fakeHost{available: true}
	eng := engine.Engine{
		VCS:      vcs,
		Host:     host,
		Config:   cfg,
		RepoPath: dir,
		Log:      zerolog.Nop(),
		Now:      func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
		Update:   updater.Apply,
	}
	return testEnv{Engine: eng, VCS: vcs, Host: host, Dir: dir}
}

func TestReleaseMinorFromBaseline(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		messages: []string{"fix: a", "feat: b"},
		subject:  "feat: b",
		author:   "dev",
	})
	out, err := env.Engine.Release()
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !out.Released {
		t.Fatalf("expected release, got %+v", out)
	}
	if out.Decision.PreviousTag != "v0.0.0" || out.Decision.NextVersion != "0.1.0" {
		t.Errorf("decision wrong: %+v", out.Decision)
	}
	if !env.VCS.did("tag v0.1.0") || !env.VCS.did("push") {
		t.Errorf("tag/push missing: %v", env.VCS.calls)
	}
	if !env.VCS.did("commit chore: release v0.1.0") {
		t.Errorf("release commit missing: %v", env.VCS.calls)
	}

	data, err := os.ReadFile(filepath.Join(env.Dir, "CHANGELOG.md"))
	if err != nil {
		t.Fatalf("changelog not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "# 0.1.0 (2024-01-01)") {
		t.Errorf("changelog entry wrong:\n%s", data)
	}
	if !strings.Contains(string(data), "- feat: b") {
		t.Errorf("notes missing from changelog:\n%s", data)
	}
}

func TestReleaseBangIsMajor(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		tag:      "v1.9.9",
		messages: []string{"feat!: drop X"},
		subject:  "feat!: drop X",
		author:   "dev",
	})
	out, err := env.Engine.Release()
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision.NextVersion != "2.0.0" {
		t.Errorf("want 2.0.0, got %s", out.Decision.NextVersion)
	}
	if !env.VCS.did("tag v2.0.0") {
		t.Errorf("tag missing: %v", env.VCS.calls)
	}
}

func TestReleasePatchIncrement(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		tag:      "v1.9.9",
		messages: []string{"fix: edge case"},
		subject:  "fix: edge case",
		author:   "dev",
	})
	out, err := env.Engine.Release()
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision.NextVersion != "1.9.10" {
		t.Errorf("want 1.9.10, got %s", out.Decision.NextVersion)
	}
}

func TestNoCommitsIsBenignNoOp(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		tag:     "v1.0.0",
		subject: "feat: old news",
		author:  "dev",
	})
	out, err := env.Engine.Release()
	if err != nil {
		t.Fatalf("no-op must succeed: %v", err)
	}
	if out.Released || out.Reason != "no new commits" {
		t.Errorf("unexpected outcome: %+v", out)
	}
	for _, c := range env.VCS.calls {
		if strings.HasPrefix(c, "tag ") || strings.HasPrefix(c, "commit ") || c == "push" {
			t.Errorf("mutation on no-op run: %v", env.VCS.calls)
		}
	}
}

func TestHiddenOnlyCommitsIsBenignNoOp(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		tag:      "v1.0.0",
		messages: []string{"docs: readme", "chore: tidy"},
		subject:  "docs: readme",
		author:   "dev",
	})
	out, err := env.Engine.Release()
	if err != nil {
		t.Fatal(err)
	}
	if out.Released {
		t.Errorf("none bump must not release: %+v", out)
	}
}

func TestLoopPrevention(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		tag:      "v1.0.0",
		messages: []string{"chore: release v1.0.0"},
		subject:  "chore: release v1.0.0",
		author:   "release-kit[bot]",
	})
	out, err := env.Engine.Release()
	if err != nil {
		t.Fatalf("loop exit must succeed: %v", err)
	}
	if out.Released || out.Reason != "loop prevention" {
		t.Errorf("unexpected outcome: %+v", out)
	}
	// guard runs before everything: only the two loop-check reads happened
	if len(env.VCS.calls) != 2 {
		t.Errorf("expected no further VCS traffic, got %v", env.VCS.calls)
	}
}

func TestLoopPreventionNeedsMatchingAuthor(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		tag:      "v1.0.0",
		messages: []string{"chore: release v1.1.0", "feat: by a human"},
		subject:  "chore: release v1.1.0",
		author:   "some human",
	})
	out, err := env.Engine.Release()
	if err != nil {
		t.Fatal(err)
	}
	if !out.Released {
		t.Errorf("human release commit must not trip the guard: %+v", out)
	}
}

func TestFloatingTagsAndReleases(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		tag:      "v1.9.9",
		messages: []string{"feat!: drop X"},
		subject:  "feat!: drop X",
		author:   "dev",
	})
	env.Engine.Config.Tags.UpdateLatest = true
	env.Engine.Config.Tags.UpdateMajors = true
	env.Engine.Config.Hosting.Enabled = true

	out, err := env.Engine.Release()
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision.NextVersion != "2.0.0" {
		t.Fatalf("decision: %+v", out.Decision)
	}
	for _, want := range []string{"force-tag latest", "force-push latest", "force-tag v2", "force-push v2"} {
		if !env.VCS.did(want) {
			t.Errorf("missing %q in %v", want, env.VCS.calls)
		}
	}
	if len(env.Host.created) != 1 || env.Host.created[0] != "v2.0.0" {
		t.Errorf("release created: %v", env.Host.created)
	}
	// floating releases are recreated: delete first, then create with a
	// title pointing at the real tag
	if len(env.Host.deleted) != 2 || len(env.Host.floating) != 2 {
		t.Errorf("floating releases: deleted=%v created=%v", env.Host.deleted, env.Host.floating)
	}
	if env.Host.floating[0] != "latest|latest (Matches v2.0.0)" {
		t.Errorf("floating title: %v", env.Host.floating)
	}
}

func TestHostingUnavailableFailsBeforeMutation(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		tag:      "v1.0.0",
		messages: []string{"feat: x"},
		subject:  "feat: x",
		author:   "dev",
	})
	env.Engine.Config.Hosting.Enabled = true
	env.Host.available = false

	_, err := env.Engine.Release()
	var perr *engine.PhaseError
	if !errors.As(err, &perr) || perr.Phase != "publish" {
		t.Fatalf("expected publish phase error, got %v", err)
	}
	for _, c := range env.VCS.calls {
		if strings.HasPrefix(c, "tag ") || strings.HasPrefix(c, "commit ") || c == "push" {
			t.Errorf("mutated before availability check: %v", env.VCS.calls)
		}
	}
}

func TestPushFailureIsFatalWithPhase(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		tag:      "v1.0.0",
		messages: []string{"feat: x"},
		subject:  "feat: x",
		author:   "dev",
		failOn:   "push",
	})
	_, err := env.Engine.Release()
	var perr *engine.PhaseError
	if !errors.As(err, &perr) || perr.Phase != "push" {
		t.Fatalf("expected push phase error, got %v", err)
	}
}

func TestFileUpdateSkipsAreNonFatal(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		tag:      "v1.0.0",
		messages: []string{"feat: x"},
		subject:  "feat: x",
		author:   "dev",
	})
	// one target that exists, one that is missing, one with a bogus type
	if err := os.WriteFile(filepath.Join(env.Dir, "package.json"), []byte("{\"version\": \"1.0.0\"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env.Engine.Config.Files = []config.FileTarget{
		{Path: "package.json", Type: "npm"},
		{Path: "missing/Cargo.toml", Type: "json"},
		{Path: "package.json", Type: "toml"},
	}

	out, err := env.Engine.Release()
	if err != nil {
		t.Fatalf("skips must not abort: %v", err)
	}
	if !out.Released {
		t.Fatalf("expected release: %+v", out)
	}
	if !env.VCS.did("stage package.json") {
		t.Errorf("updated file not staged: %v", env.VCS.calls)
	}
	data, _ := os.ReadFile(filepath.Join(env.Dir, "package.json"))
	if !strings.Contains(string(data), "\"version\": \"1.1.0\"") {
		t.Errorf("file not rewritten: %s", data)
	}
}

func TestPlanDoesNotMutate(t *testing.T) {
	env := newTestEnv(t, &fakeVCS{
		tag:      "v1.2.3",
		messages: []string{"feat: x", "fix: y"},
	})
	d, err := env.Engine.Plan()
	if err != nil {
		t.Fatal(err)
	}
	if d.PreviousTag != "v1.2.3" || d.NextVersion != "1.3.0" {
		t.Errorf("plan wrong: %+v", d)
	}
	for _, c := range env.VCS.calls {
		if strings.HasPrefix(c, "tag ") || strings.HasPrefix(c, "commit ") || strings.HasPrefix(c, "stage ") || c == "push" {
			t.Errorf("plan mutated the repo: %v", env.VCS.calls)
		}
	}
}
