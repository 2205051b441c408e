package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/phrazzld/scry-curriculum/internal/config"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/generation"
	"github.com/phrazzld/scry-curriculum/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator drafts "outline: <topic>" and writes
// "note: <topic> | <structure>". Topics in fail always fail.
type scriptedGenerator struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls int
}

func (g *scriptedGenerator) GenerateStructure(_ context.Context, topic string, _ generation.PhaseConfig) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail[topic] {
		return "", fmt.Errorf("%w: upstream unavailable", generation.ErrTransientFailure)
	}
	return "outline: " + topic, nil
}

func (g *scriptedGenerator) GenerateContent(_ context.Context, topic, structure string, _ generation.PhaseConfig) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return "note: " + topic + " | " + structure, nil
}

type cliEnv struct {
	t         *testing.T
	dir       string
	statePath string
	cfg       *config.Config
	generator *scriptedGenerator
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	dir := t.TempDir()
	return &cliEnv{
		t:         t,
		dir:       dir,
		statePath: filepath.Join(dir, "state", "curriculum.db"),
		cfg: &config.Config{
			Server: config.ServerConfig{LogLevel: "error"},
			Auth:   auth.DefaultJWTConfig(),
			LLM: config.LLMConfig{
				StructureModel: "structure-model",
				ContentModel:   "content-model",
			},
			Curriculum: config.CurriculumConfig{
				MaxAttempts:      1,
				BaseBackoff:      time.Millisecond,
				MaxBackoff:       time.Millisecond,
				BreakerThreshold: 3,
			},
		},
		generator: &scriptedGenerator{fail: map[string]bool{}},
	}
}

func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()

	cc := newCommandContext()
	cc.loadConfig = func() (*config.Config, error) { return e.cfg, nil }
	cc.newGenerator = func(context.Context, *slog.Logger, config.LLMConfig) (generation.Generator, error) {
		return e.generator, nil
	}

	cmd := newRootCommandWithContext(cc)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--state", e.statePath}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) writeFile(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *cliEnv) snapshot(args ...string) curriculum.Snapshot {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err)
	var snap curriculum.Snapshot
	require.NoError(e.t, json.Unmarshal([]byte(out), &snap), out)
	return snap
}

func statuses(snap curriculum.Snapshot) []domain.ItemStatus {
	out := make([]domain.ItemStatus, len(snap.Items))
	for i, item := range snap.Items {
		out[i] = item.Status
	}
	return out
}

func TestRun_AutoApprove(t *testing.T) {
	env := newCLIEnv(t)
	plan := env.writeFile("plan.toml", `
topics = ["Goroutines", "  ", "Channels"]
auto_approve = true

[phase1]
prompt = "Keep it short."
`)

	snap := env.snapshot("run", "--plan", plan)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, []domain.ItemStatus{domain.ItemStatusDone, domain.ItemStatusDone}, statuses(snap))
	assert.Equal(t, curriculum.RunStateIdle, snap.RunState)

	out, err := env.run("note", "--item", "2")
	require.NoError(t, err)
	var note domain.Note
	require.NoError(t, json.Unmarshal([]byte(out), &note))
	assert.Equal(t, "Channels", note.Topic)
	assert.Equal(t, "note: Channels | outline: Channels", note.Content)
}

func TestRun_ReviewFlow(t *testing.T) {
	env := newCLIEnv(t)
	plan := env.writeFile("plan.toml", `topics = ["Maps", "Slices"]`)

	snap := env.snapshot("run", "--plan", plan)
	assert.Equal(t, []domain.ItemStatus{
		domain.ItemStatusPausedForReview,
		domain.ItemStatusPausedForReview,
	}, statuses(snap))
	assert.Equal(t, "outline: Maps", snap.Items[0].Structure)

	edited := env.writeFile("maps.md", "1. Hashing\n2. Iteration order")
	snap = env.snapshot("approve", "--item", "1", "--structure-file", edited)
	assert.Equal(t, domain.ItemStatusStructReady, snap.Items[0].Status)
	assert.Equal(t, "1. Hashing\n2. Iteration order", snap.Items[0].Structure)

	prefix := snap.Items[1].ID.String()[:8]
	snap = env.snapshot("reject", "--item", prefix)
	assert.Equal(t, domain.ItemStatusPending, snap.Items[1].Status)
	assert.Empty(t, snap.Items[1].Structure)

	// The stored queue is resumed; the plan's topics are not re-seeded.
	snap = env.snapshot("run", "--plan", plan)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, domain.ItemStatusDone, snap.Items[0].Status)
	assert.Equal(t, domain.ItemStatusPausedForReview, snap.Items[1].Status)

	out, err := env.run("note", "--item", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "note: Maps | 1. Hashing")
}

func TestRun_ResetReplacesQueue(t *testing.T) {
	env := newCLIEnv(t)
	first := env.writeFile("first.toml", `topics = ["Old"]
auto_approve = true`)
	second := env.writeFile("second.toml", `topics = ["New A", "New B"]`)

	env.snapshot("run", "--plan", first)

	snap := env.snapshot("run", "--plan", second, "--reset", "--auto-approve")
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "New A", snap.Items[0].Topic)
	assert.Equal(t, []domain.ItemStatus{domain.ItemStatusDone, domain.ItemStatusDone}, statuses(snap))
}

func TestRun_CircuitBreakerTrips(t *testing.T) {
	env := newCLIEnv(t)
	env.cfg.Curriculum.BreakerThreshold = 2
	env.generator.fail = map[string]bool{"A": true, "B": true, "C": true}
	plan := env.writeFile("plan.toml", `topics = ["A", "B", "C"]`)

	out, err := env.run("run", "--plan", plan)
	require.ErrorIs(t, err, curriculum.ErrCircuitTripped)

	var snap curriculum.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.True(t, snap.Circuit.Tripped)
	assert.Equal(t, curriculum.RunStateHalted, snap.RunState)
	assert.Equal(t, domain.ItemStatusError, snap.Items[0].Status)
	assert.Equal(t, domain.ItemStatusError, snap.Items[1].Status)
	assert.Equal(t, domain.ItemStatusPending, snap.Items[2].Status)
	assert.Equal(t, 2, env.generator.calls)
	assert.Equal(t, 2, snap.Exhausted)

	// A failed item can be given a fresh budget and completes next run.
	snap = env.snapshot("retry", "--item", "1")
	assert.Equal(t, 0, snap.Items[0].RetryCount)
	assert.Equal(t, 1, snap.Exhausted)

	env.generator.fail = map[string]bool{}
	snap = env.snapshot("run", "--plan", plan, "--auto-approve")
	assert.Equal(t, domain.ItemStatusDone, snap.Items[0].Status)
	assert.Equal(t, domain.ItemStatusError, snap.Items[1].Status)
	assert.Equal(t, domain.ItemStatusDone, snap.Items[2].Status)
}

func TestRun_EmptyPlan(t *testing.T) {
	env := newCLIEnv(t)
	plan := env.writeFile("plan.toml", `topics = []`)

	_, err := env.run("run", "--plan", plan)
	require.ErrorIs(t, err, errEmptyPlan)
}

func TestCommands_InvalidTransitions(t *testing.T) {
	env := newCLIEnv(t)
	plan := env.writeFile("plan.toml", `topics = ["Only"]
auto_approve = true`)
	env.snapshot("run", "--plan", plan)

	_, err := env.run("reject", "--item", "1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.run("retry", "--item", "1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.run("approve", "--item", "7")
	require.ErrorIs(t, err, curriculum.ErrItemNotFound)
}

func TestStatus_WorkspacesAreSeparate(t *testing.T) {
	env := newCLIEnv(t)
	plan := env.writeFile("plan.toml", `topics = ["Scoped"]`)
	env.snapshot("--workspace", "alpha", "run", "--plan", plan)

	snap := env.snapshot("--workspace", "alpha", "status")
	require.Len(t, snap.Items, 1)

	snap = env.snapshot("--workspace", "beta", "status")
	assert.Empty(t, snap.Items)
	assert.Equal(t, localOwnerID, snap.Workspace.OwnerID)
}

func TestStatus_StateLocked(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(env.statePath), 0o755))

	holder := flock.New(env.statePath + ".lock")
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = holder.Unlock() }()

	_, err = env.run("status")
	require.ErrorIs(t, err, errStateLocked)
}

func TestToken(t *testing.T) {
	env := newCLIEnv(t)
	userID := "0f6b3c1e-2a49-4d7b-9a0e-9f1f4e1c2d3a"

	out, err := env.run("token", "--user", userID)
	require.NoError(t, err)

	claims, err := auth.RequireTestJWTService(t).ValidateToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID.String())

	_, err = env.run("token", "--user", "nobody")
	require.Error(t, err)
}

func TestUnavailableGenerator(t *testing.T) {
	t.Parallel()

	_, err := unavailableGenerator{}.GenerateStructure(context.Background(), "x", generation.PhaseConfig{})
	assert.True(t, errors.Is(err, generation.ErrInvalidConfig))
}
