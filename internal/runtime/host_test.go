package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"modkit/internal/apperror"
	"modkit/internal/config"
	"modkit/internal/directory"
	"modkit/internal/module"
	"modkit/internal/oop"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingModule tracks which hooks were invoked, in order, and can be
// configured to fail a named phase.
type recordingModule struct {
	module.Base

	mu     sync.Mutex
	calls  []string
	failOn string
	onStop func()
}

func newRecordingModule(name string, caps module.CapabilitySet, deps ...string) *recordingModule {
	return &recordingModule{Base: module.NewBase(name, deps, caps)}
}

func (m *recordingModule) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *recordingModule) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *recordingModule) Migrate(ctx context.Context, cfg config.AppConfig) error {
	m.record("migrate")
	if m.failOn == "migrate" {
		return errors.New("boom")
	}
	return nil
}

func (m *recordingModule) Init(ctx context.Context, cfg config.AppConfig) error {
	m.record("init")
	if m.failOn == "init" {
		return errors.New("boom")
	}
	return nil
}

func (m *recordingModule) Start(ctx context.Context, cfg config.AppConfig) error {
	m.record("start")
	if m.failOn == "start" {
		return errors.New("boom")
	}
	return nil
}

func (m *recordingModule) Run(ctx context.Context) error {
	m.record("run")
	<-ctx.Done()
	m.record("run-done")
	return nil
}

func (m *recordingModule) Stop(ctx context.Context) error {
	m.record("stop")
	if m.onStop != nil {
		m.onStop()
	}
	return nil
}

func allCaps() module.CapabilitySet {
	return module.NewCapabilitySet(
		module.CapabilityMigrate,
		module.CapabilityInit,
		module.CapabilityStart,
		module.CapabilityRun,
		module.CapabilityStop,
	)
}

func TestRunServerWalksPhasesInOrderThenRunsAndStops(t *testing.T) {
	a := newRecordingModule("a", allCaps())
	b := newRecordingModule("b", allCaps(), "a")

	reg := module.NewRegistry()
	require.NoError(t, reg.Register(b))
	require.NoError(t, reg.Register(a))

	host := New(config.AppConfig{}, reg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- host.RunServer(ctx) }()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"migrate", "init", "start", "run"}, a.Calls())
	assert.Equal(t, []string{"migrate", "init", "start", "run"}, b.Calls())
	assert.Equal(t, PhaseRunning, host.Phase())

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, PhaseTerminated, host.Phase())
	assert.Equal(t, []string{"migrate", "init", "start", "run", "run-done", "stop"}, a.Calls())
	assert.Equal(t, []string{"migrate", "init", "start", "run", "run-done", "stop"}, b.Calls())
}

func TestRunServerStopsInReverseRegistryOrder(t *testing.T) {
	var mu sync.Mutex
	var stopOrder []string
	recordStop := func(name string) { mu.Lock(); stopOrder = append(stopOrder, name); mu.Unlock() }

	a := newRecordingModule("a", allCaps())
	a.onStop = func() { recordStop("a") }
	b := newRecordingModule("b", allCaps(), "a")
	b.onStop = func() { recordStop("b") }
	c := newRecordingModule("c", allCaps(), "b")
	c.onStop = func() { recordStop("c") }

	reg := module.NewRegistry()
	require.NoError(t, reg.Register(c))
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(b))

	host := New(config.AppConfig{}, reg, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- host.RunServer(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"c", "b", "a"}, stopOrder)
}

func TestRunServerFailureDuringInitSkipsToStoppingAndPropagatesError(t *testing.T) {
	a := newRecordingModule("a", allCaps())
	a.failOn = "init"

	reg := module.NewRegistry()
	require.NoError(t, reg.Register(a))

	host := New(config.AppConfig{}, reg, nil, nil)
	err := host.RunServer(context.Background())

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindInitFailed))
	assert.Equal(t, PhaseTerminated, host.Phase())
	assert.NotContains(t, a.Calls(), "start")
}

func TestRunMigrateOnlyStopsAtMigrateWithoutReachingStart(t *testing.T) {
	a := newRecordingModule("a", allCaps())

	reg := module.NewRegistry()
	require.NoError(t, reg.Register(a))

	host := New(config.AppConfig{}, reg, nil, nil)
	err := host.RunMigrateOnly(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"migrate"}, a.Calls())
	assert.Equal(t, PhaseMigrate, host.Phase())
}

func TestRunMigrateOnlyPropagatesMigrationFailure(t *testing.T) {
	a := newRecordingModule("a", allCaps())
	a.failOn = "migrate"

	reg := module.NewRegistry()
	require.NoError(t, reg.Register(a))

	host := New(config.AppConfig{}, reg, nil, nil)
	err := host.RunMigrateOnly(context.Background())

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindMigrationFailed))
}

// staticBackend hands the monitor a fixed instance list without
// spawning any real child processes.
type staticBackend struct {
	instances []*oop.Instance
}

func (b *staticBackend) Spawn(ctx context.Context, spawn oop.SpawnConfig) (*oop.Instance, error) {
	return nil, errors.New("static backend cannot spawn")
}
func (b *staticBackend) Instances() []*oop.Instance { return b.instances }
func (b *staticBackend) Shutdown(time.Duration)     {}

func TestDirectoryMonitorEvictsStaleInstancesAndRecordsHeartbeat(t *testing.T) {
	svc := directory.NewService(10 * time.Millisecond) // stale after 30ms
	id := uuid.New()
	require.NoError(t, svc.Register(context.Background(), "worker", id, nil))

	inst := &oop.Instance{ModuleName: "worker", InstanceID: uuid.New()}
	backend := &staticBackend{instances: []*oop.Instance{inst}}

	host := New(config.AppConfig{}, module.NewRegistry(), svc, backend)
	host.monitorInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- host.RunServer(ctx) }()

	time.Sleep(150 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Empty(t, svc.Live(), "stale row should have been evicted")
	assert.False(t, inst.LastHeartbeatOK())
}

func TestSpawnOopModuleRequiresExecutionConfig(t *testing.T) {
	reg := module.NewRegistry()
	require.NoError(t, reg.RegisterOutOfProcess("worker", nil, module.NewCapabilitySet(module.CapabilityStart)))

	cfg := config.AppConfig{
		Modules: map[string]*config.ModuleConfig{
			"worker": {Runtime: &config.RuntimeSpec{Type: config.RuntimeOutOfProcess}},
		},
	}

	host := New(cfg, reg, directory.NewService(time.Second), oop.NewLocalProcessBackend())
	err := host.RunServer(context.Background())

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindSpawnFailed))
}
