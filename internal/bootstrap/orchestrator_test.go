package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/genesisforge/internal/builder"
	"github.com/vk/genesisforge/internal/chainspec"
	"github.com/vk/genesisforge/internal/failure"
	"github.com/vk/genesisforge/internal/stamp"
	"github.com/vk/genesisforge/internal/testutil"
)

const (
	plainJSON = `{"name":"Subsocial","id":"dev","bootNodes":[],"genesis":{"runtime":{"pallet_sudo":{"key":"5Grw"}}}}`
	rawJSON   = `{"name":"Subsocial","id":"dev","bootNodes":[],"genesis":{"raw":{"top":{"0x01":"0x02"},"childrenDefault":{}}}}`
)

// --- Fakes ---

type fakeBuilder struct {
	mu          sync.Mutex
	passes      []int
	failPass    int
	fingerprint stamp.Stamp
	// secondFingerprint, when set, is reported by the second build.
	secondFingerprint stamp.Stamp
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{fingerprint: stamp.Bytes([]byte("source-v1"))}
}

func (b *fakeBuilder) Build(ctx context.Context, pass int) (*builder.Artifact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passes = append(b.passes, pass)
	if b.failPass == pass {
		return nil, failure.New(failure.KindBuild, fmt.Sprintf("build.pass%d", pass), "build command failed: exit status 101")
	}
	fp := b.fingerprint
	if pass == 2 && b.secondFingerprint != stamp.None {
		fp = b.secondFingerprint
	}
	return &builder.Artifact{
		Path:              fmt.Sprintf("/work/target/node-%d", pass),
		Pass:              pass,
		Stamp:             stamp.Bytes([]byte(fmt.Sprintf("executable-%d", pass))),
		SourceFingerprint: fp,
	}, nil
}

func (b *fakeBuilder) Fingerprint(ctx context.Context) (stamp.Stamp, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fingerprint, nil
}

func (b *fakeBuilder) setFingerprint(s stamp.Stamp) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fingerprint = s
}

func (b *fakeBuilder) builtPasses() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.passes...)
}

type fakeGenerator struct {
	calls int
	err   error
	after func()
}

func (g *fakeGenerator) Generate(ctx context.Context, art *builder.Artifact, profile chainspec.Profile, disable bool) (*chainspec.Document, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if g.after != nil {
		g.after()
	}
	data := []byte(plainJSON)
	return &chainspec.Document{Kind: chainspec.Plain, Data: data, Producer: art.Stamp, Digest: stamp.Bytes(data)}, nil
}

type fakeConverter struct {
	calls    int
	err      error
	producer stamp.Stamp
	gotPlain *chainspec.Document
}

func (c *fakeConverter) Convert(ctx context.Context, art *builder.Artifact, plain *chainspec.Document) (*chainspec.Document, error) {
	c.calls++
	c.gotPlain = plain
	if c.err != nil {
		return nil, c.err
	}
	producer := art.Stamp
	if c.producer != stamp.None {
		producer = c.producer
	}
	data := []byte(rawJSON)
	return &chainspec.Document{Kind: chainspec.Raw, Data: data, Producer: producer, Digest: stamp.Bytes(data)}, nil
}

type fixture struct {
	builder   *fakeBuilder
	generator *fakeGenerator
	converter *fakeConverter
	cfg       Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		builder:   newFakeBuilder(),
		generator: &fakeGenerator{},
		converter: &fakeConverter{},
		cfg: Config{
			Profile:                "dev",
			DisableDefaultBootnode: true,
			PlainOutput:            filepath.Join(dir, "specs", "plain.json"),
			RawOutput:              filepath.Join(dir, "node", "res", "raw.json"),
		},
	}
}

func (f *fixture) run(t *testing.T) (*Result, error) {
	t.Helper()
	o, err := New(f.builder, f.generator, f.converter, f.cfg)
	require.NoError(t, err)
	ctx, _ := testutil.LoggedContext(t)
	return o.Run(ctx)
}

func stagesOf(ts []Transition) []string {
	out := make([]string, len(ts))
	for i, tr := range ts {
		out[i] = tr.Stage
	}
	return out
}

// --- Tests ---

func TestGraph(t *testing.T) {
	g, err := Graph()
	require.NoError(t, err)

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{StageFirstBuild, StagePlainSpec, StageRawSpec, StageSecondBuild}, order)

	deps, err := g.Dependencies(StageSecondBuild)
	require.NoError(t, err)
	assert.Equal(t, []string{StageFirstBuild, StageRawSpec}, deps)
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t)
	res, err := f.run(t)
	require.NoError(t, err)

	assert.Equal(t, Built2, res.State)
	assert.Equal(t, []int{1, 2}, f.builder.builtPasses())
	assert.Equal(t, []Transition{
		{Stage: StageFirstBuild, From: NotBuilt, To: Built1},
		{Stage: StagePlainSpec, From: Built1, To: PlainGenerated},
		{Stage: StageRawSpec, From: PlainGenerated, To: RawGenerated},
		{Stage: StageSecondBuild, From: RawGenerated, To: Built2},
	}, res.Transitions)

	plain, err := os.ReadFile(f.cfg.PlainOutput)
	require.NoError(t, err)
	assert.JSONEq(t, plainJSON, string(plain))
	raw, err := os.ReadFile(f.cfg.RawOutput)
	require.NoError(t, err)
	assert.JSONEq(t, rawJSON, string(raw))

	assert.Equal(t, f.cfg.PlainOutput, res.Plain.Path)
	assert.Equal(t, f.cfg.RawOutput, res.Raw.Path)
	assert.Same(t, res.Plain, f.converter.gotPlain, "the converter must receive the persisted plain document")
	assert.Equal(t, res.First.Stamp, res.Raw.Producer)
	assert.Equal(t, 2, res.Final.Pass)
	assert.True(t, res.RawChanged)
}

func TestRun_LogsCarryProfile(t *testing.T) {
	f := newFixture(t)
	o, err := New(f.builder, f.generator, f.converter, f.cfg)
	require.NoError(t, err)
	ctx, logs := testutil.LoggedContext(t)

	_, err = o.Run(ctx)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "profile=dev")
}

func TestRun_FirstBuildFails(t *testing.T) {
	f := newFixture(t)
	f.builder.failPass = 1

	res, err := f.run(t)
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindBuild))

	assert.Equal(t, Failed, res.State)
	assert.Equal(t, []Transition{{Stage: StageFirstBuild, From: NotBuilt, To: Failed}}, res.Transitions)
	assert.Zero(t, f.generator.calls)
	assert.Zero(t, f.converter.calls)
	assert.NoFileExists(t, f.cfg.PlainOutput)
	assert.NoFileExists(t, f.cfg.RawOutput)
}

func TestRun_GenerationFails(t *testing.T) {
	f := newFixture(t)
	f.generator.err = failure.New(failure.KindSpecGeneration, StagePlainSpec, "executable emitted an unusable plain spec")

	res, err := f.run(t)
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindSpecGeneration))
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, []string{StageFirstBuild, StagePlainSpec}, stagesOf(res.Transitions))
	assert.Equal(t, []int{1}, f.builder.builtPasses())
	assert.Zero(t, f.converter.calls)
	assert.NoFileExists(t, f.cfg.PlainOutput)
	assert.NoFileExists(t, f.cfg.RawOutput)
}

func TestRun_ConversionFails(t *testing.T) {
	f := newFixture(t)
	f.converter.err = failure.New(failure.KindConversion, StageRawSpec, "executable changed since it was built")

	res, err := f.run(t)
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindConversion))
	assert.Equal(t, Failed, res.State)
	assert.FileExists(t, f.cfg.PlainOutput)
	assert.NoFileExists(t, f.cfg.RawOutput)
	assert.Equal(t, []int{1}, f.builder.builtPasses())
}

func TestRun_RawFromForeignExecutable(t *testing.T) {
	f := newFixture(t)
	f.converter.producer = stamp.Bytes([]byte("some other build"))

	res, err := f.run(t)
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindConversion))
	assert.Contains(t, err.Error(), "not by the first build")
	assert.Equal(t, Failed, res.State)
	assert.NoFileExists(t, f.cfg.RawOutput)
	assert.Equal(t, []int{1}, f.builder.builtPasses())
}

func TestRun_SourceDriftBeforeSecondBuild(t *testing.T) {
	f := newFixture(t)
	f.generator.after = func() { f.builder.setFingerprint(stamp.Bytes([]byte("source-v2"))) }

	res, err := f.run(t)
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindConversion))
	assert.Contains(t, err.Error(), "source tree changed since the first build")
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, []int{1}, f.builder.builtPasses(), "the second build must not start on drifted sources")
	assert.Nil(t, res.Final)
}

func TestRun_SourceDriftDuringSecondBuild(t *testing.T) {
	f := newFixture(t)
	f.builder.secondFingerprint = stamp.Bytes([]byte("source-v3"))

	res, err := f.run(t)
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindConversion))
	assert.Equal(t, []int{1, 2}, f.builder.builtPasses())
	assert.Nil(t, res.Final)
}

func TestRun_OutputWriteFailure(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	f.cfg.PlainOutput = filepath.Join(blocker, "plain.json")

	res, err := f.run(t)
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindOutputWrite))
	assert.Equal(t, Failed, res.State)
	assert.Zero(t, f.converter.calls)
	assert.NoFileExists(t, f.cfg.RawOutput)
}

func TestRun_RawUnchanged(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.cfg.RawOutput), 0o755))
	require.NoError(t, os.WriteFile(f.cfg.RawOutput, []byte(rawJSON), 0o644))

	res, err := f.run(t)
	require.NoError(t, err)
	assert.False(t, res.RawChanged)
	assert.Equal(t, []int{1, 2}, f.builder.builtPasses(), "the second build runs even when the raw spec is unchanged")
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	o, err := New(f.builder, f.generator, f.converter, f.cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := o.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, failure.IsKind(err, failure.KindBuild))
	assert.Equal(t, Failed, res.State)
	assert.Empty(t, f.builder.builtPasses())
}

func TestRun_SingleUse(t *testing.T) {
	f := newFixture(t)
	o, err := New(f.builder, f.generator, f.converter, f.cfg)
	require.NoError(t, err)

	ctx, _ := testutil.LoggedContext(t)
	_, err = o.Run(ctx)
	require.NoError(t, err)
	_, err = o.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, f.builder.builtPasses())
}

func TestNew_Validation(t *testing.T) {
	valid := Config{Profile: "local", PlainOutput: "plain.json", RawOutput: "raw.json"}

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "empty profile", mutate: func(c *Config) { c.Profile = "" }},
		{name: "flag-like profile", mutate: func(c *Config) { c.Profile = "--dev" }},
		{name: "missing plain output", mutate: func(c *Config) { c.PlainOutput = "" }},
		{name: "missing raw output", mutate: func(c *Config) { c.RawOutput = "" }},
		{name: "same output twice", mutate: func(c *Config) { c.RawOutput = "./plain.json" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			_, err := New(newFakeBuilder(), &fakeGenerator{}, &fakeConverter{}, cfg)
			require.Error(t, err)
			assert.True(t, failure.IsKind(err, failure.KindConfig))
		})
	}

	_, err := New(nil, &fakeGenerator{}, &fakeConverter{}, valid)
	assert.True(t, failure.IsKind(err, failure.KindConfig))
	_, err = New(newFakeBuilder(), &fakeGenerator{}, &fakeConverter{}, valid)
	assert.NoError(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "NotBuilt", NotBuilt.String())
	assert.Equal(t, "RawGenerated", RawGenerated.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.True(t, Failed.Terminal())
	assert.True(t, Built2.Terminal())
	assert.False(t, PlainGenerated.Terminal())
}
