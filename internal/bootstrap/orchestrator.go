package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/vk/genesisforge/internal/builder"
	"github.com/vk/genesisforge/internal/chainspec"
	"github.com/vk/genesisforge/internal/ctxlog"
	"github.com/vk/genesisforge/internal/dag"
	"github.com/vk/genesisforge/internal/failure"
	"github.com/vk/genesisforge/internal/fsutil"
)

// Stage identifiers, also used as failure ops.
const (
	StageFirstBuild  = "build.first"
	StagePlainSpec   = "spec.plain"
	StageRawSpec     = "spec.raw"
	StageSecondBuild = "build.second"
)

// SpecGenerator emits a plain spec from a built executable.
type SpecGenerator interface {
	Generate(ctx context.Context, art *builder.Artifact, profile chainspec.Profile, disableBootnodes bool) (*chainspec.Document, error)
}

// SpecConverter turns a persisted plain spec into a raw one.
type SpecConverter interface {
	Convert(ctx context.Context, art *builder.Artifact, plain *chainspec.Document) (*chainspec.Document, error)
}

// Config holds the inputs of a bootstrap run.
type Config struct {
	Profile                chainspec.Profile
	DisableDefaultBootnode bool
	// PlainOutput and RawOutput are the fixed paths the documents are
	// persisted to. The raw path is the one the second build embeds.
	PlainOutput string
	RawOutput   string
}

// Result describes a finished or failed run.
type Result struct {
	State State
	First *builder.Artifact
	Final *builder.Artifact
	Plain *chainspec.Document
	Raw   *chainspec.Document
	// RawChanged is false when the raw document is byte-identical to the
	// file it replaced.
	RawChanged  bool
	Transitions []Transition
}

// Orchestrator runs the bootstrap stages. An Orchestrator is single-use.
type Orchestrator struct {
	builder   builder.Builder
	generator SpecGenerator
	converter SpecConverter
	cfg       Config

	mu   sync.Mutex
	used bool
}

type stage struct {
	from State
	to   State
	run  func(ctx context.Context, r *Result) error
}

// New validates cfg and returns an orchestrator.
func New(b builder.Builder, gen SpecGenerator, conv SpecConverter, cfg Config) (*Orchestrator, error) {
	const op = "bootstrap"
	if b == nil || gen == nil || conv == nil {
		return nil, failure.New(failure.KindConfig, op, "builder, generator and converter are required")
	}
	if err := cfg.Profile.Validate(); err != nil {
		return nil, failure.Wrap(failure.KindConfig, op, err, "invalid chain profile")
	}
	if cfg.PlainOutput == "" || cfg.RawOutput == "" {
		return nil, failure.New(failure.KindConfig, op, "plain and raw output paths are required")
	}
	if filepath.Clean(cfg.PlainOutput) == filepath.Clean(cfg.RawOutput) {
		return nil, failure.New(failure.KindConfig, op, "plain and raw outputs must be different files: %s", cfg.PlainOutput)
	}
	return &Orchestrator{builder: b, generator: gen, converter: conv, cfg: cfg}, nil
}

// Graph returns the stage graph in the order it was declared.
func Graph() (*dag.Graph, error) {
	g := dag.New()
	for _, id := range []string{StageFirstBuild, StagePlainSpec, StageRawSpec, StageSecondBuild} {
		g.AddNode(id)
	}
	edges := [][2]string{
		{StageFirstBuild, StagePlainSpec},
		{StagePlainSpec, StageRawSpec},
		{StageRawSpec, StageSecondBuild},
		{StageFirstBuild, StageSecondBuild},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	return g, nil
}

// Run executes every stage. On failure the returned Result is in state
// Failed and holds whatever the completed stages produced; no later stage
// runs and no later output is written.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.used {
		o.mu.Unlock()
		return nil, errors.New("bootstrap orchestrator has already run")
	}
	o.used = true
	o.mu.Unlock()

	ctx = ctxlog.With(ctx, "profile", string(o.cfg.Profile))
	logger := ctxlog.FromContext(ctx)

	g, err := Graph()
	if err != nil {
		return nil, fmt.Errorf("building bootstrap graph: %w", err)
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("ordering bootstrap graph: %w", err)
	}

	stages := map[string]stage{
		StageFirstBuild:  {from: NotBuilt, to: Built1, run: o.firstBuild},
		StagePlainSpec:   {from: Built1, to: PlainGenerated, run: o.plainSpec},
		StageRawSpec:     {from: PlainGenerated, to: RawGenerated, run: o.rawSpec},
		StageSecondBuild: {from: RawGenerated, to: Built2, run: o.secondBuild},
	}

	res := &Result{State: NotBuilt}
	logger.Info("🚀 Starting bootstrap.", "stages", len(order))
	for _, id := range order {
		st, ok := stages[id]
		if !ok {
			return nil, fmt.Errorf("bootstrap graph has no runner for stage %q", id)
		}
		if res.State != st.from {
			return o.fail(ctx, res, id, failure.New(failure.KindSpecGeneration, id,
				"stage requires state %s but run is in %s", st.from, res.State))
		}
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, res, id, failure.Wrap(stageKind(id), id, err, "bootstrap cancelled"))
		}

		logger.Debug("Running bootstrap stage.", "stage", id, "state", res.State)
		if err := st.run(ctx, res); err != nil {
			return o.fail(ctx, res, id, err)
		}
		res.Transitions = append(res.Transitions, Transition{Stage: id, From: st.from, To: st.to})
		res.State = st.to
	}

	logger.Info("🏁 Bootstrap finished.",
		"executable", res.Final.Path,
		"executable_stamp", res.Final.Stamp.Short(),
		"raw_spec", res.Raw.Path,
		"raw_changed", res.RawChanged,
	)
	return res, nil
}

func (o *Orchestrator) fail(ctx context.Context, res *Result, id string, err error) (*Result, error) {
	ctxlog.FromContext(ctx).Error("Bootstrap stage failed.", "stage", id, "state", res.State, "error", err)
	res.Transitions = append(res.Transitions, Transition{Stage: id, From: res.State, To: Failed})
	res.State = Failed
	return res, err
}

func stageKind(id string) failure.Kind {
	switch id {
	case StageFirstBuild, StageSecondBuild:
		return failure.KindBuild
	default:
		return failure.KindSpecGeneration
	}
}

func (o *Orchestrator) firstBuild(ctx context.Context, r *Result) error {
	art, err := o.builder.Build(ctx, 1)
	if err != nil {
		return err
	}
	r.First = art
	return nil
}

func (o *Orchestrator) plainSpec(ctx context.Context, r *Result) error {
	if r.First == nil {
		return failure.New(failure.KindSpecGeneration, StagePlainSpec, "executable has not been built")
	}
	doc, err := o.generator.Generate(ctx, r.First, o.cfg.Profile, o.cfg.DisableDefaultBootnode)
	if err != nil {
		return err
	}
	if err := persist(StagePlainSpec, o.cfg.PlainOutput, doc); err != nil {
		return err
	}
	r.Plain = doc
	return nil
}

func (o *Orchestrator) rawSpec(ctx context.Context, r *Result) error {
	if r.Plain == nil || r.Plain.Path == "" {
		return failure.New(failure.KindSpecGeneration, StageRawSpec, "plain spec has not been generated")
	}
	doc, err := o.converter.Convert(ctx, r.First, r.Plain)
	if err != nil {
		return err
	}
	if err := checkProducer(StageRawSpec, r.First, doc); err != nil {
		return err
	}

	previous, err := os.ReadFile(o.cfg.RawOutput)
	switch {
	case err == nil:
		r.RawChanged = !bytes.Equal(previous, doc.Data)
	case errors.Is(err, fs.ErrNotExist):
		r.RawChanged = true
	default:
		return failure.WithPath(failure.Wrap(failure.KindOutputWrite, StageRawSpec, err, "cannot read previous raw spec"), o.cfg.RawOutput)
	}
	if !r.RawChanged {
		ctxlog.FromContext(ctx).Info("Raw chain spec is unchanged; the second build will embed identical genesis.", "path", o.cfg.RawOutput)
	}

	if err := persist(StageRawSpec, o.cfg.RawOutput, doc); err != nil {
		return err
	}
	r.Raw = doc
	return nil
}

func (o *Orchestrator) secondBuild(ctx context.Context, r *Result) error {
	const op = StageSecondBuild
	if r.Raw == nil || r.Raw.Path == "" {
		return failure.New(failure.KindSpecGeneration, op, "raw spec has not been generated")
	}
	if err := checkProducer(op, r.First, r.Raw); err != nil {
		return err
	}
	if err := o.checkSource(ctx, op, r); err != nil {
		return err
	}

	art, err := o.builder.Build(ctx, 2)
	if err != nil {
		return err
	}
	if art.SourceFingerprint != r.First.SourceFingerprint {
		return failure.New(failure.KindConversion, op,
			"source tree changed during the second build (first %s, second %s)",
			r.First.SourceFingerprint.Short(), art.SourceFingerprint.Short())
	}
	r.Final = art
	return nil
}

// checkProducer fails unless doc was emitted by the executable of art.
func checkProducer(op string, art *builder.Artifact, doc *chainspec.Document) error {
	if doc.Producer == art.Stamp {
		return nil
	}
	err := failure.New(failure.KindConversion, op,
		"%s spec was produced by executable %s, not by the first build %s", doc.Kind, doc.Producer.Short(), art.Stamp.Short())
	if doc.Path != "" {
		err = failure.WithPath(err, doc.Path)
	}
	return err
}

// checkSource fails when the source tree drifted since the first build,
// since the raw spec would then describe a different runtime than the one
// about to embed it.
func (o *Orchestrator) checkSource(ctx context.Context, op string, r *Result) error {
	current, err := o.builder.Fingerprint(ctx)
	if err != nil {
		return failure.Wrap(failure.KindBuild, op, err, "cannot fingerprint source tree")
	}
	if current != r.First.SourceFingerprint {
		return failure.New(failure.KindConversion, op,
			"source tree changed since the first build (was %s, now %s)",
			r.First.SourceFingerprint.Short(), current.Short())
	}
	return nil
}

func persist(op, path string, doc *chainspec.Document) error {
	if err := fsutil.WriteFileAtomic(path, doc.Data, 0o644); err != nil {
		return failure.WithPath(failure.Wrap(failure.KindOutputWrite, op, err, "cannot persist %s spec", doc.Kind), path)
	}
	doc.Path = path
	return nil
}
