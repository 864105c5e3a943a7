package playlist

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
)

// MinPromptChars is the minimum number of non-whitespace characters a prompt needs.
const MinPromptChars = 5

// VideoSearcher fetches the candidate pool. *sources.YouTubeSearch satisfies it.
type VideoSearcher interface {
	Search(ctx context.Context, query string, maxResults int, credential string) ([]engine.CandidateVideo, error)
}

// ContextFetcher summarizes a user's taste. It must not fail.
type ContextFetcher interface {
	GetContext(ctx context.Context, credential string) string
}

// Generator produces playlist metadata.
type Generator interface {
	Generate(ctx context.Context, prompt, userContext string) (engine.PlaylistMetadata, error)
}

// Selector curates the candidate pool.
type Selector interface {
	Curate(ctx context.Context, prompt, userContext string, candidates []engine.CandidateVideo) (engine.CurationResult, error)
}

// Orchestrator runs prompt → context → metadata → search → curate → assemble.
// It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	meta         Generator
	curator      Selector
	search       VideoSearcher
	userContext  ContextFetcher // nil disables personalization
	stageTimeout time.Duration
	poolSize     int
	fallbackSize int
	steps        []step
}

// NewOrchestrator wires the stages. userContext may be nil.
func NewOrchestrator(cfg engine.Config, meta Generator, curator Selector, search VideoSearcher, userContext ContextFetcher) *Orchestrator {
	cfg = cfg.WithDefaults()
	o := &Orchestrator{
		meta:         meta,
		curator:      curator,
		search:       search,
		userContext:  userContext,
		stageTimeout: cfg.StageTimeout,
		poolSize:     cfg.SearchPoolSize,
		fallbackSize: cfg.FallbackSize,
	}
	o.steps = []step{
		{stage: StageValidate, run: o.validate},
		{stage: StageContext, run: o.fetchContext},
		{stage: StageMetadata, run: o.generateMetadata},
		{stage: StageSearch, run: o.searchPool},
		{stage: StageCurate, run: o.curate, fallback: o.fallbackCuration},
		{stage: StageAssemble, run: o.assemble},
	}
	return o
}

// run is the state of one pipeline invocation.
type run struct {
	prompt      string // as received
	trimmed     string
	credential  string
	userContext string
	meta        engine.PlaylistMetadata
	pool        []engine.CandidateVideo
	curation    engine.CurationResult
	curated     bool
	videos      []engine.CandidateVideo
}

// step is one row of the pipeline table. A step with a fallback recovers
// from its own failure; any other failure aborts the run.
type step struct {
	stage    Stage
	run      func(context.Context, *run) error
	fallback func(*run, error)
}

// Generate runs the pipeline once. Rerolls simply call it again.
func (o *Orchestrator) Generate(ctx context.Context, prompt, credential string) (out engine.Playlist, err error) {
	_ = engine.TrackOperation(ctx, "playlist:generate", func(ctx context.Context) error {
		out, err = o.generate(ctx, prompt, credential)
		return err
	})
	return
}

func (o *Orchestrator) generate(ctx context.Context, prompt, credential string) (engine.Playlist, error) {
	engine.IncrPipelineRun()
	r := &run{prompt: prompt, trimmed: strings.TrimSpace(prompt), credential: credential}

	for _, s := range o.steps {
		start := time.Now()
		err := o.runStep(ctx, s, r)
		if err == nil {
			slog.Debug("playlist: stage done", slog.String("stage", string(s.stage)), slog.Duration("took", time.Since(start)))
			continue
		}
		if s.fallback != nil {
			slog.Warn("playlist: stage failed, using fallback",
				slog.String("stage", string(s.stage)), slog.Any("error", err))
			s.fallback(r, err)
			continue
		}
		engine.IncrPipelineFailure()
		slog.Warn("playlist: pipeline aborted", slog.String("stage", string(s.stage)), slog.Any("error", err))
		return engine.Playlist{}, &PipelineError{Stage: s.stage, Err: err}
	}

	name, desc := r.meta.Name, r.meta.Description
	if r.curated {
		name = curatedOr(r.curation.Name, DefaultName, name)
		desc = curatedOr(r.curation.Description, DefaultDescription, desc)
	}
	slog.Info("playlist: generated",
		slog.String("query", r.meta.RefinedQuery), slog.Int("pool", len(r.pool)),
		slog.Int("videos", len(r.videos)), slog.Bool("curated", r.curated))
	return engine.Playlist{
		Name:        name,
		Description: desc,
		Prompt:      r.prompt,
		Query:       r.meta.RefinedQuery,
		Curated:     r.curated,
		Videos:      r.videos,
	}, nil
}

func (o *Orchestrator) runStep(ctx context.Context, s step, r *run) error {
	if o.stageTimeout <= 0 {
		return s.run(ctx, r)
	}
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()
	return s.run(ctx, r)
}

func (o *Orchestrator) validate(_ context.Context, r *run) error {
	if !ValidPrompt(r.trimmed) {
		return engine.ErrInvalidPrompt
	}
	return nil
}

// ValidPrompt reports whether prompt has at least MinPromptChars
// non-whitespace characters.
func ValidPrompt(prompt string) bool {
	n := 0
	for _, c := range prompt {
		if !unicode.IsSpace(c) {
			n++
		}
	}
	return n >= MinPromptChars
}

func (o *Orchestrator) fetchContext(ctx context.Context, r *run) error {
	if r.credential == "" || o.userContext == nil {
		return nil
	}
	r.userContext = o.userContext.GetContext(ctx, r.credential)
	return nil
}

func (o *Orchestrator) generateMetadata(ctx context.Context, r *run) error {
	meta, err := o.meta.Generate(ctx, r.trimmed, r.userContext)
	if err != nil {
		return err
	}
	if strings.TrimSpace(meta.RefinedQuery) == "" {
		meta.RefinedQuery = r.trimmed
	}
	r.meta = meta
	return nil
}

func (o *Orchestrator) searchPool(ctx context.Context, r *run) error {
	videos, err := o.search.Search(ctx, r.meta.RefinedQuery, o.poolSize, r.credential)
	if err != nil {
		return err
	}
	r.pool = uniqueByID(videos)
	if len(r.pool) == 0 {
		return engine.ErrNoResults
	}
	return nil
}

func (o *Orchestrator) curate(ctx context.Context, r *run) error {
	res, err := o.curator.Curate(ctx, r.trimmed, r.userContext, r.pool)
	if err != nil {
		return err
	}
	r.curation = res
	r.curated = true
	return nil
}

// fallbackCuration takes the head of the pool in provider order under the
// metadata name.
func (o *Orchestrator) fallbackCuration(r *run, _ error) {
	engine.IncrCurationFallback()
	n := min(o.fallbackSize, len(r.pool))
	ids := make([]string, n)
	for i := range n {
		ids[i] = r.pool[i].ID
	}
	r.curation = engine.CurationResult{
		Name:             r.meta.Name,
		Description:      r.meta.Description,
		SelectedVideoIDs: ids,
	}
	r.curated = false
}

// assemble resolves selected ids against the pool, keeping selection order.
// Unknown and repeated ids are dropped.
func (o *Orchestrator) assemble(_ context.Context, r *run) error {
	byID := make(map[string]engine.CandidateVideo, len(r.pool))
	for _, v := range r.pool {
		byID[v.ID] = v
	}
	seen := make(map[string]bool, len(r.curation.SelectedVideoIDs))
	videos := make([]engine.CandidateVideo, 0, len(r.curation.SelectedVideoIDs))
	dropped := 0
	for _, id := range r.curation.SelectedVideoIDs {
		id = strings.TrimSpace(id)
		v, ok := byID[id]
		if !ok || seen[id] {
			dropped++
			continue
		}
		seen[id] = true
		videos = append(videos, v)
	}
	if dropped > 0 {
		slog.Debug("playlist: dropped unresolvable picks", slog.Int("dropped", dropped))
	}
	if len(videos) == 0 {
		return engine.ErrEmptySelection
	}
	r.videos = videos
	return nil
}

// curatedOr prefers the curator's value unless it is empty or the curator's
// own placeholder, in which case the metadata value stands.
func curatedOr(curated, placeholder, meta string) string {
	if curated = strings.TrimSpace(curated); curated == "" || curated == placeholder {
		return meta
	}
	return curated
}

// uniqueByID drops entries with an empty or repeated id, keeping first occurrence.
func uniqueByID(videos []engine.CandidateVideo) []engine.CandidateVideo {
	seen := make(map[string]bool, len(videos))
	out := make([]engine.CandidateVideo, 0, len(videos))
	for _, v := range videos {
		if v.ID == "" || seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		out = append(out, v)
	}
	return out
}
