package playlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeGenerator struct {
	meta  engine.PlaylistMetadata
	err   error
	calls int
	got   struct{ prompt, context string }
}

func (f *fakeGenerator) Generate(_ context.Context, prompt, userContext string) (engine.PlaylistMetadata, error) {
	f.calls++
	f.got.prompt, f.got.context = prompt, userContext
	return f.meta, f.err
}

type fakeSelector struct {
	res   engine.CurationResult
	err   error
	calls int
}

func (f *fakeSelector) Curate(_ context.Context, _, _ string, _ []engine.CandidateVideo) (engine.CurationResult, error) {
	f.calls++
	return f.res, f.err
}

type fakeSearcher struct {
	videos []engine.CandidateVideo
	err    error
	calls  int
	got    struct {
		query      string
		max        int
		credential string
	}
}

func (f *fakeSearcher) Search(_ context.Context, query string, maxResults int, credential string) ([]engine.CandidateVideo, error) {
	f.calls++
	f.got.query, f.got.max, f.got.credential = query, maxResults, credential
	return f.videos, f.err
}

type fakeContext struct {
	text  string
	calls int
}

func (f *fakeContext) GetContext(context.Context, string) string {
	f.calls++
	return f.text
}

type harness struct {
	gen    *fakeGenerator
	sel    *fakeSelector
	search *fakeSearcher
	uctx   *fakeContext
	orch   *Orchestrator
}

func newHarness(pool int) *harness {
	h := &harness{
		gen: &fakeGenerator{meta: engine.PlaylistMetadata{
			Name: "Study Session", Description: "Soft beats.", RefinedQuery: "lofi hip hop study",
		}},
		sel:    &fakeSelector{},
		search: &fakeSearcher{videos: candidates(pool)},
		uctx:   &fakeContext{text: "Recently liked videos: A"},
	}
	h.orch = NewOrchestrator(engine.Config{StageTimeout: time.Second}, h.gen, h.sel, h.search, h.uctx)
	return h
}

func ids(videos []engine.CandidateVideo) []string {
	out := make([]string, len(videos))
	for i, v := range videos {
		out[i] = v.ID
	}
	return out
}

// --- scenarios ---

func TestGenerateCuratedOrder(t *testing.T) {
	h := newHarness(50)
	picks := []string{"v07", "v02", "v33", "v50", "v01", "v19", "v20", "v44", "v12", "v05"}
	h.sel.res = engine.CurationResult{Name: "Lofi Library", Description: "Curated.", SelectedVideoIDs: picks}

	pl, err := h.orch.Generate(context.Background(), "chill lofi beats for studying", "")
	require.NoError(t, err)
	assert.Equal(t, picks, ids(pl.Videos))
	assert.Equal(t, "Lofi Library", pl.Name)
	assert.Equal(t, "Curated.", pl.Description)
	assert.True(t, pl.Curated)
	assert.Equal(t, "lofi hip hop study", pl.Query)
	assert.Equal(t, 50, h.search.got.max)
	assert.Zero(t, h.uctx.calls, "no credential means no context lookup")
}

func TestGenerateInvalidPrompt(t *testing.T) {
	for _, prompt := range []string{"", "  ", "\t\n", "a b c", " abcd "} {
		t.Run(fmt.Sprintf("%q", prompt), func(t *testing.T) {
			h := newHarness(50)
			_, err := h.orch.Generate(context.Background(), prompt, "tok")
			require.ErrorIs(t, err, engine.ErrInvalidPrompt)

			var pe *PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, StageValidate, pe.Stage)
			assert.Zero(t, h.uctx.calls+h.gen.calls+h.search.calls+h.sel.calls)
		})
	}
}

func TestGenerateNoResults(t *testing.T) {
	h := newHarness(0)
	_, err := h.orch.Generate(context.Background(), "music for a thunderstorm", "")
	require.ErrorIs(t, err, engine.ErrNoResults)

	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageSearch, pe.Stage)
	assert.Zero(t, h.sel.calls)
}

func TestGeneratePoolWithOnlyBlankIDs(t *testing.T) {
	h := newHarness(0)
	h.search.videos = []engine.CandidateVideo{{Title: "no id"}, {ID: "", Title: "still none"}}
	_, err := h.orch.Generate(context.Background(), "music for a thunderstorm", "")
	require.ErrorIs(t, err, engine.ErrNoResults)
	assert.Zero(t, h.sel.calls)
}

func TestGenerateCurationFallback(t *testing.T) {
	for _, curErr := range []error{
		fmt.Errorf("%w: 503", engine.ErrGenerationFailed),
		fmt.Errorf("%w: bad json", engine.ErrMalformedResponse),
	} {
		t.Run(curErr.Error(), func(t *testing.T) {
			h := newHarness(50)
			h.sel.err = curErr

			pl, err := h.orch.Generate(context.Background(), "songs for a rainy sunday", "")
			require.NoError(t, err)
			assert.Equal(t, ids(candidates(12)), ids(pl.Videos))
			assert.Equal(t, "Study Session", pl.Name)
			assert.Equal(t, "Soft beats.", pl.Description)
			assert.False(t, pl.Curated)
		})
	}
}

func TestGenerateFallbackSmallPool(t *testing.T) {
	h := newHarness(4)
	h.sel.err = engine.ErrGenerationFailed

	pl, err := h.orch.Generate(context.Background(), "songs for a rainy sunday", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"v01", "v02", "v03", "v04"}, ids(pl.Videos))
}

func TestGenerateCurationWithoutNameKeepsMetadata(t *testing.T) {
	h := newHarness(10)
	h.gen.meta.Name, h.gen.meta.Description = "Rainy Jazz", "Piano for grey days."
	curator := NewCurator(reply(`{"selectedVideoIds":["v01","v02"]}`), 8, 12)
	orch := NewOrchestrator(engine.Config{StageTimeout: time.Second}, h.gen, curator, h.search, h.uctx)

	pl, err := orch.Generate(context.Background(), "rainy day jazz", "")
	require.NoError(t, err)
	assert.True(t, pl.Curated)
	assert.Equal(t, "Rainy Jazz", pl.Name)
	assert.Equal(t, "Piano for grey days.", pl.Description)
	assert.Equal(t, []string{"v01", "v02"}, ids(pl.Videos))

	h.sel.res = engine.CurationResult{Description: "Late night keys.", SelectedVideoIDs: []string{"v03"}}
	pl, err = h.orch.Generate(context.Background(), "rainy day jazz", "")
	require.NoError(t, err)
	assert.Equal(t, "Rainy Jazz", pl.Name)
	assert.Equal(t, "Late night keys.", pl.Description)
}

func TestGenerateDropsHallucinatedIDs(t *testing.T) {
	h := newHarness(50)
	h.sel.res = engine.CurationResult{
		Name:             "Mixed",
		SelectedVideoIDs: []string{"v10", "ghost-1", "v03", "ghost-2", "v40"},
	}

	pl, err := h.orch.Generate(context.Background(), "upbeat morning run", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"v10", "v03", "v40"}, ids(pl.Videos))
}

func TestGenerateEmptySelection(t *testing.T) {
	for name, picks := range map[string][]string{
		"none selected": {},
		"all unknown":   {"x", "y"},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(20)
			h.sel.res = engine.CurationResult{Name: "N", SelectedVideoIDs: picks}

			_, err := h.orch.Generate(context.Background(), "upbeat morning run", "")
			require.ErrorIs(t, err, engine.ErrEmptySelection)
			var pe *PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, StageAssemble, pe.Stage)
		})
	}
}

func TestGenerateDuplicates(t *testing.T) {
	h := newHarness(0)
	h.search.videos = []engine.CandidateVideo{{ID: "a"}, {ID: "b"}, {ID: "a", Title: "dup"}, {ID: "c"}}
	h.sel.res = engine.CurationResult{Name: "N", SelectedVideoIDs: []string{"c", "a", "c", "b"}}

	pl, err := h.orch.Generate(context.Background(), "anything at all", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(pl.Videos))
	assert.Empty(t, pl.Videos[1].Title, "first occurrence in the pool wins")
}

func TestGenerateEmptyRefinedQueryUsesPrompt(t *testing.T) {
	h := newHarness(20)
	h.gen.meta.RefinedQuery = "   "
	h.sel.res = engine.CurationResult{SelectedVideoIDs: []string{"v01"}}

	_, err := h.orch.Generate(context.Background(), "  jazz for cooking  ", "")
	require.NoError(t, err)
	assert.Equal(t, "jazz for cooking", h.search.got.query)
}

func TestGenerateKeepsOriginalPrompt(t *testing.T) {
	h := newHarness(20)
	h.sel.res = engine.CurationResult{SelectedVideoIDs: []string{"v01"}}

	pl, err := h.orch.Generate(context.Background(), "  jazz for cooking  ", "")
	require.NoError(t, err)
	assert.Equal(t, "  jazz for cooking  ", pl.Prompt)
	assert.Equal(t, "jazz for cooking", h.gen.got.prompt)
}

func TestGenerateWithCredential(t *testing.T) {
	h := newHarness(20)
	h.sel.res = engine.CurationResult{SelectedVideoIDs: []string{"v01"}}

	_, err := h.orch.Generate(context.Background(), "jazz for cooking", "tok")
	require.NoError(t, err)
	assert.Equal(t, 1, h.uctx.calls)
	assert.Equal(t, "Recently liked videos: A", h.gen.got.context)
	assert.Equal(t, "tok", h.search.got.credential)
}

func TestGenerateEmptyContextSameShape(t *testing.T) {
	h := newHarness(20)
	h.uctx.text = ""
	h.sel.res = engine.CurationResult{Name: "N", SelectedVideoIDs: []string{"v02", "v01"}}

	pl, err := h.orch.Generate(context.Background(), "jazz for cooking", "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"v02", "v01"}, ids(pl.Videos))
	assert.Empty(t, h.gen.got.context)
}

func TestGenerateNilContextFetcher(t *testing.T) {
	h := newHarness(5)
	h.sel.res = engine.CurationResult{SelectedVideoIDs: []string{"v01"}}
	orch := NewOrchestrator(engine.Config{}, h.gen, h.sel, h.search, nil)

	_, err := orch.Generate(context.Background(), "jazz for cooking", "tok")
	require.NoError(t, err)
}

func TestGenerateStageFailures(t *testing.T) {
	t.Run("metadata", func(t *testing.T) {
		h := newHarness(20)
		h.gen.err = fmt.Errorf("%w: quota", engine.ErrGenerationFailed)
		_, err := h.orch.Generate(context.Background(), "jazz for cooking", "")

		var pe *PipelineError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, StageMetadata, pe.Stage)
		assert.ErrorIs(t, err, engine.ErrGenerationFailed)
		assert.Zero(t, h.search.calls)
	})

	t.Run("search", func(t *testing.T) {
		h := newHarness(20)
		h.search.err = &engine.ProviderError{Status: 400, Message: "bad"}
		_, err := h.orch.Generate(context.Background(), "jazz for cooking", "")

		var pe *PipelineError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, StageSearch, pe.Stage)
		var provErr *engine.ProviderError
		assert.ErrorAs(t, err, &provErr)
		assert.Zero(t, h.sel.calls)
	})

	t.Run("network", func(t *testing.T) {
		h := newHarness(20)
		h.search.err = &engine.NetworkError{Err: errors.New("connection refused")}
		_, err := h.orch.Generate(context.Background(), "jazz for cooking", "")
		var ne *engine.NetworkError
		assert.ErrorAs(t, err, &ne)
	})
}

type slowGenerator struct{}

func (slowGenerator) Generate(ctx context.Context, _, _ string) (engine.PlaylistMetadata, error) {
	<-ctx.Done()
	return engine.PlaylistMetadata{}, fmt.Errorf("%w: %w", engine.ErrGenerationFailed, ctx.Err())
}

func TestGenerateStageTimeout(t *testing.T) {
	h := newHarness(5)
	orch := NewOrchestrator(engine.Config{StageTimeout: 20 * time.Millisecond}, slowGenerator{}, h.sel, h.search, nil)

	_, err := orch.Generate(context.Background(), "jazz for cooking", "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, engine.ErrGenerationFailed)
}

// concurrentSelector is safe to share across goroutines.
type concurrentSelector struct{}

func (concurrentSelector) Curate(_ context.Context, _, _ string, c []engine.CandidateVideo) (engine.CurationResult, error) {
	return engine.CurationResult{Name: "N", SelectedVideoIDs: []string{c[len(c)-1].ID, c[0].ID}}, nil
}

type staticSearcher []engine.CandidateVideo

func (s staticSearcher) Search(context.Context, string, int, string) ([]engine.CandidateVideo, error) {
	return s, nil
}

type staticGenerator struct{}

func (staticGenerator) Generate(_ context.Context, prompt, _ string) (engine.PlaylistMetadata, error) {
	return engine.PlaylistMetadata{Name: "N", RefinedQuery: prompt}, nil
}

func TestGenerateRerollIndependent(t *testing.T) {
	orch := NewOrchestrator(engine.Config{}, staticGenerator{}, concurrentSelector{}, staticSearcher(candidates(30)), nil)

	var wg sync.WaitGroup
	results := make([]engine.Playlist, 8)
	errs := make([]error, 8)
	for i := range 8 {
		wg.Go(func() {
			results[i], errs[i] = orch.Generate(context.Background(), "same prompt twice", "")
		})
	}
	wg.Wait()
	for i := range 8 {
		require.NoError(t, errs[i])
		assert.Equal(t, []string{"v30", "v01"}, ids(results[i].Videos))
	}
}
