package playlist

import (
	"context"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
)

const maxCandidateDescription = 200

// Curator asks the model to pick and order a subset of the candidate pool.
// It does not check the picks against the pool; assembly does.
type Curator struct {
	llm      Model
	min, max int
}

// NewCurator returns a Curator asking for between minPicks and maxPicks videos.
func NewCurator(llm Model, minPicks, maxPicks int) *Curator {
	return &Curator{llm: llm, min: minPicks, max: max(minPicks, maxPicks)}
}

func (c *Curator) Curate(ctx context.Context, prompt, userContext string, candidates []engine.CandidateVideo) (engine.CurationResult, error) {
	user := fmt.Sprintf(curatePrompt, c.min, c.max, prompt, contextOrNone(userContext), formatCandidates(candidates))
	raw, err := c.llm.Call(ctx, curateSystem, user)
	if err != nil {
		return engine.CurationResult{}, generationErr(err)
	}
	res, err := engine.ParseJSON[engine.CurationResult](raw)
	if err != nil {
		return engine.CurationResult{}, err
	}

	res.Name = orDefault(res.Name, DefaultName)
	res.Description = orDefault(res.Description, DefaultDescription)
	if res.SelectedVideoIDs == nil {
		res.SelectedVideoIDs = []string{}
	}
	return res, nil
}

// formatCandidates renders the pool as a numbered listing for the prompt.
func formatCandidates(candidates []engine.CandidateVideo) string {
	var sb strings.Builder
	for i, v := range candidates {
		desc := engine.TruncateRunes(engine.CollapseSpace(v.Description), maxCandidateDescription, "...")
		fmt.Fprintf(&sb, "%d. ID: %s\n   Title: %s\n   Channel: %s\n   Description: %s\n",
			i+1, v.ID, engine.CollapseSpace(v.Title), v.ChannelTitle, desc)
	}
	return sb.String()
}
