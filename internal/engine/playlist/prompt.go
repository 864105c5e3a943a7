package playlist

// LLM prompt templates: data only, no logic.

const metadataSystem = `You are a playlist curator for a video mood board. You reply with a single JSON object and nothing else.`

// metadataPrompt turns a mood prompt into playlist naming and a search query.
// Args: prompt, user context.
const metadataPrompt = `Based on the user's prompt and optional history context, produce:
1. "name": a unique, catchy name for the playlist.
2. "description": one or two sentences on the playlist's content and vibe.
3. "refinedQuery": a concise YouTube search query (under 10 words) that finds videos matching the prompt.

If history context is given (liked videos, subscribed channels), use it to infer taste.
For example, a user subscribed to many jazz channels asking for "relaxing music" should lean towards jazz.
Do not restrict results to that taste when the prompt clearly asks for something else.

Respond with valid JSON only:
{"name": "...", "description": "...", "refinedQuery": "..."}

User prompt: %s
User history context: %s`

const curateSystem = `You are an expert video curator. You pick and order videos from a fixed list. You reply with a single JSON object and nothing else.`

// curatePrompt ranks a candidate pool against the prompt.
// Args: min picks, max picks, prompt, user context, candidate listing.
const curatePrompt = `Read every candidate below, then select %d to %d videos that best match the user's prompt and taste.
Order them from most to least relevant.

Rules:
- Only use ids that appear in the candidate list. Never invent ids.
- Prefer variety of channels when relevance is similar.
- Give the playlist a fitting name and a one or two sentence description.

Respond with valid JSON only:
{"name": "...", "description": "...", "selectedVideoIds": ["id1", "id2"]}

User prompt: %s
User history context: %s

Candidates:
%s`
