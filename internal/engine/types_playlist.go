package engine

// --- Pipeline data model ---

// CandidateVideo is one normalized search result.
type CandidateVideo struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channel_title"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url"`
	PublishedAt  string `json:"published_at,omitempty"` // RFC 3339, empty when unknown
}

// PlaylistMetadata is the first model pass: naming plus the search query.
type PlaylistMetadata struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	RefinedQuery string `json:"refinedQuery"`
}

// CurationResult is the second model pass. SelectedVideoIDs is ordered by
// relevance and may reference ids the pool never had.
type CurationResult struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	SelectedVideoIDs []string `json:"selectedVideoIds"`
}

// Playlist is the final artifact of one pipeline run.
type Playlist struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Prompt      string           `json:"prompt"`
	Query       string           `json:"query,omitempty"`
	Curated     bool             `json:"curated"`
	Videos      []CandidateVideo `json:"videos"`
}

// --- Tool inputs/outputs ---

type GeneratePlaylistInput struct {
	Prompt     string `json:"prompt" jsonschema:"Free-text mood or theme, at least 5 characters"`
	UserID     string `json:"user_id,omitempty" jsonschema:"Opaque user id; enables usage limits"`
	Credential string `json:"credential,omitempty" jsonschema:"Optional YouTube OAuth bearer token for personalization"`
}

type SavePlaylistInput struct {
	UserID   string   `json:"user_id" jsonschema:"Opaque user id"`
	Playlist Playlist `json:"playlist" jsonschema:"Playlist returned by generate_playlist"`
}

type ListPlaylistsInput struct {
	UserID string `json:"user_id" jsonschema:"Opaque user id"`
}

type DeletePlaylistInput struct {
	UserID string `json:"user_id" jsonschema:"Opaque user id"`
	ID     string `json:"id" jsonschema:"Saved playlist id"`
}

// SavedPlaylist is a persisted playlist owned by one user.
type SavedPlaylist struct {
	ID        string   `json:"id"`
	CreatedAt string   `json:"created_at"` // RFC 3339
	Playlist  Playlist `json:"playlist"`
}

type ListPlaylistsOutput struct {
	Playlists []SavedPlaylist `json:"playlists"`
	Total     int             `json:"total"`
}

type DeletePlaylistOutput struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
