package models

// Article is one crawled (or file-loaded) news article. Identity is the
// source URL hashed to a stable id, or the caller-supplied id for file input.
// Immutable once fetched.
type Article struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Chunk is one window of article text. ID is the ordinal within the article.
type Chunk struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ChatMessage is one entry of a per-session conversation. Role is either
// RoleUser or RoleBot; Timestamp is unix milliseconds.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// RetrievedChunk is a search hit from the vector index, payload flattened.
type RetrievedChunk struct {
	Text    string  `json:"text"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// Source is the citation info returned alongside an answer. ID is the
// 1-based number used in [n] citations.
type Source struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	ChunkID string `json:"chunk_id"`
}
