// CLAUDE:SUMMARY All store data types: User, Post, Comment, PostSummary, GenerationResult.
package store

// User is a row in the users table.
type User struct {
	ID        int64
	Username  string
	CreatedAt int64
}

// Post is a full post row joined with its author's username. BLOB columns
// are only populated by the image accessors.
type Post struct {
	ID               string
	UserID           int64
	Username         string
	ColorHex         string
	SquigglePoints   string
	StructuredObject string
	ImageAnalysis    string
	Features         string
	CompiledPrompt   string
	Enhancement      string
	AudioFilename    string
	Status           string
	ErrorMessage     string
	CreatedAt        int64
}

// Comment is a full comment row joined with its author's username.
type Comment struct {
	ID               string
	PostID           string
	UserID           int64
	Username         string
	ColorHex         string
	StructuredObject string
	ImageAnalysis    string
	Features         string
	CompiledPrompt   string
	AudioFilename    string
	Status           string
	ErrorMessage     string
	CreatedAt        int64
}

// PostSummary is the feed/profile projection of a post.
type PostSummary struct {
	ID            string
	Username      string
	AudioFilename string
	ColorHex      string
	CreatedAt     int64
	CommentCount  int
	Status        string
}

// GenerationResult carries everything the pipeline produced for one post or
// comment. JSON fields are pre-serialized by the caller.
type GenerationResult struct {
	ID               string
	ImageData        []byte // final (possibly morphed) image; nil for comments
	StructuredObject string
	ImageAnalysis    string
	Features         string
	CompiledPrompt   string
	Enhancement      string // empty when the morph branch was skipped
	AudioFilename    string
}
