package domain

type MessageID string
type ContextID string

type Author string

const (
	AuthorUser  Author = "user"
	AuthorAgent Author = "agent"
)

// ChatMessage is one entry in the shared transcript. User messages are
// immutable once created; agent messages grow in place while the reply
// streams, always under the same ID.
type ChatMessage struct {
	ID      MessageID `json:"id"`
	Author  Author    `json:"author"`
	Content string    `json:"content"`
}

// CodeContextFile is one externally fetched source snippet attached to every
// assistant request. Content starts as a loading sentinel and is resolved in
// place once the fetch completes.
type CodeContextFile struct {
	ID       ContextID `json:"id"`
	URL      string    `json:"url"`
	FileName string    `json:"fileName"`
	Content  string    `json:"content"`
}
