package models

// Document is a unit of raw text handed to the core by the extraction layer.
type Document struct {
	SessionID string
	Name      string
	Text      string
}

// Chunk is a bounded slice of document text, the unit of embedding and
// retrieval. ID and SessionID are assigned by the store on upsert; the
// chunker only fills Index and Text.
type Chunk struct {
	ID        string
	SessionID string
	Index     int
	Text      string
	Embedding []float32
}

// Match pairs a stored chunk with its similarity to a query.
type Match struct {
	Chunk Chunk
	Score float32
}

// RetrievalResult is the ephemeral outcome of one retrieval call.
// Matches are ordered by descending score and capped at the caller's k.
type RetrievalResult struct {
	Query   string
	Matches []Match
}

// Empty reports whether no match cleared the similarity floor.
func (r RetrievalResult) Empty() bool {
	return len(r.Matches) == 0
}

// Answer is the result of a grounded question-answering call.
// Grounded is false when retrieval found nothing usable, or when the model
// judged the retrieved excerpts insufficient; Text then holds a fixed refusal.
type Answer struct {
	Grounded      bool
	Text          string
	Justification string
	Supporting    []Chunk
}

// ChallengeItem is one generated quiz question tied to the chunks it was
// drawn from. The evaluation fields are filled exactly once by Evaluate.
type ChallengeItem struct {
	Question      string
	Grounding     []Chunk
	UserAnswer    string
	Correct       bool
	Score         int
	Justification string
	Evaluated     bool
}
