package models

import "time"

// KnowledgeDocument is one remote document after fetching and normalization.
// Documents are immutable once fetched; the next fetch supersedes them.
type KnowledgeDocument struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	FetchedAt        time.Time `json:"fetchedAt"`
	RemoteModifiedAt string    `json:"remoteModifiedAt"` // RFC3339 or epoch string as reported by the source
}

// DocumentFailure records a document that was excluded from a snapshot.
// RemoteModifiedAt is set when metadata was read but content was not.
type DocumentFailure struct {
	ID               string `json:"id"`
	Error            string `json:"error"`
	RemoteModifiedAt string `json:"remoteModifiedAt,omitempty"`
}

// KnowledgeSnapshot is the combined knowledge context handed to the answer router.
// CombinedText is derived from Documents and never edited by hand.
type KnowledgeSnapshot struct {
	CombinedText string              `json:"combinedText"`
	Documents    []KnowledgeDocument `json:"documents"`
	FetchedAt    time.Time           `json:"fetchedAt"`

	// Failed lists documents excluded by the fail-soft rule (not part of CombinedText)
	Failed []DocumentFailure `json:"failed,omitempty"`
}

// Titles returns the document titles in snapshot order
func (s *KnowledgeSnapshot) Titles() []string {
	titles := make([]string, 0, len(s.Documents))
	for _, d := range s.Documents {
		titles = append(titles, d.Title)
	}
	return titles
}
