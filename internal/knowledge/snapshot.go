package knowledge

import (
	"strings"
	"time"

	"knowledgebot/internal/models"
)

// EmptyKnowledgePlaceholder is the context used when no documents are configured
const EmptyKnowledgePlaceholder = "No knowledge base documents are configured."

// BuildSnapshot derives the combined text from documents in the given order.
// The output only depends on documents and fetchedAt.
func BuildSnapshot(docs []models.KnowledgeDocument, failed []models.DocumentFailure, fetchedAt time.Time) *models.KnowledgeSnapshot {
	snapshot := &models.KnowledgeSnapshot{
		Documents: docs,
		FetchedAt: fetchedAt,
		Failed:    failed,
	}
	if docs == nil {
		snapshot.Documents = []models.KnowledgeDocument{}
	}

	var b strings.Builder
	for _, doc := range docs {
		b.WriteString("=== ")
		b.WriteString(doc.Title)
		b.WriteString(" ===\n")
		b.WriteString(strings.TrimSpace(doc.Content))
		b.WriteString("\n\n")
	}
	b.WriteString("---\n")
	b.WriteString("Knowledge generated at ")
	b.WriteString(fetchedAt.UTC().Format(time.RFC3339))

	snapshot.CombinedText = b.String()
	return snapshot
}

// placeholderSnapshot is returned when the document list is empty
func placeholderSnapshot(fetchedAt time.Time) *models.KnowledgeSnapshot {
	return &models.KnowledgeSnapshot{
		CombinedText: EmptyKnowledgePlaceholder,
		Documents:    []models.KnowledgeDocument{},
		FetchedAt:    fetchedAt,
	}
}

// latestDocumentModified is the max remote stamp seen while building the
// snapshot, including documents whose content fetch failed.
func latestDocumentModified(snapshot *models.KnowledgeSnapshot) string {
	stamps := make([]string, 0, len(snapshot.Documents)+len(snapshot.Failed))
	for _, d := range snapshot.Documents {
		stamps = append(stamps, d.RemoteModifiedAt)
	}
	for _, f := range snapshot.Failed {
		stamps = append(stamps, f.RemoteModifiedAt)
	}
	return MaxModified(stamps)
}
