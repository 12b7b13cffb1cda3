// Package knowledge fetches remote documents, merges them into one context
// blob and keeps that blob cached with a remote-modification staleness check.
package knowledge

import (
	"context"
	"errors"
)

// ErrSourceNotConfigured is returned when a document id has no usable source
var ErrSourceNotConfigured = errors.New("knowledge source not configured")

// Metadata is the cheap, body-less view of a remote document
type Metadata struct {
	Title          string
	LastModifiedAt string // RFC3339 or epoch string
}

// Source is the document-service collaborator.
// RetrieveMetadata must not download the document body.
type Source interface {
	RetrieveMetadata(ctx context.Context, id string) (*Metadata, error)
	RetrieveContent(ctx context.Context, id string) (string, error)
}
