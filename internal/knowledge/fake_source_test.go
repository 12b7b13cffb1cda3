package knowledge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type fakeDoc struct {
	title      string
	modified   string
	content    string
	metaErr    error
	contentErr error
	delay      time.Duration
}

type fakeSource struct {
	mu           sync.Mutex
	docs         map[string]*fakeDoc
	metaCalls    atomic.Int64
	contentCalls atomic.Int64
}

func newFakeSource(docs map[string]*fakeDoc) *fakeSource {
	return &fakeSource{docs: docs}
}

func (s *fakeSource) doc(id string) (*fakeDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	copied := *d
	return &copied, nil
}

func (s *fakeSource) setModified(id, modified string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].modified = modified
}

func (s *fakeSource) setMetaErr(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].metaErr = err
}

func (s *fakeSource) RetrieveMetadata(ctx context.Context, id string) (*Metadata, error) {
	s.metaCalls.Add(1)
	d, err := s.doc(id)
	if err != nil {
		return nil, err
	}
	if d.metaErr != nil {
		return nil, d.metaErr
	}
	return &Metadata{Title: d.title, LastModifiedAt: d.modified}, nil
}

func (s *fakeSource) RetrieveContent(ctx context.Context, id string) (string, error) {
	s.contentCalls.Add(1)
	d, err := s.doc(id)
	if err != nil {
		return "", err
	}
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if d.contentErr != nil {
		return "", d.contentErr
	}
	return d.content, nil
}
