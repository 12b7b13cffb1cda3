package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"knowledgebot/internal/answer"
	"knowledgebot/internal/config"
	"knowledgebot/internal/models"
	"knowledgebot/internal/store"
)

// fakeClock is the part of clockwork's fake clock the tests drive
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

var errStoreDown = errors.New("store down")

// memStore is an in-memory RecordStore that counts queries per table
type memStore struct {
	mu      sync.Mutex
	tables  map[string][]store.Record
	queries map[string]int
	failing bool
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{
		tables:  make(map[string][]store.Record),
		queries: make(map[string]int),
	}
}

func (m *memStore) setFailing(failing bool) {
	m.mu.Lock()
	m.failing = failing
	m.mu.Unlock()
}

func (m *memStore) queryCount(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries[table]
}

func (m *memStore) Query(ctx context.Context, table string, filter store.Fields) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[table]++
	if m.failing {
		return nil, errStoreDown
	}

	var out []store.Record
	for _, rec := range m.tables[table] {
		match := true
		for k, v := range filter {
			if fmt.Sprint(rec.Fields[k]) != fmt.Sprint(v) {
				match = false
				break
			}
		}
		if match {
			out = append(out, copyRecord(rec))
		}
	}
	return out, nil
}

func (m *memStore) Create(ctx context.Context, table string, fields store.Fields) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return store.Record{}, errStoreDown
	}
	m.nextID++
	rec := store.Record{ID: "rec" + strconv.Itoa(m.nextID), Fields: store.Fields{}}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	m.tables[table] = append(m.tables[table], rec)
	return copyRecord(rec), nil
}

func (m *memStore) Update(ctx context.Context, table, id string, fields store.Fields) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return store.Record{}, errStoreDown
	}
	for i, rec := range m.tables[table] {
		if rec.ID != id {
			continue
		}
		for k, v := range fields {
			m.tables[table][i].Fields[k] = v
		}
		return copyRecord(m.tables[table][i]), nil
	}
	return store.Record{}, store.ErrRecordNotFound
}

func (m *memStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errStoreDown
	}
	return nil
}

func copyRecord(rec store.Record) store.Record {
	out := store.Record{ID: rec.ID, Fields: store.Fields{}}
	for k, v := range rec.Fields {
		out.Fields[k] = v
	}
	return out
}

type sentMessage struct {
	chatID int64
	text   string
}

// recordingMessenger keeps every message sent through it
type recordingMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recordingMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (r *recordingMessenger) messages() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentMessage, len(r.sent))
	copy(out, r.sent)
	return out
}

// stubKnowledge always returns the same snapshot
type stubKnowledge struct {
	snapshot *models.KnowledgeSnapshot
	hit      bool
	calls    int
}

func (s *stubKnowledge) Get(ctx context.Context) (*models.KnowledgeSnapshot, bool) {
	s.calls++
	return s.snapshot, s.hit
}

// stubAnswerer returns a fixed result and remembers what it was asked
type stubAnswerer struct {
	result    models.AnswerResult
	calls     int
	question  string
	knowledge string
	opts      answer.Options
}

func (s *stubAnswerer) Answer(ctx context.Context, question, knowledge string, opts answer.Options) models.AnswerResult {
	s.calls++
	s.question = question
	s.knowledge = knowledge
	s.opts = opts
	return s.result
}

type staticMessages struct{ m config.Messages }

func (s staticMessages) Get() config.Messages { return s.m }
