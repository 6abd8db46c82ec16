// Package library is the local mirror of the user's documents. The server is
// the source of truth; callers talk to it first and feed results in here.
package library

import (
	"sync"

	"github.com/readpilot/readpilot/internal/api"
)

// Patch carries the fields UpdateDocument merges. Nil fields are left alone.
type Patch struct {
	Title            *string
	ProcessingStatus *api.Status
	ProcessingError  *string
	PageCount        *int
	WordCount        *int
	IsIndexed        *bool
}

// StatusPatch is shorthand for a patch that only moves the processing status.
func StatusPatch(status api.Status) Patch {
	return Patch{ProcessingStatus: &status}
}

func (p Patch) apply(doc api.Document) api.Document {
	if p.Title != nil {
		doc.Title = *p.Title
	}
	if p.ProcessingStatus != nil {
		doc.ProcessingStatus = *p.ProcessingStatus
	}
	if p.ProcessingError != nil {
		doc.ProcessingError = *p.ProcessingError
	}
	if p.PageCount != nil {
		count := *p.PageCount
		doc.PageCount = &count
	}
	if p.WordCount != nil {
		count := *p.WordCount
		doc.WordCount = &count
	}
	if p.IsIndexed != nil {
		doc.IsIndexed = *p.IsIndexed
	}
	return doc
}

// Store is the document state container.
type Store struct {
	mu        sync.RWMutex
	documents []api.Document
	current   *api.Document
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// SetDocuments replaces the cached list.
func (s *Store) SetDocuments(docs []api.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append([]api.Document(nil), docs...)
}

// AddDocument prepends doc.
func (s *Store) AddDocument(doc api.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]api.Document, 0, len(s.documents)+1)
	next = append(next, doc)
	s.documents = append(next, s.documents...)
}

// UpdateDocument merges patch into the entry with id and into the current
// document when it matches. Unknown ids are ignored.
func (s *Store) UpdateDocument(id string, patch Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.documents {
		if s.documents[i].ID == id {
			s.documents[i] = patch.apply(s.documents[i])
		}
	}
	if s.current != nil && s.current.ID == id {
		updated := patch.apply(*s.current)
		s.current = &updated
	}
}

// RemoveDocument drops the entry with id and clears the current document if
// it pointed there.
func (s *Store) RemoveDocument(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.documents[:0:0]
	for _, doc := range s.documents {
		if doc.ID != id {
			kept = append(kept, doc)
		}
	}
	s.documents = kept
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
}

// SetCurrentDocument sets the detail-view target; nil clears it.
func (s *Store) SetCurrentDocument(doc *api.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc == nil {
		s.current = nil
		return
	}
	copied := *doc
	s.current = &copied
}

// Clear drops everything. Called when the session ends.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = nil
	s.current = nil
}

// Documents returns a copy of the list, newest upload first.
func (s *Store) Documents() []api.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.Document(nil), s.documents...)
}

// Current returns a copy of the detail-view target, or nil.
func (s *Store) Current() *api.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// Find returns the cached entry with id.
func (s *Store) Find(id string) (api.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.documents {
		if doc.ID == id {
			return doc, true
		}
	}
	return api.Document{}, false
}
