// Package memory provides an in-memory FormStore for tests.
package memory

import (
	"context"
	"sync"

	"github.com/formloft/formloft/internal/domain"
	"github.com/formloft/formloft/internal/storage"
)

// Store keeps fully-resolved forms keyed by public form id.
type Store struct {
	mu    sync.RWMutex
	forms map[string]*domain.Form
}

var _ storage.FormStore = (*Store)(nil)

func New() *Store {
	return &Store{forms: make(map[string]*domain.Form)}
}

// PutForm registers a form under its public id. The caller supplies resolved
// references, mirroring what the sqlite store produces.
func (s *Store) PutForm(form *domain.Form) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[form.FormID] = form
}

func (s *Store) FindFormByPublicID(_ context.Context, formID string) (*domain.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	form, ok := s.forms[formID]
	if !ok {
		return nil, storage.ErrFormNotFound
	}
	return form, nil
}
