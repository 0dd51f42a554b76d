package biometric

import (
	"context"
	"sync"

	"biolock.io/infrastructure/biometric/types"
)

// TemplateStore is the persistence boundary. The core never assumes a particular
// database, only that templates are keyed by (subject, modality) and that replacing
// the active one is a single atomic operation: at no observable point may zero or
// two active templates exist for a pair.
type TemplateStore interface {
	// GetActiveTemplate returns nil when the subject has nothing enrolled for the
	// modality; that is not an error at this boundary.
	GetActiveTemplate(ctx context.Context, subjectID string, modality types.Modality) (*types.Template, error)
	// ReplaceActiveTemplate deactivates the prior active template (when one exists)
	// and activates tpl in one atomic swap.
	ReplaceActiveTemplate(ctx context.Context, subjectID string, modality types.Modality, tpl types.Template) error
}

type pairKey struct {
	subjectID string
	modality  types.Modality
}

// MemoryTemplateStore is a mutex-guarded in-memory implementation used by tests and
// by single-node deployments that run without a database. It keeps deactivated
// templates around, like the durable stores, so audits see the full history.
type MemoryTemplateStore struct {
	mu      sync.RWMutex
	active  map[pairKey]types.Template
	history []types.Template
}

func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{active: map[pairKey]types.Template{}}
}

func (s *MemoryTemplateStore) GetActiveTemplate(_ context.Context, subjectID string, modality types.Modality) (*types.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.active[pairKey{subjectID, modality}]
	if !ok {
		return nil, nil
	}
	return &tpl, nil
}

func (s *MemoryTemplateStore) ReplaceActiveTemplate(_ context.Context, subjectID string, modality types.Modality, tpl types.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{subjectID, modality}
	if prior, ok := s.active[key]; ok {
		prior.Active = false
		now := tpl.CreatedAt
		prior.DeactivatedAt = &now
		s.history = append(s.history, prior)
	}
	tpl.Active = true
	s.active[key] = tpl
	return nil
}

// History returns deactivated templates for a pair, oldest first.
func (s *MemoryTemplateStore) History(subjectID string, modality types.Modality) []types.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []types.Template{}
	for _, tpl := range s.history {
		if tpl.SubjectID == subjectID && tpl.Modality == modality {
			out = append(out, tpl)
		}
	}
	return out
}

// ActiveCount reports how many active templates exist for a pair. Anything other
// than 0 or 1 is a store invariant violation.
func (s *MemoryTemplateStore) ActiveCount(subjectID string, modality types.Modality) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.active[pairKey{subjectID, modality}]; ok {
		return 1
	}
	return 0
}
