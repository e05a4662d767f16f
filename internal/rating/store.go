package rating

import (
	"context"
	"sync"
)

// Store holds every rating together with the subject/item identities it
// references. Lookups never create; only the two FindOrCreate operations do.
type Store interface {
	FindOrCreateSubject(ctx context.Context, name string) (int64, error)
	FindOrCreateItem(ctx context.Context, name string) (int64, error)

	// SubjectID and ItemID resolve a canonical name without creating;
	// ErrNotFound when no such row exists.
	SubjectID(ctx context.Context, name string) (int64, error)
	ItemID(ctx context.Context, name string) (int64, error)

	// UpsertRating is the bulk-load path: overwrite-or-insert, never errors
	// on an existing pair.
	UpsertRating(ctx context.Context, subjectID, itemID int64, score int) error
	// InsertRating is the strict create path: ErrConflict when the pair
	// already has a rating.
	InsertRating(ctx context.Context, subjectID, itemID int64, score int) error
	// UpdateRating and DeleteRating require the pair to exist (ErrNotFound).
	UpdateRating(ctx context.Context, subjectID, itemID int64, score int) error
	DeleteRating(ctx context.Context, subjectID, itemID int64) error

	// ListSubjects and ListItems return the names that appear in at least
	// one rating.
	ListSubjects(ctx context.Context) ([]string, error)
	ListItems(ctx context.Context) ([]string, error)

	// RatingsForSubject maps item name to score; ErrNotFound when the
	// subject has zero ratings. RatingsForItem is symmetric.
	RatingsForSubject(ctx context.Context, subjectID int64) (map[string]int, error)
	RatingsForItem(ctx context.Context, itemID int64) (map[string]int, error)
	RatingOf(ctx context.Context, subjectID, itemID int64) (int, error)

	// AllRatings groups every rating by subject name.
	AllRatings(ctx context.Context) (map[string]map[string]int, error)

	// Clear removes every rating row. The store is session-scoped: called
	// at process shutdown, subject/item rows are left behind.
	Clear(ctx context.Context) error
}

type pair struct{ subject, item int64 }

type memoryStore struct {
	mu           sync.RWMutex
	subjects     map[string]int64 // canonical name -> id
	items        map[string]int64
	subjectNames map[int64]string
	itemNames    map[int64]string
	ratings      map[pair]int
	nextID       int64
}

// NewInMemoryStore returns a Store backed by plain maps, matching the
// project's earlier file-backed iterations. Used by tests and DB_DRIVER=memory.
func NewInMemoryStore() Store {
	return &memoryStore{
		subjects:     map[string]int64{},
		items:        map[string]int64{},
		subjectNames: map[int64]string{},
		itemNames:    map[int64]string{},
		ratings:      map[pair]int{},
	}
}

func (m *memoryStore) FindOrCreateSubject(_ context.Context, name string) (int64, error) {
	name = Canonical(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.subjects[name]; ok {
		return id, nil
	}
	m.nextID++
	m.subjects[name] = m.nextID
	m.subjectNames[m.nextID] = name
	return m.nextID, nil
}

func (m *memoryStore) FindOrCreateItem(_ context.Context, name string) (int64, error) {
	name = Canonical(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.items[name]; ok {
		return id, nil
	}
	m.nextID++
	m.items[name] = m.nextID
	m.itemNames[m.nextID] = name
	return m.nextID, nil
}

func (m *memoryStore) SubjectID(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.subjects[Canonical(name)]; ok {
		return id, nil
	}
	return 0, ErrNotFound
}

func (m *memoryStore) ItemID(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.items[Canonical(name)]; ok {
		return id, nil
	}
	return 0, ErrNotFound
}

func (m *memoryStore) UpsertRating(_ context.Context, subjectID, itemID int64, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[pair{subjectID, itemID}] = score
	return nil
}

func (m *memoryStore) InsertRating(_ context.Context, subjectID, itemID int64, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := pair{subjectID, itemID}
	if _, ok := m.ratings[p]; ok {
		return ErrConflict
	}
	m.ratings[p] = score
	return nil
}

func (m *memoryStore) UpdateRating(_ context.Context, subjectID, itemID int64, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := pair{subjectID, itemID}
	if _, ok := m.ratings[p]; !ok {
		return ErrNotFound
	}
	m.ratings[p] = score
	return nil
}

func (m *memoryStore) DeleteRating(_ context.Context, subjectID, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := pair{subjectID, itemID}
	if _, ok := m.ratings[p]; !ok {
		return ErrNotFound
	}
	delete(m.ratings, p)
	return nil
}

func (m *memoryStore) ListSubjects(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[int64]bool{}
	var names []string
	for p := range m.ratings {
		if !seen[p.subject] {
			seen[p.subject] = true
			names = append(names, m.subjectNames[p.subject])
		}
	}
	return names, nil
}

func (m *memoryStore) ListItems(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[int64]bool{}
	var names []string
	for p := range m.ratings {
		if !seen[p.item] {
			seen[p.item] = true
			names = append(names, m.itemNames[p.item])
		}
	}
	return names, nil
}

func (m *memoryStore) RatingsForSubject(_ context.Context, subjectID int64) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]int{}
	for p, score := range m.ratings {
		if p.subject == subjectID {
			out[m.itemNames[p.item]] = score
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (m *memoryStore) RatingsForItem(_ context.Context, itemID int64) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]int{}
	for p, score := range m.ratings {
		if p.item == itemID {
			out[m.subjectNames[p.subject]] = score
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (m *memoryStore) RatingOf(_ context.Context, subjectID, itemID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.ratings[pair{subjectID, itemID}]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

func (m *memoryStore) AllRatings(_ context.Context) (map[string]map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]map[string]int{}
	for p, score := range m.ratings {
		name := m.subjectNames[p.subject]
		if out[name] == nil {
			out[name] = map[string]int{}
		}
		out[name][m.itemNames[p.item]] = score
	}
	return out, nil
}

func (m *memoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings = map[pair]int{}
	return nil
}
