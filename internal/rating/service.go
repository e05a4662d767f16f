package rating

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/tabletoplab/ratings/internal/audit"
	"github.com/tabletoplab/ratings/internal/ingest"
)

// Service is the operation layer between the request dispatcher and the
// Store. Stateless: it canonicalizes names, delegates, and turns store
// outcomes into the typed errors the HTTP layer renders. Constructed once
// at startup with its Store; audit may be nil.
type Service struct {
	store Store
	vocab Vocabulary
	audit *audit.Log
}

func NewService(store Store, vocab Vocabulary, auditLog *audit.Log) *Service {
	return &Service{store: store, vocab: vocab, audit: auditLog}
}

func (s *Service) Vocab() Vocabulary { return s.vocab }

// AllRatings returns every rating grouped by subject. An empty store
// yields an empty map, not an error.
func (s *Service) AllRatings(ctx context.Context) (map[string]map[string]int, error) {
	return s.store.AllRatings(ctx)
}

func (s *Service) SubjectRatings(ctx context.Context, name string) (map[string]int, error) {
	name = Canonical(name)
	id, err := s.store.SubjectID(ctx, name)
	if err != nil {
		return nil, s.subjectNotFound(name, err)
	}
	out, err := s.store.RatingsForSubject(ctx, id)
	if err != nil {
		// "exists but unrated" surfaces exactly like "never existed"
		return nil, s.subjectNotFound(name, err)
	}
	return out, nil
}

func (s *Service) Items(ctx context.Context) ([]string, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(items)
	return items, nil
}

func (s *Service) ItemRatings(ctx context.Context, item string) (map[string]int, error) {
	item = Canonical(item)
	id, err := s.store.ItemID(ctx, item)
	if err != nil {
		return nil, s.itemNotFound(item, err)
	}
	out, err := s.store.RatingsForItem(ctx, id)
	if err != nil {
		return nil, s.itemNotFound(item, err)
	}
	return out, nil
}

func (s *Service) Rating(ctx context.Context, item, subject string) (int, error) {
	item, subject = Canonical(item), Canonical(subject)
	sid, iid, err := s.resolvePair(ctx, item, subject)
	if err != nil {
		return 0, err
	}
	score, err := s.store.RatingOf(ctx, sid, iid)
	if err != nil {
		return 0, s.pairNotFound(item, subject, err)
	}
	return score, nil
}

// AddRating creates a rating for a pair that must not have one yet.
// Subject and item are created implicitly on first reference.
func (s *Service) AddRating(ctx context.Context, item, subject string, score int) (Entry, error) {
	item, subject = Canonical(item), Canonical(subject)
	sid, err := s.store.FindOrCreateSubject(ctx, subject)
	if err != nil {
		return Entry{}, err
	}
	iid, err := s.store.FindOrCreateItem(ctx, item)
	if err != nil {
		return Entry{}, err
	}
	if err := s.store.InsertRating(ctx, sid, iid, score); err != nil {
		if err == ErrConflict {
			return Entry{}, &ConflictError{Detail: fmt.Sprintf(
				"%s %s has already been rated by %s.", s.vocab.Item, item, subject)}
		}
		return Entry{}, err
	}
	s.logEvent(ctx, "RatingCreated", item, subject, score)
	return s.entry(subject, item, score), nil
}

// ChangeRating overwrites the score of an existing rating.
func (s *Service) ChangeRating(ctx context.Context, item, subject string, score int) (Entry, error) {
	item, subject = Canonical(item), Canonical(subject)
	sid, iid, err := s.resolvePair(ctx, item, subject)
	if err != nil {
		return Entry{}, err
	}
	if err := s.store.UpdateRating(ctx, sid, iid, score); err != nil {
		return Entry{}, s.pairNotFound(item, subject, err)
	}
	s.logEvent(ctx, "RatingUpdated", item, subject, score)
	return s.entry(subject, item, score), nil
}

// RemoveRating deletes an existing rating. Subject and item rows stay
// behind even when this was their last rating.
func (s *Service) RemoveRating(ctx context.Context, item, subject string) error {
	item, subject = Canonical(item), Canonical(subject)
	sid, iid, err := s.resolvePair(ctx, item, subject)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRating(ctx, sid, iid); err != nil {
		return s.pairNotFound(item, subject, err)
	}
	s.logEvent(ctx, "RatingDeleted", item, subject, 0)
	return nil
}

// Load ingests validated bulk records as an idempotent upsert: a pair seen
// twice keeps the later score, unlike AddRating's strict conflict policy.
func (s *Service) Load(ctx context.Context, records []ingest.Record) error {
	for _, rec := range records {
		sid, err := s.store.FindOrCreateSubject(ctx, rec.Name)
		if err != nil {
			return err
		}
		for _, ir := range rec.Ratings {
			iid, err := s.store.FindOrCreateItem(ctx, ir.Name)
			if err != nil {
				return err
			}
			if err := s.store.UpsertRating(ctx, sid, iid, ir.Score); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clear empties the rating table; called at shutdown (session-scoped store).
func (s *Service) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

func (s *Service) resolvePair(ctx context.Context, item, subject string) (sid, iid int64, err error) {
	sid, err = s.store.SubjectID(ctx, subject)
	if err != nil {
		return 0, 0, s.pairNotFound(item, subject, err)
	}
	iid, err = s.store.ItemID(ctx, item)
	if err != nil {
		return 0, 0, s.pairNotFound(item, subject, err)
	}
	return sid, iid, nil
}

func (s *Service) entry(subject, item string, score int) Entry {
	return Entry{
		Name:     subject,
		ItemsKey: s.vocab.ItemsKey,
		Ratings:  map[string]int{item: score},
	}
}

func (s *Service) subjectNotFound(name string, err error) error {
	if err == ErrNotFound {
		return &NotFoundError{Detail: fmt.Sprintf("%s %s not found.", s.vocab.Subject, name)}
	}
	return err
}

func (s *Service) itemNotFound(name string, err error) error {
	if err == ErrNotFound {
		return &NotFoundError{Detail: fmt.Sprintf("%s %s not found.", s.vocab.Item, name)}
	}
	return err
}

func (s *Service) pairNotFound(item, subject string, err error) error {
	if err == ErrNotFound {
		return &NotFoundError{Detail: fmt.Sprintf("%s %s not rated by %s.", s.vocab.Item, item, subject)}
	}
	return err
}

// logEvent is best-effort: a failed audit append never fails the mutation.
func (s *Service) logEvent(ctx context.Context, typ, item, subject string, score int) {
	if s.audit == nil {
		return
	}
	e := audit.Event{
		Type:     typ,
		Key:      subject + "/" + item,
		DataJSON: fmt.Sprintf(`{"score":%d}`, score),
	}
	if err := s.audit.Append(ctx, e); err != nil {
		log.Printf("audit append failed: %v", err)
	}
}
