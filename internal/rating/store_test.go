package rating

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func TestCanonicalIdempotent(t *testing.T) {
	cases := map[string]string{
		"em":             "Em",
		"eM":             "Em",
		"Em":             "Em",
		"ticket to ride": "Ticket To Ride",
		"HANABI":         "Hanabi",
	}
	for in, want := range cases {
		got := Canonical(in)
		if got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
		if again := Canonical(got); again != got {
			t.Errorf("Canonical not idempotent: %q -> %q", got, again)
		}
	}
}

func TestFindOrCreateConvergesOnCanonicalName(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	first, err := s.FindOrCreateSubject(ctx, "eM")
	if err != nil {
		t.Fatal(err)
	}
	for _, variant := range []string{"Em", "em", "EM"} {
		id, err := s.FindOrCreateSubject(ctx, variant)
		if err != nil {
			t.Fatal(err)
		}
		if id != first {
			t.Errorf("FindOrCreateSubject(%q) = %d, want %d", variant, id, first)
		}
	}

	id, err := s.SubjectID(ctx, "em")
	if err != nil {
		t.Fatal(err)
	}
	if id != first {
		t.Errorf("SubjectID = %d, want %d", id, first)
	}
}

func TestLookupsNeverCreate(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if _, err := s.SubjectID(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SubjectID on unknown name: got %v, want ErrNotFound", err)
	}
	// Still absent afterwards.
	if _, err := s.SubjectID(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup created a subject as a side effect")
	}
	if _, err := s.ItemID(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ItemID on unknown name: got %v, want ErrNotFound", err)
	}
}

func TestInsertRatingRejectsDuplicatePair(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	sid, _ := s.FindOrCreateSubject(ctx, "Em")
	iid, _ := s.FindOrCreateItem(ctx, "Hanabi")

	if err := s.InsertRating(ctx, sid, iid, 6); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.InsertRating(ctx, sid, iid, 9); !errors.Is(err, ErrConflict) {
		t.Fatalf("second insert: got %v, want ErrConflict", err)
	}
	score, err := s.RatingOf(ctx, sid, iid)
	if err != nil {
		t.Fatal(err)
	}
	if score != 6 {
		t.Errorf("score after rejected insert = %d, want 6", score)
	}
}

func TestUpdateRequiresExistence(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	sid, _ := s.FindOrCreateSubject(ctx, "Em")
	iid, _ := s.FindOrCreateItem(ctx, "Hanabi")

	if err := s.UpdateRating(ctx, sid, iid, 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update on missing pair: got %v, want ErrNotFound", err)
	}
	if _, err := s.RatingOf(ctx, sid, iid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed update mutated the store")
	}

	if err := s.InsertRating(ctx, sid, iid, 6); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateRating(ctx, sid, iid, 9); err != nil {
		t.Fatal(err)
	}
	if score, _ := s.RatingOf(ctx, sid, iid); score != 9 {
		t.Errorf("score after update = %d, want 9", score)
	}
}

func TestDeleteRequiresExistenceAndIsFinal(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	sid, _ := s.FindOrCreateSubject(ctx, "Em")
	iid, _ := s.FindOrCreateItem(ctx, "Hanabi")

	if err := s.DeleteRating(ctx, sid, iid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete on missing pair: got %v, want ErrNotFound", err)
	}

	if err := s.InsertRating(ctx, sid, iid, 6); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRating(ctx, sid, iid); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RatingOf(ctx, sid, iid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rating still present after delete")
	}
}

func TestUpsertOverwritesInPlace(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	sid, _ := s.FindOrCreateSubject(ctx, "Em")
	iid, _ := s.FindOrCreateItem(ctx, "Hanabi")

	if err := s.UpsertRating(ctx, sid, iid, 4); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertRating(ctx, sid, iid, 7); err != nil {
		t.Fatal(err)
	}
	score, err := s.RatingOf(ctx, sid, iid)
	if err != nil {
		t.Fatal(err)
	}
	if score != 7 {
		t.Errorf("score after upsert = %d, want 7", score)
	}
	// exactly one row
	ratings, err := s.RatingsForSubject(ctx, sid)
	if err != nil {
		t.Fatal(err)
	}
	if len(ratings) != 1 {
		t.Errorf("ratings for subject = %v, want a single entry", ratings)
	}
}

func TestAggregatesMatchPointReads(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	put := func(subject, item string, score int) {
		t.Helper()
		sid, _ := s.FindOrCreateSubject(ctx, subject)
		iid, _ := s.FindOrCreateItem(ctx, item)
		if err := s.InsertRating(ctx, sid, iid, score); err != nil {
			t.Fatal(err)
		}
	}
	put("Em", "Hanabi", 6)
	put("Em", "Catan", 8)
	put("Mel", "Hanabi", 8)

	items, err := s.ListItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(items)
	want := []string{"Catan", "Hanabi"}
	if len(items) != len(want) {
		t.Fatalf("ListItems = %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("ListItems = %v, want %v", items, want)
		}
	}

	// every listed item has a non-empty ratings map consistent with RatingOf
	for _, item := range items {
		iid, err := s.ItemID(ctx, item)
		if err != nil {
			t.Fatal(err)
		}
		byItem, err := s.RatingsForItem(ctx, iid)
		if err != nil {
			t.Fatalf("RatingsForItem(%s): %v", item, err)
		}
		for subject, score := range byItem {
			sid, err := s.SubjectID(ctx, subject)
			if err != nil {
				t.Fatal(err)
			}
			got, err := s.RatingOf(ctx, sid, iid)
			if err != nil {
				t.Fatal(err)
			}
			if got != score {
				t.Errorf("RatingOf(%s,%s) = %d, aggregate says %d", subject, item, got, score)
			}
		}
	}
}

func TestRatingsForSubjectEmptyIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	sid, _ := s.FindOrCreateSubject(ctx, "Em")

	// Subject exists but has no ratings: indistinguishable from absent.
	if _, err := s.RatingsForSubject(ctx, sid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestClearEmptiesRatings(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	sid, _ := s.FindOrCreateSubject(ctx, "Em")
	iid, _ := s.FindOrCreateItem(ctx, "Hanabi")
	if err := s.InsertRating(ctx, sid, iid, 6); err != nil {
		t.Fatal(err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RatingOf(ctx, sid, iid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rating survived Clear")
	}
	all, err := s.AllRatings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("AllRatings after Clear = %v, want empty", all)
	}
}
