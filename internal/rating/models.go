package rating

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Vocabulary fixes the deployment-specific nouns: one binary serves either
// the board-game or the puzzle flavor, and every route segment, bulk-file
// key, and error message follows from it.
type Vocabulary struct {
	Subject      string // "Player" / "Person"
	Item         string // "Game" / "Puzzle"
	SubjectsPath string // "players" / "people"
	ItemsPath    string // "games" / "puzzles"
	ItemsKey     string // key of the ratings map in bulk records and entry bodies
}

func Flavor(name string) (Vocabulary, error) {
	switch name {
	case "games":
		return Vocabulary{
			Subject:      "Player",
			Item:         "Game",
			SubjectsPath: "players",
			ItemsPath:    "games",
			ItemsKey:     "games",
		}, nil
	case "puzzles":
		return Vocabulary{
			Subject:      "Person",
			Item:         "Puzzle",
			SubjectsPath: "people",
			ItemsPath:    "puzzles",
			ItemsKey:     "puzzles",
		}, nil
	}
	return Vocabulary{}, fmt.Errorf("unknown flavor: %q", name)
}

// Canonical returns the canonical display form of a free-text name:
// every word title-cased. Applied on ingestion and before every lookup,
// so "eM", "Em" and "em" all resolve to the same identity. Idempotent.
func Canonical(name string) string {
	return cases.Title(language.Und).String(name)
}

// Entry is the body returned by the mutation endpoints: the affected
// subject plus the touched item/score pair, with the items key tracking
// the vocabulary ("games" or "puzzles").
type Entry struct {
	Name     string
	ItemsKey string
	Ratings  map[string]int
}

func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"name":`)
	name, err := json.Marshal(e.Name)
	if err != nil {
		return nil, err
	}
	buf.Write(name)
	buf.WriteByte(',')
	key, err := json.Marshal(e.ItemsKey)
	if err != nil {
		return nil, err
	}
	buf.Write(key)
	buf.WriteByte(':')
	ratings, err := json.Marshal(e.Ratings)
	if err != nil {
		return nil, err
	}
	buf.Write(ratings)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
