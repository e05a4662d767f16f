// Package ingest parses and validates the bulk ratings file loaded at
// startup. A violation anywhere fails the whole load; the server never
// starts with partial data.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	MinScore = 1
	MaxScore = 10
)

// ItemRating is one entry of a record's ratings map. Records keep the
// map's key order so a later duplicate overwrites an earlier score.
type ItemRating struct {
	Name  string
	Score int
}

// Record is the typed form of one bulk-file entry:
// {"name": ..., "<items-key>": {item: score, ...}}.
// Validated once here; downstream code never re-inspects shape.
type Record struct {
	Name    string
	Ratings []ItemRating
}

// ValidationError reports the first schema violation, naming the record
// that carries it. Index is -1 for file-level problems.
type ValidationError struct {
	Index  int
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return e.Detail
	}
	return fmt.Sprintf("record %d: %s", e.Index, e.Detail)
}

// ParseFile reads and validates a bulk file. Only .json is accepted.
func ParseFile(path, itemsKey string) ([]Record, error) {
	if ext := filepath.Ext(path); ext != ".json" {
		return nil, &ValidationError{Index: -1,
			Detail: fmt.Sprintf("file type %q is not accepted", ext)}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, itemsKey)
}

// Parse decodes an ordered sequence of records, validating each against
// the bulk-input schema: name is a non-empty string, the items map has at
// least one entry, and every score is an integer in [1,10].
func Parse(r io.Reader, itemsKey string) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return nil, &ValidationError{Index: -1, Detail: "top-level value must be an array"}
	}

	var records []Record
	for dec.More() {
		rec, err := parseRecord(dec, itemsKey, len(records))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, &ValidationError{Index: -1, Detail: "malformed array"}
	}
	if len(records) == 0 {
		return nil, &ValidationError{Index: -1, Detail: "no records found in provided file"}
	}
	return records, nil
}

func parseRecord(dec *json.Decoder, itemsKey string, idx int) (Record, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return Record{}, &ValidationError{Index: idx, Detail: "entry must be an object"}
	}

	var rec Record
	var haveName, haveRatings bool
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Record{}, &ValidationError{Index: idx, Detail: "malformed object"}
		}
		key := keyTok.(string)
		switch key {
		case "name":
			tok, err := dec.Token()
			if err != nil {
				return Record{}, &ValidationError{Index: idx, Detail: "malformed object"}
			}
			name, ok := tok.(string)
			if !ok {
				return Record{}, &ValidationError{Index: idx, Detail: "name must be a string"}
			}
			if strings.TrimSpace(name) == "" {
				return Record{}, &ValidationError{Index: idx, Detail: "name must not be empty"}
			}
			rec.Name = name
			haveName = true
		case itemsKey:
			ratings, err := parseRatings(dec, idx, itemsKey)
			if err != nil {
				return Record{}, err
			}
			rec.Ratings = ratings
			haveRatings = true
		default:
			// tolerated and ignored
			if err := skipValue(dec); err != nil {
				return Record{}, &ValidationError{Index: idx, Detail: "malformed object"}
			}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return Record{}, &ValidationError{Index: idx, Detail: "malformed object"}
	}
	if !haveName {
		return Record{}, &ValidationError{Index: idx, Detail: "missing required field \"name\""}
	}
	if !haveRatings {
		return Record{}, &ValidationError{Index: idx,
			Detail: fmt.Sprintf("missing required field %q", itemsKey)}
	}
	return rec, nil
}

// parseRatings decodes the items map token by token to keep key order,
// which plain map decoding would lose.
func parseRatings(dec *json.Decoder, idx int, itemsKey string) ([]ItemRating, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, &ValidationError{Index: idx,
			Detail: fmt.Sprintf("%q must be an object", itemsKey)}
	}
	var ratings []ItemRating
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &ValidationError{Index: idx, Detail: "malformed ratings map"}
		}
		item := keyTok.(string)
		valTok, err := dec.Token()
		if err != nil {
			return nil, &ValidationError{Index: idx, Detail: "malformed ratings map"}
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return nil, &ValidationError{Index: idx,
				Detail: fmt.Sprintf("rating for %q must be an integer", item)}
		}
		score, err := num.Int64()
		if err != nil {
			return nil, &ValidationError{Index: idx,
				Detail: fmt.Sprintf("rating for %q must be an integer", item)}
		}
		if score < MinScore || score > MaxScore {
			return nil, &ValidationError{Index: idx,
				Detail: fmt.Sprintf("rating for %q must be between %d and %d", item, MinScore, MaxScore)}
		}
		ratings = append(ratings, ItemRating{Name: item, Score: int(score)})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, &ValidationError{Index: idx, Detail: "malformed ratings map"}
	}
	if len(ratings) == 0 {
		return nil, &ValidationError{Index: idx,
			Detail: fmt.Sprintf("%q must have at least one entry", itemsKey)}
	}
	return ratings, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || d != want {
		return fmt.Errorf("expected %q", want)
	}
	return nil
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	switch d {
	case '[', '{':
		for dec.More() {
			if err := skipValue(dec); err != nil {
				return err
			}
		}
		_, err = dec.Token() // closing delim
		return err
	}
	return fmt.Errorf("unexpected %q", d)
}
