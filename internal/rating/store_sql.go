package rating

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLStore persists ratings in the normalized three-table schema
// (subjects, items, ratings) over either the sqlite or the postgres driver.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) FindOrCreateSubject(ctx context.Context, name string) (int64, error) {
	return s.findOrCreate(ctx, "subjects", name)
}

func (s *SQLStore) FindOrCreateItem(ctx context.Context, name string) (int64, error) {
	return s.findOrCreate(ctx, "items", name)
}

func (s *SQLStore) findOrCreate(ctx context.Context, table, name string) (int64, error) {
	name = Canonical(name)
	// A concurrent duplicate insert loses against the UNIQUE(name)
	// constraint and falls through to the select.
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return 0, err
	}
	var id int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM `+table+` WHERE name=$1`, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLStore) SubjectID(ctx context.Context, name string) (int64, error) {
	return s.lookupID(ctx, "subjects", name)
}

func (s *SQLStore) ItemID(ctx context.Context, name string) (int64, error) {
	return s.lookupID(ctx, "items", name)
}

func (s *SQLStore) lookupID(ctx context.Context, table, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM `+table+` WHERE name=$1`, Canonical(name)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLStore) UpsertRating(ctx context.Context, subjectID, itemID int64, score int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (subject_id,item_id,score) VALUES ($1,$2,$3)
		 ON CONFLICT (subject_id,item_id) DO UPDATE SET score=excluded.score`,
		subjectID, itemID, score)
	return err
}

func (s *SQLStore) InsertRating(ctx context.Context, subjectID, itemID int64, score int) error {
	var exist int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM ratings WHERE subject_id=$1 AND item_id=$2`,
		subjectID, itemID).Scan(&exist)
	if err == nil {
		return ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ratings (subject_id,item_id,score) VALUES ($1,$2,$3)`,
		subjectID, itemID, score)
	if err != nil {
		// Concurrent insert for the same pair races past the check above;
		// the engine's UNIQUE constraint is the real enforcement point.
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *SQLStore) UpdateRating(ctx context.Context, subjectID, itemID int64, score int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ratings SET score=$1 WHERE subject_id=$2 AND item_id=$3`,
		score, subjectID, itemID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteRating(ctx context.Context, subjectID, itemID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ratings WHERE subject_id=$1 AND item_id=$2`,
		subjectID, itemID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListSubjects(ctx context.Context) ([]string, error) {
	return s.listNames(ctx,
		`SELECT DISTINCT s.name FROM ratings r JOIN subjects s ON s.id=r.subject_id`)
}

func (s *SQLStore) ListItems(ctx context.Context) ([]string, error) {
	return s.listNames(ctx,
		`SELECT DISTINCT i.name FROM ratings r JOIN items i ON i.id=r.item_id`)
}

func (s *SQLStore) listNames(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLStore) RatingsForSubject(ctx context.Context, subjectID int64) (map[string]int, error) {
	return s.scores(ctx,
		`SELECT i.name, r.score FROM ratings r JOIN items i ON i.id=r.item_id WHERE r.subject_id=$1`,
		subjectID)
}

func (s *SQLStore) RatingsForItem(ctx context.Context, itemID int64) (map[string]int, error) {
	return s.scores(ctx,
		`SELECT s.name, r.score FROM ratings r JOIN subjects s ON s.id=r.subject_id WHERE r.item_id=$1`,
		itemID)
}

func (s *SQLStore) scores(ctx context.Context, query string, id int64) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var name string
		var score int
		if err := rows.Scan(&name, &score); err != nil {
			return nil, err
		}
		out[name] = score
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLStore) RatingOf(ctx context.Context, subjectID, itemID int64) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx,
		`SELECT score FROM ratings WHERE subject_id=$1 AND item_id=$2`,
		subjectID, itemID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return score, nil
}

func (s *SQLStore) AllRatings(ctx context.Context) (map[string]map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.name, i.name, r.score
		 FROM ratings r
		 JOIN subjects s ON s.id=r.subject_id
		 JOIN items i ON i.id=r.item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]map[string]int{}
	for rows.Next() {
		var subject, item string
		var score int
		if err := rows.Scan(&subject, &item, &score); err != nil {
			return nil, err
		}
		if out[subject] == nil {
			out[subject] = map[string]int{}
		}
		out[subject][item] = score
	}
	return out, rows.Err()
}

func (s *SQLStore) Clear(ctx context.Context) error {
	// Subject/item rows are left behind on purpose: same orphaning policy
	// as DeleteRating.
	_, err := s.db.ExecContext(ctx, `DELETE FROM ratings`)
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") // sqlite
}
