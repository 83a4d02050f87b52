package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/brunobiangulo/keyrank/wordnet"
)

// ImportSenses replaces the senses table with the contents of d and returns
// the number of rows written.
func (s *Store) ImportSenses(ctx context.Context, d *wordnet.Dict) (int, error) {
	start := time.Now()
	n := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM senses"); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO senses (pos, lemma, sense, ord) VALUES (?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		return d.Each(func(pos wordnet.POS, lemma string, senses []string) error {
			for i, sense := range senses {
				if _, err := stmt.ExecContext(ctx, string(rune(pos)), lemma, sense, i); err != nil {
					return fmt.Errorf("inserting sense %s of %q: %w", sense, lemma, err)
				}
				n++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	slog.Info("store: senses imported", "rows", n, "lemmas", d.Len(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return n, nil
}

// SenseCount returns the number of stored sense rows.
func (s *Store) SenseCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM senses").Scan(&n)
	return n, err
}

// LookupSenses implements wordnet.Lexicon over the senses table, applying
// the same morphological fallback as the in-memory dictionary.
func (s *Store) LookupSenses(ctx context.Context, lemma string, pos wordnet.POS) ([]string, error) {
	return wordnet.Resolve(ctx, s.exactSenses, lemma, pos)
}

func (s *Store) exactSenses(ctx context.Context, lemma string, pos wordnet.POS) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT sense FROM senses WHERE pos = ? AND lemma = ? ORDER BY ord",
		string(rune(pos)), lemma)
	if err != nil {
		return nil, fmt.Errorf("querying senses: %w", err)
	}
	defer rows.Close()

	var senses []string
	for rows.Next() {
		var sense string
		if err := rows.Scan(&sense); err != nil {
			return nil, err
		}
		senses = append(senses, sense)
	}
	return senses, rows.Err()
}
