// Package postgres is the sqlx-backed persistence.Store implementation.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/rankforum/internal/domain"
	"github.com/sawpanic/rankforum/internal/forum"
	"github.com/sawpanic/rankforum/internal/persistence"
)

var _ persistence.Store = (*Store)(nil)

// Store persists engine state in PostgreSQL.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewStore(db *sqlx.DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// RecordAccount upserts an account row, keeping its ban flag intact.
func (s *Store) RecordAccount(ctx context.Context, a forum.Account) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO accounts (address, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET name = EXCLUDED.name`

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query, a.Address, a.Name, createdAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("account name %q: %w", a.Name, domain.ErrNameTaken)
		}
		return fmt.Errorf("failed to upsert account %s: %w", a.Address, err)
	}
	return nil
}

// RecordField inserts a field row.
func (s *Store) RecordField(ctx context.Context, f forum.Field) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO fields (address, name)
		VALUES ($1, $2)
		ON CONFLICT (address) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, f.Address, f.Name); err != nil {
		return fmt.Errorf("failed to insert field %s: %w", f.Name, err)
	}
	return nil
}

// RecordTarget upserts a post/comment row. Settlements rewrite the vote
// ledger and counters; the immutable columns only matter on first insert.
func (s *Store) RecordTarget(ctx context.Context, t domain.Target) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO targets (address, author, field, parent, posted_level,
			vote_ledger, min_comment_level, upvotes, downvotes, content_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (address) DO UPDATE SET
			vote_ledger = EXCLUDED.vote_ledger,
			upvotes = EXCLUDED.upvotes,
			downvotes = EXCLUDED.downvotes`

	_, err := s.db.ExecContext(ctx, query,
		t.Address, t.Author, t.Field, t.Parent, t.PostedLevel,
		t.VoteLedger.String(), t.MinCommentLevel, t.Upvotes, t.Downvotes,
		t.ContentRef, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert target %s: %w", t.Address, err)
	}
	return nil
}

// RecordVote upserts the single active vote for a (voter, target) pair.
func (s *Store) RecordVote(ctx context.Context, v domain.VoteRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO votes (voter, target, direction, magnitude)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (voter, target) DO UPDATE SET
			direction = EXCLUDED.direction,
			magnitude = EXCLUDED.magnitude`

	_, err := s.db.ExecContext(ctx, query, v.Voter, v.Target, int(v.Direction), v.Magnitude.String())
	if err != nil {
		return fmt.Errorf("failed to upsert vote %s/%s: %w", v.Voter, v.Target, err)
	}
	return nil
}

// RecordScore upserts one (account, field) score row with its vote counters.
func (s *Store) RecordScore(ctx context.Context, entry forum.ScoreEntry) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO scores (account, field, score, upvotes, downvotes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account, field) DO UPDATE SET
			score     = EXCLUDED.score,
			upvotes   = EXCLUDED.upvotes,
			downvotes = EXCLUDED.downvotes`

	_, err := s.db.ExecContext(ctx, query,
		entry.Account, entry.Field, entry.Score.String(), entry.Upvotes, entry.Downvotes)
	if err != nil {
		return fmt.Errorf("failed to upsert score %s/%s: %w", entry.Account, entry.Field, err)
	}
	return nil
}

// RecordBan flips the terminal ban flag, creating the row if needed.
func (s *Store) RecordBan(ctx context.Context, account domain.Address) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO accounts (address, banned)
		VALUES ($1, TRUE)
		ON CONFLICT (address) DO UPDATE SET banned = TRUE`

	if _, err := s.db.ExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("failed to record ban for %s: %w", account, err)
	}
	return nil
}

// Load reads the whole persisted state into an engine snapshot.
func (s *Store) Load(ctx context.Context) (forum.Snapshot, error) {
	var st forum.Snapshot

	if err := s.loadAccounts(ctx, &st); err != nil {
		return forum.Snapshot{}, err
	}
	if err := s.loadFields(ctx, &st); err != nil {
		return forum.Snapshot{}, err
	}
	if err := s.loadScores(ctx, &st); err != nil {
		return forum.Snapshot{}, err
	}
	if err := s.loadTargets(ctx, &st); err != nil {
		return forum.Snapshot{}, err
	}
	if err := s.loadVotes(ctx, &st); err != nil {
		return forum.Snapshot{}, err
	}
	return st, nil
}

func (s *Store) loadAccounts(ctx context.Context, st *forum.Snapshot) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, `SELECT address, name, banned, created_at FROM accounts`)
	if err != nil {
		return fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a      forum.Account
			banned bool
		)
		if err := rows.Scan(&a.Address, &a.Name, &banned, &a.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan account: %w", err)
		}
		st.Accounts = append(st.Accounts, a)
		if banned {
			st.Bans = append(st.Bans, a.Address)
		}
	}
	return rows.Err()
}

func (s *Store) loadFields(ctx context.Context, st *forum.Snapshot) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, `SELECT address, name FROM fields`)
	if err != nil {
		return fmt.Errorf("failed to query fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f forum.Field
		if err := rows.Scan(&f.Address, &f.Name); err != nil {
			return fmt.Errorf("failed to scan field: %w", err)
		}
		st.Fields = append(st.Fields, f)
	}
	return rows.Err()
}

func (s *Store) loadScores(ctx context.Context, st *forum.Snapshot) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, `SELECT account, field, score, upvotes, downvotes FROM scores`)
	if err != nil {
		return fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry forum.ScoreEntry
			raw   string
		)
		if err := rows.Scan(&entry.Account, &entry.Field, &raw, &entry.Upvotes, &entry.Downvotes); err != nil {
			return fmt.Errorf("failed to scan score: %w", err)
		}
		score, err := domain.ParseScore(raw)
		if err != nil {
			return fmt.Errorf("corrupt score for %s/%s: %w", entry.Account, entry.Field, err)
		}
		entry.Score = score
		st.Scores = append(st.Scores, entry)
	}
	return rows.Err()
}

func (s *Store) loadTargets(ctx context.Context, st *forum.Snapshot) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, `
		SELECT address, author, field, parent, posted_level, vote_ledger,
			min_comment_level, upvotes, downvotes, content_ref, created_at
		FROM targets`)
	if err != nil {
		return fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t   domain.Target
			raw string
		)
		if err := rows.Scan(&t.Address, &t.Author, &t.Field, &t.Parent,
			&t.PostedLevel, &raw, &t.MinCommentLevel,
			&t.Upvotes, &t.Downvotes, &t.ContentRef, &t.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan target: %w", err)
		}
		ledger, err := domain.ParseScore(raw)
		if err != nil {
			return fmt.Errorf("corrupt vote ledger for %s: %w", t.Address, err)
		}
		t.VoteLedger = ledger
		st.Targets = append(st.Targets, t)
	}
	return rows.Err()
}

func (s *Store) loadVotes(ctx context.Context, st *forum.Snapshot) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, `SELECT voter, target, direction, magnitude FROM votes`)
	if err != nil {
		return fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v   domain.VoteRecord
			dir int
			raw string
		)
		if err := rows.Scan(&v.Voter, &v.Target, &dir, &raw); err != nil {
			return fmt.Errorf("failed to scan vote: %w", err)
		}
		mag, err := domain.ParseScore(raw)
		if err != nil {
			return fmt.Errorf("corrupt magnitude for %s/%s: %w", v.Voter, v.Target, err)
		}
		v.Direction = domain.Direction(dir)
		v.Magnitude = mag
		st.Votes = append(st.Votes, v)
	}
	return rows.Err()
}
