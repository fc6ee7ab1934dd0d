package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore keeps records and claims in the service database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a ledger backed by the notification tables.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// claimSQL only replaces an existing claim once it has expired, so
// RowsAffected is 0 while another holder's lease is live.
const claimSQL = `INSERT INTO notification_claims (investor_id, property_id, token, claimed_at, expires_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(investor_id, property_id) DO UPDATE SET
		token = excluded.token,
		claimed_at = excluded.claimed_at,
		expires_at = excluded.expires_at
	WHERE notification_claims.expires_at <= excluded.claimed_at`

const confirmSQL = `INSERT INTO notification_records (investor_id, property_id, score_at_send, sent_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(investor_id, property_id) DO UPDATE SET
		score_at_send = excluded.score_at_send,
		sent_at = excluded.sent_at`

// Claim takes the lease for key.
func (s *SQLiteStore) Claim(ctx context.Context, key Key, now time.Time, ttl time.Duration) (*Claim, error) {
	c := &Claim{Key: key, Token: uuid.NewString(), ExpiresAt: now.Add(ttl)}

	result, err := s.db.ExecContext(ctx, claimSQL,
		key.InvestorID, key.PropertyID, c.Token, now.UnixNano(), c.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("claiming %s/%s: %w", key.InvestorID, key.PropertyID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}
	return c, nil
}

// Get returns the record for key.
func (s *SQLiteStore) Get(ctx context.Context, key Key) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT investor_id, property_id, score_at_send, sent_at FROM notification_records
		 WHERE investor_id = ? AND property_id = ?`,
		key.InvestorID, key.PropertyID,
	)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying record %s/%s: %w", key.InvestorID, key.PropertyID, err)
	}
	return rec, nil
}

// Confirm writes the record and drops the claim in one transaction.
func (s *SQLiteStore) Confirm(ctx context.Context, c *Claim, scoreAtSend int, sentAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, confirmSQL, c.InvestorID, c.PropertyID, scoreAtSend, sentAt.UTC()); err != nil {
		return fmt.Errorf("writing record %s/%s: %w", c.InvestorID, c.PropertyID, err)
	}
	if err := deleteClaim(ctx, tx, c); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing record %s/%s: %w", c.InvestorID, c.PropertyID, err)
	}
	return nil
}

// Release drops the claim if this holder still owns it.
func (s *SQLiteStore) Release(ctx context.Context, c *Claim) error {
	return deleteClaim(ctx, s.db, c)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func deleteClaim(ctx context.Context, db execer, c *Claim) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM notification_claims WHERE investor_id = ? AND property_id = ? AND token = ?`,
		c.InvestorID, c.PropertyID, c.Token,
	)
	if err != nil {
		return fmt.Errorf("releasing claim %s/%s: %w", c.InvestorID, c.PropertyID, err)
	}
	return nil
}

// List returns records matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) (records []*Record, err error) {
	query := `SELECT investor_id, property_id, score_at_send, sent_at FROM notification_records`
	var args []interface{}
	var conditions []string

	if f.InvestorID != "" {
		conditions = append(conditions, "investor_id = ?")
		args = append(args, f.InvestorID)
	}
	if f.PropertyID != "" {
		conditions = append(conditions, "property_id = ?")
		args = append(args, f.PropertyID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY sent_at DESC, investor_id, property_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	return records, nil
}

// ResetInvestor deletes all records for an investor.
func (s *SQLiteStore) ResetInvestor(ctx context.Context, investorID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notification_records WHERE investor_id = ?`, investorID)
	if err != nil {
		return 0, fmt.Errorf("resetting records for %s: %w", investorID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func scanRecord(row interface{ Scan(...interface{}) error }) (*Record, error) {
	var rec Record
	if err := row.Scan(&rec.InvestorID, &rec.PropertyID, &rec.ScoreAtSend, &rec.SentAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
