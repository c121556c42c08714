package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/stampcard/internal/model"
)

// SaveSubmission upserts by submission id; a relayed id seen twice keeps the
// latest details.
func (db *DB) SaveSubmission(ctx context.Context, sub *model.Submission) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO submissions (submission_id, user_id, email, source, received_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(submission_id) DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			source = excluded.source,
			received_at = excluded.received_at`,
		sub.SubmissionID, sub.UserID, sub.Email, sub.Source, formatTime(sub.ReceivedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving submission %s: %w", sub.SubmissionID, err)
	}
	return nil
}

// Stats counts registrants and cards and lists the most recent registrants,
// newest first.
func (db *DB) Stats(ctx context.Context, recent int) (*model.Stats, error) {
	stats := &model.Stats{RecentUsers: []model.User{}}

	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers); err != nil {
		return nil, fmt.Errorf("sqlite: counting users: %w", err)
	}
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM stamp_cards`).Scan(&stats.TotalStampCards); err != nil {
		return nil, fmt.Errorf("sqlite: counting stamp cards: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id LIMIT ?`, recent)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recent users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning recent user: %w", err)
		}
		stats.RecentUsers = append(stats.RecentUsers, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recent users: %w", err)
	}

	return stats, nil
}

// CheckStore round-trips a disposable probe row and counts the collections.
func (db *DB) CheckStore(ctx context.Context) (*model.StoreCheck, error) {
	now := time.Now().UTC()
	check := &model.StoreCheck{
		Backend:     "sqlite",
		ProbeID:     "probe-" + xid.New().String(),
		Collections: map[string]int{},
		CheckedAt:   now,
	}

	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO store_probes (id, message, created_at) VALUES (?, ?, ?)`,
		check.ProbeID, "store connection test", formatTime(now),
	); err != nil {
		return check, fmt.Errorf("sqlite: writing probe: %w", err)
	}
	check.Wrote = true

	var message string
	if err := db.conn.QueryRowContext(ctx,
		`SELECT message FROM store_probes WHERE id = ?`, check.ProbeID,
	).Scan(&message); err != nil {
		return check, fmt.Errorf("sqlite: reading probe: %w", err)
	}
	check.Read = true

	for table, key := range map[string]string{"users": "users", "stamp_cards": "stamps"} {
		var n int
		if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return check, fmt.Errorf("sqlite: counting %s: %w", table, err)
		}
		check.Collections[key] = n
	}

	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM store_probes WHERE id = ?`, check.ProbeID,
	); err != nil {
		return check, fmt.Errorf("sqlite: deleting probe: %w", err)
	}
	check.Deleted = true

	return check, nil
}
