package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/model"
)

func (db *DB) GetStampCard(ctx context.Context, userID string) (*model.StampCard, error) {
	return getStampCard(ctx, db.conn, userID)
}

// MarkBooth fills one slot with a conditional UPDATE. The filled = 0 guard
// makes the transition happen at most once even when requests race; the
// loser sees zero rows affected and gets AlreadyMarked with the stored card.
func (db *DB) MarkBooth(ctx context.Context, userID, boothID string, at time.Time) (*model.StampCard, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning mark tx: %w", err)
	}
	defer tx.Rollback()

	stamp := formatTime(at)
	res, err := tx.ExecContext(ctx,
		`UPDATE stamp_slots SET filled = 1, filled_at = ?
		 WHERE user_id = ? AND booth_id = ? AND filled = 0`,
		stamp, userID, boothID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marking %s for %s: %w", boothID, userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: marking %s for %s: %w", boothID, userID, err)
	}

	if n == 0 {
		card, err := getStampCard(ctx, tx, userID)
		if err != nil {
			return nil, err
		}
		for _, s := range card.Stamps {
			if s.BoothID == boothID {
				return card, apperror.AlreadyMarked(boothID)
			}
		}
		return nil, apperror.InvalidBooth(boothID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE stamp_cards SET last_updated = ? WHERE user_id = ?`, stamp, userID,
	); err != nil {
		return nil, fmt.Errorf("sqlite: updating card %s: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET last_active = ? WHERE id = ?`, stamp, userID,
	); err != nil {
		return nil, fmt.Errorf("sqlite: touching user %s: %w", userID, err)
	}

	card, err := getStampCard(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing mark %s for %s: %w", boothID, userID, err)
	}
	return card, nil
}

func getStampCard(ctx context.Context, q querier, userID string) (*model.StampCard, error) {
	var (
		card                   model.StampCard
		createdAt, lastUpdated string
	)
	err := q.QueryRowContext(ctx,
		`SELECT user_id, created_at, last_updated FROM stamp_cards WHERE user_id = ?`, userID,
	).Scan(&card.UserID, &createdAt, &lastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("stamp card", userID)
		}
		return nil, fmt.Errorf("sqlite: getting stamp card %s: %w", userID, err)
	}
	if card.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: stamp card %s: %w", userID, err)
	}
	if card.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("sqlite: stamp card %s: %w", userID, err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT booth_id, filled, filled_at FROM stamp_slots
		 WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing slots for %s: %w", userID, err)
	}
	defer rows.Close()

	card.Stamps = make([]model.Slot, 0, model.BoothCount)
	for rows.Next() {
		var (
			slot     model.Slot
			filledAt sql.NullString
		)
		if err := rows.Scan(&slot.BoothID, &slot.Filled, &filledAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning slot for %s: %w", userID, err)
		}
		if filledAt.Valid {
			t, err := parseTime(filledAt.String)
			if err != nil {
				return nil, fmt.Errorf("sqlite: slot %s for %s: %w", slot.BoothID, userID, err)
			}
			slot.FilledAt = &t
		}
		card.Stamps = append(card.Stamps, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating slots for %s: %w", userID, err)
	}

	return &card, nil
}
