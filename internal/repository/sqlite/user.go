package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/stampcard/internal/apperror"
	"github.com/sakif/stampcard/internal/model"
	"github.com/sakif/stampcard/internal/repository"
)

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

const userColumns = `id, nickname, email, name, source, form_id, submission_id,
	form_data, additional_data, created_at, last_active`

// CreateRegistrant inserts the user, the card header and all eleven slots in
// one transaction. A nickname that is already taken comes back as
// apperror.Conflict and nothing is written.
func (db *DB) CreateRegistrant(ctx context.Context, user *model.User, card *model.StampCard) error {
	formData, err := marshalJSON(user.FormData)
	if err != nil {
		return fmt.Errorf("sqlite: encoding form data for user %s: %w", user.ID, err)
	}
	additional, err := marshalJSON(user.AdditionalData)
	if err != nil {
		return fmt.Errorf("sqlite: encoding additional data for user %s: %w", user.ID, err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning registration tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullString(user.Nickname),
		user.Email,
		user.Name,
		user.Source,
		user.FormID,
		user.SubmissionID,
		formData,
		additional,
		formatTime(user.CreatedAt),
		formatTime(user.LastActive),
	)
	if err != nil {
		if isUniqueViolation(err) && user.Nickname != "" {
			return apperror.Conflict("nickname", user.Nickname)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO stamp_cards (user_id, created_at, last_updated) VALUES (?, ?, ?)`,
		card.UserID, formatTime(card.CreatedAt), formatTime(card.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting stamp card %s: %w", card.UserID, err)
	}

	for i, slot := range card.Stamps {
		var filledAt sql.NullString
		if slot.FilledAt != nil {
			filledAt = sql.NullString{String: formatTime(*slot.FilledAt), Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO stamp_slots (user_id, position, booth_id, filled, filled_at)
			 VALUES (?, ?, ?, ?, ?)`,
			card.UserID, i, slot.BoothID, slot.Filled, filledAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting slot %s for %s: %w", slot.BoothID, card.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing registration %s: %w", user.ID, err)
	}
	return nil
}

// GetUser returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// FindUserByNickname relies on SQLite's default BINARY collation, which makes
// the comparison case-sensitive.
func (db *DB) FindUserByNickname(ctx context.Context, nickname string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE nickname = ?`, nickname)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user with nickname", nickname)
		}
		return nil, fmt.Errorf("sqlite: finding user by nickname: %w", err)
	}
	return u, nil
}

func (db *DB) TouchUser(ctx context.Context, id string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET last_active = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("sqlite: touching user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: touching user %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                     model.User
		nickname              sql.NullString
		formData, additional  string
		createdAt, lastActive string
	)
	err := row.Scan(
		&u.ID,
		&nickname,
		&u.Email,
		&u.Name,
		&u.Source,
		&u.FormID,
		&u.SubmissionID,
		&formData,
		&additional,
		&createdAt,
		&lastActive,
	)
	if err != nil {
		return nil, err
	}
	u.Nickname = nickname.String

	if formData != "" {
		if err := json.Unmarshal([]byte(formData), &u.FormData); err != nil {
			return nil, fmt.Errorf("decoding form data: %w", err)
		}
	}
	if additional != "" {
		if err := json.Unmarshal([]byte(additional), &u.AdditionalData); err != nil {
			return nil, fmt.Errorf("decoding additional data: %w", err)
		}
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.LastActive, err = parseTime(lastActive); err != nil {
		return nil, err
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// marshalJSON encodes v, storing nil maps as the empty string.
func marshalJSON[M ~map[string]V, V any](v M) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
