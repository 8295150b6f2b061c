package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/hlop3z/formsandbox/internal/fserr"
)

// UniqueIndex remembers which value each submission stored at a path.
type UniqueIndex struct {
	s *Store
}

// valueKey normalizes a value for comparison. Strings compare trimmed and
// case-insensitively; everything else by its JSON encoding.
func valueKey(v any) (string, error) {
	if str, ok := v.(string); ok {
		return "s:" + strings.ToLower(strings.TrimSpace(str)), nil
	}
	raw, err := sonic.MarshalString(v)
	if err != nil {
		return "", fserr.Wrap(fserr.ErrNotTransferable, err, "value cannot be indexed")
	}
	return "j:" + raw, nil
}

// IsUnique reports whether no other submission of formID stored value at path.
// excludeID is the submission being updated; empty means a new submission.
func (u *UniqueIndex) IsUnique(ctx context.Context, formID, path string, value any, excludeID string) (bool, error) {
	key, err := valueKey(value)
	if err != nil {
		return false, err
	}
	owner, err := u.owner(ctx, u.s.db, formID, path, key, excludeID)
	if err != nil {
		return false, err
	}
	return owner == "", nil
}

// querier is the part of *sql.DB and *sql.Tx that owner needs.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// owner returns the submission other than excludeID holding key at path.
func (u *UniqueIndex) owner(ctx context.Context, q querier, formID, path, key, excludeID string) (string, error) {
	query := `SELECT submission_id FROM submission_values
		 WHERE form_id = ? AND path = ? AND value_key = ?`
	args := []any{formID, path, key}
	if excludeID != "" {
		query += ` AND submission_id <> ?`
		args = append(args, excludeID)
	}
	var found string
	err := q.QueryRowContext(ctx, u.s.rebind(query+` LIMIT 1`), args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fserr.WrapSQL(err, "query unique values", "submission_values").With("path", path)
	}
	return found, nil
}

// Record stores value as submissionID's value at path, replacing any
// previous value. It fails with an E5001 error when another submission
// holds the value, including one that recorded it after IsUnique passed.
func (u *UniqueIndex) Record(ctx context.Context, formID, path string, value any, submissionID string) error {
	if submissionID == "" {
		return fserr.New(fserr.ErrInternal, "unique value recorded without a submission id").With("path", path)
	}
	key, err := valueKey(value)
	if err != nil {
		return err
	}
	tx, err := u.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fserr.WrapSQL(err, "begin transaction", "submission_values")
	}
	defer tx.Rollback() //nolint:errcheck

	owner, err := u.owner(ctx, tx, formID, path, key, submissionID)
	if err != nil {
		return err
	}
	if owner != "" {
		return taken(path)
	}
	if _, err := tx.ExecContext(ctx, u.s.rebind(
		`DELETE FROM submission_values WHERE form_id = ? AND path = ? AND submission_id = ?`),
		formID, path, submissionID); err != nil {
		return fserr.WrapSQL(err, "delete unique value", "submission_values")
	}
	if _, err := tx.ExecContext(ctx, u.s.rebind(
		`INSERT INTO submission_values (form_id, path, value_key, submission_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`),
		formID, path, key, submissionID, time.Now().Unix()); err != nil {
		tx.Rollback() //nolint:errcheck
		return u.lost(ctx, formID, path, key, submissionID, fserr.WrapSQL(err, "insert unique value", "submission_values"))
	}
	if err := tx.Commit(); err != nil {
		return u.lost(ctx, formID, path, key, submissionID, fserr.WrapSQL(err, "commit unique value", "submission_values"))
	}
	return nil
}

// lost reports a write rejected by the unique index as taken when a
// concurrent Record holds the value now, and as err otherwise.
func (u *UniqueIndex) lost(ctx context.Context, formID, path, key, submissionID string, err error) error {
	if owner, qerr := u.owner(ctx, u.s.db, formID, path, key, submissionID); qerr == nil && owner != "" {
		return taken(path)
	}
	return err
}

func taken(path string) error {
	return fserr.New(fserr.ErrValidation, "value is already taken").With("path", path)
}

// Forget removes every value recorded for submissionID.
func (u *UniqueIndex) Forget(ctx context.Context, formID, submissionID string) error {
	if _, err := u.s.db.ExecContext(ctx, u.s.rebind(
		`DELETE FROM submission_values WHERE form_id = ? AND submission_id = ?`),
		formID, submissionID); err != nil {
		return fserr.WrapSQL(err, "delete unique values", "submission_values")
	}
	return nil
}
