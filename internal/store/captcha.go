package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hlop3z/formsandbox/internal/fserr"
)

// CaptchaTokens issues and redeems one-time captcha tokens.
type CaptchaTokens struct {
	s   *Store
	now func() time.Time
}

// Issue creates a token for formID that expires after ttl.
func (c *CaptchaTokens) Issue(ctx context.Context, formID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if _, err := c.s.db.ExecContext(ctx, c.s.rebind(
		`INSERT INTO captcha_tokens (token, form_id, expires_at, used) VALUES (?, ?, ?, 0)`),
		token, formID, c.now().Add(ttl).UnixMilli()); err != nil {
		return "", fserr.WrapSQL(err, "issue captcha token", "captcha_tokens")
	}
	return token, nil
}

// Check reports whether token is live for formID without redeeming it.
// A token that is missing, used or expired is an E5002 error.
func (c *CaptchaTokens) Check(ctx context.Context, formID, token string) error {
	if token == "" {
		return fserr.New(fserr.ErrCaptcha, "captcha token is missing")
	}
	var n int
	err := c.s.db.QueryRowContext(ctx, c.s.rebind(
		`SELECT COUNT(*) FROM captcha_tokens
		 WHERE token = ? AND form_id = ? AND used = 0 AND expires_at > ?`),
		token, formID, c.now().UnixMilli()).Scan(&n)
	if err != nil {
		return fserr.WrapSQL(err, "check captcha token", "captcha_tokens")
	}
	if n != 1 {
		return fserr.New(fserr.ErrCaptcha, "captcha token is invalid, used or expired").
			With("form", formID)
	}
	return nil
}

// Consume redeems token for formID. A token is accepted at most once and
// only before it expires; any other case is an E5002 error.
func (c *CaptchaTokens) Consume(ctx context.Context, formID, token string) error {
	if token == "" {
		return fserr.New(fserr.ErrCaptcha, "captcha token is missing")
	}
	res, err := c.s.db.ExecContext(ctx, c.s.rebind(
		`UPDATE captcha_tokens SET used = 1
		 WHERE token = ? AND form_id = ? AND used = 0 AND expires_at > ?`),
		token, formID, c.now().UnixMilli())
	if err != nil {
		return fserr.WrapSQL(err, "consume captcha token", "captcha_tokens")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fserr.WrapSQL(err, "consume captcha token", "captcha_tokens")
	}
	if n != 1 {
		return fserr.New(fserr.ErrCaptcha, "captcha token is invalid, used or expired").
			With("form", formID)
	}
	return nil
}

// Purge deletes used and expired tokens and returns how many were removed.
func (c *CaptchaTokens) Purge(ctx context.Context) (int64, error) {
	res, err := c.s.db.ExecContext(ctx, c.s.rebind(
		`DELETE FROM captcha_tokens WHERE used = 1 OR expires_at <= ?`), c.now().UnixMilli())
	if err != nil {
		return 0, fserr.WrapSQL(err, "purge captcha tokens", "captcha_tokens")
	}
	return res.RowsAffected()
}
