package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateSubmission stores a contact submission, assigning its ID and
// CreatedAt. Read is always stored as false.
func (d *DB) CreateSubmission(ctx context.Context, s ContactSubmission) (ContactSubmission, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = d.timestamp()
	s.Read = false
	s.ReadAt = nil

	_, err := d.ExecContextRebound(ctx, `
	INSERT INTO contact_submissions (id, name, email, message, ip_address, is_read, read_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, NULL, ?)
	`, s.ID, s.Name, s.Email, s.Message, s.IPAddress, false, s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ContactSubmission{}, ErrDuplicate
		}
		return ContactSubmission{}, fmt.Errorf("failed to create contact submission: %w", err)
	}
	return s, nil
}

const submissionColumns = `id, name, email, message, ip_address, is_read, read_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (ContactSubmission, error) {
	var s ContactSubmission
	var readAt sql.NullTime
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Message, &s.IPAddress, &s.Read, &readAt, &s.CreatedAt); err != nil {
		return ContactSubmission{}, err
	}
	if readAt.Valid {
		t := readAt.Time
		s.ReadAt = &t
	}
	return s, nil
}

// GetSubmission returns one submission or ErrSubmissionNotFound.
func (d *DB) GetSubmission(ctx context.Context, id string) (ContactSubmission, error) {
	s, err := scanSubmission(d.QueryRowContextRebound(ctx,
		`SELECT `+submissionColumns+` FROM contact_submissions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ContactSubmission{}, ErrSubmissionNotFound
		}
		return ContactSubmission{}, fmt.Errorf("failed to get contact submission: %w", err)
	}
	return s, nil
}

// ListSubmissions returns submissions newest first.
func (d *DB) ListSubmissions(ctx context.Context, opts ListOptions) ([]ContactSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM contact_submissions`
	var args []any
	if opts.UnreadOnly {
		query += ` WHERE is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, opts.limit())

	rows, err := d.QueryContextRebound(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]ContactSubmission, 0)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact submission: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contact submissions: %w", err)
	}
	return out, nil
}

// MarkSubmissionRead flips read from false to true. Marking an already-read
// submission is a no-op that keeps the original ReadAt.
func (d *DB) MarkSubmissionRead(ctx context.Context, id string) (ContactSubmission, error) {
	_, err := d.ExecContextRebound(ctx, `
	UPDATE contact_submissions SET is_read = ?, read_at = ?
	WHERE id = ? AND is_read = ?
	`, true, d.timestamp(), id, false)
	if err != nil {
		return ContactSubmission{}, fmt.Errorf("failed to mark contact submission read: %w", err)
	}
	return d.GetSubmission(ctx, id)
}

// CountUnread returns the number of submissions not yet marked read.
func (d *DB) CountUnread(ctx context.Context) (int, error) {
	var n int
	if err := d.QueryRowContextRebound(ctx,
		`SELECT COUNT(*) FROM contact_submissions WHERE is_read = ?`, false).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unread submissions: %w", err)
	}
	return n, nil
}
