package postgres

import (
	"context"
	"fmt"

	"github.com/navhub/navhub/internal/directory"
)

// SubmissionStore persists submissions in the submit table.
type SubmissionStore struct {
	pool querier
}

// NewSubmissionStore constructs a store from an existing pool.
func NewSubmissionStore(pool querier) (*SubmissionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SubmissionStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *SubmissionStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a pending submission and returns its ID.
func (s *SubmissionStore) Create(ctx context.Context, sub directory.Submission) (int64, error) {
	query := `
INSERT INTO submit (name, url, status, is_feature, created_at)
VALUES ($1, $2, $3, $4, NOW())
RETURNING id`
	var id int64
	err := s.pool.QueryRow(ctx, query, sub.Name, sub.URL, int(sub.Status), sub.IsFeature).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	return id, nil
}

// ListPending returns pending submissions, featured first, then oldest first.
func (s *SubmissionStore) ListPending(ctx context.Context) ([]directory.Submission, error) {
	query := `
SELECT id, name, url, status, is_feature, created_at
FROM submit
WHERE status = $1
ORDER BY is_feature DESC, created_at ASC`
	rows, err := s.pool.Query(ctx, query, int(directory.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	defer rows.Close()

	var out []directory.Submission
	for rows.Next() {
		var sub directory.Submission
		var status int
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.URL, &status, &sub.IsFeature, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.Status = directory.Status(status)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

// UpdateStatus sets the status for one submission.
func (s *SubmissionStore) UpdateStatus(ctx context.Context, id int64, status directory.Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE submit SET status = $1 WHERE id = $2`, int(status), id)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update submission status: id %d not found", id)
	}
	return nil
}

// UpdateStatusByURL sets the status for every submission with a matching URL.
// Multiple submissions sharing a URL are all affected.
func (s *SubmissionStore) UpdateStatusByURL(ctx context.Context, url string, status directory.Status) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE submit SET status = $1 WHERE url = $2`, int(status), url)
	if err != nil {
		return 0, fmt.Errorf("update submission status by url: %w", err)
	}
	return tag.RowsAffected(), nil
}
