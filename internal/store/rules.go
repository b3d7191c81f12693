package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// CreateRuleTemplate inserts a new rule_template row.
func (s *Store) CreateRuleTemplate(ctx context.Context, t *model.RuleTemplate) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rule_template (name, rule_config) VALUES (?, ?)`,
		t.Name, string(t.RuleConfigRaw),
	)
	if err != nil {
		return 0, fmt.Errorf("store: creating rule template: %w", err)
	}

	return res.LastInsertId()
}

// GetRuleTemplate loads one rule_template row by ID.
func (s *Store) GetRuleTemplate(ctx context.Context, id int64) (*model.RuleTemplate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, rule_config, created_at, updated_at FROM rule_template WHERE id = ?`, id)

	var (
		t                    model.RuleTemplate
		raw                  string
		createdAt, updatedAt string
	)

	if err := row.Scan(&t.ID, &t.Name, &raw, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: rule template %d not found: %w", id, err)
		}

		return nil, fmt.Errorf("store: loading rule template %d: %w", id, err)
	}

	t.RuleConfigRaw = []byte(raw)
	t.CreatedAt = parseTimestamp(createdAt)
	t.UpdatedAt = parseTimestamp(updatedAt)

	return &t, nil
}

// ListRuleTemplates returns every rule_template row, ordered by ID.
func (s *Store) ListRuleTemplates(ctx context.Context) ([]*model.RuleTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, rule_config, created_at, updated_at FROM rule_template ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: listing rule templates: %w", err)
	}
	defer rows.Close()

	var out []*model.RuleTemplate

	for rows.Next() {
		var (
			t                    model.RuleTemplate
			raw                  string
			createdAt, updatedAt string
		)

		if err := rows.Scan(&t.ID, &t.Name, &raw, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning rule template: %w", err)
		}

		t.RuleConfigRaw = []byte(raw)
		t.CreatedAt = parseTimestamp(createdAt)
		t.UpdatedAt = parseTimestamp(updatedAt)

		out = append(out, &t)
	}

	return out, rows.Err()
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}

	t, _ := time.Parse("2006-01-02 15:04:05", s)

	return t
}
