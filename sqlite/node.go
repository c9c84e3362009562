package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/meikuraledutech/tree"
)

const nodeColumns = `id, parent_id, position, data, deleted_at`

func (q *queries) InsertNode(ctx context.Context, n *tree.Node) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO tree_nodes (id, parent_id, position, data, deleted_at) VALUES (?, ?, ?, ?, ?)`,
		n.ID, nullString(n.ParentID), n.Position, jsonData(n.Data), nullTime(n.DeletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", tree.ErrNodeExists, n.ID)
		}
		return fmt.Errorf("tree: insert node: %w", err)
	}
	return nil
}

func (q *queries) GetNode(ctx context.Context, id string) (*tree.Node, error) {
	n, err := scanNode(q.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM tree_nodes WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("tree: get node: %w", err)
	}
	return n, nil
}

func (q *queries) UpdateNode(ctx context.Context, n *tree.Node) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE tree_nodes SET parent_id = ?, position = ?, data = ?, deleted_at = ? WHERE id = ?`,
		nullString(n.ParentID), n.Position, jsonData(n.Data), nullTime(n.DeletedAt), n.ID,
	)
	if err != nil {
		return fmt.Errorf("tree: update node: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("tree: update node: %w", err)
	}
	if affected == 0 {
		return tree.ErrNodeNotFound
	}
	return nil
}

func (q *queries) ListNodes(ctx context.Context, f tree.NodeFilter) ([]tree.Node, error) {
	var (
		where []string
		args  []any
	)
	if len(f.IDs) > 0 {
		where = append(where, `id IN (`+placeholders(len(f.IDs))+`)`)
		args = append(args, anys(f.IDs)...)
	}
	if !f.WithDeleted {
		where = append(where, `deleted_at IS NULL`)
	}
	query := `SELECT ` + nodeColumns + ` FROM tree_nodes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	// NULLs sort first in SQLite.
	query += ` ORDER BY parent_id, position, id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tree: list nodes: %w", err)
	}
	return collectNodes(rows)
}

func (q *queries) ListGroup(ctx context.Context, parent *string) ([]tree.Node, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM tree_nodes
		 WHERE parent_id IS ? AND deleted_at IS NULL
		 ORDER BY position, id`, nullString(parent))
	if err != nil {
		return nil, fmt.Errorf("tree: list group: %w", err)
	}
	return collectNodes(rows)
}

func (q *queries) NodeAt(ctx context.Context, parent *string, position int) (*tree.Node, error) {
	n, err := scanNode(q.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM tree_nodes
		 WHERE parent_id IS ? AND position = ? AND deleted_at IS NULL
		 ORDER BY id LIMIT 1`, nullString(parent), position))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("tree: node at: %w", err)
	}
	return n, nil
}

func (q *queries) MarkDeleted(ctx context.Context, ids []string, at *time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	var err error
	if at == nil {
		_, err = q.db.ExecContext(ctx,
			`UPDATE tree_nodes SET deleted_at = NULL WHERE id IN (`+placeholders(len(ids))+`)`,
			anys(ids)...)
	} else {
		args := append([]any{at.UnixNano()}, anys(ids)...)
		_, err = q.db.ExecContext(ctx,
			`UPDATE tree_nodes SET deleted_at = ? WHERE id IN (`+placeholders(len(ids))+`) AND deleted_at IS NULL`,
			args...)
	}
	if err != nil {
		return fmt.Errorf("tree: mark deleted: %w", err)
	}
	return nil
}

func (q *queries) DeleteNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM tree_nodes WHERE id IN (`+placeholders(len(ids))+`)`, anys(ids)...)
	if err != nil {
		return fmt.Errorf("tree: delete nodes: %w", err)
	}
	return nil
}

func (q *queries) MaxPosition(ctx context.Context, parent *string) (int, error) {
	var last int
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) FROM tree_nodes
		 WHERE parent_id IS ? AND deleted_at IS NULL`, nullString(parent),
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("tree: max position: %w", err)
	}
	return last, nil
}

func (q *queries) ShiftPositions(ctx context.Context, s tree.Shift) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE tree_nodes SET position = position + ?
		 WHERE parent_id IS ?
		   AND deleted_at IS NULL
		   AND position >= ?
		   AND (? < 0 OR position <= ?)
		   AND id <> ?`,
		s.Delta, nullString(s.Parent), s.From, s.To, s.To, s.Exclude,
	)
	if err != nil {
		return fmt.Errorf("tree: shift positions: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*tree.Node, error) {
	var (
		n       tree.Node
		parent  sql.NullString
		data    []byte
		deleted sql.NullInt64
	)
	if err := row.Scan(&n.ID, &parent, &n.Position, &data, &deleted); err != nil {
		return nil, err
	}
	if parent.Valid {
		n.ParentID = &parent.String
	}
	if len(data) > 0 {
		n.Data = json.RawMessage(data)
	}
	if deleted.Valid {
		t := time.Unix(0, deleted.Int64).UTC()
		n.DeletedAt = &t
	}
	return &n, nil
}

func collectNodes(rows *sql.Rows) ([]tree.Node, error) {
	defer rows.Close()

	nodes := []tree.Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("tree: scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tree: rows nodes: %w", err)
	}
	return nodes, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func jsonData(d json.RawMessage) []byte {
	if len(d) == 0 {
		return []byte(`{}`)
	}
	return d
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func anys(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
