package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/tree"
)

const nodeColumns = `id, parent_id, position, data, deleted_at`

// InsertNode inserts a single node row.
// Returns tree.ErrNodeExists if the id is taken.
func (q *queries) InsertNode(ctx context.Context, n *tree.Node) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO tree_nodes (id, parent_id, position, data, deleted_at) VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.ParentID, n.Position, jsonData(n.Data), n.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", tree.ErrNodeExists, n.ID)
		}
		return fmt.Errorf("tree: insert node: %w", err)
	}
	return nil
}

// GetNode fetches a single node by its ID, soft-deleted or not.
// Returns nil, nil if not found.
func (q *queries) GetNode(ctx context.Context, id string) (*tree.Node, error) {
	n, err := scanNode(q.db.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM tree_nodes WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("tree: get node: %w", err)
	}
	return n, nil
}

// UpdateNode writes parent, position, data and deletion stamp of a node.
// Returns tree.ErrNodeNotFound if the node doesn't exist.
func (q *queries) UpdateNode(ctx context.Context, n *tree.Node) error {
	ct, err := q.db.Exec(ctx,
		`UPDATE tree_nodes SET parent_id = $1, position = $2, data = $3, deleted_at = $4 WHERE id = $5`,
		n.ParentID, n.Position, jsonData(n.Data), n.DeletedAt, n.ID,
	)
	if err != nil {
		return fmt.Errorf("tree: update node: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return tree.ErrNodeNotFound
	}
	return nil
}

// ListNodes returns the nodes selected by f ordered by group and position.
// Returns an empty slice (not nil) if none found.
func (q *queries) ListNodes(ctx context.Context, f tree.NodeFilter) ([]tree.Node, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+nodeColumns+` FROM tree_nodes
		 WHERE (cardinality($1::text[]) = 0 OR id = ANY($1))
		   AND ($2 OR deleted_at IS NULL)
		 ORDER BY parent_id NULLS FIRST, position, id`,
		nonNil(f.IDs), f.WithDeleted)
	if err != nil {
		return nil, fmt.Errorf("tree: list nodes: %w", err)
	}
	return collectNodes(rows)
}

// ListGroup returns the live children of parent ordered by position.
func (q *queries) ListGroup(ctx context.Context, parent *string) ([]tree.Node, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+nodeColumns+` FROM tree_nodes
		 WHERE parent_id IS NOT DISTINCT FROM $1 AND deleted_at IS NULL
		 ORDER BY position, id`, parent)
	if err != nil {
		return nil, fmt.Errorf("tree: list group: %w", err)
	}
	return collectNodes(rows)
}

// NodeAt fetches the live node at position in the parent group.
// Returns nil, nil if the slot is empty.
func (q *queries) NodeAt(ctx context.Context, parent *string, position int) (*tree.Node, error) {
	n, err := scanNode(q.db.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM tree_nodes
		 WHERE parent_id IS NOT DISTINCT FROM $1 AND position = $2 AND deleted_at IS NULL
		 ORDER BY id LIMIT 1`, parent, position))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("tree: node at: %w", err)
	}
	return n, nil
}

// MarkDeleted stamps live nodes as deleted, or clears the stamp when at is nil.
func (q *queries) MarkDeleted(ctx context.Context, ids []string, at *time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	var err error
	if at == nil {
		_, err = q.db.Exec(ctx, `UPDATE tree_nodes SET deleted_at = NULL WHERE id = ANY($1)`, ids)
	} else {
		_, err = q.db.Exec(ctx,
			`UPDATE tree_nodes SET deleted_at = $1 WHERE id = ANY($2) AND deleted_at IS NULL`, *at, ids)
	}
	if err != nil {
		return fmt.Errorf("tree: mark deleted: %w", err)
	}
	return nil
}

// DeleteNodes removes node rows in one statement.
// No error if some ids don't exist.
func (q *queries) DeleteNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM tree_nodes WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("tree: delete nodes: %w", err)
	}
	return nil
}

// MaxPosition returns the highest live position in the parent group, or -1.
func (q *queries) MaxPosition(ctx context.Context, parent *string) (int, error) {
	var max int
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), -1) FROM tree_nodes
		 WHERE parent_id IS NOT DISTINCT FROM $1 AND deleted_at IS NULL`, parent,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("tree: max position: %w", err)
	}
	return max, nil
}

// ShiftPositions moves a range of a sibling group in one UPDATE.
func (q *queries) ShiftPositions(ctx context.Context, s tree.Shift) error {
	_, err := q.db.Exec(ctx,
		`UPDATE tree_nodes SET position = position + $1
		 WHERE parent_id IS NOT DISTINCT FROM $2
		   AND deleted_at IS NULL
		   AND position >= $3
		   AND ($4 < 0 OR position <= $4)
		   AND id <> $5`,
		s.Delta, s.Parent, s.From, s.To, s.Exclude,
	)
	if err != nil {
		return fmt.Errorf("tree: shift positions: %w", err)
	}
	return nil
}

func scanNode(row pgx.Row) (*tree.Node, error) {
	var n tree.Node
	if err := row.Scan(&n.ID, &n.ParentID, &n.Position, &n.Data, &n.DeletedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func collectNodes(rows pgx.Rows) ([]tree.Node, error) {
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

// jsonData stores an empty payload as an empty object.
func jsonData(d json.RawMessage) json.RawMessage {
	if len(d) == 0 {
		return json.RawMessage(`{}`)
	}
	return d
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
