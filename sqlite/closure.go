package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/meikuraledutech/tree"
)

// insertChunk bounds the rows per INSERT so a statement stays under the
// host-parameter limit of older SQLite builds.
const insertChunk = 300

func (q *queries) SelectClosure(ctx context.Context, f tree.ClosureFilter) ([]tree.ClosureRow, error) {
	var (
		where []string
		args  []any
	)
	if f.Ancestor != "" {
		where = append(where, `ancestor_id = ?`)
		args = append(args, f.Ancestor)
	}
	if f.Descendant != "" {
		where = append(where, `descendant_id = ?`)
		args = append(args, f.Descendant)
	}
	if f.MinDepth > 0 {
		where = append(where, `depth >= ?`)
		args = append(args, f.MinDepth)
	}
	if f.MaxDepth > 0 {
		where = append(where, `depth <= ?`)
		args = append(args, f.MaxDepth)
	}

	query := `SELECT ancestor_id, descendant_id, depth FROM tree_closure`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY depth, ancestor_id, descendant_id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tree: select closure: %w", err)
	}
	defer rows.Close()

	out := []tree.ClosureRow{}
	for rows.Next() {
		var r tree.ClosureRow
		if err := rows.Scan(&r.Ancestor, &r.Descendant, &r.Depth); err != nil {
			return nil, fmt.Errorf("tree: scan closure: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tree: rows closure: %w", err)
	}
	return out, nil
}

func (q *queries) InsertClosure(ctx context.Context, rows []tree.ClosureRow) error {
	for start := 0; start < len(rows); start += insertChunk {
		chunk := rows[start:min(start+insertChunk, len(rows))]
		values := strings.TrimSuffix(strings.Repeat("(?, ?, ?), ", len(chunk)), ", ")
		args := make([]any, 0, len(chunk)*3)
		for _, r := range chunk {
			args = append(args, r.Ancestor, r.Descendant, r.Depth)
		}
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO tree_closure (ancestor_id, descendant_id, depth) VALUES `+values, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("tree: insert closure: %w: %w", tree.ErrNodeExists, err)
			}
			return fmt.Errorf("tree: insert closure: %w", err)
		}
	}
	return nil
}

func (q *queries) DeleteClosure(ctx context.Context, ancestors, descendants []string) error {
	if len(ancestors) == 0 || len(descendants) == 0 {
		return nil
	}
	args := append(anys(ancestors), anys(descendants)...)
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM tree_closure
		 WHERE ancestor_id IN (`+placeholders(len(ancestors))+`)
		   AND descendant_id IN (`+placeholders(len(descendants))+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("tree: delete closure: %w", err)
	}
	return nil
}

func (q *queries) DeleteClosureByDescendant(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM tree_closure WHERE descendant_id IN (`+placeholders(len(ids))+`)`, anys(ids)...)
	if err != nil {
		return fmt.Errorf("tree: delete closure by descendant: %w", err)
	}
	return nil
}
