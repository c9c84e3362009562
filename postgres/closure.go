package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/tree"
)

// SelectClosure returns the rows matching f ordered by depth.
func (q *queries) SelectClosure(ctx context.Context, f tree.ClosureFilter) ([]tree.ClosureRow, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Ancestor != "" {
		add("ancestor_id = $%d", f.Ancestor)
	}
	if f.Descendant != "" {
		add("descendant_id = $%d", f.Descendant)
	}
	if f.MinDepth > 0 {
		add("depth >= $%d", f.MinDepth)
	}
	if f.MaxDepth > 0 {
		add("depth <= $%d", f.MaxDepth)
	}

	sql := `SELECT ancestor_id, descendant_id, depth FROM tree_closure`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY depth, ancestor_id, descendant_id`

	rows, err := q.db.Query(ctx, sql, args...)
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

// InsertClosure bulk-inserts rows with COPY.
func (q *queries) InsertClosure(ctx context.Context, rows []tree.ClosureRow) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := q.db.CopyFrom(ctx,
		pgx.Identifier{"tree_closure"},
		[]string{"ancestor_id", "descendant_id", "depth"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return []any{rows[i].Ancestor, rows[i].Descendant, rows[i].Depth}, nil
		}),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tree: insert closure: %w: %w", tree.ErrNodeExists, err)
		}
		return fmt.Errorf("tree: insert closure: %w", err)
	}
	return nil
}

// DeleteClosure removes every row linking one of ancestors to one of
// descendants.
func (q *queries) DeleteClosure(ctx context.Context, ancestors, descendants []string) error {
	if len(ancestors) == 0 || len(descendants) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx,
		`DELETE FROM tree_closure WHERE ancestor_id = ANY($1) AND descendant_id = ANY($2)`,
		ancestors, descendants,
	)
	if err != nil {
		return fmt.Errorf("tree: delete closure: %w", err)
	}
	return nil
}

// DeleteClosureByDescendant removes every row whose descendant is in ids.
func (q *queries) DeleteClosureByDescendant(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM tree_closure WHERE descendant_id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("tree: delete closure by descendant: %w", err)
	}
	return nil
}
