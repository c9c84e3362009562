package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tree_nodes (
    id         TEXT PRIMARY KEY,
    parent_id  TEXT REFERENCES tree_nodes(id),
    position   INTEGER NOT NULL DEFAULT 0,
    data       JSONB NOT NULL DEFAULT '{}',
    deleted_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tree_closure (
    ancestor_id   TEXT NOT NULL REFERENCES tree_nodes(id) ON DELETE CASCADE,
    descendant_id TEXT NOT NULL REFERENCES tree_nodes(id) ON DELETE CASCADE,
    depth         INTEGER NOT NULL CHECK (depth >= 0),
    PRIMARY KEY (ancestor_id, descendant_id)
);

CREATE INDEX IF NOT EXISTS idx_tree_nodes_group      ON tree_nodes(parent_id, position);
CREATE INDEX IF NOT EXISTS idx_tree_closure_desc     ON tree_closure(descendant_id, depth);
`

// CreateSchema creates the tree_nodes and tree_closure tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the tree_closure and tree_nodes tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS tree_closure, tree_nodes CASCADE;`)
	return err
}
