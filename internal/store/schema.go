package store

// schema is the base DDL applied to a brand-new database file. Additive
// migrations (migrations.go) bring older files up to date; schema.go is
// only ever the *current* shape for a fresh CREATE (spec.md §4.3),
// mirrored on the teacher's internal/storage/sqlite/schema.go layout of
// one CREATE TABLE IF NOT EXISTS block per table plus its indexes.
const schema = `
CREATE TABLE IF NOT EXISTS root_entries (
    id            TEXT PRIMARY KEY,
    prefix        TEXT NOT NULL,
    sequence      INTEGER NOT NULL,
    created_at    TEXT NOT NULL,
    level1        TEXT NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    access_count  INTEGER NOT NULL DEFAULT 0,
    last_accessed TEXT,
    links         TEXT NOT NULL DEFAULT '[]',
    min_role      TEXT NOT NULL DEFAULT 'worker',
    obsolete      INTEGER NOT NULL DEFAULT 0,
    favorite      INTEGER NOT NULL DEFAULT 0,
    irrelevant    INTEGER NOT NULL DEFAULT 0,
    pinned        INTEGER NOT NULL DEFAULT 0,
    UNIQUE(prefix, sequence)
);

CREATE INDEX IF NOT EXISTS idx_root_entries_prefix ON root_entries(prefix);
CREATE INDEX IF NOT EXISTS idx_root_entries_created_at ON root_entries(created_at);
CREATE INDEX IF NOT EXISTS idx_root_entries_obsolete ON root_entries(obsolete);

CREATE TABLE IF NOT EXISTS nodes (
    id            TEXT PRIMARY KEY,
    parent_id     TEXT NOT NULL,
    root_id       TEXT NOT NULL,
    depth         INTEGER NOT NULL,
    seq           INTEGER NOT NULL,
    content       TEXT NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL,
    access_count  INTEGER NOT NULL DEFAULT 0,
    last_accessed TEXT,
    favorite      INTEGER NOT NULL DEFAULT 0,
    irrelevant    INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (root_id) REFERENCES root_entries(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_nodes_root ON nodes(root_id);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
CREATE INDEX IF NOT EXISTS idx_nodes_created_at ON nodes(created_at);

CREATE TABLE IF NOT EXISTS tags (
    owner_id TEXT NOT NULL,
    tag      TEXT NOT NULL,
    PRIMARY KEY (owner_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);

CREATE TABLE IF NOT EXISTS schema_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
