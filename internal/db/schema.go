package db

// SQL text per dialect. Table names are validated identifiers substituted
// with fmt.Sprintf; every value goes through a placeholder.

// Schema for instance documents kept as JSON text (SQLite)
const createInstancesTableSQLite = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id TEXT PRIMARY KEY,
    doc TEXT NOT NULL
);
`

// Schema for instance documents kept as JSONB (PostgreSQL)
const createInstancesTablePostgres = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id TEXT PRIMARY KEY,
    doc JSONB NOT NULL
);
`

const selectLinksSQLite = `
SELECT id, json_extract(doc, ?)
FROM %[1]s
WHERE json_type(doc, ?) = 'text'
ORDER BY id
`

const selectLinksPostgres = `
SELECT id, doc #>> $1::text[]
FROM %[1]s
WHERE jsonb_typeof(doc #> $1::text[]) = 'string'
ORDER BY id
`

// The update is conditioned on the id AND the previously read value so a
// document changed since the find is left alone
const updateLinkSQLite = `
UPDATE %[1]s
SET doc = json_set(doc, ?, ?)
WHERE id = ? AND json_extract(doc, ?) = ?
`

const updateLinkPostgres = `
UPDATE %[1]s
SET doc = jsonb_set(doc, $1::text[], to_jsonb($2::text))
WHERE id = $3 AND doc #>> $1::text[] = $4
`

const upsertInstanceSQLite = `
INSERT INTO %[1]s (id, doc) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
`

const upsertInstancePostgres = `
INSERT INTO %[1]s (id, doc) VALUES ($1, $2::jsonb)
ON CONFLICT (id) DO UPDATE SET doc = excluded.doc
`

const selectInstanceSQLite = `
SELECT doc FROM %[1]s WHERE id = ?
`

const selectInstancePostgres = `
SELECT doc::text FROM %[1]s WHERE id = $1
`

const countInstances = `
SELECT COUNT(*) FROM %[1]s
`
