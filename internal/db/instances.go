package db

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/thesavant42/fix-download-links/internal/models"
)

// ErrNotFound is returned by Get when no document has the given id
var ErrNotFound = errors.New("document not found")

// Find returns up to q.Limit documents whose field is a string matching
// q.Pattern (and q.Contains), in id order. The pattern is evaluated with Go's regexp so the
// semantics are the same for every SQL dialect.
func (db *DB) Find(ctx context.Context, q models.FindQuery) ([]models.Match, error) {
	if q.Pattern == nil {
		return nil, fmt.Errorf("find %s: pattern is required", q.Field)
	}
	if q.Limit <= 0 {
		return nil, nil
	}

	var matches []models.Match
	err := db.scanLinks(ctx, q.Field, func(id, value string) bool {
		if !q.Matches(value) {
			return true
		}
		matches = append(matches, models.Match{ID: id, Value: value})
		return len(matches) < q.Limit
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// Count returns the number of documents whose field matches q.Pattern
func (db *DB) Count(ctx context.Context, q models.CountQuery) (int64, error) {
	if q.Pattern == nil {
		return 0, fmt.Errorf("count %s: pattern is required", q.Field)
	}

	var n int64
	err := db.scanLinks(ctx, q.Field, func(_, value string) bool {
		if q.Matches(value) {
			n++
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// scanLinks streams (id, value) for every document holding a string at
// field until fn returns false. Rows are fully closed before returning so
// callers may write afterwards on the single connection.
func (db *DB) scanLinks(ctx context.Context, field string, fn func(id, value string) bool) error {
	path := db.pathArg(field)

	var rows *sql.Rows
	var err error
	if db.dialect == dialectPostgres {
		rows, err = db.conn.QueryContext(ctx, db.q.selectLinks, path)
	} else {
		rows, err = db.conn.QueryContext(ctx, db.q.selectLinks, path, path)
	}
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", field, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, value string
		if err := rows.Scan(&id, &value); err != nil {
			return fmt.Errorf("failed to scan %s: %w", field, err)
		}
		if !fn(id, value) {
			break
		}
	}
	return rows.Err()
}

// UpdateLink sets u.Field to u.New on the document with id u.ID, only if the
// field still equals u.Old. It reports whether a document was matched.
func (db *DB) UpdateLink(ctx context.Context, u models.Update) (bool, error) {
	id, ok := u.ID.(string)
	if !ok {
		return false, fmt.Errorf("update %s: unexpected id type %T", u.Field, u.ID)
	}
	path := db.pathArg(u.Field)

	var res sql.Result
	var err error
	if db.dialect == dialectPostgres {
		res, err = db.conn.ExecContext(ctx, db.q.updateLink, path, u.New, id, u.Old)
	} else {
		res, err = db.conn.ExecContext(ctx, db.q.updateLink, path, u.New, id, path, u.Old)
	}
	if err != nil {
		return false, fmt.Errorf("failed to update %s on %s: %w", u.Field, id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return n > 0, nil
}

// Import upserts instance documents read from r. Accepts a JSON array,
// newline-delimited JSON, or concatenated objects (mongoexport output).
// Returns the number of documents written.
func (db *DB) Import(ctx context.Context, r io.Reader) (int, error) {
	docs, err := decodeDocuments(r)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.q.upsert)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		id, err := documentID(doc)
		if err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return 0, fmt.Errorf("document %s: failed to encode: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, string(raw)); err != nil {
			return 0, fmt.Errorf("failed to insert document %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(docs), nil
}

// Document returns the raw stored document
func (db *DB) Document(ctx context.Context, id string) (map[string]any, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, db.q.selectOne, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return doc, nil
}

// Get returns the stored document as an Instance
func (db *DB) Get(ctx context.Context, id string) (models.Instance, error) {
	doc, err := db.Document(ctx, id)
	if err != nil {
		return models.Instance{}, err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return models.Instance{}, fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	var inst models.Instance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return models.Instance{}, fmt.Errorf("failed to decode instance %s: %w", id, err)
	}
	if inst.ID == "" {
		inst.ID = id
	}
	return inst, nil
}

// Len returns the number of documents in the collection
func (db *DB) Len(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, db.q.count).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func decodeDocuments(r io.Reader) ([]map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var docs []map[string]any
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("failed to decode document array: %w", err)
		}
		return docs, nil
	}

	var docs []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var doc map[string]any
		err := dec.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %d: %w", len(docs), err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// documentID picks the identifier of an exported document: _id as a string
// or extended-JSON {"$oid": ...}, falling back to the instance id field
func documentID(doc map[string]any) (string, error) {
	switch v := doc["_id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case map[string]any:
		if oid, ok := v["$oid"].(string); ok && oid != "" {
			return oid, nil
		}
	}
	if id, ok := doc["id"].(string); ok && id != "" {
		return id, nil
	}
	return "", fmt.Errorf("missing _id or id")
}
