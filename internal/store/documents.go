package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/panopticon/internal/ir"
	"github.com/roach88/panopticon/internal/watch"
)

// Collection is a named set of documents sharing one hook schema.
type Collection struct {
	store  *Store
	name   string
	schema *watch.Schema
}

// Collection returns a handle on the named collection. A nil schema gets an
// empty one, so documents can be stored without being watched.
func (s *Store) Collection(name string, schema *watch.Schema) *Collection {
	if schema == nil {
		schema = watch.NewSchema()
	}
	return &Collection{store: s, name: name, schema: schema}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Schema returns the hook schema of the collection.
func (c *Collection) Schema() *watch.Schema {
	return c.schema
}

// Create inserts doc with version 1 and fires AfterSave.
//
// A new document has never been loaded, so it carries no original snapshot
// and an attached watcher does not dispatch.
func (c *Collection) Create(ctx context.Context, doc *ir.Document) error {
	doc.Collection = c.name
	body, err := marshalBody(doc.Fields)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", c.name, doc.ID, err)
	}

	_, err = c.store.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, version)
		VALUES (?, ?, ?, 1)
	`, c.name, doc.ID, body)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create %s/%s: %w", c.name, doc.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("create %s/%s: %w", c.name, doc.ID, err)
	}
	doc.Version = 1

	return c.schema.Fire(ctx, watch.AfterSave, doc)
}

// Load reads a document and fires BeforeLoad.
func (c *Collection) Load(ctx context.Context, id string) (*ir.Document, error) {
	doc, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.schema.Fire(ctx, watch.BeforeLoad, doc); err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", c.name, id, err)
	}
	return doc, nil
}

// Get reads a document without firing any hook.
func (c *Collection) Get(ctx context.Context, id string) (*ir.Document, error) {
	var (
		body    string
		version int64
	)
	err := c.store.db.QueryRowContext(ctx, `
		SELECT body, version FROM documents
		WHERE collection = ? AND id = ?
	`, c.name, id).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", c.name, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}

	fields, err := unmarshalBody(body)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}

	doc := ir.NewDocument(c.name, id, fields)
	doc.Version = version
	return doc, nil
}

// Save writes doc if its version is still current, bumps the version and
// fires AfterSave.
//
// Errors from AfterSave hooks, including dispatch errors, are returned after
// the row has been written.
func (c *Collection) Save(ctx context.Context, doc *ir.Document) error {
	body, err := marshalBody(doc.Fields)
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", c.name, doc.ID, err)
	}

	res, err := c.store.db.ExecContext(ctx, `
		UPDATE documents SET body = ?, version = version + 1
		WHERE collection = ? AND id = ? AND version = ?
	`, body, c.name, doc.ID, doc.Version)
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", c.name, doc.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", c.name, doc.ID, err)
	}
	if n == 0 {
		if _, getErr := c.Get(ctx, doc.ID); errors.Is(getErr, ErrNotFound) {
			return fmt.Errorf("save %s/%s: %w", c.name, doc.ID, ErrNotFound)
		}
		return fmt.Errorf("save %s/%s at version %d: %w", c.name, doc.ID, doc.Version, ErrVersionConflict)
	}
	doc.Version++

	return c.schema.Fire(ctx, watch.AfterSave, doc)
}

// Delete removes a document. No hook fires.
func (c *Collection) Delete(ctx context.Context, id string) error {
	res, err := c.store.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = ? AND id = ?
	`, c.name, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, ErrNotFound)
	}
	return nil
}

// IDs lists the document ids of the collection in binary order.
func (c *Collection) IDs(ctx context.Context) ([]string, error) {
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT id FROM documents WHERE collection = ?
		ORDER BY id COLLATE BINARY ASC
	`, c.name)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// marshalBody converts fields to canonical JSON TEXT for storage.
func marshalBody(fields ir.IRObject) (string, error) {
	if fields == nil {
		fields = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}
	return string(data), nil
}

// unmarshalBody parses a stored body. Integers survive beyond 2^53 because
// ir.ParseObject decodes numbers as json.Number.
func unmarshalBody(data string) (ir.IRObject, error) {
	if data == "" {
		return ir.IRObject{}, nil
	}
	obj, err := ir.ParseObject([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal body: %w", err)
	}
	return obj, nil
}
