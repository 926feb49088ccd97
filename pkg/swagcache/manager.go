// Package swagcache persists Swagger/OpenAPI documents and their derived
// endpoints in SQLite, deduplicating by content hash and tracking a single
// current version per project.
package swagcache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/swagdesk/swagdesk/pkg/models"
)

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS swagger_documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	host TEXT NOT NULL DEFAULT '',
	base_path TEXT NOT NULL DEFAULT '',
	schemes TEXT NOT NULL DEFAULT '[]',
	consumes TEXT NOT NULL DEFAULT '[]',
	produces TEXT NOT NULL DEFAULT '[]',
	api_count INTEGER NOT NULL DEFAULT 0,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at DATETIME NOT NULL,
	is_current INTEGER NOT NULL DEFAULT 0,
	source_url TEXT NOT NULL DEFAULT '',
	source_etag TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_project_hash ON swagger_documents(project_id, content_hash);
CREATE INDEX IF NOT EXISTS idx_documents_current ON swagger_documents(project_id, is_current);
`

const createAPIsTable = `
CREATE TABLE IF NOT EXISTS swagger_apis (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL,
	project_id TEXT NOT NULL,
	path TEXT NOT NULL,
	method TEXT NOT NULL,
	operation_id TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	parameters TEXT NOT NULL DEFAULT '[]',
	responses TEXT NOT NULL DEFAULT '{}',
	security TEXT NOT NULL DEFAULT '[]',
	deprecated INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_apis_document ON swagger_apis(document_id);
CREATE INDEX IF NOT EXISTS idx_apis_project ON swagger_apis(project_id);
`

// httpMethods is the verb set recognized when deriving endpoint rows.
var httpMethods = map[string]struct{}{
	"get": {}, "put": {}, "post": {}, "delete": {},
	"options": {}, "head": {}, "patch": {},
}

// Manager owns the swagger document store.
type Manager struct {
	db     *sql.DB
	expiry time.Duration
	logger *zap.Logger
}

// New opens the store at dbPath and runs auto-migration. expiry <= 0
// defaults to 24 hours. A nil logger disables logging.
func New(dbPath string, expiry time.Duration, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open swagger cache db: %w", err)
	}
	if _, err := db.Exec(createDocumentsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate swagger_documents: %w", err)
	}
	if _, err := db.Exec(createAPIsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate swagger_apis: %w", err)
	}
	return &Manager{db: db, expiry: expiry, logger: logger}, nil
}

// HashContent computes the SHA-256 hex digest used for deduplication.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum)
}

// SaveDocument stores a document version for a project and makes it current.
// Byte-identical content short-circuits: the existing row is promoted and its
// id returned without inserting or re-deriving endpoints. The demote-then-
// promote runs in one transaction, so readers never observe zero or two
// current rows.
func (m *Manager) SaveDocument(ctx context.Context, projectID, content string, parsed map[string]any, sourceURL, etag string) (int64, error) {
	hash := HashContent(content)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM swagger_documents WHERE project_id = ? AND content_hash = ?`,
		projectID, hash,
	).Scan(&existingID)
	switch {
	case err == nil:
		if err := promote(ctx, tx, projectID, existingID); err != nil {
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit save: %w", err)
		}
		m.logger.Debug("swagger document unchanged",
			zap.String("project_id", projectID),
			zap.Int64("document_id", existingID))
		return existingID, nil
	case err != sql.ErrNoRows:
		return 0, fmt.Errorf("lookup document hash: %w", err)
	}

	meta := extractMeta(parsed)
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE swagger_documents SET is_current = 0 WHERE project_id = ? AND is_current = 1`,
		projectID,
	); err != nil {
		return 0, fmt.Errorf("demote current document: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO swagger_documents
			(project_id, content, content_hash, version, title, description, host, base_path,
			 schemes, consumes, produces, api_count, cached_at, expires_at, is_current,
			 source_url, source_etag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		projectID, content, hash, meta.version, meta.title, meta.description, meta.host,
		meta.basePath, jsonText(meta.schemes), jsonText(meta.consumes), jsonText(meta.produces),
		meta.apiCount, now, now.Add(m.expiry), sourceURL, etag,
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("document id: %w", err)
	}

	if err := insertAPIs(ctx, tx, docID, projectID, parsed, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save: %w", err)
	}

	m.logger.Info("swagger document cached",
		zap.String("project_id", projectID),
		zap.Int64("document_id", docID),
		zap.Int("api_count", meta.apiCount))
	return docID, nil
}

// promote makes docID the project's only current document.
func promote(ctx context.Context, tx *sql.Tx, projectID string, docID int64) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE swagger_documents SET is_current = 0 WHERE project_id = ? AND is_current = 1 AND id != ?`,
		projectID, docID,
	); err != nil {
		return fmt.Errorf("demote current document: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE swagger_documents SET is_current = 1 WHERE id = ?`,
		docID,
	); err != nil {
		return fmt.Errorf("promote document: %w", err)
	}
	return nil
}

type docMeta struct {
	version, title, description, host, basePath string
	schemes, consumes, produces                 []string
	apiCount                                    int
}

func extractMeta(parsed map[string]any) docMeta {
	var meta docMeta
	if info, ok := parsed["info"].(map[string]any); ok {
		meta.title, _ = info["title"].(string)
		meta.version, _ = info["version"].(string)
		meta.description, _ = info["description"].(string)
	}
	meta.host, _ = parsed["host"].(string)
	meta.basePath, _ = parsed["basePath"].(string)
	meta.schemes = stringSlice(parsed["schemes"])
	meta.consumes = stringSlice(parsed["consumes"])
	meta.produces = stringSlice(parsed["produces"])

	if paths, ok := parsed["paths"].(map[string]any); ok {
		for _, ops := range paths {
			opMap, ok := ops.(map[string]any)
			if !ok {
				continue
			}
			for method := range opMap {
				if _, known := httpMethods[strings.ToLower(method)]; known {
					meta.apiCount++
				}
			}
		}
	}
	return meta
}

// insertAPIs derives one row per (path, method) pair. Entries that are not
// objects are skipped.
func insertAPIs(ctx context.Context, tx *sql.Tx, docID int64, projectID string, parsed map[string]any, now time.Time) error {
	paths, ok := parsed["paths"].(map[string]any)
	if !ok {
		return nil
	}
	for path, ops := range paths {
		opMap, ok := ops.(map[string]any)
		if !ok {
			continue
		}
		for method, op := range opMap {
			if _, known := httpMethods[strings.ToLower(method)]; !known {
				continue
			}
			detail, ok := op.(map[string]any)
			if !ok {
				continue
			}
			operationID, _ := detail["operationId"].(string)
			summary, _ := detail["summary"].(string)
			description, _ := detail["description"].(string)
			deprecated, _ := detail["deprecated"].(bool)

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO swagger_apis
					(document_id, project_id, path, method, operation_id, summary, description,
					 tags, parameters, responses, security, deprecated, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				docID, projectID, path, strings.ToUpper(method), operationID, summary, description,
				jsonText(detail["tags"]), jsonText(detail["parameters"]),
				jsonText(detail["responses"]), jsonText(detail["security"]),
				boolInt(deprecated), now,
			); err != nil {
				return fmt.Errorf("insert api %s %s: %w", method, path, err)
			}
		}
	}
	return nil
}

// CachedData returns the parsed JSON of the project's current document, or
// nil when there is none or it has expired. Expired rows are left in place;
// deletion is CleanupExpiredDocuments' job.
func (m *Manager) CachedData(ctx context.Context, projectID string) (map[string]any, error) {
	var content string
	var expiresAt time.Time
	err := m.db.QueryRowContext(ctx,
		`SELECT content, expires_at FROM swagger_documents WHERE project_id = ? AND is_current = 1`,
		projectID,
	).Scan(&content, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load current document: %w", err)
	}
	if time.Now().After(expiresAt) {
		return nil, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("decode cached document: %w", err)
	}
	return parsed, nil
}

// CachedAPIs returns the endpoints of the project's current document only.
// Historical documents' rows are invisible here even before cleanup.
func (m *Manager) CachedAPIs(ctx context.Context, projectID string) ([]models.SwaggerAPI, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT a.id, a.document_id, a.project_id, a.path, a.method, a.operation_id,
		       a.summary, a.description, a.tags, a.parameters, a.responses, a.security,
		       a.deprecated, a.created_at
		FROM swagger_apis a
		JOIN swagger_documents d ON d.id = a.document_id
		WHERE d.project_id = ? AND d.is_current = 1
		ORDER BY a.path, a.method`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("load cached apis: %w", err)
	}
	defer rows.Close()

	var apis []models.SwaggerAPI
	for rows.Next() {
		var api models.SwaggerAPI
		var tags, params, responses, security string
		var deprecated int
		if err := rows.Scan(&api.ID, &api.DocumentID, &api.ProjectID, &api.Path, &api.Method,
			&api.OperationID, &api.Summary, &api.Description, &tags, &params, &responses,
			&security, &deprecated, &api.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api row: %w", err)
		}
		api.Deprecated = deprecated == 1
		_ = json.Unmarshal([]byte(tags), &api.Tags)
		_ = json.Unmarshal([]byte(params), &api.Parameters)
		_ = json.Unmarshal([]byte(responses), &api.Responses)
		_ = json.Unmarshal([]byte(security), &api.Security)
		apis = append(apis, api)
	}
	return apis, rows.Err()
}

// Versions lists every cached document version for a project, newest first,
// without content bodies.
func (m *Manager) Versions(ctx context.Context, projectID string) ([]models.SwaggerDocument, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, project_id, content_hash, version, title, description, host, base_path,
		       schemes, consumes, produces, api_count, cached_at, expires_at, is_current,
		       source_url, source_etag
		FROM swagger_documents WHERE project_id = ? ORDER BY cached_at DESC, id DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	defer rows.Close()

	var docs []models.SwaggerDocument
	for rows.Next() {
		var doc models.SwaggerDocument
		var schemes, consumes, produces string
		var isCurrent int
		if err := rows.Scan(&doc.ID, &doc.ProjectID, &doc.ContentHash, &doc.Version, &doc.Title,
			&doc.Description, &doc.Host, &doc.BasePath, &schemes, &consumes, &produces,
			&doc.APICount, &doc.CachedAt, &doc.ExpiresAt, &isCurrent,
			&doc.SourceURL, &doc.SourceETag); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		doc.IsCurrent = isCurrent == 1
		_ = json.Unmarshal([]byte(schemes), &doc.Schemes)
		_ = json.Unmarshal([]byte(consumes), &doc.Consumes)
		_ = json.Unmarshal([]byte(produces), &doc.Produces)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SetCurrent rolls a project back (or forward) to a historical version using
// the same transactional demote/promote as SaveDocument.
func (m *Manager) SetCurrent(ctx context.Context, projectID string, docID int64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set current: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx,
		`SELECT project_id FROM swagger_documents WHERE id = ?`, docID,
	).Scan(&owner)
	if err == sql.ErrNoRows {
		return fmt.Errorf("document %d not found", docID)
	}
	if err != nil {
		return fmt.Errorf("lookup document: %w", err)
	}
	if owner != projectID {
		return fmt.Errorf("document %d does not belong to project %s", docID, projectID)
	}

	if err := promote(ctx, tx, projectID, docID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set current: %w", err)
	}
	return nil
}

// DeleteDocument removes a document and its derived endpoint rows.
func (m *Manager) DeleteDocument(ctx context.Context, docID int64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM swagger_apis WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("delete api rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM swagger_documents WHERE id = ?`, docID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return tx.Commit()
}

// CleanupExpiredDocuments deletes expired non-current documents and their
// endpoint rows, returning the number of documents removed. The current
// document is never deleted here, stale or not.
func (m *Manager) CleanupExpiredDocuments(ctx context.Context) (int64, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cleanup: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM swagger_apis WHERE document_id IN
			(SELECT id FROM swagger_documents WHERE is_current = 0 AND expires_at < ?)`,
		now,
	); err != nil {
		return 0, fmt.Errorf("cleanup api rows: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM swagger_documents WHERE is_current = 0 AND expires_at < ?`, now,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup documents: %w", err)
	}
	removed, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	if removed > 0 {
		m.logger.Info("expired swagger documents removed", zap.Int64("count", removed))
	}
	return removed, nil
}

// StoreStats summarizes the document store for the CLI.
type StoreStats struct {
	Documents int64 `json:"documents"`
	Current   int64 `json:"current"`
	APIs      int64 `json:"apis"`
}

// Stats returns row counts across the store.
func (m *Manager) Stats(ctx context.Context) (StoreStats, error) {
	var st StoreStats
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM swagger_documents`).Scan(&st.Documents); err != nil {
		return st, fmt.Errorf("store stats: %w", err)
	}
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM swagger_documents WHERE is_current = 1`).Scan(&st.Current); err != nil {
		return st, fmt.Errorf("store stats: %w", err)
	}
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM swagger_apis`).Scan(&st.APIs); err != nil {
		return st, fmt.Errorf("store stats: %w", err)
	}
	return st, nil
}

// Close releases the database connection.
func (m *Manager) Close() error {
	return m.db.Close()
}

// jsonText encodes a nested structure for a JSON-as-text column.
func jsonText(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "[]"
	}
	return string(data)
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
