package models

import "time"

// SwaggerDocument is one cached version of a project's Swagger/OpenAPI document.
// At most one document per project is current at any time.
type SwaggerDocument struct {
	ID          int64     `json:"id"`
	ProjectID   string    `json:"project_id"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	Version     string    `json:"version"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Host        string    `json:"host"`
	BasePath    string    `json:"base_path"`
	Schemes     []string  `json:"schemes"`
	Consumes    []string  `json:"consumes"`
	Produces    []string  `json:"produces"`
	APICount    int       `json:"api_count"`
	CachedAt    time.Time `json:"cached_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	IsCurrent   bool      `json:"is_current"`
	SourceURL   string    `json:"source_url"`
	SourceETag  string    `json:"source_etag"`
}

// SwaggerAPI is a single (path, method) endpoint derived from a document.
type SwaggerAPI struct {
	ID          int64          `json:"id"`
	DocumentID  int64          `json:"document_id"`
	ProjectID   string         `json:"project_id"`
	Path        string         `json:"path"`
	Method      string         `json:"method"`
	OperationID string         `json:"operation_id"`
	Summary     string         `json:"summary"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	Parameters  []any          `json:"parameters"`
	Responses   map[string]any `json:"responses"`
	Security    []any          `json:"security"`
	Deprecated  bool           `json:"deprecated"`
	CreatedAt   time.Time      `json:"created_at"`
}
