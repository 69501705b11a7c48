package types

import "time"

// Document records one stored documentation tree.
type Document struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Host        string    `json:"host"`
	ActionCount int       `json:"action_count"`
	LogCount    int       `json:"log_count"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Status      string    `json:"status"`
}

// TreeVersion is one saved snapshot of a document tree.
type TreeVersion struct {
	DocumentID string    `json:"document_id"`
	Version    int       `json:"version"`
	Tree       GroupNode `json:"tree"`
	CreatedAt  time.Time `json:"created_at"`
}

// Render caches one generator output for a document version.
type Render struct {
	DocumentID string    `json:"document_id"`
	Version    int       `json:"version"`
	Format     string    `json:"format"`
	Output     string    `json:"output"`
	CreatedAt  time.Time `json:"created_at"`
}

// TrafficLog is one request/response pair.
type TrafficLog struct {
	ID                  int64               `json:"id"`
	DocumentID          string              `json:"document_id,omitempty"`
	Seq                 int                 `json:"seq"`
	Timestamp           time.Time           `json:"timestamp"`
	Method              string              `json:"method"`
	Host                string              `json:"host"`
	Path                string              `json:"path"`
	QueryParams         map[string][]string `json:"query_params,omitempty"`
	RequestHeaders      map[string]string   `json:"request_headers,omitempty"`
	RequestBody         string              `json:"request_body,omitempty"`
	RequestBodyEncoding string              `json:"request_body_encoding,omitempty"`
	ContentType         string              `json:"content_type,omitempty"`
	StatusCode          int                 `json:"status_code"`
	ResponseHeaders     map[string]string   `json:"response_headers,omitempty"`
	ResponseBody        string              `json:"response_body,omitempty"`
	ResponseContentType string              `json:"response_content_type,omitempty"`
	LatencyMs           int64               `json:"latency_ms"`
	CallCount           int                 `json:"call_count,omitempty"`
}
