package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourorg/apibuilder/pkg/types"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one connection serializes writers, sqlite would otherwise report SQLITE_BUSY
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT NOT NULL,
			host TEXT NOT NULL,
			action_count INTEGER NOT NULL DEFAULT 0,
			log_count INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tree_versions (
			document_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			tree TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY(document_id, version)
		);`,
		`CREATE TABLE IF NOT EXISTS traffic_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			timestamp DATETIME NOT NULL,
			method TEXT NOT NULL,
			host TEXT NOT NULL,
			path TEXT NOT NULL,
			query_params TEXT,
			request_headers TEXT,
			request_body TEXT,
			request_body_encoding TEXT,
			content_type TEXT,
			status_code INTEGER NOT NULL,
			response_headers TEXT,
			response_body TEXT,
			response_content_type TEXT,
			latency_ms INTEGER NOT NULL,
			call_count INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_traffic_document ON traffic_logs(document_id);`,
		`CREATE TABLE IF NOT EXISTS renders (
			document_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			format TEXT NOT NULL,
			output TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY(document_id, version, format)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const documentColumns = `id,source,title,host,action_count,log_count,version,status,created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*types.Document, error) {
	var d types.Document
	if err := row.Scan(&d.ID, &d.Source, &d.Title, &d.Host, &d.ActionCount, &d.LogCount, &d.Version, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStore) CreateDocument(source, title, host string) (*types.Document, error) {
	now := time.Now().UTC()
	id, err := s.nextDocumentID(now)
	if err != nil {
		return nil, err
	}
	d := &types.Document{ID: id, Source: source, Title: title, Host: host, Status: "imported", CreatedAt: now, UpdatedAt: now}
	_, err = s.db.Exec(`INSERT INTO documents(`+documentColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.Source, d.Title, d.Host, d.ActionCount, d.LogCount, d.Version, d.Status, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *SQLiteStore) nextDocumentID(now time.Time) (string, error) {
	prefix := fmt.Sprintf("doc_%s_", now.Format("20060102"))
	rows, err := s.db.Query(`SELECT id FROM documents WHERE id LIKE ?`, prefix+"%")
	if err != nil {
		return "", err
	}
	defer rows.Close()
	maxN := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		var n int
		_, _ = fmt.Sscanf(id, prefix+"%03d", &n)
		if n > maxN {
			maxN = n
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", prefix, maxN+1), nil
}

func (s *SQLiteStore) GetDocument(id string) (*types.Document, error) {
	d, err := scanDocument(s.db.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return d, err
}

func (s *SQLiteStore) UpdateDocumentStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE documents SET status=?, updated_at=? WHERE id=?`, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListDocuments() ([]types.Document, error) {
	rows, err := s.db.Query(`SELECT ` + documentColumns + ` FROM documents ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []types.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		`DELETE FROM renders WHERE document_id=?`,
		`DELETE FROM traffic_logs WHERE document_id=?`,
		`DELETE FROM tree_versions WHERE document_id=?`,
		`DELETE FROM documents WHERE id=?`,
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveTree(docID string, node types.GroupNode, actionCount int) (int, error) {
	data, err := json.Marshal(node)
	if err != nil {
		return 0, fmt.Errorf("encode tree: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRow(`SELECT version FROM documents WHERE id=?`, docID).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("document %s: %w", docID, ErrNotFound)
		}
		return 0, err
	}
	version++
	now := time.Now().UTC()
	if _, err := tx.Exec(`INSERT INTO tree_versions(document_id,version,tree,created_at) VALUES(?,?,?,?)`, docID, version, string(data), now); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`UPDATE documents SET version=?, action_count=?, updated_at=? WHERE id=?`, version, actionCount, now, docID); err != nil {
		return 0, err
	}
	return version, tx.Commit()
}

func (s *SQLiteStore) GetTree(docID string, version int) (*types.TreeVersion, error) {
	var row *sql.Row
	if version == 0 {
		row = s.db.QueryRow(`SELECT document_id,version,tree,created_at FROM tree_versions WHERE document_id=? ORDER BY version DESC LIMIT 1`, docID)
	} else {
		row = s.db.QueryRow(`SELECT document_id,version,tree,created_at FROM tree_versions WHERE document_id=? AND version=?`, docID, version)
	}
	var (
		tv   types.TreeVersion
		tree string
	)
	if err := row.Scan(&tv.DocumentID, &tv.Version, &tree, &tv.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tree %s@%d: %w", docID, version, ErrNotFound)
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(tree), &tv.Tree); err != nil {
		return nil, fmt.Errorf("decode tree %s@%d: %w", docID, tv.Version, err)
	}
	return &tv, nil
}

func (s *SQLiteStore) SaveLogs(docID string, logs []types.TrafficLog) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`INSERT INTO traffic_logs(document_id,seq,timestamp,method,host,path,query_params,request_headers,request_body,request_body_encoding,content_type,status_code,response_headers,response_body,response_content_type,latency_ms,call_count) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, l := range logs {
		qp, _ := json.Marshal(l.QueryParams)
		rh, _ := json.Marshal(l.RequestHeaders)
		respH, _ := json.Marshal(l.ResponseHeaders)
		callCount := l.CallCount
		if callCount == 0 {
			callCount = 1
		}
		if _, err := stmt.Exec(docID, l.Seq, l.Timestamp, l.Method, l.Host, l.Path, string(qp), string(rh), l.RequestBody, l.RequestBodyEncoding, l.ContentType, l.StatusCode, string(respH), l.ResponseBody, l.ResponseContentType, l.LatencyMs, callCount); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`UPDATE documents SET log_count=log_count+?, updated_at=? WHERE id=?`, len(logs), time.Now().UTC(), docID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetLogs(docID string) ([]types.TrafficLog, error) {
	rows, err := s.db.Query(`SELECT id,document_id,seq,timestamp,method,host,path,query_params,request_headers,request_body,request_body_encoding,content_type,status_code,response_headers,response_body,response_content_type,latency_ms,call_count FROM traffic_logs WHERE document_id=? ORDER BY seq ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.TrafficLog, 0)
	for rows.Next() {
		var l types.TrafficLog
		var qpS, rhS, respHS string
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.Seq, &l.Timestamp, &l.Method, &l.Host, &l.Path, &qpS, &rhS, &l.RequestBody, &l.RequestBodyEncoding, &l.ContentType, &l.StatusCode, &respHS, &l.ResponseBody, &l.ResponseContentType, &l.LatencyMs, &l.CallCount); err != nil {
			return nil, err
		}
		if qpS != "" {
			_ = json.Unmarshal([]byte(qpS), &l.QueryParams)
		}
		if rhS != "" {
			_ = json.Unmarshal([]byte(rhS), &l.RequestHeaders)
		}
		if respHS != "" {
			_ = json.Unmarshal([]byte(respHS), &l.ResponseHeaders)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveRender(r *types.Render) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO renders(document_id,version,format,output,created_at)
	VALUES(?,?,?,?,?)
	ON CONFLICT(document_id,version,format) DO UPDATE SET output=excluded.output,created_at=excluded.created_at`,
		r.DocumentID, r.Version, r.Format, r.Output, r.CreatedAt)
	return err
}

func (s *SQLiteStore) GetRender(docID string, version int, format string) (*types.Render, error) {
	var r types.Render
	err := s.db.QueryRow(`SELECT document_id,version,format,output,created_at FROM renders WHERE document_id=? AND version=? AND format=?`, docID, version, format).
		Scan(&r.DocumentID, &r.Version, &r.Format, &r.Output, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("render %s@%d/%s: %w", docID, version, format, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) ClearRenders(docID string) error {
	_, err := s.db.Exec(`DELETE FROM renders WHERE document_id=?`, docID)
	return err
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store is nil")
	}
	return s.db.Close()
}
