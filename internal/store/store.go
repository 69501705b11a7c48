package store

import (
	"errors"

	"github.com/yourorg/apibuilder/pkg/types"
)

// ErrNotFound is returned when a document or tree version does not exist.
var ErrNotFound = errors.New("not found")

type Store interface {
	CreateDocument(source, title, host string) (*types.Document, error)
	GetDocument(id string) (*types.Document, error)
	UpdateDocumentStatus(id, status string) error
	ListDocuments() ([]types.Document, error)
	DeleteDocument(id string) error

	// SaveTree stores node as the next version of the document and returns
	// that version number.
	SaveTree(docID string, node types.GroupNode, actionCount int) (int, error)
	// GetTree returns the given version, or the latest one when version is 0.
	GetTree(docID string, version int) (*types.TreeVersion, error)

	SaveLogs(docID string, logs []types.TrafficLog) error
	GetLogs(docID string) ([]types.TrafficLog, error)

	SaveRender(r *types.Render) error
	GetRender(docID string, version int, format string) (*types.Render, error)
	ClearRenders(docID string) error

	Close() error
}
