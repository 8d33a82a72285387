package model

import (
	"os"
	"path/filepath"
)

// Document represents one loaded source document as an ordered sequence
// of text units (typically one unit per page). It is immutable once loaded;
// the pipeline never writes back into it.
type Document struct {
	Name  string `json:"name"` // source file name
	Size  int64  `json:"size"` // byte size of the source file
	Units []Unit `json:"units,omitempty"`
}

// Unit is one extracted text unit of a document.
type Unit struct {
	Text string `json:"text"`
	Page int    `json:"page"` // 1-based page number
}

// DocumentIdentity is the cache-relevant identity of a document.
// Identity is name + byte size only, not a content digest: re-uploading the
// same file is detected cheaply, while a file edited to the exact same size
// is indistinguishable (accepted limitation).
type DocumentIdentity struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Identity returns the cache identity of the document.
func (d *Document) Identity() DocumentIdentity {
	return DocumentIdentity{Name: d.Name, Size: d.Size}
}

// NewDocumentFromFile reads a plain text file and creates a single-unit Document.
// The name defaults to the base file name.
func NewDocumentFromFile(filePath string) (*Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return &Document{
		Name:  filepath.Base(filePath),
		Size:  int64(len(content)),
		Units: []Unit{{Text: string(content), Page: 1}},
	}, nil
}

// Identities extracts the ordered identity list of a document set.
func Identities(docs []*Document) []DocumentIdentity {
	identities := make([]DocumentIdentity, len(docs))
	for i, doc := range docs {
		identities[i] = doc.Identity()
	}
	return identities
}
