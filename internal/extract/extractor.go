// Package extract turns loaded documents into categorized clause lists.
package extract

import (
	"context"
	"errors"

	"github.com/ppiankov/lexicompare/internal/model"
)

// ErrExtractionFailed is returned when an extractor gives up on a document
var ErrExtractionFailed = errors.New("clause extraction failed")

// Extractor produces the clause set of one document
type Extractor interface {
	// Name identifies the extractor in reports and cache keys
	Name() string

	// Extract returns the document's clauses grouped by category
	Extract(ctx context.Context, doc model.Document) (model.ClauseSet, error)
}
