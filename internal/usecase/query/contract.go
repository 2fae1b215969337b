package query

import (
	"context"
	"iter"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
)

// Store streams every stored document in scan order.
type Store interface {
	Scan(ctx context.Context) iter.Seq2[document.Document, error]
}
