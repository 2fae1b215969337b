package ingest

import (
	"context"

	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
)

// Session appends documents to the store until closed.
type Session interface {
	Write(category string, doc document.Document) (bool, error)
	Close() error
}

// Store opens write sessions.
type Store interface {
	Open(ctx context.Context) (Session, error)
}

// GeoIPLookup fetches the GeoIP record of an address.
type GeoIPLookup interface {
	Lookup(ctx context.Context, ip string) (document.Document, error)
}

// RDAPLookup fetches the flattened RDAP records of an address. Unknown addresses yield none.
type RDAPLookup interface {
	Lookup(ctx context.Context, ip string) ([]document.Document, error)
}

// Opener adapts an Open method returning a concrete session type to Store.
func Opener[S Session](open func(context.Context) (S, error)) Store {
	return openerFunc[S](open)
}

type openerFunc[S Session] func(context.Context) (S, error)

func (f openerFunc[S]) Open(ctx context.Context) (Session, error) {
	s, err := f(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}
