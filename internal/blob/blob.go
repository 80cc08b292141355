// Package blob is the entry point to the artifact store. Callers depend on
// Store and open a backend through Open; only this package imports the
// implementations under internal/infra/blob.
package blob

import (
	"context"
	"fmt"
	"io"

	"prereg/internal/blob/core"
	"prereg/internal/infra/blob/fs"
	"prereg/internal/infra/blob/memory"
	infraS3 "prereg/internal/infra/blob/s3"
)

type (
	Driver     = core.Driver
	PutOptions = core.PutOptions
	Info       = core.Info
	Store      = core.Store
	S3Config   = infraS3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)

// Options selects and configures a backend.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the backend named by opts.Driver; empty means filesystem.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverFilesystem:
		return fs.New(opts.FSRoot)
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		return infraS3.New(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown artifact driver %q", opts.Driver)
	}
}

// WriteFile writes r to a local path, replacing any existing file. It serves
// outputs the caller names explicitly, which are not write-once artifacts.
func WriteFile(path string, r io.Reader, opts PutOptions) (Info, error) {
	return fs.WriteFile(path, r, opts)
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memory.New() }

// NewMockS3ForTests returns an S3 store backed by a fake in-memory bucket.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
