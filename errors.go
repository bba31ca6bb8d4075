package fastpoint

import (
	"errors"
	"fmt"

	"github.com/fastpoint/fastpoint/embed"
)

var (
	// ErrAmbiguousQuery is returned when a query carries both a text and
	// an image, or neither.
	ErrAmbiguousQuery = errors.New("exactly one of query text or query image must be provided")

	// ErrSparseWithoutDense is returned when a sparse model is active
	// without a dense model; hybrid fusion requires a dense anchor.
	ErrSparseWithoutDense = errors.New("sparse model is set without a dense model; sparse embeddings are supported only within hybrid search")

	// ErrImageModelNotSet is returned when an image query arrives while no
	// image model is selected.
	ErrImageModelNotSet = errors.New("image query provided but no image model is set")

	// ErrNoDocumentsOrImages is returned by Add when the call carries
	// nothing to ingest.
	ErrNoDocumentsOrImages = errors.New("at least one of documents or images must be provided")

	// ErrMissingDocumentEmbedding marks a document that produced neither a
	// dense text vector nor a sparse vector.
	ErrMissingDocumentEmbedding = errors.New("document provided without a text or sparse embedding")

	// ErrMissingImageEmbedding marks an image that produced no image
	// vector.
	ErrMissingImageEmbedding = errors.New("image provided without an image embedding")

	// ErrUnsupportedModel mirrors the registry's unsupported-model error
	// for callers that only import this package.
	ErrUnsupportedModel = embed.ErrUnsupportedModel

	// ErrBackendUnavailable mirrors the registry's backend-unavailable
	// error.
	ErrBackendUnavailable = embed.ErrBackendUnavailable
)

// AlignmentError reports a broken per-record invariant while aligning input
// sequences into records. It aborts the record stream at the failing
// position; no partial record is emitted for it.
//
// The violated invariant can be inspected via errors.Is with
// ErrMissingDocumentEmbedding or ErrMissingImageEmbedding.
type AlignmentError struct {
	// Position is the 0-based index of the failing record in the stream.
	Position int
	cause    error
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Position, e.cause)
}

func (e *AlignmentError) Unwrap() error { return e.cause }

// SchemaError reports an incompatibility between the active model bindings
// and a collection's declared vector configuration. It is a fatal
// configuration error, never retryable, and is raised before any upsert.
type SchemaError struct {
	Collection string
	Field      string
	Detail     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("collection %q: vector field %q: %s", e.Collection, e.Field, e.Detail)
}
