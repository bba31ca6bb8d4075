package fastpoint

import (
	"iter"

	"github.com/fastpoint/fastpoint/model"
)

const (
	payloadDocumentKey  = "document"
	payloadImagePathKey = "image_path"
)

// recordSources carries the aligned inputs of one ingestion run. The
// record count is the shortest of the explicitly supplied id, document and
// image sequences; metadata fills in but never bounds.
type recordSources struct {
	ids       []string
	documents []string
	images    []string
	metadata  []map[string]any

	dense  iter.Seq2[[]float32, error]
	image  iter.Seq2[[]float32, error]
	sparse iter.Seq2[model.SparseVector, error]

	denseField  string
	imageField  string
	sparseField string
}

// bound returns the number of records to emit. Only sequences the caller
// actually supplied participate; an absent sequence cannot truncate the
// run to zero.
func (src *recordSources) bound() int {
	n := -1
	take := func(m int) {
		if n < 0 || m < n {
			n = m
		}
	}
	if src.ids != nil {
		take(len(src.ids))
	}
	if src.documents != nil {
		take(len(src.documents))
	}
	if src.images != nil {
		take(len(src.images))
	}
	if n < 0 {
		return 0
	}
	return n
}

// resolveIDs returns one id per record, generating fresh ones where the
// caller supplied none. Generated ids are materialized before the record
// stream runs so Add can report them even if ingestion later fails.
func (s *Session) resolveIDs(src *recordSources, n int) []string {
	if src.ids != nil {
		return src.ids[:n]
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = s.idGen()
	}
	return ids
}

// records builds the lazy record stream. Each pull takes the next element
// of every active vector sequence; a sequence that ends before the bound
// surfaces as an AlignmentError at the position it ran dry. No record is
// ever emitted with a silently missing embedding.
func (s *Session) records(src *recordSources, ids []string) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		var (
			nextDense,
			nextImage func() ([]float32, error, bool)
			nextSparse           func() (model.SparseVector, error, bool)
			stopDense, stopImage func()
			stopSparse           func()
		)
		if src.dense != nil {
			nextDense, stopDense = iter.Pull2(src.dense)
			defer stopDense()
		}
		if src.image != nil {
			nextImage, stopImage = iter.Pull2(src.image)
			defer stopImage()
		}
		if src.sparse != nil {
			nextSparse, stopSparse = iter.Pull2(src.sparse)
			defer stopSparse()
		}

		for i, id := range ids {
			vectors := make(map[string]model.Vector)

			if nextDense != nil {
				vec, err, ok := nextDense()
				if err != nil {
					yield(model.Record{}, &AlignmentError{Position: i, cause: err})
					return
				}
				if !ok {
					yield(model.Record{}, &AlignmentError{Position: i, cause: ErrMissingDocumentEmbedding})
					return
				}
				vectors[src.denseField] = model.DenseVector(vec)
			}
			if nextImage != nil {
				vec, err, ok := nextImage()
				if err != nil {
					yield(model.Record{}, &AlignmentError{Position: i, cause: err})
					return
				}
				if !ok {
					yield(model.Record{}, &AlignmentError{Position: i, cause: ErrMissingImageEmbedding})
					return
				}
				vectors[src.imageField] = model.DenseVector(vec)
			}
			if nextSparse != nil {
				sv, err, ok := nextSparse()
				if err != nil {
					yield(model.Record{}, &AlignmentError{Position: i, cause: err})
					return
				}
				if !ok {
					yield(model.Record{}, &AlignmentError{Position: i, cause: ErrMissingDocumentEmbedding})
					return
				}
				vectors[src.sparseField] = model.SparseFieldVector(sv)
			}

			payload := make(map[string]any)
			if src.metadata != nil && i < len(src.metadata) {
				for k, v := range src.metadata[i] {
					payload[k] = v
				}
			}
			if src.documents != nil {
				payload[payloadDocumentKey] = src.documents[i]
			}
			if src.images != nil {
				payload[payloadImagePathKey] = src.images[i]
			}

			if !yield(model.Record{ID: id, Payload: payload, Vectors: vectors}, nil) {
				return
			}
		}
	}
}
