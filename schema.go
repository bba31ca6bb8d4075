package fastpoint

import (
	"fmt"
	"strings"

	"github.com/fastpoint/fastpoint/model"
)

// Named vector fields are derived purely from (slot, model name): the
// trailing path segment of the model name, lowercased, behind a
// slot-specific prefix. Identical selections always yield identical keys
// and distinct models yield distinct keys.
const (
	denseFieldPrefix  = "fast-"
	imageFieldPrefix  = "fast-image-"
	sparseFieldPrefix = "fast-sparse-"
)

func fieldName(prefix, modelName string) string {
	if modelName == "" {
		return ""
	}
	segment := modelName
	if i := strings.LastIndex(modelName, "/"); i >= 0 {
		segment = modelName[i+1:]
	}
	return prefix + strings.ToLower(segment)
}

// DenseFieldName returns the named vector field a dense text model maps to.
func DenseFieldName(modelName string) string {
	return fieldName(denseFieldPrefix, modelName)
}

// ImageFieldName returns the named vector field an image model maps to.
func ImageFieldName(modelName string) string {
	return fieldName(imageFieldPrefix, modelName)
}

// SparseFieldName returns the named vector field a sparse model maps to.
func SparseFieldName(modelName string) string {
	return fieldName(sparseFieldPrefix, modelName)
}

// VectorFieldName returns the dense text field of the session's current
// model selection, or "" when no dense model is set.
func (s *Session) VectorFieldName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorFieldNameLocked()
}

// ImageVectorFieldName returns the image field of the current selection, or
// "" when no image model is set.
func (s *Session) ImageVectorFieldName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imageVectorFieldNameLocked()
}

// SparseVectorFieldName returns the sparse field of the current selection,
// or "" when no sparse model is set.
func (s *Session) SparseVectorFieldName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sparseVectorFieldNameLocked()
}

func (s *Session) vectorFieldNameLocked() string {
	return DenseFieldName(s.denseModel)
}

func (s *Session) imageVectorFieldNameLocked() string {
	return ImageFieldName(s.imageModel)
}

func (s *Session) sparseVectorFieldNameLocked() string {
	return SparseFieldName(s.sparseModel)
}

// VectorParams generates the dense vector configuration implied by the
// active models, suitable for creating a compatible collection.
func (s *Session) VectorParams() (map[string]model.VectorParams, error) {
	s.mu.RLock()
	denseModel, imageModel := s.denseModel, s.imageModel
	s.mu.RUnlock()

	params := make(map[string]model.VectorParams)
	if field := DenseFieldName(denseModel); field != "" {
		info, err := s.registry.TextParams(denseModel)
		if err != nil {
			return nil, err
		}
		params[field] = model.VectorParams{Size: info.Dim, Distance: info.Distance, OnDisk: s.onDisk}
	}
	if field := ImageFieldName(imageModel); field != "" {
		info, err := s.registry.ImageParams(imageModel)
		if err != nil {
			return nil, err
		}
		params[field] = model.VectorParams{Size: info.Dim, Distance: info.Distance, OnDisk: s.onDisk}
	}
	return params, nil
}

// SparseVectorParams generates the sparse vector configuration implied by
// the active sparse model, or nil when none is set.
func (s *Session) SparseVectorParams() map[string]model.SparseVectorParams {
	field := s.SparseVectorFieldName()
	if field == "" {
		return nil
	}
	return map[string]model.SparseVectorParams{field: {OnDisk: s.onDisk}}
}

// validateCollection checks that a collection declares every vector field
// implied by the active models, with exactly matching width and distance
// for dense fields. A mismatch is a fatal configuration error; it is
// raised before any upsert and is never partially applied.
func (s *Session) validateCollection(name string, schema model.CollectionSchema) error {
	required, err := s.VectorParams()
	if err != nil {
		return err
	}

	for field, want := range required {
		got, ok := schema.Vectors[field]
		if !ok {
			return &SchemaError{Collection: name, Field: field, Detail: "field not declared by collection"}
		}
		if got.Size != want.Size {
			return &SchemaError{
				Collection: name,
				Field:      field,
				Detail:     fmt.Sprintf("embedding size mismatch: model produces %d, collection declares %d", want.Size, got.Size),
			}
		}
		if got.Distance != want.Distance {
			return &SchemaError{
				Collection: name,
				Field:      field,
				Detail:     fmt.Sprintf("distance mismatch: model expects %s, collection declares %s", want.Distance, got.Distance),
			}
		}
	}

	if field := s.SparseVectorFieldName(); field != "" {
		if _, ok := schema.SparseVectors[field]; !ok {
			return &SchemaError{Collection: name, Field: field, Detail: "sparse field not declared by collection"}
		}
	}
	return nil
}
