package jsonapi

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DocumentBuilder provides a fluent API for building Document objects.
type DocumentBuilder struct {
	doc Document
}

// NewDocument creates a new DocumentBuilder.
func NewDocument() *DocumentBuilder {
	return &DocumentBuilder{}
}

// Data sets the primary data: a Resource, a []Resource or nil.
func (b *DocumentBuilder) Data(data any) *DocumentBuilder {
	b.doc.Data = data
	return b
}

// Errors sets the errors array and clears the primary data.
func (b *DocumentBuilder) Errors(errors ...Error) *DocumentBuilder {
	b.doc.Errors = errors
	b.doc.Data = nil
	return b
}

// Meta adds a metadata entry to the document.
func (b *DocumentBuilder) Meta(key string, value any) *DocumentBuilder {
	if b.doc.Meta == nil {
		b.doc.Meta = make(Meta)
	}
	b.doc.Meta[key] = value
	return b
}

// MetaAll merges meta into the document metadata.
func (b *DocumentBuilder) MetaAll(meta Meta) *DocumentBuilder {
	for k, v := range meta {
		b.Meta(k, v)
	}
	return b
}

// Pagination adds paging links and the total/page/page_size/pages meta.
func (b *DocumentBuilder) Pagination(p *Pagination) *DocumentBuilder {
	if p == nil {
		return b
	}
	b.doc.Links = p.Links()
	return b.MetaAll(p.Meta())
}

// Build returns the document, stamped with the JSON:API version.
func (b *DocumentBuilder) Build() Document {
	b.doc.JSONAPI = &JSONAPI{Version: Version}
	return b.doc
}

// NewSingleResourceDocument wraps one resource.
func NewSingleResourceDocument(r Resource) Document {
	return NewDocument().Data(r).Build()
}

// NewCollectionDocument wraps a collection. A nil slice is written as [].
func NewCollectionDocument(resources []Resource, p *Pagination) Document {
	if resources == nil {
		resources = []Resource{}
	}
	return NewDocument().Data(resources).Pagination(p).Build()
}

// NewErrorDocument wraps error objects.
func NewErrorDocument(errors ...Error) Document {
	return NewDocument().Errors(errors...).Build()
}

// -----------------------------------------------------------------------------
// Resources
// -----------------------------------------------------------------------------

// NewResource creates a resource with the given attributes.
func NewResource(resourceType, id string, attrs map[string]any) Resource {
	return Resource{Type: resourceType, ID: id, Attributes: attrs}
}

// ID formats a numeric identifier as a resource id.
func ID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ResourceFrom builds a resource whose attributes are the JSON fields of
// v. An "id" field, if present, is dropped from the attributes.
func ResourceFrom(resourceType, id string, v any) (Resource, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Resource{}, fmt.Errorf("encode %s attributes: %w", resourceType, err)
	}
	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return Resource{}, fmt.Errorf("%s attributes are not an object: %w", resourceType, err)
	}
	delete(attrs, "id")
	return NewResource(resourceType, id, attrs), nil
}
