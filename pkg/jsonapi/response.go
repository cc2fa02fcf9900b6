package jsonapi

import (
	"encoding/json"
	"net/http"
)

// Management responses carry account, balance and session data, so none
// of them may be cached by browsers or intermediaries.
const cacheControl = "no-store"

// WriteDocument writes doc with the JSON:API content type.
func WriteDocument(w http.ResponseWriter, status int, doc Document) {
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", cacheControl)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(doc)
}

// WriteResource writes one resource, such as the account or a payment.
func WriteResource(w http.ResponseWriter, status int, r Resource) {
	WriteDocument(w, status, NewSingleResourceDocument(r))
}

// WriteCollection writes a page of resources (request logs, payments).
func WriteCollection(w http.ResponseWriter, status int, resources []Resource, p *Pagination) {
	WriteDocument(w, status, NewCollectionDocument(resources, p))
}

// WriteError answers with errs. The HTTP status comes from the first
// error, so metering rejections put 402 or 503 first.
func WriteError(w http.ResponseWriter, errs ...Error) {
	if len(errs) == 0 {
		errs = []Error{ErrInternal("")}
	}

	status := errs[0].StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteDocument(w, status, NewErrorDocument(errs...))
}

// WriteCreated answers 201 for a newly provisioned account or payment.
func WriteCreated(w http.ResponseWriter, r Resource, location string) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	WriteResource(w, http.StatusCreated, r)
}

// WriteNoContent answers 204, as logout does.
func WriteNoContent(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusNoContent)
}

// WriteMeta writes a document carrying only metadata. Analytics and the
// report use it: their results are rollups, not resources.
func WriteMeta(w http.ResponseWriter, status int, meta Meta) {
	WriteDocument(w, status, NewDocument().MetaAll(meta).Build())
}
