package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capturelabs/capturesink/internal/capture"
	"github.com/capturelabs/capturesink/internal/docstore"
	"github.com/capturelabs/capturesink/internal/ingest"
)

const adminTimeout = 3 * time.Second

// AdminHandler exposes the operator surface over stored capture documents.
// Reads go straight to the document store; deletes run through the ingest
// service so the deletion event reaches the notify hub.
type AdminHandler struct {
	docs    docstore.Store
	ingest  *ingest.Service
	timeout time.Duration
	logger  *zap.Logger
}

// NewAdminHandler wires the document store and logger.
func NewAdminHandler(docs docstore.Store, ing *ingest.Service, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		docs:    docs,
		ingest:  ing,
		timeout: adminTimeout,
		logger:  logger,
	}
}

// ListKeys handles GET /v1/collections/{collection}/keys. It returns a JSON
// object {"keys": [...]} on success, 400 for unknown collections, 503 when
// the store is unavailable, or 500 if the store call fails.
func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document store unavailable")
		return
	}
	collection, err := collectionParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	keys, err := h.docs.ListKeys(ctx, collection)
	if err != nil {
		h.logger.Error("list keys failed", zap.String("collection", collection), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list keys")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// GetDocument handles GET /v1/collections/{collection}/documents/{key}. It
// returns {"document": {...}} on success, 404 when the key is absent, 400
// for unknown collections, or 500 for store errors.
func (h *AdminHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document store unavailable")
		return
	}
	collection, key, err := documentParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	doc, _, err := h.docs.Get(ctx, collection, key)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("get document failed",
			zap.String("collection", collection),
			zap.String("doc_key", key),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc.Data})
}

// DeleteDocument handles DELETE /v1/collections/{collection}/documents/{key}.
// It returns {"status": "deleted"} on success, 404 when the key is absent,
// or 400 for unknown collections.
func (h *AdminHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if h.ingest == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest service unavailable")
		return
	}
	collection, key, err := documentParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.ingest.DeleteDocument(ctx, collection, key); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("delete document failed",
			zap.String("collection", collection),
			zap.String("doc_key", key),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"collection": collection,
		"key":        key,
		"status":     "deleted",
	})
}

// ListCategories handles GET
// /v1/collections/{collection}/documents/{key}/categories. It returns the
// names of the document's array-valued fields as {"categories": [...]}, 404
// when the document is absent, or 400 for unknown collections.
func (h *AdminHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document store unavailable")
		return
	}
	collection, key, err := documentParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	doc, _, err := h.docs.Get(ctx, collection, key)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("list categories failed",
			zap.String("collection", collection),
			zap.String("doc_key", key),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": capture.CategoryNames(doc.Data)})
}

// ListCategoryItems handles GET
// /v1/collections/{collection}/documents/{key}/categories/{category}. It
// returns the category's items newest first as {"items": [...]}, 404 when
// the document or category is absent, or 400 for unknown collections.
func (h *AdminHandler) ListCategoryItems(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document store unavailable")
		return
	}
	collection, key, err := documentParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category := categoryParam(r)
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	doc, _, err := h.docs.Get(ctx, collection, key)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("list category items failed",
			zap.String("collection", collection),
			zap.String("doc_key", key),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	items, ok := doc.Data[category].([]any)
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	sorted := capture.SortItemsByRecency(items)
	if sorted == nil {
		sorted = []any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": sorted})
}

func collectionParam(r *http.Request) (string, error) {
	collection := chi.URLParam(r, "collection")
	if !capture.KnownCollection(collection) {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return collection, nil
}

func documentParams(r *http.Request) (collection, key string, err error) {
	collection, err = collectionParam(r)
	if err != nil {
		return "", "", err
	}
	key = chi.URLParam(r, "key")
	if key == "" {
		return "", "", errors.New("key is required")
	}
	return collection, key, nil
}

// categoryParam unescapes the category segment; names like "Top Stories"
// arrive percent-encoded.
func categoryParam(r *http.Request) string {
	raw := chi.URLParam(r, "category")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		return unescaped
	}
	return raw
}
