package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/itemsvc/internal/imaging"
	"github.com/erazemk/itemsvc/internal/model"
	"github.com/erazemk/itemsvc/internal/store"
)

// Pagination bounds for GET /api/v1/items.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// TotalCountHeader carries the number of items matching a list query.
const TotalCountHeader = "X-Total-Count"

// ItemRepository is the persistence the item handlers depend on.
type ItemRepository interface {
	Create(ctx context.Context, in model.ItemInput) (*model.Item, error)
	Get(ctx context.Context, id int64) (*model.Item, error)
	List(ctx context.Context, p store.ListParams) ([]model.Item, error)
	Count(ctx context.Context, search string) (int, error)
	Update(ctx context.Context, id int64, in model.ItemInput) (*model.Item, error)
	Delete(ctx context.Context, id int64) error
	SetImage(ctx context.Context, id int64, img model.Image) error
	GetImage(ctx context.Context, id int64) (*model.Image, error)
}

// ItemsHandler handles item CRUD endpoints.
type ItemsHandler struct {
	Items ItemRepository
	Image imaging.Options
}

// List handles GET /api/v1/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, msg := parseListParams(r)
	if msg != "" {
		badRequest(w, msg)
		return
	}

	slog.Debug("listing items", "limit", p.Limit, "offset", p.Offset, "search", p.Search)

	items, err := h.Items.List(r.Context(), p)
	if err != nil {
		internalError(w, r, "failed to list items", err)
		return
	}
	total, err := h.Items.Count(r.Context(), p.Search)
	if err != nil {
		internalError(w, r, "failed to count items", err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}

	w.Header().Set(TotalCountHeader, strconv.Itoa(total))
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/v1/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := readItemInput(w, r)
	if !ok {
		return
	}

	item, err := h.Items.Create(r.Context(), in)
	if err != nil {
		internalError(w, r, "failed to create item", err)
		return
	}

	slog.Info("item created", "id", item.ID, "request_id", RequestIDFromContext(r.Context()))
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/v1/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	item, err := h.Items.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		itemNotFound(w)
		return
	}
	if err != nil {
		internalError(w, r, "failed to get item", err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/v1/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	in, ok := readItemInput(w, r)
	if !ok {
		return
	}

	item, err := h.Items.Update(r.Context(), id, in)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("item not found for update", "id", id)
		itemNotFound(w)
		return
	}
	if err != nil {
		internalError(w, r, "failed to update item", err)
		return
	}

	slog.Info("item updated", "id", id, "request_id", RequestIDFromContext(r.Context()))
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/v1/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	err := h.Items.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("item not found for deletion", "id", id)
		itemNotFound(w)
		return
	}
	if err != nil {
		internalError(w, r, "failed to delete item", err)
		return
	}

	slog.Info("item deleted", "id", id, "request_id", RequestIDFromContext(r.Context()))
	jsonResponse(w, http.StatusOK, messageBody{Message: "Item deleted successfully"})
}

// UploadImage handles PUT /api/v1/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	opts := h.Image
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = imaging.DefaultMaxBytes
	}
	// Leave room for the multipart framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64<<10)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		badRequest(w, "file too large or invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		badRequest(w, "image file required")
		return
	}
	defer file.Close()

	data, mime, err := imaging.Normalize(file, opts)
	switch {
	case errors.Is(err, imaging.ErrUnsupported):
		badRequest(w, "image must be JPEG or PNG")
		return
	case errors.Is(err, imaging.ErrTooLarge):
		badRequest(w, "image too large")
		return
	case err != nil:
		internalError(w, r, "failed to process image", err)
		return
	}

	err = h.Items.SetImage(r.Context(), id, model.Image{Data: data, MIME: mime})
	if errors.Is(err, store.ErrNotFound) {
		itemNotFound(w)
		return
	}
	if err != nil {
		internalError(w, r, "failed to save image", err)
		return
	}

	jsonResponse(w, http.StatusOK, messageBody{Message: "Image uploaded successfully"})
}

// GetImage handles GET /api/v1/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	img, err := h.Items.GetImage(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, codeNotFound, "Image not found", "Image not found")
		return
	}
	if err != nil {
		internalError(w, r, "failed to get image", err)
		return
	}

	w.Header().Set("Content-Type", img.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := w.Write(img.Data); err != nil {
		slog.Error("failed to write image response", "error", err)
	}
}

// itemID parses the {id} path value, writing a 400 when it is not an integer.
func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid item id")
		return 0, false
	}
	return id, true
}

// readItemInput decodes and validates an item payload. It writes a 400 for
// undecodable bodies and a 422 for invalid fields.
func readItemInput(w http.ResponseWriter, r *http.Request) (model.ItemInput, bool) {
	var in model.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return in, false
	}
	if errs := model.Validate(in); errs != nil {
		jsonError(w, http.StatusUnprocessableEntity, codeValidation, "Request validation failed", errs)
		return in, false
	}
	return in, true
}

// parseListParams reads limit, offset and search. A non-empty message means
// the query was invalid.
func parseListParams(r *http.Request) (store.ListParams, string) {
	q := r.URL.Query()
	p := store.ListParams{Limit: DefaultLimit, Search: q.Get("search")}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxLimit {
			return p, "limit must be an integer between 1 and " + strconv.Itoa(MaxLimit)
		}
		p.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, "offset must be a non-negative integer"
		}
		p.Offset = n
	}
	return p, ""
}
