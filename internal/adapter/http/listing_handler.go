package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/2015jtw/campfinder/internal/listing/domain"
	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxImagesPerRequest = 10
	multipartMemory     = 32 << 20
	formOverhead        = 1 << 20
)

// ListingHandler serves the listing CRUD and search routes.
type ListingHandler struct {
	listings       ListingService
	maxUploadBytes int64
	logger         *logger.Logger
	metrics        *metrics.MetricsManager
}

func NewListingHandler(listings ListingService, maxUploadBytes int64, mm *metrics.MetricsManager, log *logger.Logger) *ListingHandler {
	return &ListingHandler{
		listings:       listings,
		maxUploadBytes: maxUploadBytes,
		logger:         log.Named("ListingHandler"),
		metrics:        mm,
	}
}

// HandleCreate handles POST /api/listings.
func (h *ListingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}

	price, err := parsePrice(r.PostForm.Get("price"))
	if err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}
	files, err := h.readImages(r)
	if err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}

	fields := domain.Fields{
		Title:       r.PostForm.Get("title"),
		Author:      r.PostForm.Get("author"),
		Price:       price,
		Location:    r.PostForm.Get("location"),
		Description: r.PostForm.Get("description"),
	}
	listing, err := h.listings.Create(r.Context(), PrincipalFrom(r.Context()), fields, files)
	if err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, toListingResponse(listing))
}

// HandleUpdate handles PATCH /api/listings/{id}. Absent form fields keep their stored values.
func (h *ListingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.parseForm(w, r); err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}

	var fields domain.UpdateFields
	fields.Title = optional(r, "title")
	fields.Author = optional(r, "author")
	fields.Location = optional(r, "location")
	fields.Description = optional(r, "description")
	if raw := optional(r, "price"); raw != nil {
		price, err := parsePrice(*raw)
		if err != nil {
			writeError(w, r, h.logger, h.metrics, err)
			return
		}
		fields.Price = &price
	}

	files, err := h.readImages(r)
	if err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}
	remove := append(r.PostForm["remove_images"], r.PostForm["remove_images[]"]...)

	listing, err := h.listings.Update(r.Context(), id, PrincipalFrom(r.Context()), fields, files, remove)
	if err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toListingResponse(listing))
}

// HandleDelete handles DELETE /api/listings/{id}.
func (h *ListingHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.listings.Delete(r.Context(), chi.URLParam(r, "id"), PrincipalFrom(r.Context())); err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGet handles GET /api/listings/{id}.
func (h *ListingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	listing, err := h.listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toListingResponse(listing))
}

// HandleSearch handles GET /api/listings?q=term.
func (h *ListingHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, h.logger, h.metrics, err)
		return
	}
	resp := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, toListingResponse(l))
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// parseForm accepts multipart and urlencoded bodies under a size cap derived from the per-file limit.
func (h *ListingHandler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes*maxImagesPerRequest+formOverhead)
	err := r.ParseMultipartForm(multipartMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	h.logger.Debug("Malformed listing form", zap.Error(err))
	return apperror.Invalid("form", "is malformed")
}

func (h *ListingHandler) readImages(r *http.Request) ([]domain.RawFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := append(r.MultipartForm.File["images"], r.MultipartForm.File["images[]"]...)
	if len(headers) > maxImagesPerRequest {
		return nil, apperror.Invalid("images", "at most %d files per request", maxImagesPerRequest)
	}

	files := make([]domain.RawFile, 0, len(headers))
	for _, fh := range headers {
		data, err := h.readPart(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, domain.RawFile{
			Name:        fh.Filename,
			ContentType: http.DetectContentType(data),
			Data:        data,
		})
	}
	return files, nil
}

// readPart reads at most one byte past the limit so the validator can reject the file as oversize.
func (h *ListingHandler) readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperror.Invalid("images", "cannot read %s", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, apperror.Invalid("images", "cannot read %s", fh.Filename)
	}
	return data, nil
}

func optional(r *http.Request, key string) *string {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func parsePrice(raw string) (float64, error) {
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperror.Invalid("price", "must be a number")
	}
	return price, nil
}
