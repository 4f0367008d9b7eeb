package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2015jtw/campfinder/internal/listing/domain"
	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, method, target string, values map[string][]string, files []formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, vs := range values {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(key, v))
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func sampleListing() *domain.Listing {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Listing{
		ID:          "l1",
		OwnerID:     "u1",
		Title:       "Canyon Creek",
		Author:      "Ana",
		Price:       25,
		Location:    "Utah",
		Description: "Quiet sites by the water",
		Images:      []string{"https://cdn.test/campgrounds/a.png"},
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
}

func TestListingHandler_CreateMultipart(t *testing.T) {
	api := newTestAPI()
	token := signToken(t, testSecret, "u1", time.Hour)

	api.listings.On("Create", mock.Anything, "u1",
		domain.Fields{Title: "Canyon Creek", Author: "Ana", Price: 25, Location: "Utah", Description: "Quiet sites by the water"},
		mock.MatchedBy(func(files []domain.RawFile) bool {
			return len(files) == 1 && files[0].Name == "tent.png" && bytes.Equal(files[0].Data, pngHeader)
		}),
	).Return(sampleListing(), nil).Once()

	req := multipartRequest(t, http.MethodPost, "/api/listings", map[string][]string{
		"title":       {"Canyon Creek"},
		"author":      {"Ana"},
		"price":       {"25"},
		"location":    {"Utah"},
		"description": {"Quiet sites by the water"},
	}, []formFile{{field: "images[]", name: "tent.png", data: pngHeader}})
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	api.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var body listingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "l1", body.ID)
	assert.Equal(t, []string{"https://cdn.test/campgrounds/a.png"}, body.Images)
	api.listings.AssertExpectations(t)
}

func TestListingHandler_CreateRejectsNonNumericPrice(t *testing.T) {
	api := newTestAPI()

	req := multipartRequest(t, http.MethodPost, "/api/listings", map[string][]string{
		"title": {"Canyon Creek"},
		"price": {"cheap"},
	}, nil)
	rec := httptest.NewRecorder()

	api.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "price", body.Field)
	api.listings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListingHandler_AnonymousCreateReachesCoreWithoutPrincipal(t *testing.T) {
	api := newTestAPI()
	api.listings.On("Create", mock.Anything, "", mock.Anything, mock.Anything).
		Return(nil, apperror.ErrUnauthenticated).Once()

	req := multipartRequest(t, http.MethodPost, "/api/listings", map[string][]string{"price": {"1"}}, nil)
	rec := httptest.NewRecorder()

	api.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	api.listings.AssertExpectations(t)
}

func TestListingHandler_UpdatePassesOnlySuppliedFields(t *testing.T) {
	api := newTestAPI()
	token := signToken(t, testSecret, "u1", time.Hour)

	updated := sampleListing()
	updated.Title = "Canyon Creek North"
	api.listings.On("Update", mock.Anything, "l1", "u1",
		mock.MatchedBy(func(f domain.UpdateFields) bool {
			return f.Title != nil && *f.Title == "Canyon Creek North" &&
				f.Price != nil && *f.Price == 30 &&
				f.Author == nil && f.Location == nil && f.Description == nil
		}),
		mock.MatchedBy(func(files []domain.RawFile) bool { return len(files) == 0 }),
		[]string{"https://cdn.test/campgrounds/a.png"},
	).Return(updated, nil).Once()

	req := multipartRequest(t, http.MethodPatch, "/api/listings/l1", map[string][]string{
		"title":           {"Canyon Creek North"},
		"price":           {"30"},
		"remove_images[]": {"https://cdn.test/campgrounds/a.png"},
	}, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	api.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Canyon Creek North")
	api.listings.AssertExpectations(t)
}

func TestListingHandler_UpdateErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantField  string
		wantError  string
	}{
		{name: "forbidden", err: apperror.ErrForbidden, wantStatus: http.StatusForbidden},
		{name: "validation", err: apperror.Invalid("title", "too short"), wantStatus: http.StatusBadRequest, wantField: "title"},
		{name: "not found", err: apperror.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "conflict", err: apperror.ErrConflict, wantStatus: http.StatusConflict},
		{name: "storage", err: apperror.Storage("upload", errors.New("bucket offline")), wantStatus: http.StatusBadGateway},
		{name: "unexpected", err: errors.New("driver exploded"), wantStatus: http.StatusInternalServerError, wantError: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI()
			api.listings.On("Update", mock.Anything, "l1", "u2", mock.Anything, mock.Anything, mock.Anything).
				Return(nil, tt.err).Once()

			req := multipartRequest(t, http.MethodPatch, "/api/listings/l1", map[string][]string{"title": {"x"}}, nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u2", time.Hour))
			rec := httptest.NewRecorder()

			api.router().ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantField, body.Field)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body.Error)
			}
		})
	}
}

func TestListingHandler_UpdateAcceptsURLEncodedForm(t *testing.T) {
	api := newTestAPI()
	api.listings.On("Update", mock.Anything, "l1", "u1",
		mock.MatchedBy(func(f domain.UpdateFields) bool { return f.Location != nil && *f.Location == "Moab" }),
		mock.Anything, mock.Anything,
	).Return(sampleListing(), nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/api/listings/l1", strings.NewReader("location=Moab"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u1", time.Hour))
	rec := httptest.NewRecorder()

	api.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	api.listings.AssertExpectations(t)
}

func TestListingHandler_OversizeBodyIsRejected(t *testing.T) {
	api := newTestAPI()
	api.listingH.maxUploadBytes = 16

	big := bytes.Repeat([]byte{0x89}, int(16*maxImagesPerRequest+formOverhead)+1024)
	req := multipartRequest(t, http.MethodPost, "/api/listings", map[string][]string{"price": {"1"}},
		[]formFile{{field: "images", name: "huge.png", data: big}})
	rec := httptest.NewRecorder()

	api.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	api.listings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListingHandler_Delete(t *testing.T) {
	api := newTestAPI()
	api.listings.On("Delete", mock.Anything, "l1", "u1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/listings/l1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u1", time.Hour))
	rec := httptest.NewRecorder()

	api.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	api.listings.AssertExpectations(t)
}

func TestListingHandler_GetAndSearch(t *testing.T) {
	api := newTestAPI()
	api.listings.On("Get", mock.Anything, "l1").Return(sampleListing(), nil).Once()
	api.listings.On("Get", mock.Anything, "missing").Return(nil, apperror.ErrNotFound).Once()
	api.listings.On("Search", mock.Anything, "canyon").Return([]*domain.Listing{sampleListing()}, nil).Once()
	api.listings.On("Search", mock.Anything, "nothing").Return(nil, nil).Once()
	router := api.router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/l1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings?q=canyon", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var found []listingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Canyon Creek", found[0].Title)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings?q=nothing", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	api.listings.AssertExpectations(t)
}
