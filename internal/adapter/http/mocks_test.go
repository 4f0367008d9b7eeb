package http

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/2015jtw/campfinder/internal/listing/domain"
	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	reviewdomain "github.com/2015jtw/campfinder/internal/review/domain"
	"github.com/2015jtw/campfinder/internal/review/stream"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type mockListings struct{ mock.Mock }

func (m *mockListings) Create(ctx context.Context, ownerID string, fields domain.Fields, files []domain.RawFile) (*domain.Listing, error) {
	args := m.Called(ctx, ownerID, fields, files)
	l, _ := args.Get(0).(*domain.Listing)
	return l, args.Error(1)
}

func (m *mockListings) Update(ctx context.Context, id, requesterID string, fields domain.UpdateFields, files []domain.RawFile, removeURLs []string) (*domain.Listing, error) {
	args := m.Called(ctx, id, requesterID, fields, files, removeURLs)
	l, _ := args.Get(0).(*domain.Listing)
	return l, args.Error(1)
}

func (m *mockListings) Delete(ctx context.Context, id, requesterID string) error {
	return m.Called(ctx, id, requesterID).Error(0)
}

func (m *mockListings) Get(ctx context.Context, id string) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	l, _ := args.Get(0).(*domain.Listing)
	return l, args.Error(1)
}

func (m *mockListings) Search(ctx context.Context, term string) ([]*domain.Listing, error) {
	args := m.Called(ctx, term)
	l, _ := args.Get(0).([]*domain.Listing)
	return l, args.Error(1)
}

type mockReviews struct{ mock.Mock }

func (m *mockReviews) Post(ctx context.Context, principalID, listingID, author string, rating int, body string) (*reviewdomain.Review, error) {
	args := m.Called(ctx, principalID, listingID, author, rating, body)
	r, _ := args.Get(0).(*reviewdomain.Review)
	return r, args.Error(1)
}

func (m *mockReviews) Subscribe(listingID string) *stream.Subscription {
	args := m.Called(listingID)
	if fn, ok := args.Get(0).(func(string) *stream.Subscription); ok {
		return fn(listingID)
	}
	return args.Get(0).(*stream.Subscription)
}

func (m *mockReviews) ListHistory(ctx context.Context, listingID string) ([]*reviewdomain.Review, error) {
	args := m.Called(ctx, listingID)
	r, _ := args.Get(0).([]*reviewdomain.Review)
	return r, args.Error(1)
}

type fakeAssets struct {
	files map[string]string
}

func (f *fakeAssets) Open(_ context.Context, path string) (io.ReadCloser, string, int64, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, "", 0, apperror.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(data)), "image/png", int64(len(data)), nil
}

type testAPI struct {
	listings *mockListings
	reviews  *mockReviews
	listingH *ListingHandler
	reviewH  *ReviewHandler
	assets   *fakeAssets
}

func newTestAPI() *testAPI {
	log := logger.NewNop()
	api := &testAPI{
		listings: &mockListings{},
		reviews:  &mockReviews{},
		assets:   &fakeAssets{files: map[string]string{}},
	}
	api.listingH = NewListingHandler(api.listings, 1<<20, nil, log)
	api.reviewH = NewReviewHandler(api.reviews, nil, log)
	return api
}

func (a *testAPI) router() *chi.Mux {
	log := logger.NewNop()
	return NewRouter(RouterConfig{
		Listings:  a.listingH,
		Reviews:   a.reviewH,
		Assets:    NewAssetHandler(a.assets, nil, log),
		JWTSecret: testSecret,
		Logger:    log,
	})
}

func signToken(t *testing.T, secret, userID string, expiresIn time.Duration) string {
	t.Helper()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}
