package usecase

import (
	"context"
	"testing"

	"github.com/2015jtw/campfinder/internal/listing/domain"
	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/2015jtw/campfinder/internal/platform/logger"
	"github.com/2015jtw/campfinder/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo    *memoryRepo
	store   *fakeStore
	metrics *metrics.MetricsManager
	uc      *ListingUsecase
}

func newFixture() *fixture {
	repo := newMemoryRepo()
	store := newFakeStore()
	mm := metrics.NewMetricsManager("test")
	log := logger.NewNop()
	sync := NewAssetSynchronizer(store, "campgrounds", mm, log)
	uc := NewListingUsecase(repo, sync, 1<<20, log).WithMetrics(mm)
	return &fixture{repo: repo, store: store, metrics: mm, uc: uc}
}

func canyonFields() domain.Fields {
	return domain.Fields{
		Title:       "Canyon Creek",
		Author:      "Jess",
		Price:       30,
		Location:    "Moab",
		Description: "Red rock and a creek.",
	}
}

func strPtr(s string) *string { return &s }

func TestCreate_PersistsSyncedImagesAndOwner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	l, err := f.uc.Create(ctx, "owner-1", canyonFields(), []domain.RawFile{png("a.png"), png("b.png")})
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)

	got, err := f.uc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, l.Images, got.Images)
	assert.Len(t, got.Images, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ListingsCreatedTotal))
}

func TestCreate_RequiresPrincipal(t *testing.T) {
	f := newFixture()
	_, err := f.uc.Create(context.Background(), "", canyonFields(), nil)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}

func TestCreate_ValidationHasNoSideEffects(t *testing.T) {
	f := newFixture()
	fields := canyonFields()
	fields.Price = -3

	_, err := f.uc.Create(context.Background(), "owner-1", fields, []domain.RawFile{png("a.png")})
	assert.Equal(t, "price", apperror.FieldOf(err))
	assert.Equal(t, 0, f.store.uploads)

	all, _ := f.uc.Search(context.Background(), "")
	assert.Empty(t, all)
}

func TestCreate_StorageFailureWritesNothing(t *testing.T) {
	f := newFixture()
	f.store.failUploadAt = 2

	_, err := f.uc.Create(context.Background(), "owner-1", canyonFields(), []domain.RawFile{png("a.png"), png("b.png")})
	assert.ErrorIs(t, err, apperror.ErrStorage)

	all, _ := f.uc.Search(context.Background(), "")
	assert.Empty(t, all)
}

func TestCreate_RepoFailureDiscardsUploads(t *testing.T) {
	f := newFixture()
	f.repo.failOn = "create"

	_, err := f.uc.Create(context.Background(), "owner-1", canyonFields(), []domain.RawFile{png("a.png")})
	assert.Error(t, err)
	assert.Equal(t, 0, f.store.count())
}

func TestCreate_PublishesAndNotifies(t *testing.T) {
	f := newFixture()
	pub := new(mockPublisher)
	notifier := new(mockNotifier)
	f.uc.WithEvents(pub).WithNotifier(notifier)

	pub.On("Publish", mock.Anything, SubjectListingCreated, mock.Anything).Return(nil).Once()
	notifier.On("SendListingCreatedEmail", mock.MatchedBy(func(l *domain.Listing) bool {
		return l.Title == "Canyon Creek"
	})).Return(assert.AnError).Once()

	_, err := f.uc.Create(context.Background(), "owner-1", canyonFields(), nil)
	require.NoError(t, err, "notification failures are not surfaced")

	pub.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestUpdate_RemoveOneAddOne(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	l, err := f.uc.Create(ctx, "owner-1", canyonFields(), []domain.RawFile{png("1.png"), png("2.png")})
	require.NoError(t, err)
	first, second := l.Images[0], l.Images[1]

	updated, err := f.uc.Update(ctx, l.ID, "owner-1", domain.UpdateFields{}, []domain.RawFile{png("3.png")}, []string{first})
	require.NoError(t, err)
	require.Len(t, updated.Images, 2)
	assert.Equal(t, second, updated.Images[0])
	assert.NotEqual(t, first, updated.Images[1])
	assert.False(t, f.store.has(first))

	stored := f.repo.stored(l.ID)
	assert.Equal(t, updated.Images, stored.Images)
	assert.Equal(t, "Canyon Creek", stored.Title)
}

func TestUpdate_MergesOnlySuppliedFields(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	l, err := f.uc.Create(ctx, "owner-1", canyonFields(), nil)
	require.NoError(t, err)

	updated, err := f.uc.Update(ctx, l.ID, "owner-1", domain.UpdateFields{Title: strPtr("  Canyon Lake  ")}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Canyon Lake", updated.Title)
	assert.Equal(t, "Jess", updated.Author)
	assert.Equal(t, 30.0, updated.Price)
	assert.Equal(t, l.Version+1, updated.Version)
}

func TestUpdate_NonOwnerForbiddenAndUnchanged(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	l, err := f.uc.Create(ctx, "owner-1", canyonFields(), []domain.RawFile{png("1.png")})
	require.NoError(t, err)
	before := f.repo.stored(l.ID)

	_, err = f.uc.Update(ctx, l.ID, "intruder", domain.UpdateFields{Title: strPtr("Mine Now")}, []domain.RawFile{png("x.png")}, before.Images)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Equal(t, before, f.repo.stored(l.ID))
	assert.True(t, f.store.has(before.Images[0]))
}

func TestUpdate_MissingListing(t *testing.T) {
	f := newFixture()
	_, err := f.uc.Update(context.Background(), "nope", "owner-1", domain.UpdateFields{Title: strPtr("Whatever")}, nil, nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdate_MidUploadFailureKeepsStoredImages(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	l, err := f.uc.Create(ctx, "owner-1", canyonFields(), []domain.RawFile{png("1.png")})
	require.NoError(t, err)
	before := f.repo.stored(l.ID)

	f.store.failUploadAt = f.store.uploads + 2
	got, err := f.uc.Update(ctx, l.ID, "owner-1", domain.UpdateFields{Title: strPtr("Renamed")},
		[]domain.RawFile{png("2.png"), png("3.png")}, nil)
	assert.ErrorIs(t, err, apperror.ErrStorage)
	assert.Equal(t, before, got, "the previously stored record is returned")
	assert.Equal(t, before, f.repo.stored(l.ID))
}

func TestUpdate_ConflictDiscardsNewUploads(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	l, err := f.uc.Create(ctx, "owner-1", canyonFields(), nil)
	require.NoError(t, err)
	f.repo.failOn = "update"

	_, err = f.uc.Update(ctx, l.ID, "owner-1", domain.UpdateFields{}, []domain.RawFile{png("1.png")}, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, f.store.count())
}

func TestDelete_RemovesRecordEvenWhenStorageFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	l, err := f.uc.Create(ctx, "owner-1", canyonFields(), []domain.RawFile{png("1.png"), png("2.png")})
	require.NoError(t, err)
	f.store.failRemove = true

	require.NoError(t, f.uc.Delete(ctx, l.ID, "owner-1"))
	_, err = f.uc.Get(ctx, l.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.OrphanedAssetsTotal))
}

func TestDelete_CascadesImageRemoval(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	l, err := f.uc.Create(ctx, "owner-1", canyonFields(), []domain.RawFile{png("1.png"), png("2.png")})
	require.NoError(t, err)

	require.NoError(t, f.uc.Delete(ctx, l.ID, "owner-1"))
	assert.Equal(t, 0, f.store.count())
	require.Len(t, f.store.removeCalls, 1, "one bulk call")
}

func TestDelete_Ownership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	l, err := f.uc.Create(ctx, "owner-1", canyonFields(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, f.uc.Delete(ctx, l.ID, "intruder"), apperror.ErrForbidden)
	assert.ErrorIs(t, f.uc.Delete(ctx, l.ID, ""), apperror.ErrUnauthenticated)
	assert.ErrorIs(t, f.uc.Delete(ctx, "missing", "owner-1"), apperror.ErrNotFound)

	_, err = f.uc.Get(ctx, l.ID)
	assert.NoError(t, err)
}

func TestSearch_CaseInsensitive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	abc := canyonFields()
	abc.Title = "ABC Canyon"
	_, err := f.uc.Create(ctx, "owner-1", abc, nil)
	require.NoError(t, err)
	_, err = f.uc.Create(ctx, "owner-1", canyonFields(), nil)
	require.NoError(t, err)

	all, err := f.uc.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	hits, err := f.uc.Search(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ABC Canyon", hits[0].Title)
}

func TestExists(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	l, err := f.uc.Create(ctx, "owner-1", canyonFields(), nil)
	require.NoError(t, err)

	ok, err := f.uc.Exists(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.uc.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
