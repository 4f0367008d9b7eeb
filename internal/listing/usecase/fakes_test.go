package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/2015jtw/campfinder/internal/listing/domain"
	"github.com/2015jtw/campfinder/internal/listing/search"
	"github.com/2015jtw/campfinder/internal/platform/apperror"
	"github.com/stretchr/testify/mock"
)

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func png(name string) domain.RawFile {
	return domain.RawFile{Name: name, ContentType: "image/png", Data: pngData}
}

type memoryRepo struct {
	mu      sync.Mutex
	seq     int
	records map[string]*domain.Listing
	failOn  string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]*domain.Listing)}
}

func (r *memoryRepo) Create(ctx context.Context, l *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "create" {
		return errors.New("db down")
	}
	r.seq++
	now := time.Now().UTC()
	l.ID = fmt.Sprintf("L%d", r.seq)
	l.CreatedAt, l.UpdatedAt, l.Version = now, now, 1
	r.records[l.ID] = l.Clone()
	return nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.records[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return l.Clone(), nil
}

func (r *memoryRepo) Update(ctx context.Context, l *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "update" {
		return errors.New("db down")
	}
	cur, ok := r.records[l.ID]
	if !ok {
		return apperror.ErrNotFound
	}
	if cur.Version != l.Version {
		return apperror.ErrConflict
	}
	l.Version++
	r.records[l.ID] = l.Clone()
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return apperror.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memoryRepo) Search(ctx context.Context, f search.Filter) ([]*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Listing
	for _, l := range r.records {
		if f.Matches(l.Title) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) stored(id string) *domain.Listing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id].Clone()
}

// fakeStore is an in-memory AssetStore serving URLs under https://cdn.test/.
type fakeStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	uploads      int
	failUploadAt int // 1-based; 0 disables
	failRemove   bool
	removeCalls  [][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

const cdnBase = "https://cdn.test/"

func (s *fakeStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.failUploadAt > 0 && s.uploads == s.failUploadAt {
		return "", errors.New("quota exceeded")
	}
	s.objects[path] = data
	return cdnBase + path, nil
}

func (s *fakeStore) Remove(ctx context.Context, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCalls = append(s.removeCalls, append([]string(nil), paths...))
	if s.failRemove {
		return errors.New("remove failed")
	}
	for _, p := range paths {
		delete(s.objects, p)
	}
	return nil
}

func (s *fakeStore) PublicURL(path string) string { return cdnBase + path }

func (s *fakeStore) PathFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, cdnBase) {
		return "", false
	}
	return strings.TrimPrefix(url, cdnBase), true
}

func (s *fakeStore) has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _ := s.PathFromURL(url)
	_, ok := s.objects[p]
	return ok
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendListingCreatedEmail(l *domain.Listing) error {
	args := m.Called(l)
	return args.Error(0)
}
