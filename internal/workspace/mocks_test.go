package workspace

import (
	"context"
	"fmt"
	"sync"

	"marginalia/internal/domain"
	"marginalia/internal/gateway"
)

// mockAnnotationStore fakes the remote store for one annotation kind. Ids
// are assigned as prefix+counter and every write bumps the store's version,
// mirroring the real server's bump-per-write behavior.
type mockAnnotationStore struct {
	mu      sync.Mutex
	prefix  string
	nextID  int
	version int64

	failCreate bool
	failUpdate bool
	failDelete bool

	entities map[string]domain.Annotation
	creates  []domain.CreateAnnotationRequest
	updates  []string
	deletes  []string
	bulks    [][]string

	// When set, Create signals createEntered and then blocks until
	// createRelease is closed. Used to hold a create in flight.
	createEntered chan struct{}
	createRelease chan struct{}
}

func newMockAnnotationStore(prefix string, startVersion int64, seed ...domain.Annotation) *mockAnnotationStore {
	s := &mockAnnotationStore{
		prefix:   prefix,
		nextID:   1,
		version:  startVersion,
		entities: make(map[string]domain.Annotation),
	}
	for _, a := range seed {
		s.entities[a.ID] = a
	}
	return s
}

func (s *mockAnnotationStore) Create(ctx context.Context, req domain.CreateAnnotationRequest) (*gateway.ConfirmedAnnotation, error) {
	if s.createEntered != nil {
		s.createEntered <- struct{}{}
		<-s.createRelease
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return nil, fmt.Errorf("store: create rejected")
	}
	s.creates = append(s.creates, req)
	id := fmt.Sprintf("%s%d", s.prefix, s.nextID)
	s.nextID++
	s.version++
	confirmed := annotationFromRequest(req, id)
	s.entities[id] = confirmed
	return &gateway.ConfirmedAnnotation{
		Annotation:  confirmed,
		SyncVersion: s.version,
	}, nil
}

func (s *mockAnnotationStore) Update(ctx context.Context, id string, patch domain.AnnotationPatch) (*gateway.ConfirmedAnnotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return nil, fmt.Errorf("store: update rejected")
	}
	s.updates = append(s.updates, id)
	s.version++
	base := s.entities[id]
	base.ID = id
	applied := patch.Apply(base)
	s.entities[id] = applied
	return &gateway.ConfirmedAnnotation{
		Annotation:  applied,
		SyncVersion: s.version,
	}, nil
}

func (s *mockAnnotationStore) Delete(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		return 0, fmt.Errorf("store: delete rejected")
	}
	s.deletes = append(s.deletes, id)
	s.version++
	return s.version, nil
}

func (s *mockAnnotationStore) DeleteBulk(ctx context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		return 0, fmt.Errorf("store: bulk delete rejected")
	}
	s.bulks = append(s.bulks, ids)
	s.version++
	return s.version, nil
}

func (s *mockAnnotationStore) deletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

type mockCodeStore struct {
	mu      sync.Mutex
	nextID  int
	version int64

	failCreate bool
	failUpdate bool
	failDelete bool

	entities map[string]domain.CodeDefinition
	deletes  []string
}

func newMockCodeStore(startVersion int64, seed ...domain.CodeDefinition) *mockCodeStore {
	s := &mockCodeStore{
		nextID:   1,
		version:  startVersion,
		entities: make(map[string]domain.CodeDefinition),
	}
	for _, c := range seed {
		s.entities[c.ID] = c
	}
	return s
}

func (s *mockCodeStore) Create(ctx context.Context, req domain.CreateCodeRequest) (*gateway.ConfirmedCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return nil, fmt.Errorf("store: code create rejected")
	}
	id := fmt.Sprintf("code-new-%d", s.nextID)
	s.nextID++
	s.version++
	code := domain.CodeDefinition{
		ID:          id,
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	}
	s.entities[id] = code
	return &gateway.ConfirmedCode{Code: code, SyncVersion: s.version}, nil
}

func (s *mockCodeStore) Update(ctx context.Context, id string, patch domain.CodePatch) (*gateway.ConfirmedCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return nil, fmt.Errorf("store: code update rejected")
	}
	s.version++
	base := s.entities[id]
	base.ID = id
	applied := patch.Apply(base)
	s.entities[id] = applied
	return &gateway.ConfirmedCode{Code: applied, SyncVersion: s.version}, nil
}

func (s *mockCodeStore) Delete(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete {
		return 0, fmt.Errorf("store: code delete rejected")
	}
	s.deletes = append(s.deletes, id)
	s.version++
	return s.version, nil
}

type mockProjectStore struct {
	mu         sync.Mutex
	project    domain.Project
	meta       domain.ProjectMeta
	fetchCalls int
	metaCalls  int
	fetchErr   error
	metaErr    error
}

func (s *mockProjectStore) Fetch(ctx context.Context, projectID string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	p := s.project
	return &p, nil
}

func (s *mockProjectStore) FetchMeta(ctx context.Context, projectID string) (*domain.ProjectMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metaCalls++
	if s.metaErr != nil {
		return nil, s.metaErr
	}
	m := s.meta
	return &m, nil
}

func (s *mockProjectStore) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

// fixedSelection satisfies SelectionProvider with a static span.
type fixedSelection struct {
	sel *Selection
}

func (f *fixedSelection) Current() *Selection { return f.sel }
