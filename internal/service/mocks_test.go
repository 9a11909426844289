package service

import (
	"fmt"
	"sync"

	"marginalia/internal/domain"
)

type mockProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*domain.Project
	bumps    []string
}

func newMockProjectRepo(seed ...*domain.Project) *mockProjectRepo {
	r := &mockProjectRepo{projects: make(map[string]*domain.Project)}
	for _, p := range seed {
		cp := *p
		r.projects[p.ID] = &cp
	}
	return r
}

func (r *mockProjectRepo) Create(p *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

func (r *mockProjectRepo) FindByID(id string) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, fmt.Errorf("project not found")
	}
	cp := *p
	return &cp, nil
}

func (r *mockProjectRepo) ListByOwner(ownerID string) ([]*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Project
	for _, p := range r.projects {
		if p.OwnerID == ownerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockProjectRepo) Update(p *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[p.ID]; !ok {
		return fmt.Errorf("project not found")
	}
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

func (r *mockProjectRepo) BumpVersion(id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return 0, fmt.Errorf("project not found")
	}
	p.SyncVersion++
	r.bumps = append(r.bumps, id)
	return p.SyncVersion, nil
}

func (r *mockProjectRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.projects, id)
	return nil
}

type mockAnnotationRepo struct {
	mu          sync.Mutex
	annotations map[string]*domain.Annotation
}

func newMockAnnotationRepo(seed ...*domain.Annotation) *mockAnnotationRepo {
	r := &mockAnnotationRepo{annotations: make(map[string]*domain.Annotation)}
	for _, a := range seed {
		cp := *a
		r.annotations[a.ID] = &cp
	}
	return r
}

func (r *mockAnnotationRepo) Create(a *domain.Annotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.annotations[a.ID] = &cp
	return nil
}

func (r *mockAnnotationRepo) FindByID(id string) (*domain.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.annotations[id]
	if !ok {
		return nil, fmt.Errorf("annotation not found")
	}
	cp := *a
	return &cp, nil
}

func (r *mockAnnotationRepo) ListByProject(projectID string) ([]*domain.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Annotation
	for _, a := range r.annotations {
		if a.ProjectID == projectID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockAnnotationRepo) Update(a *domain.Annotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.annotations[a.ID]; !ok {
		return fmt.Errorf("annotation not found")
	}
	cp := *a
	r.annotations[a.ID] = &cp
	return nil
}

func (r *mockAnnotationRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.annotations[id]; !ok {
		return fmt.Errorf("annotation not found")
	}
	delete(r.annotations, id)
	return nil
}

func (r *mockAnnotationRepo) DeleteBulk(ids []string) error {
	for _, id := range ids {
		if err := r.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

type mockCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*domain.CodeDefinition
}

func newMockCodeRepo(seed ...*domain.CodeDefinition) *mockCodeRepo {
	r := &mockCodeRepo{codes: make(map[string]*domain.CodeDefinition)}
	for _, c := range seed {
		cp := *c
		r.codes[c.ID] = &cp
	}
	return r
}

func (r *mockCodeRepo) Create(c *domain.CodeDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.codes[c.ID] = &cp
	return nil
}

func (r *mockCodeRepo) FindByID(id string) (*domain.CodeDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok {
		return nil, fmt.Errorf("code not found")
	}
	cp := *c
	return &cp, nil
}

func (r *mockCodeRepo) ListByProject(projectID string) ([]*domain.CodeDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CodeDefinition
	for _, c := range r.codes {
		if c.ProjectID == projectID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockCodeRepo) Update(c *domain.CodeDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[c.ID]; !ok {
		return fmt.Errorf("code not found")
	}
	cp := *c
	r.codes[c.ID] = &cp
	return nil
}

func (r *mockCodeRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, id)
	return nil
}

type mockDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
}

func newMockDocumentRepo(seed ...*domain.Document) *mockDocumentRepo {
	r := &mockDocumentRepo{docs: make(map[string]*domain.Document)}
	for _, d := range seed {
		cp := *d
		r.docs[d.ID] = &cp
	}
	return r
}

func (r *mockDocumentRepo) Create(d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.docs[d.ID] = &cp
	return nil
}

func (r *mockDocumentRepo) FindByID(id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, fmt.Errorf("document not found")
	}
	cp := *d
	return &cp, nil
}

func (r *mockDocumentRepo) ListByProject(projectID string) ([]*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Document
	for _, d := range r.docs {
		if d.ProjectID == projectID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockDocumentRepo) Update(d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[d.ID]; !ok {
		return fmt.Errorf("document not found")
	}
	cp := *d
	r.docs[d.ID] = &cp
	return nil
}

func (r *mockDocumentRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepo(seed ...*domain.User) *mockUserRepo {
	r := &mockUserRepo{users: make(map[string]*domain.User)}
	for _, u := range seed {
		cp := *u
		r.users[u.ID] = &cp
	}
	return r
}

func (r *mockUserRepo) Create(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *mockUserRepo) FindByEmail(email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (r *mockUserRepo) FindByID(id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	cp := *u
	return &cp, nil
}

func (r *mockUserRepo) Update(user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user not found")
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *mockUserRepo) EmailExists(email string) (bool, error) {
	_, err := r.FindByEmail(email)
	return err == nil, nil
}

type broadcastCall struct {
	UserID    string
	ProjectID string
	Version   int64
}

type mockBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *mockBroadcaster) BroadcastProjectUpdate(userID, projectID string, syncVersion int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{UserID: userID, ProjectID: projectID, Version: syncVersion})
}

func (b *mockBroadcaster) last() (broadcastCall, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.calls) == 0 {
		return broadcastCall{}, false
	}
	return b.calls[len(b.calls)-1], true
}
