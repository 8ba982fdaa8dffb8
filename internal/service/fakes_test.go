package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"capture-service/internal/domain/asset"
	"capture-service/internal/domain/job"
	"capture-service/internal/domain/user"
	"capture-service/internal/engine"
	apperrors "capture-service/pkg/errors"

	"github.com/google/uuid"
)

// fakeAssetRepo mirrors the postgres repository's semantics in memory,
// including the compare-and-swap status transition.
type fakeAssetRepo struct {
	mu     sync.Mutex
	assets map[uuid.UUID]*asset.Asset
}

func newFakeAssetRepo() *fakeAssetRepo {
	return &fakeAssetRepo{assets: make(map[uuid.UUID]*asset.Asset)}
}

func (r *fakeAssetRepo) Create(_ context.Context, a *asset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.assets[a.ID] = &cp
	return nil
}

func (r *fakeAssetRepo) GetByID(_ context.Context, id uuid.UUID) (*asset.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return nil, apperrors.NotFound("asset not found")
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAssetRepo) ListVisibleTo(_ context.Context, variant asset.Variant, callerID uuid.UUID, isAdmin bool) ([]*asset.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*asset.Asset
	for _, a := range r.assets {
		if a.Variant != variant {
			continue
		}
		if !isAdmin && a.OwnerID != callerID && !a.IsPublic && !containsID(a.VisibleTo, callerID) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAssetRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to asset.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return apperrors.NotFound("asset not found")
	}
	if a.Status != from {
		return apperrors.InvalidState("asset is not in " + string(from) + " state")
	}
	a.Status = to
	return nil
}

func (r *fakeAssetRepo) UpdateMediaMetadata(_ context.Context, id uuid.UUID, frameCount int, frameRate float64, width, height int, format string, defaulted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return apperrors.NotFound("asset not found")
	}
	a.FrameCount = frameCount
	a.FrameRate = frameRate
	a.FrameWidth = width
	a.FrameHeight = height
	a.VideoFormat = format
	a.MetadataDefaulted = defaulted
	return nil
}

func (r *fakeAssetRepo) UpdateVisibility(_ context.Context, id uuid.UUID, input asset.UpdateVisibilityInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return apperrors.NotFound("asset not found")
	}
	if input.IsPublic != nil {
		a.IsPublic = *input.IsPublic
	}
	if input.VisibleTo != nil {
		a.VisibleTo = *input.VisibleTo
	}
	return nil
}

func (r *fakeAssetRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[id]; !ok {
		return apperrors.NotFound("asset not found")
	}
	delete(r.assets, id)
	return nil
}

// fakeJobRepo mirrors the postgres job repository, including set-once run
// ids and sticky terminal statuses.
type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*job.Job
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[uuid.UUID]*job.Job)}
}

func (r *fakeJobRepo) Create(_ context.Context, j *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *fakeJobRepo) GetByID(_ context.Context, id uuid.UUID) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.NotFound("job not found")
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) ListVisibleTo(_ context.Context, callerID uuid.UUID, isAdmin bool) ([]*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*job.Job
	for _, j := range r.jobs {
		if !isAdmin && j.OwnerID != callerID && !j.IsPublic && !containsID(j.VisibleTo, callerID) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeJobRepo) ListNonTerminal(_ context.Context) ([]*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*job.Job
	for _, j := range r.jobs {
		if j.Status.Terminal() || j.RunID == nil {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeJobRepo) SetRunID(_ context.Context, id uuid.UUID, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return apperrors.NotFound("job not found")
	}
	if j.RunID != nil {
		return apperrors.InvalidState("job run id is already set")
	}
	j.RunID = &runID
	return nil
}

func (r *fakeJobRepo) UpdateStatus(_ context.Context, id uuid.UUID, status job.Status, resultPath string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return false, nil
	}
	if j.Status.Terminal() {
		return false, nil
	}
	j.Status = status
	if resultPath != "" {
		j.ResultPath = resultPath
	}
	return true, nil
}

func (r *fakeJobRepo) UpdateNotes(_ context.Context, id uuid.UUID, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return apperrors.NotFound("job not found")
	}
	j.Notes = notes
	return nil
}

func (r *fakeJobRepo) UpdateVisibility(_ context.Context, id uuid.UUID, input job.UpdateVisibilityInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return apperrors.NotFound("job not found")
	}
	if input.IsPublic != nil {
		j.IsPublic = *input.IsPublic
	}
	if input.VisibleTo != nil {
		j.VisibleTo = *input.VisibleTo
	}
	return nil
}

func (r *fakeJobRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return apperrors.NotFound("job not found")
	}
	delete(r.jobs, id)
	return nil
}

// fakeUserRepo backs the auth service tests.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*user.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, input user.CreateUserInput) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == input.Email {
			return nil, apperrors.Conflict("email already registered")
		}
	}
	u := &user.User{
		ID:             uuid.New(),
		Email:          input.Email,
		FullName:       input.FullName,
		HashedPassword: input.HashedPassword,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	r.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

// fakeStore is an in-memory object store keyed by object key.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	uploadErr   error
	downloadErr error
	listErr     error

	deletedPrefixes []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) put(key string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = content
}

func (s *fakeStore) PresignUpload(_ context.Context, objectKey, contentType string, _ time.Duration) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	return "https://store.example/" + objectKey + "?sig=upload", nil
}

func (s *fakeStore) PresignDownload(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	if s.downloadErr != nil {
		return "", s.downloadErr
	}
	return "https://store.example/" + objectKey + "?sig=download", nil
}

func (s *fakeStore) GetObject(_ context.Context, objectKey string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.objects[objectKey]
	if !ok {
		return nil, apperrors.NotFound("object not found")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *fakeStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *fakeStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedPrefixes = append(s.deletedPrefixes, prefix)
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			delete(s.objects, k)
		}
	}
	return nil
}

// fakeEngine scripts the execution engine's behavior per run.
type fakeEngine struct {
	mu sync.Mutex

	submitErr error
	nextRunID string

	states    map[string]*engine.RunState
	statusErr error

	cancelErr   error
	cancelCalls []string
	submitted   []engine.SubmitRequest
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{nextRunID: "run-1", states: make(map[string]*engine.RunState)}
}

func (e *fakeEngine) Submit(_ context.Context, req engine.SubmitRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitErr != nil {
		return "", e.submitErr
	}
	e.submitted = append(e.submitted, req)
	return e.nextRunID, nil
}

func (e *fakeEngine) GetStatus(_ context.Context, runID string) (*engine.RunState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.statusErr != nil {
		return nil, e.statusErr
	}
	state, ok := e.states[runID]
	if !ok {
		return &engine.RunState{Status: "RUNNING"}, nil
	}
	cp := *state
	return &cp, nil
}

func (e *fakeEngine) Cancel(_ context.Context, runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelCalls = append(e.cancelCalls, runID)
	return e.cancelErr
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
