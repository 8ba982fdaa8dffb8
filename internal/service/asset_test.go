package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"capture-service/internal/access"
	"capture-service/internal/domain/asset"
	"capture-service/internal/media"
	apperrors "capture-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAssetService(repo *fakeAssetRepo, store *fakeStore) *AssetService {
	return NewAssetService(repo, store, media.NewCoordinator(zap.NewNop()), 15*time.Minute, zap.NewNop())
}

func videoInput(owner uuid.UUID) asset.CreateAssetInput {
	return asset.CreateAssetInput{
		OwnerID:     owner,
		Variant:     asset.VariantVideo,
		CameraCount: 2,
		Production:  "morning session",
		Manifest: []asset.ManifestEntry{
			{Name: "right.mp4", ContentType: "video/mp4"},
			{Name: "left.mp4", ContentType: "video/mp4"},
		},
	}
}

func TestAssetCreateIssuesAuthorizationsInCanonicalOrder(t *testing.T) {
	repo := newFakeAssetRepo()
	store := newFakeStore()
	svc := newAssetService(repo, store)
	owner := uuid.New()

	a, auths, err := svc.Create(context.Background(), videoInput(owner))
	require.NoError(t, err)

	assert.Equal(t, asset.StatusUploading, a.Status)
	assert.Equal(t, []string{"cam_1.mp4", "cam_2.mp4"}, a.FileNames)

	// Canonical names follow the lexicographic order of the originals.
	require.Len(t, auths, 2)
	assert.Equal(t, "left.mp4", auths[0].FileName)
	assert.Equal(t, a.StoragePath+"/cam_1.mp4", auths[0].ObjectKey)
	assert.Equal(t, "right.mp4", auths[1].FileName)
	assert.Equal(t, a.StoragePath+"/cam_2.mp4", auths[1].ObjectKey)
	assert.Contains(t, auths[0].UploadURL, "sig=upload")
	assert.True(t, auths[0].ExpiresAt.After(time.Now()))
}

func TestAssetCreateUsesCompleteMetadataHint(t *testing.T) {
	svc := newAssetService(newFakeAssetRepo(), newFakeStore())

	input := videoInput(uuid.New())
	input.MetadataHint = &asset.MetadataHint{
		Duration:  10,
		Width:     3840,
		Height:    2160,
		FrameRate: 25,
		Format:    "mp4",
	}

	a, _, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 250, a.FrameCount)
	assert.Equal(t, 25.0, a.FrameRate)
	assert.False(t, a.MetadataDefaulted)
}

func TestAssetCreateDefaultsMetadataWithoutHint(t *testing.T) {
	svc := newAssetService(newFakeAssetRepo(), newFakeStore())

	a, _, err := svc.Create(context.Background(), videoInput(uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, media.DefaultFrameRate, a.FrameRate)
	assert.Zero(t, a.FrameCount)
	assert.True(t, a.MetadataDefaulted)
}

func TestAssetCreateRejectsBadManifests(t *testing.T) {
	svc := newAssetService(newFakeAssetRepo(), newFakeStore())
	owner := uuid.New()

	tests := []struct {
		name  string
		input asset.CreateAssetInput
	}{
		{
			name: "wrong extension for variant",
			input: asset.CreateAssetInput{
				OwnerID: owner, Variant: asset.VariantVideo, CameraCount: 1,
				Manifest: []asset.ManifestEntry{{Name: "cam.png"}},
			},
		},
		{
			name: "manifest size does not match camera count",
			input: asset.CreateAssetInput{
				OwnerID: owner, Variant: asset.VariantVideo, CameraCount: 3,
				Manifest: []asset.ManifestEntry{{Name: "a.mp4"}},
			},
		},
		{
			name: "calibration takes exactly one file",
			input: asset.CreateAssetInput{
				OwnerID: owner, Variant: asset.VariantCalibration,
				Manifest: []asset.ManifestEntry{{Name: "a.json"}, {Name: "b.json"}},
			},
		},
		{
			name: "path traversal in file name",
			input: asset.CreateAssetInput{
				OwnerID: owner, Variant: asset.VariantVideo, CameraCount: 1,
				Manifest: []asset.ManifestEntry{{Name: "../escape.mp4"}},
			},
		},
		{
			name: "unknown variant",
			input: asset.CreateAssetInput{
				OwnerID: owner, Variant: "poster",
				Manifest: []asset.ManifestEntry{{Name: "a.png"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Create(context.Background(), tt.input)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestAssetCreateSigningFailureRemovesRecord(t *testing.T) {
	repo := newFakeAssetRepo()
	store := newFakeStore()
	store.uploadErr = errors.New("signer unavailable")
	svc := newAssetService(repo, store)

	_, _, err := svc.Create(context.Background(), videoInput(uuid.New()))
	require.ErrorIs(t, err, apperrors.ErrExternalService)

	assert.Empty(t, repo.assets)
}

func TestAssetCreateValidatesVideoReferences(t *testing.T) {
	repo := newFakeAssetRepo()
	svc := newAssetService(repo, newFakeStore())
	owner := uuid.New()

	// A calibration asset masquerading as a background reference.
	calib, _, err := svc.Create(context.Background(), asset.CreateAssetInput{
		OwnerID: owner, Variant: asset.VariantCalibration,
		Manifest: []asset.ManifestEntry{{Name: "rig.json"}},
	})
	require.NoError(t, err)

	input := videoInput(owner)
	input.BackgroundID = &calib.ID
	_, _, err = svc.Create(context.Background(), input)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	missing := uuid.New()
	input = videoInput(owner)
	input.CalibrationID = &missing
	_, _, err = svc.Create(context.Background(), input)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAssetFinalizeIsOneShot(t *testing.T) {
	repo := newFakeAssetRepo()
	svc := newAssetService(repo, newFakeStore())
	owner := uuid.New()
	caller := access.Caller{ID: owner}

	a, _, err := svc.Create(context.Background(), videoInput(owner))
	require.NoError(t, err)

	got, err := svc.Finalize(context.Background(), a.ID, caller, asset.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, asset.StatusReady, got.Status)

	// Terminal statuses are sticky: the second finalize loses the CAS.
	_, err = svc.Finalize(context.Background(), a.ID, caller, asset.StatusFailed)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	stored, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, asset.StatusReady, stored.Status)
}

func TestAssetFinalizeFailedCleansStorage(t *testing.T) {
	repo := newFakeAssetRepo()
	store := newFakeStore()
	svc := newAssetService(repo, store)
	owner := uuid.New()

	a, _, err := svc.Create(context.Background(), videoInput(owner))
	require.NoError(t, err)
	store.put(a.StoragePath+"/cam_1.mp4", []byte("partial"))

	_, err = svc.Finalize(context.Background(), a.ID, access.Caller{ID: owner}, asset.StatusFailed)
	require.NoError(t, err)

	assert.Contains(t, store.deletedPrefixes, a.StoragePath)
	assert.Empty(t, store.objects)
}

func TestAssetFinalizeRequiresOwnerOrAdmin(t *testing.T) {
	repo := newFakeAssetRepo()
	svc := newAssetService(repo, newFakeStore())

	a, _, err := svc.Create(context.Background(), videoInput(uuid.New()))
	require.NoError(t, err)

	_, err = svc.Finalize(context.Background(), a.ID, access.Caller{ID: uuid.New()}, asset.StatusReady)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.Finalize(context.Background(), a.ID, access.Caller{ID: uuid.New(), IsAdmin: true}, asset.StatusReady)
	assert.NoError(t, err)
}

func TestAssetReconcileChecksTheStore(t *testing.T) {
	owner := uuid.New()
	caller := access.Caller{ID: owner}

	t.Run("all objects present", func(t *testing.T) {
		repo := newFakeAssetRepo()
		store := newFakeStore()
		svc := newAssetService(repo, store)

		a, auths, err := svc.Create(context.Background(), videoInput(owner))
		require.NoError(t, err)
		for _, auth := range auths {
			store.put(auth.ObjectKey, []byte("frames"))
		}

		got, err := svc.Reconcile(context.Background(), a.ID, caller)
		require.NoError(t, err)
		assert.Equal(t, asset.StatusReady, got.Status)
	})

	t.Run("missing object fails the asset", func(t *testing.T) {
		repo := newFakeAssetRepo()
		store := newFakeStore()
		svc := newAssetService(repo, store)

		a, auths, err := svc.Create(context.Background(), videoInput(owner))
		require.NoError(t, err)
		store.put(auths[0].ObjectKey, []byte("frames"))

		got, err := svc.Reconcile(context.Background(), a.ID, caller)
		require.NoError(t, err)
		assert.Equal(t, asset.StatusFailed, got.Status)
		assert.Contains(t, store.deletedPrefixes, a.StoragePath)
	})

	t.Run("terminal asset is a no-op", func(t *testing.T) {
		repo := newFakeAssetRepo()
		svc := newAssetService(repo, newFakeStore())

		a, _, err := svc.Create(context.Background(), videoInput(owner))
		require.NoError(t, err)
		_, err = svc.Finalize(context.Background(), a.ID, caller, asset.StatusReady)
		require.NoError(t, err)

		got, err := svc.Reconcile(context.Background(), a.ID, caller)
		require.NoError(t, err)
		assert.Equal(t, asset.StatusReady, got.Status)
	})

	t.Run("listing failure surfaces", func(t *testing.T) {
		repo := newFakeAssetRepo()
		store := newFakeStore()
		svc := newAssetService(repo, store)

		a, _, err := svc.Create(context.Background(), videoInput(owner))
		require.NoError(t, err)
		store.listErr = errors.New("store down")

		_, err = svc.Reconcile(context.Background(), a.ID, caller)
		assert.ErrorIs(t, err, apperrors.ErrExternalService)
	})
}

// stubProber stands in for the ffprobe strategy and records the local paths
// it was handed.
type stubProber struct {
	md    *media.Metadata
	err   error
	paths []string
}

func (p *stubProber) Probe(_ context.Context, path string) (*media.Metadata, error) {
	p.paths = append(p.paths, path)
	if p.err != nil {
		return nil, p.err
	}
	return p.md, nil
}

func TestAssetReconcileProbesDefaultedMetadata(t *testing.T) {
	repo := newFakeAssetRepo()
	store := newFakeStore()
	prober := &stubProber{md: &media.Metadata{
		Duration:  8,
		Width:     1920,
		Height:    1080,
		FrameRate: 30,
		Format:    "mp4",
	}}
	svc := NewAssetService(repo, store, media.NewCoordinator(zap.NewNop(), prober), 15*time.Minute, zap.NewNop())
	owner := uuid.New()

	a, auths, err := svc.Create(context.Background(), videoInput(owner))
	require.NoError(t, err)
	require.True(t, a.MetadataDefaulted)
	for _, auth := range auths {
		store.put(auth.ObjectKey, []byte("frames"))
	}

	got, err := svc.Reconcile(context.Background(), a.ID, access.Caller{ID: owner})
	require.NoError(t, err)
	assert.Equal(t, asset.StatusReady, got.Status)

	// The prober ran against a spooled local copy and its values replaced
	// the fallback defaults.
	require.NotEmpty(t, prober.paths)
	assert.NotEmpty(t, prober.paths[0])
	assert.False(t, got.MetadataDefaulted)
	assert.Equal(t, 30.0, got.FrameRate)
	assert.Equal(t, 240, got.FrameCount)
	assert.Equal(t, 1920, got.FrameWidth)
	assert.Equal(t, 1080, got.FrameHeight)

	stored, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, stored.MetadataDefaulted)
	assert.Equal(t, 240, stored.FrameCount)
}

func TestAssetFinalizeReadyProbesDefaultedMetadata(t *testing.T) {
	repo := newFakeAssetRepo()
	store := newFakeStore()
	prober := &stubProber{md: &media.Metadata{
		Duration:  4,
		Width:     1280,
		Height:    720,
		FrameRate: 25,
		Format:    "mp4",
	}}
	svc := NewAssetService(repo, store, media.NewCoordinator(zap.NewNop(), prober), 15*time.Minute, zap.NewNop())
	owner := uuid.New()

	a, auths, err := svc.Create(context.Background(), videoInput(owner))
	require.NoError(t, err)
	for _, auth := range auths {
		store.put(auth.ObjectKey, []byte("frames"))
	}

	got, err := svc.Finalize(context.Background(), a.ID, access.Caller{ID: owner}, asset.StatusReady)
	require.NoError(t, err)
	assert.False(t, got.MetadataDefaulted)
	assert.Equal(t, 100, got.FrameCount)
}

func TestAssetReconcileKeepsDefaultsWhenProbeFails(t *testing.T) {
	repo := newFakeAssetRepo()
	store := newFakeStore()
	prober := &stubProber{err: errors.New("unsupported container")}
	svc := NewAssetService(repo, store, media.NewCoordinator(zap.NewNop(), prober), 15*time.Minute, zap.NewNop())
	owner := uuid.New()

	a, auths, err := svc.Create(context.Background(), videoInput(owner))
	require.NoError(t, err)
	for _, auth := range auths {
		store.put(auth.ObjectKey, []byte("frames"))
	}

	// A probe failure never blocks readiness; the defaults stay marked for
	// a later correction pass.
	got, err := svc.Reconcile(context.Background(), a.ID, access.Caller{ID: owner})
	require.NoError(t, err)
	assert.Equal(t, asset.StatusReady, got.Status)
	assert.True(t, got.MetadataDefaulted)
	assert.Equal(t, media.DefaultFrameRate, got.FrameRate)
}

func TestAssetGetEnforcesVisibility(t *testing.T) {
	repo := newFakeAssetRepo()
	svc := newAssetService(repo, newFakeStore())
	owner := uuid.New()
	friend := uuid.New()
	stranger := uuid.New()

	a, _, err := svc.Create(context.Background(), videoInput(owner))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), a.ID, access.Caller{ID: stranger})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	visible := []uuid.UUID{friend}
	_, err = svc.UpdateVisibility(context.Background(), a.ID, access.Caller{ID: uuid.New(), IsAdmin: true},
		asset.UpdateVisibilityInput{VisibleTo: &visible})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), a.ID, access.Caller{ID: friend})
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), a.ID, access.Caller{ID: stranger})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestAssetVisibilityWriteRules(t *testing.T) {
	repo := newFakeAssetRepo()
	svc := newAssetService(repo, newFakeStore())
	owner := uuid.New()

	a, _, err := svc.Create(context.Background(), videoInput(owner))
	require.NoError(t, err)

	// Owners may flip is_public on their own records.
	public := true
	got, err := svc.UpdateVisibility(context.Background(), a.ID, access.Caller{ID: owner},
		asset.UpdateVisibilityInput{IsPublic: &public})
	require.NoError(t, err)
	assert.True(t, got.IsPublic)

	// The allow-list is an administrative control.
	visible := []uuid.UUID{uuid.New()}
	_, err = svc.UpdateVisibility(context.Background(), a.ID, access.Caller{ID: owner},
		asset.UpdateVisibilityInput{VisibleTo: &visible})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.UpdateVisibility(context.Background(), a.ID, access.Caller{ID: owner}, asset.UpdateVisibilityInput{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAssetDeleteCascadesToStorage(t *testing.T) {
	repo := newFakeAssetRepo()
	store := newFakeStore()
	svc := newAssetService(repo, store)
	owner := uuid.New()

	a, _, err := svc.Create(context.Background(), videoInput(owner))
	require.NoError(t, err)
	store.put(a.StoragePath+"/cam_1.mp4", []byte("frames"))

	err = svc.Delete(context.Background(), a.ID, access.Caller{ID: uuid.New()})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	require.NoError(t, svc.Delete(context.Background(), a.ID, access.Caller{ID: owner}))
	_, err = repo.GetByID(context.Background(), a.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, store.deletedPrefixes, a.StoragePath)
}
