// Package repository defines the persistence contracts consumed by the
// service layer. The postgres subpackage provides the production
// implementation; tests substitute fakes.
package repository

import (
	"context"

	"capture-service/internal/domain/asset"
	"capture-service/internal/domain/job"
	"capture-service/internal/domain/user"

	"github.com/google/uuid"
)

type AssetRepository interface {
	Create(ctx context.Context, a *asset.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*asset.Asset, error)
	ListVisibleTo(ctx context.Context, variant asset.Variant, callerID uuid.UUID, isAdmin bool) ([]*asset.Asset, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to asset.Status) error
	UpdateMediaMetadata(ctx context.Context, id uuid.UUID, frameCount int, frameRate float64, width, height int, format string, defaulted bool) error
	UpdateVisibility(ctx context.Context, id uuid.UUID, input asset.UpdateVisibilityInput) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type JobRepository interface {
	Create(ctx context.Context, j *job.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*job.Job, error)
	ListVisibleTo(ctx context.Context, callerID uuid.UUID, isAdmin bool) ([]*job.Job, error)
	ListNonTerminal(ctx context.Context) ([]*job.Job, error)
	SetRunID(ctx context.Context, id uuid.UUID, runID string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status job.Status, resultPath string) (bool, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) error
	UpdateVisibility(ctx context.Context, id uuid.UUID, input job.UpdateVisibilityInput) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type UserRepository interface {
	Create(ctx context.Context, input user.CreateUserInput) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}
