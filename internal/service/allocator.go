package service

import (
	"context"

	"github.com/askhatbv/circulation-service/internal/model"
	"github.com/askhatbv/circulation-service/internal/repository"
)

// InventoryAllocator claims and releases physical copies. Copy status only
// ever changes through it, and only inside a coordinator transaction, so a
// copy can never end up ON_LOAN without an owning loan row.
type InventoryAllocator struct {
	repo repository.Repository
}

func NewInventoryAllocator(repo repository.Repository) *InventoryAllocator {
	return &InventoryAllocator{repo: repo}
}

func (a *InventoryAllocator) ClaimCopy(ctx context.Context, bookID int64) (model.Copy, error) {
	return a.repo.ClaimCopy(ctx, bookID)
}

func (a *InventoryAllocator) ReleaseCopy(ctx context.Context, copyID int64) error {
	return a.repo.ReleaseCopy(ctx, copyID)
}
