// internal/services/collaboration_reader.go
package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/escrow-ledger/internal/models"
)

// CollaborationReader exposes the collaboration and booking records owned by
// the marketplace services.
type CollaborationReader interface {
	GetCollaboration(ctx context.Context, id uuid.UUID) (*models.Collaboration, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

type GormCollaborationReader struct {
	db *gorm.DB
}

func NewCollaborationReader(db *gorm.DB) *GormCollaborationReader {
	return &GormCollaborationReader{db: db}
}

func (r *GormCollaborationReader) GetCollaboration(ctx context.Context, id uuid.UUID) (*models.Collaboration, error) {
	var collaboration models.Collaboration
	if err := r.db.WithContext(ctx).First(&collaboration, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, ErrCollaborationNotFound)
	}
	return &collaboration, nil
}

func (r *GormCollaborationReader) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, ErrBookingNotFound)
	}
	return &booking, nil
}
