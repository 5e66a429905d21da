package db

import (
	"context"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/model"

	"gorm.io/gorm"
)

// BookingStore persists installation booking drafts
type BookingStore struct {
	db *gorm.DB
}

func NewBookingStore(db *gorm.DB) *BookingStore {
	return &BookingStore{db: db}
}

func (s *BookingStore) Create(ctx context.Context, b *model.BookingDraft) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *BookingStore) FindByID(ctx context.Context, id string) (*model.BookingDraft, error) {
	var b model.BookingDraft

	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&b).
		Error
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (s *BookingStore) Save(ctx context.Context, b *model.BookingDraft) error {
	return s.db.WithContext(ctx).Save(b).Error
}

// Advance moves the draft from one stage to the next in a single conditional
// update. It reports false when the draft is not in stage from
func (s *BookingStore) Advance(ctx context.Context, id, from, to string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.BookingDraft{}).
		Where("id = ? AND stage = ?", id, from).
		Update("stage", to)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// DeleteStale removes drafts that never got scheduled and were last touched
// before the given time
func (s *BookingStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("stage <> ? AND updated_at < ?", model.StageScheduled, before).
		Delete(&model.BookingDraft{})
	if res.Error != nil {
		return 0, res.Error
	}

	return res.RowsAffected, nil
}
