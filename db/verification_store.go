package db

import (
	"context"
	"errors"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VerificationStore persists verification records. Lookups that find nothing
// return gorm.ErrRecordNotFound
type VerificationStore struct {
	db *gorm.DB
}

func NewVerificationStore(db *gorm.DB) *VerificationStore {
	return &VerificationStore{db: db}
}

func (s *VerificationStore) Create(ctx context.Context, r *model.VerificationRecord) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *VerificationStore) FindByToken(ctx context.Context, token string) (*model.VerificationRecord, error) {
	var r model.VerificationRecord

	err := s.db.WithContext(ctx).
		Where("verification_token = ?", token).
		First(&r).
		Error
	if err != nil {
		return nil, err
	}

	return &r, nil
}

func (s *VerificationStore) FindByID(ctx context.Context, id string) (*model.VerificationRecord, error) {
	var r model.VerificationRecord

	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&r).
		Error
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// MarkVerified flips email_verified to true in a single conditional update.
// It reports whether this call performed the flip; false means the record
// was already verified (or doesn't exist)
func (s *VerificationStore) MarkVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.VerificationRecord{}).
		Where("id = ? AND email_verified = ?", id, false).
		Updates(map[string]any{
			"email_verified": true,
			"verified_at":    at,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// RecordResend registers one more resend of the record's verification mail.
// allow sees the bookkeeping as it is before this resend (nil for the first
// one) while the row is locked; an error from it aborts the resend and is
// returned unchanged. The counter restarts once the current window is older
// than a day. It returns the state after the update
func (s *VerificationStore) RecordResend(ctx context.Context, recordID string, at time.Time, allow func(last *model.ResendRequest) error) (*model.ResendRequest, error) {
	var out model.ResendRequest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rr, err := lockResend(tx, recordID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if rr == nil {
			if err := allow(nil); err != nil {
				return err
			}

			first := model.ResendRequest{RecordID: recordID, WindowStart: at, LastResend: at, Count: 1}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&first)
			if res.Error != nil {
				return res.Error
			}

			if res.RowsAffected == 1 {
				out = first
				return nil
			}

			// A parallel first resend inserted the row in the meantime
			if rr, err = lockResend(tx, recordID); err != nil {
				return err
			}
		}

		if err := allow(rr); err != nil {
			return err
		}

		if at.Sub(rr.WindowStart) >= 24*time.Hour {
			rr.WindowStart = at
			rr.Count = 0
		}

		rr.Count++
		rr.LastResend = at

		if err := tx.Save(rr).Error; err != nil {
			return err
		}

		out = *rr
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func lockResend(tx *gorm.DB, recordID string) (*model.ResendRequest, error) {
	var rr model.ResendRequest

	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("record_id = ?", recordID).
		First(&rr).
		Error
	if err != nil {
		return nil, err
	}

	return &rr, nil
}
