package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A shared in-memory database locks whole tables, serialize access
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))

	t.Cleanup(func() { Close(db) })
	return db
}

func newRecord(id, token string, expires time.Time) *model.VerificationRecord {
	return &model.VerificationRecord{
		ID:                id,
		URL:               "https://example.com",
		Report:            "report " + id,
		Screenshot:        "https://cdn.example.com/" + id + ".png",
		Email:             id + "@example.com",
		VerificationToken: token,
		TokenExpiresAt:    expires,
		CreatedAt:         expires.Add(-24 * time.Hour),
	}
}

func TestVerificationStoreFind(t *testing.T) {
	s := NewVerificationStore(newTestDB(t))
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).UTC()

	require.NoError(t, s.Create(ctx, newRecord("rec1", "tok1", exp)))

	byToken, err := s.FindByToken(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, "rec1", byToken.ID)
	assert.Equal(t, "report rec1", byToken.Report)
	assert.False(t, byToken.EmailVerified)

	byID, err := s.FindByID(ctx, "rec1")
	require.NoError(t, err)
	assert.Equal(t, "tok1", byID.VerificationToken)

	_, err = s.FindByToken(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestVerificationStoreTokenIsUnique(t *testing.T) {
	s := NewVerificationStore(newTestDB(t))
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, s.Create(ctx, newRecord("rec1", "dup", exp)))
	assert.Error(t, s.Create(ctx, newRecord("rec2", "dup", exp)))
}

func TestVerificationStoreMarkVerifiedOnce(t *testing.T) {
	s := NewVerificationStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Create(ctx, newRecord("rec1", "tok1", now.Add(time.Hour))))

	flipped, err := s.MarkVerified(ctx, "rec1", now)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = s.MarkVerified(ctx, "rec1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, flipped)

	r, err := s.FindByID(ctx, "rec1")
	require.NoError(t, err)
	assert.True(t, r.EmailVerified)
	require.NotNil(t, r.VerifiedAt)
	assert.WithinDuration(t, now, *r.VerifiedAt, time.Second)

	flipped, err = s.MarkVerified(ctx, "missing", now)
	require.NoError(t, err)
	assert.False(t, flipped)
}

func TestVerificationStoreMarkVerifiedConcurrent(t *testing.T) {
	s := NewVerificationStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Create(ctx, newRecord("rec1", "tok1", now.Add(time.Hour))))

	var wg sync.WaitGroup
	results := make([]bool, 2)
	errs := make([]error, 2)

	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.MarkVerified(ctx, "rec1", now)
		}()
	}
	wg.Wait()

	flips := 0
	for i := range 2 {
		require.NoError(t, errs[i])
		if results[i] {
			flips++
		}
	}
	assert.Equal(t, 1, flips)
}

func TestVerificationStoreRecordResend(t *testing.T) {
	s := NewVerificationStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	var seen []*model.ResendRequest
	allow := func(last *model.ResendRequest) error {
		seen = append(seen, last)
		return nil
	}

	rr, err := s.RecordResend(ctx, "rec1", now, allow)
	require.NoError(t, err)
	assert.Equal(t, 1, rr.Count)
	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	rr, err = s.RecordResend(ctx, "rec1", now.Add(time.Minute), allow)
	require.NoError(t, err)
	assert.Equal(t, 2, rr.Count)
	require.Len(t, seen, 2)
	require.NotNil(t, seen[1])
	assert.Equal(t, 1, seen[1].Count)

	rr, err = s.RecordResend(ctx, "rec1", now.Add(25*time.Hour), allow)
	require.NoError(t, err)
	assert.Equal(t, 1, rr.Count)
	assert.WithinDuration(t, now.Add(25*time.Hour), rr.LastResend, time.Second)
}

func TestVerificationStoreRecordResendRefused(t *testing.T) {
	s := NewVerificationStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	errLimit := errors.New("limit reached")

	_, err := s.RecordResend(ctx, "rec1", now, func(*model.ResendRequest) error { return nil })
	require.NoError(t, err)

	_, err = s.RecordResend(ctx, "rec1", now.Add(time.Minute), func(*model.ResendRequest) error { return errLimit })
	assert.ErrorIs(t, err, errLimit)

	// the refused call left the row untouched
	rr, err := s.RecordResend(ctx, "rec1", now.Add(2*time.Minute), func(last *model.ResendRequest) error {
		assert.Equal(t, 1, last.Count)
		assert.WithinDuration(t, now, last.LastResend, time.Second)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rr.Count)
}
