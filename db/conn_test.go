package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestLoggerIgnoresRecordNotFound(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))

	conn, err := gorm.Open(sqlite.Open("file:logger_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: NewLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { Close(conn) })
	require.NoError(t, Migrate(conn))

	_, err = NewVerificationStore(conn).FindByToken(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	query := func() (string, int64) { return "SELECT 1", 0 }
	NewLogger().Trace(context.Background(), time.Now(), query, errors.New("disk I/O error"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.WarnLevel, logs.All()[0].Level)
}
