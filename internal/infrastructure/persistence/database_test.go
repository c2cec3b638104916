package persistence

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mockDialector(conn *sql.DB) gorm.Dialector {
	return postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"})
}

// newMockGormDB opens GORM over a sqlmock connection using the postgres dialect
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mockDialector(mockDB), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	d, err := Open(mockDialector(conn))
	require.NoError(t, err)

	assert.NoError(t, d.Ping())
	err = d.Ping()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDatabase_Stats(t *testing.T) {
	conn, _, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	conn.SetMaxOpenConns(7)

	d, err := Open(mockDialector(conn))
	require.NoError(t, err)

	stats, err := d.Stats()
	require.NoError(t, err)
	assert.Equal(t, 7, stats.MaxOpenConnections)
	assert.Zero(t, stats.InUse)
}

func TestDatabase_Close(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	d, err := Open(mockDialector(conn))
	require.NoError(t, err)

	assert.NoError(t, d.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_AppliesOptions(t *testing.T) {
	conn, _, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	var applied bool
	d, err := Open(mockDialector(conn), func(c *gorm.Config) {
		applied = true
		assert.True(t, c.SkipDefaultTransaction)
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NotNil(t, d.DB)
}
