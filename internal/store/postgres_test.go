package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewPostgresStore(db), mock
}

var collectionColumns = []string{"name", "data", "version", "updated_at"}

func TestPostgresStore_View(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT name, data, version, updated_at FROM collections WHERE name = \$1$`).
		WithArgs("things").
		WillReturnRows(sqlmock.NewRows(collectionColumns).
			AddRow("things", []byte(`[{"id":"a","count":3}]`), 4, time.Now()))

	err := s.View(context.Background(), func(tx Tx) error {
		items, err := Collection[record](tx, "things")
		require.NoError(t, err)
		assert.Equal(t, []record{{ID: "a", Count: 3}}, items)
		return nil
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLocksAndUpserts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT name, data, version, updated_at FROM collections WHERE name = \$1 FOR UPDATE`).
		WithArgs("things").
		WillReturnRows(sqlmock.NewRows(collectionColumns).
			AddRow("things", []byte(`[]`), 1, time.Now()))
	mock.ExpectExec(`INSERT INTO collections .* ON CONFLICT \(name\) DO UPDATE`).
		WithArgs("things", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Update(context.Background(), func(tx Tx) error {
		items, err := Collection[record](tx, "things")
		if err != nil {
			return err
		}
		return tx.Put("things", append(items, record{ID: "b"}))
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SerializationFailureIsConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	err := s.Update(context.Background(), func(tx Tx) error {
		_, err := Collection[record](tx, "things")
		return err
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FnErrorRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.Update(context.Background(), func(tx Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
