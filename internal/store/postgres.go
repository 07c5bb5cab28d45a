package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// collectionRow collections 表的一行对应一个集合
type collectionRow struct {
	Name      string         `gorm:"column:name;primaryKey"`
	Data      datatypes.JSON `gorm:"column:data"`
	Version   int64          `gorm:"column:version"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (collectionRow) TableName() string { return "collections" }

const (
	selectCollection          = `SELECT name, data, version, updated_at FROM collections WHERE name = ?`
	selectCollectionForUpdate = `SELECT name, data, version, updated_at FROM collections WHERE name = ? FOR UPDATE`
	upsertCollection          = `INSERT INTO collections (name, data, version, updated_at) VALUES (?, ?, 1, ?) ` +
		`ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, version = collections.version + 1, updated_at = EXCLUDED.updated_at`
)

// PostgresStore 基于 gorm 的存储。
// 写事务用 SELECT ... FOR UPDATE 锁住读到的集合行，序列化失败与死锁映射为 ErrConflict。
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore 创建 Postgres 存储
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func readCollection(db *gorm.DB, query, name string) ([]byte, bool, error) {
	var row collectionRow
	res := db.Raw(query, name).Scan(&row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}
	return row.Data, true, nil
}

func (s *PostgresStore) View(ctx context.Context, fn func(Tx) error) error {
	db := s.db.WithContext(ctx)
	return fn(newTxn(func(name string) ([]byte, bool, error) {
		return readCollection(db, selectCollection, name)
	}, false))
}

func (s *PostgresStore) Update(ctx context.Context, fn func(Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		t := newTxn(func(name string) ([]byte, bool, error) {
			return readCollection(gtx, selectCollectionForUpdate, name)
		}, true)
		if err := fn(t); err != nil {
			return err
		}

		// 固定顺序写入，减少死锁
		names := make([]string, 0, len(t.staged))
		for name := range t.staged {
			names = append(names, name)
		}
		sort.Strings(names)

		now := time.Now().UTC()
		for _, name := range names {
			if err := gtx.Exec(upsertCollection, name, datatypes.JSON(t.staged[name]), now).Error; err != nil {
				return fmt.Errorf("write collection %s: %w", name, err)
			}
		}
		return nil
	})
	return classifyPgError(err)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// classifyPgError 40001 serialization_failure / 40P01 deadlock_detected 可重试
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	}
	return err
}
