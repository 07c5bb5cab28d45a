// Package store 以"整集合读写"的方式持久化记录集合（每个集合是一个 JSON 数组），
// 并通过事务保证读-改-写的原子性。
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// 集合名称
const (
	CollectionCoupons       = "coupons"
	CollectionCouponUsage   = "coupon_usage"
	CollectionSubscriptions = "user_subscriptions"
)

var (
	// ErrConflict 并发写冲突，调用方应重试
	ErrConflict = errors.New("store: concurrent modification")
	// ErrReadOnly 在只读事务中调用 Put
	ErrReadOnly = errors.New("store: write in read-only transaction")
)

// Tx 事务内对集合的访问
type Tx interface {
	// Get 把集合解码到 dest；集合不存在时 dest 保持不变
	Get(name string, dest interface{}) error
	// Put 暂存集合的新内容，事务提交时一并写入
	Put(name string, v interface{}) error
}

// Store 集合存储
type Store interface {
	// View 只读快照
	View(ctx context.Context, fn func(Tx) error) error
	// Update 原子的读-改-写：fn 返回 nil 时所有 Put 一起生效，否则全部丢弃。
	// 乐观并发的实现会返回 ErrConflict。
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// txn 各后端共用的事务实现
type txn struct {
	read   func(name string) ([]byte, bool, error)
	staged map[string][]byte // nil 表示只读
}

func newTxn(read func(name string) ([]byte, bool, error), writable bool) *txn {
	t := &txn{read: read}
	if writable {
		t.staged = make(map[string][]byte)
	}
	return t
}

func (t *txn) Get(name string, dest interface{}) error {
	data, ok := t.staged[name]
	if !ok {
		var err error
		data, ok, err = t.read(name)
		if err != nil {
			return fmt.Errorf("read collection %s: %w", name, err)
		}
		if !ok {
			return nil
		}
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode collection %s: %w", name, err)
	}
	return nil
}

func (t *txn) Put(name string, v interface{}) error {
	if t.staged == nil {
		return ErrReadOnly
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}
	t.staged[name] = data
	return nil
}

// Collection 读取整个集合
func Collection[T any](tx Tx, name string) ([]T, error) {
	var items []T
	if err := tx.Get(name, &items); err != nil {
		return nil, err
	}
	return items, nil
}

const (
	DefaultRetries = 5
	retryBackoff   = 10 * time.Millisecond
)

// UpdateWithRetry 遇到 ErrConflict 时线性退避重试。
// fn 可能被执行多次，不能依赖上一次执行留下的状态。
func UpdateWithRetry(ctx context.Context, s Store, attempts int, fn func(Tx) error) error {
	if attempts <= 0 {
		attempts = DefaultRetries
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = s.Update(ctx, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * retryBackoff):
		}
	}
	return err
}
