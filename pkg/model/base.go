package model

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel 所有集合记录共用的字段，落盘时日期为 ISO-8601 字符串
type BaseModel struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Init 新记录写入前调用：生成 UUID 并设置时间戳
func (b *BaseModel) Init(now time.Time) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.CreatedAt = now
	b.UpdatedAt = now
}

// Touch 更新 UpdatedAt
func (b *BaseModel) Touch(now time.Time) {
	b.UpdatedAt = now
}
