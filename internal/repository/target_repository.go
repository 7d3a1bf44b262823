package repository

import (
	"context"
	"time"

	"pagewatch/internal/domain/entity"
)

type TargetRepository interface {
	Get(ctx context.Context, id int64) (*entity.Target, error)
	List(ctx context.Context) ([]*entity.Target, error)
	ListActive(ctx context.Context) ([]*entity.Target, error)
	Search(ctx context.Context, keyword string) ([]*entity.Target, error)
	Create(ctx context.Context, target *entity.Target) error
	Update(ctx context.Context, target *entity.Target) error
	Delete(ctx context.Context, id int64) error
	RecordCheck(ctx context.Context, id int64, checkedAt time.Time, hash string) error
}
