package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dealdocs/engine/internal/models"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"gorm.io/gorm"
)

// BaseRepository defines common CRUD operations.
type BaseRepository[T any] interface {
	Create(ctx context.Context, obj *T) error
	GetByID(ctx context.Context, id any, dest *T) error
	Update(ctx context.Context, obj *T) error
	Delete(ctx context.Context, id any) error
}

type baseRepository[T any] struct {
	db   *gorm.DB
	name string
}

// NewBaseRepository returns a BaseRepository whose errors name the entity, e.g. "deal not found".
func NewBaseRepository[T any](db *gorm.DB, name string) BaseRepository[T] {
	return &baseRepository[T]{db: db, name: name}
}

func (r *baseRepository[T]) Create(ctx context.Context, obj *T) error {
	if err := r.db.WithContext(ctx).Create(obj).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return appErr.Wrap(err, appErr.CodeAlreadyExists, r.name+" already exists")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "create "+r.name+" failed")
	}
	return nil
}

func (r *baseRepository[T]) GetByID(ctx context.Context, id any, dest *T) error {
	if err := r.db.WithContext(ctx).First(dest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.New(appErr.CodeNotFound, r.name+" not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get "+r.name+" failed")
	}
	return nil
}

func (r *baseRepository[T]) Update(ctx context.Context, obj *T) error {
	if err := r.db.WithContext(ctx).Save(obj).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "update "+r.name+" failed")
	}
	return nil
}

func (r *baseRepository[T]) Delete(ctx context.Context, id any) error {
	var t T
	res := r.db.WithContext(ctx).Delete(&t, "id = ?", id)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "delete "+r.name+" failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, fmt.Sprintf("%s %v not found", r.name, id))
	}
	return nil
}

// Lookup repositories for records the generation pipeline only reads.
type (
	ClientRepository     = BaseRepository[models.Client]
	VehicleRepository    = BaseRepository[models.Vehicle]
	DealershipRepository = BaseRepository[models.Dealership]
)

func NewClientRepository(db *gorm.DB) ClientRepository {
	return NewBaseRepository[models.Client](db, "client")
}

func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return NewBaseRepository[models.Vehicle](db, "vehicle")
}

func NewDealershipRepository(db *gorm.DB) DealershipRepository {
	return NewBaseRepository[models.Dealership](db, "dealership")
}
