package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"oip/dpreport/internal/business"
	"oip/dpreport/pkg/infra/mysql/entity"
)

// MetricDAO 指标数据访问对象
type MetricDAO struct {
	db *gorm.DB
}

var _ business.MetricRepository = (*MetricDAO)(nil)

// NewMetricDAO 创建 MetricDAO 实例
func NewMetricDAO(dsn string) (*MetricDAO, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewMetricDAOWithDB(db), nil
}

// NewMetricDAOWithDB 使用已有连接
func NewMetricDAOWithDB(db *gorm.DB) *MetricDAO {
	return &MetricDAO{db: db}
}

// Migrate 建表
func (dao *MetricDAO) Migrate(ctx context.Context) error {
	return dao.db.WithContext(ctx).AutoMigrate(&entity.Metric{})
}

// AddToMetric 累加指标
// 在一个事务内 SELECT ... FOR UPDATE 读取当前值，加上增量后 upsert 写回
func (dao *MetricDAO) AddToMetric(ctx context.Context, name string, delta decimal.Decimal) (decimal.Decimal, error) {
	var total decimal.Decimal

	err := dao.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := currentValue(tx, name)
		if err != nil {
			return err
		}

		total = current.Add(delta)
		return upsertQuery(tx, &entity.Metric{Name: name, Value: total.String()}).Error
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to add to metric: %w", err)
	}

	return total, nil
}

// GetMetric 根据指标名查询，不存在时返回 nil, nil
func (dao *MetricDAO) GetMetric(ctx context.Context, name string) (*business.Metric, error) {
	var po entity.Metric
	err := dao.db.WithContext(ctx).Where("metrica = ?", name).Take(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get metric: %w", err)
	}

	value, err := decimal.NewFromString(po.Value)
	if err != nil {
		return nil, fmt.Errorf("corrupted metric value %q: %w", po.Value, err)
	}
	return &business.Metric{Name: po.Name, Value: value}, nil
}

// Close 关闭数据库连接
func (dao *MetricDAO) Close() error {
	sqlDB, err := dao.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func currentValue(tx *gorm.DB, name string) (decimal.Decimal, error) {
	var po entity.Metric
	err := lockQuery(tx, name).Take(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}

	value, err := decimal.NewFromString(po.Value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupted metric value %q: %w", po.Value, err)
	}
	return value, nil
}

func lockQuery(tx *gorm.DB, name string) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("metrica = ?", name)
}

func upsertQuery(tx *gorm.DB, po *entity.Metric) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "metrica"}},
		DoUpdates: clause.AssignmentColumns([]string{"valor", "updated_at"}),
	}).Create(po)
}
