package entity

import "time"

// Metric 指标实体，值以十进制字符串保存避免精度丢失
type Metric struct {
	Name      string    `gorm:"column:metrica;primaryKey;type:varchar(64)"`
	Value     string    `gorm:"column:valor;type:varchar(64);not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (Metric) TableName() string {
	return "reporte_aprobados"
}
