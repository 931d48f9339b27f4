package domains

import (
	stdjson "encoding/json"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"oip/dpreport/internal/business"
	"oip/dpreport/pkg/errorutil"
)

// 数字保留为 json.Number，避免 float64 丢失精度
var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// MetricDTO 消息体 {"name": "quantity", "value": 3}，value 也可以是字符串 "3.5"
type MetricDTO struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// parseMetric 解析消息体，格式错误返回不可重试错误
func parseMetric(body string) (business.Metric, error) {
	var dto MetricDTO
	if err := json.UnmarshalFromString(body, &dto); err != nil {
		return business.Metric{}, errorutil.NonRetriable("invalid metric payload", err)
	}

	name := strings.TrimSpace(dto.Name)
	if name == "" {
		return business.Metric{}, errorutil.NonRetriable("metric name is required", nil)
	}

	value, err := toDecimal(dto.Value)
	if err != nil {
		return business.Metric{}, errorutil.NonRetriable("invalid metric value", err)
	}

	return business.Metric{Name: name, Value: value}, nil
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case stdjson.Number:
		return decimal.NewFromString(val.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(val))
	case nil:
		return decimal.Zero, fmt.Errorf("value is required")
	default:
		return decimal.Zero, fmt.Errorf("unsupported value type %T", v)
	}
}
