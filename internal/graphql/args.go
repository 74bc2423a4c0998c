package graphql

import (
	"encoding/json"

	"github.com/ButyrinIA/bookblog/internal/apperr"
)

// arguments - значения аргументов поля после подстановки переменных.
type arguments map[string]any

func (a arguments) str(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a arguments) optStr(name string) *string {
	s, ok := a[name].(string)
	if !ok {
		return nil
	}
	return &s
}

func (a arguments) boolean(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func (a arguments) integer(name string) int64 {
	n, _ := toInt64(a[name])
	return n
}

func (a arguments) optInt(name string) *int {
	n, ok := toInt64(a[name])
	if !ok {
		return nil
	}
	v := int(n)
	return &v
}

// decode раскладывает входной объект в структуру по json-тегам.
func (a arguments) decode(name string, dst any) error {
	b, err := json.Marshal(a[name])
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "invalid %s", name)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "invalid %s", name)
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
