package bus

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Encode сериализует payload для передачи через внешний брокер.
// Контракт границы: JSON-объект, все времена нормализованы к ISO-8601 UTC.
// Значение без прямого JSON-отображения (структура со вложенными
// структурами) сначала сводится к плоской map.
func Encode(payload any) ([]byte, error) {
	return json.Marshal(normalize(payload))
}

// Decode разбирает проводной payload обратно в JSON-совместимое дерево.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	case json.RawMessage:
		return t
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())

	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = normalize(iter.Value().Interface())
		}
		return out

	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out

	case reflect.Struct:
		return flattenStruct(rv)
	}

	return v
}

// flattenStruct разворачивает структуру в map по json-тегам,
// чтобы time.Time внутри полей тоже прошли нормализацию к UTC.
func flattenStruct(rv reflect.Value) map[string]any {
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())

	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}

		name := f.Name
		omitEmpty := false
		if tag, ok := f.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}

		fv := rv.Field(i)
		if omitEmpty && fv.Kind() == reflect.Pointer && fv.IsNil() {
			continue
		}

		out[name] = normalize(fv.Interface())
	}

	return out
}
