package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type wireSample struct {
	SKU      string     `json:"sku"`
	Price    float64    `json:"price"`
	Optional *float64   `json:"optional,omitempty"`
	TS       time.Time  `json:"ts"`
	SeenAt   *time.Time `json:"seen_at,omitempty"`
	hidden   int        //nolint:unused // непубличные поля не сериализуются
}

func TestEncodeNormalizesTimeToUTC(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	ts := time.Date(2025, 6, 1, 15, 30, 0, 0, loc)

	data, err := Encode(wireSample{SKU: "widget.alpha", Price: 99.5, TS: ts})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, Decode(data, &m))

	// 15:30 MSK == 12:30 UTC
	require.Equal(t, "2025-06-01T12:30:00Z", m["ts"])
	require.Equal(t, "widget.alpha", m["sku"])
	require.Equal(t, 99.5, m["price"])
}

func TestEncodeFlattensNestedStructs(t *testing.T) {
	type inner struct {
		When time.Time `json:"when"`
	}
	type outer struct {
		Name  string `json:"name"`
		Child inner  `json:"child"`
	}

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("X", -5*60*60))
	data, err := Encode(outer{Name: "n", Child: inner{When: ts}})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, Decode(data, &m))

	child, ok := m["child"].(map[string]any)
	require.True(t, ok, "вложенная структура обязана стать map")
	require.Equal(t, "2025-01-02T08:04:05Z", child["when"])
}

func TestEncodeOmitsNilOptionalFields(t *testing.T) {
	data, err := Encode(wireSample{SKU: "s", Price: 1, TS: time.Unix(0, 0)})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, Decode(data, &m))

	_, hasOptional := m["optional"]
	require.False(t, hasOptional)
	_, hasSeenAt := m["seen_at"]
	require.False(t, hasSeenAt)
}

func TestEncodeHandlesMapsAndSlices(t *testing.T) {
	ts := time.Date(2030, 12, 31, 23, 59, 59, 0, time.UTC)
	payload := map[string]any{
		"items": []any{ts, "plain", 7},
		"ts":    ts,
	}

	data, err := Encode(payload)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, Decode(data, &m))

	require.Equal(t, "2030-12-31T23:59:59Z", m["ts"])
	items := m["items"].([]any)
	require.Equal(t, "2030-12-31T23:59:59Z", items[0])
	require.Equal(t, "plain", items[1])
}

func TestEncodeProducesValidJSONObject(t *testing.T) {
	data, err := Encode(wireSample{SKU: "s", Price: 2, TS: time.Now()})
	require.NoError(t, err)
	require.True(t, json.Valid(data))
	require.Equal(t, byte('{'), data[0])
}
