package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Millis is a time stored as integer unix milliseconds, which both drivers
// compare and order identically.
type Millis struct {
	time.Time
}

func NewMillis(t time.Time) Millis {
	return Millis{t.UTC().Truncate(time.Millisecond)}
}

func (m Millis) Value() (driver.Value, error) {
	return m.UnixMilli(), nil
}

func (m *Millis) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		m.Time = time.Time{}
	case int64:
		m.Time = time.UnixMilli(v).UTC()
	case float64:
		m.Time = time.UnixMilli(int64(v)).UTC()
	default:
		return fmt.Errorf("cannot scan %T into Millis", src)
	}
	return nil
}

// Counts maps catalog keys to a level or a quantity and is stored as JSON text.
type Counts map[string]int

func (c Counts) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]int(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *Counts) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = Counts{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Counts", src)
	}

	out := Counts{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decode counts: %w", err)
		}
	}
	*c = out
	return nil
}

func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Total sums every positive count.
func (c Counts) Total() int {
	total := 0
	for _, v := range c {
		if v > 0 {
			total += v
		}
	}
	return total
}

// Keys returns the keys with a positive count in sorted order.
func (c Counts) Keys() []string {
	keys := make([]string, 0, len(c))
	for k, v := range c {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
