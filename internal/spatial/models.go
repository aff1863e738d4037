package spatial

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Level names one tier of the coordinate hierarchy.
type Level string

const (
	LevelRegion Level = "region"
	LevelSystem Level = "system"
	LevelBody   Level = "body"
)

const (
	// GridSide is the width of the square grid regions and systems sit on.
	GridSide = 10
	// MaxComponent bounds every coordinate component.
	MaxComponent = GridSide*GridSide - 1
)

// Coordinate addresses a body as region:system:body, written "RR:SS:BB".
type Coordinate struct {
	Region int `json:"region"`
	System int `json:"system"`
	Body   int `json:"body"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Region, c.System, c.Body)
}

func (c Coordinate) Validate() error {
	for _, part := range []struct {
		level Level
		value int
	}{
		{LevelRegion, c.Region},
		{LevelSystem, c.System},
		{LevelBody, c.Body},
	} {
		if part.value < 0 || part.value > MaxComponent {
			return fmt.Errorf("%s %d out of range 0-%d", part.level, part.value, MaxComponent)
		}
	}
	return nil
}

// GridPosition places a region or system number on its 10x10 grid.
func GridPosition(n int) (x, y int) {
	return n % GridSide, n / GridSide
}

// ParseCoordinate accepts the canonical "RR:SS:BB" form. Components may omit
// the leading zero.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Coordinate{}, fmt.Errorf("coordinate %q must have the form RR:SS:BB", s)
	}

	var values [3]int
	for i, p := range parts {
		if p == "" || len(p) > 2 {
			return Coordinate{}, fmt.Errorf("coordinate %q has a malformed component %q", s, p)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return Coordinate{}, fmt.Errorf("coordinate %q has a malformed component %q", s, p)
		}
		values[i] = v
	}

	c := Coordinate{Region: values[0], System: values[1], Body: values[2]}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

func (c Coordinate) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts either the string form or an object with region,
// system and body fields.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		parsed, err := ParseCoordinate(text)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}

	var obj struct {
		Region *int `json:"region"`
		System *int `json:"system"`
		Body   *int `json:"body"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("coordinate must be a string or an object: %w", err)
	}
	if obj.Region == nil || obj.System == nil || obj.Body == nil {
		return fmt.Errorf("coordinate object needs region, system and body")
	}
	parsed := Coordinate{Region: *obj.Region, System: *obj.System, Body: *obj.Body}
	if err := parsed.Validate(); err != nil {
		return err
	}
	*c = parsed
	return nil
}
