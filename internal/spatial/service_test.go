package spatial

import (
	"encoding/json"
	"testing"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		in      string
		want    Coordinate
		wantErr bool
	}{
		{in: "01:23:04", want: Coordinate{Region: 1, System: 23, Body: 4}},
		{in: "99:99:99", want: Coordinate{Region: 99, System: 99, Body: 99}},
		{in: "3:4:5", want: Coordinate{Region: 3, System: 4, Body: 5}},
		{in: " 00:00:00 ", want: Coordinate{}},
		{in: "01:23", wantErr: true},
		{in: "01:23:04:05", wantErr: true},
		{in: "aa:23:04", wantErr: true},
		{in: "100:00:00", wantErr: true},
		{in: "-1:00:00", wantErr: true},
		{in: "01::04", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseCoordinate(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCoordinate(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCoordinate(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCoordinate(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestCoordinateString(t *testing.T) {
	c := Coordinate{Region: 1, System: 2, Body: 30}
	if c.String() != "01:02:30" {
		t.Fatalf("String() = %q", c.String())
	}
	parsed, err := ParseCoordinate(c.String())
	if err != nil || parsed != c {
		t.Fatalf("round trip = %+v, %v", parsed, err)
	}
}

func TestCoordinateUnmarshalJSON(t *testing.T) {
	var fromString, fromObject Coordinate
	if err := json.Unmarshal([]byte(`"12:34:05"`), &fromString); err != nil {
		t.Fatalf("string form: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"region":12,"system":34,"body":5}`), &fromObject); err != nil {
		t.Fatalf("object form: %v", err)
	}
	if fromString != fromObject {
		t.Fatalf("forms disagree: %+v vs %+v", fromString, fromObject)
	}

	var c Coordinate
	if err := json.Unmarshal([]byte(`{"region":1,"system":2}`), &c); err == nil {
		t.Fatal("expected error for missing body")
	}
	if err := json.Unmarshal([]byte(`{"region":1,"system":2,"body":100}`), &c); err == nil {
		t.Fatal("expected error for out of range body")
	}
}

func TestCalculateDistance(t *testing.T) {
	m := DefaultMetric()
	a := Coordinate{Region: 0, System: 0, Body: 0}

	if d := m.CalculateDistance(a, a); d != 0 {
		t.Fatalf("distance to self = %v", d)
	}

	tests := []struct {
		to   Coordinate
		want float64
	}{
		{to: Coordinate{Body: 5}, want: 1},
		{to: Coordinate{System: 1}, want: 1},
		{to: Coordinate{System: 10}, want: 1},
		{to: Coordinate{System: 11}, want: 1.4142135623730951},
		{to: Coordinate{Region: 1}, want: 10},
		{to: Coordinate{Region: 34, System: 0, Body: 0}, want: 50},
	}
	for _, tt := range tests {
		got := m.CalculateDistance(a, tt.to)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("distance to %v = %v, want %v", tt.to, got, tt.want)
		}
	}
}

func TestCalculateDistanceSymmetricAndPositive(t *testing.T) {
	m := DefaultMetric()
	coords := []Coordinate{
		{0, 0, 0}, {0, 0, 1}, {0, 5, 3}, {7, 42, 9}, {99, 99, 99}, {12, 0, 12},
	}
	for _, a := range coords {
		for _, b := range coords {
			ab := m.CalculateDistance(a, b)
			ba := m.CalculateDistance(b, a)
			if ab != ba {
				t.Errorf("distance %v->%v = %v but %v->%v = %v", a, b, ab, b, a, ba)
			}
			if (a == b) != (ab == 0) {
				t.Errorf("distance %v->%v = %v", a, b, ab)
			}
		}
	}
}
