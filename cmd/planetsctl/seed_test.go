package main

import "testing"

func TestParseCounts(t *testing.T) {
	got, err := parseCounts(" fighter=5, corvette = 2 ,")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got["fighter"] != 5 || got["corvette"] != 2 || len(got) != 2 {
		t.Fatalf("counts = %v", got)
	}

	empty, err := parseCounts("")
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty = %v (%v)", empty, err)
	}

	for _, bad := range []string{"fighter", "=3", "fighter=x", "fighter=-1"} {
		if _, err := parseCounts(bad); err == nil {
			t.Errorf("parseCounts(%q) succeeded", bad)
		}
	}
}
