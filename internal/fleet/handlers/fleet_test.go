package handlers

import (
	"encoding/json"
	"testing"

	"planets-engine/internal/shared/errors"
	"planets-engine/internal/spatial"
)

func TestTravelRequestResolve(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     spatial.Coordinate
		wantCode string
	}{
		{
			name: "text coordinate",
			body: `{"destinationCoord": "02:15:07"}`,
			want: spatial.Coordinate{Region: 2, System: 15, Body: 7},
		},
		{
			name: "object coordinate",
			body: `{"destination": {"region": 2, "system": 15, "body": 7}}`,
			want: spatial.Coordinate{Region: 2, System: 15, Body: 7},
		},
		{
			name: "string in destination",
			body: `{"destination": "02:15:07"}`,
			want: spatial.Coordinate{Region: 2, System: 15, Body: 7},
		},
		{
			name:     "object with wrong types",
			body:     `{"destination": {"region": "north", "system": 1, "body": 1}}`,
			wantCode: errors.CodeInvalidCoordinate,
		},
		{
			name:     "object missing body",
			body:     `{"destination": {"region": 1, "system": 1}}`,
			wantCode: errors.CodeInvalidCoordinate,
		},
		{
			name:     "object out of range",
			body:     `{"destination": {"region": 1, "system": 1, "body": 100}}`,
			wantCode: errors.CodeInvalidCoordinate,
		},
		{
			name:     "malformed text",
			body:     `{"destinationCoord": "1:2"}`,
			wantCode: errors.CodeInvalidCoordinate,
		},
		{
			name:     "nothing given",
			body:     `{}`,
			wantCode: errors.CodeInvalidCoordinate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req TravelRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			got, err := req.resolve()
			if tt.wantCode != "" {
				if errors.GetCode(err) != tt.wantCode {
					t.Fatalf("err = %v (code %q), want %s", err, errors.GetCode(err), tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tt.want {
				t.Fatalf("destination = %v, want %v", got, tt.want)
			}
		})
	}
}
