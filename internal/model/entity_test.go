package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  Status
	}{
		{"טרם יצאנו", StatusNotDeparted},
		{"בדרך", StatusEnRoute},
		{" בדרך חזרה ", StatusReturning},
		{"EN_ROUTE", StatusEnRoute},
		{"en route", StatusEnRoute},
		{"not-departed", StatusNotDeparted},
		{"returning", StatusReturning},
		{"", StatusUnknown},
		{"lost", StatusUnknown},
		{"unknown", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseStatus(tt.label, DefaultStatusLabels))
		})
	}
}

func TestParseStatus_CustomLabels(t *testing.T) {
	t.Parallel()

	labels := map[string]Status{"out": StatusEnRoute}
	assert.Equal(t, StatusEnRoute, ParseStatus("out", labels))
	assert.Equal(t, StatusUnknown, ParseStatus("בדרך", labels))
}

func TestEntity_Renderable(t *testing.T) {
	t.Parallel()

	assert.False(t, Entity{ID: "1"}.Renderable())
	assert.True(t, Entity{ID: "1", Coordinates: &Coordinates{Lat: 31, Lon: 34}}.Renderable())
}

func TestEntity_CloneCopiesCoordinates(t *testing.T) {
	t.Parallel()

	orig := Entity{ID: "1", Coordinates: &Coordinates{Lat: 31, Lon: 34}}
	cp := orig.Clone()
	cp.Coordinates.Lat = 99

	assert.InDelta(t, 31.0, orig.Coordinates.Lat, 0)
}

func TestCoordinates_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "(32,34.9)", Coordinates{Lat: 32, Lon: 34.9}.String())
}
