package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/rostermap/internal/model"
)

func TestColor(t *testing.T) {
	assert.Equal(t, "red", Color(model.StatusNotDeparted))
	assert.Equal(t, "yellow", Color(model.StatusEnRoute))
	assert.Equal(t, "blue", Color(model.StatusReturning))
	assert.Equal(t, "green", Color(model.StatusUnknown))
	assert.Equal(t, "green", Color(""))
}

func TestMulti(t *testing.T) {
	a, b := NewLayer(), NewLayer()
	m := Multi{a, LogSink{}, b}

	m.UpsertMarker("1", model.Coordinates{Lat: 1, Lon: 2}, Marker{Status: model.StatusEnRoute})
	assert.Len(t, a.Markers(), 1)
	assert.Len(t, b.Markers(), 1)

	m.RemoveMarker("1")
	assert.Empty(t, a.Markers())
	assert.Empty(t, b.Markers())
}

func TestMarkerFor(t *testing.T) {
	m := MarkerFor(model.Entity{ID: "1", Name: "Alon", Address: "Herzl 1", Status: model.StatusEnRoute, StatusLabel: "בדרך"})
	assert.Equal(t, Marker{Status: model.StatusEnRoute, Label: "בדרך", Name: "Alon", Address: "Herzl 1"}, m)
}
