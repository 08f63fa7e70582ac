// Package render defines the rendering surface the sync engine draws on and
// ships an in-memory marker layer served as GeoJSON.
package render

import (
	"go.uber.org/zap"

	"github.com/sells-group/rostermap/internal/model"
)

// Marker carries what a map popup shows for one entity.
type Marker struct {
	Status model.Status `json:"status"`
	// Label is the raw roster status label.
	Label   string `json:"label,omitempty"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// MarkerFor builds the marker for an entity.
func MarkerFor(e model.Entity) Marker {
	return Marker{Status: e.Status, Label: e.StatusLabel, Name: e.Name, Address: e.Address}
}

// Sink is the rendering surface. Implementations must tolerate repeated
// upserts of the same id and removal of unknown ids.
type Sink interface {
	UpsertMarker(id string, at model.Coordinates, m Marker)
	RemoveMarker(id string)
}

// Color returns the marker color for a status.
func Color(s model.Status) string {
	switch s {
	case model.StatusNotDeparted:
		return "red"
	case model.StatusEnRoute:
		return "yellow"
	case model.StatusReturning:
		return "blue"
	default:
		return "green"
	}
}

// LogSink logs every call at debug level.
type LogSink struct{}

func (LogSink) UpsertMarker(id string, at model.Coordinates, m Marker) {
	zap.L().Debug("render: upsert marker",
		zap.String("id", id),
		zap.Float64("lat", at.Lat),
		zap.Float64("lon", at.Lon),
		zap.String("status", string(m.Status)),
		zap.String("color", Color(m.Status)),
	)
}

func (LogSink) RemoveMarker(id string) {
	zap.L().Debug("render: remove marker", zap.String("id", id))
}

// Multi fans calls out to several sinks in order.
type Multi []Sink

func (ms Multi) UpsertMarker(id string, at model.Coordinates, m Marker) {
	for _, s := range ms {
		s.UpsertMarker(id, at, m)
	}
}

func (ms Multi) RemoveMarker(id string) {
	for _, s := range ms {
		s.RemoveMarker(id)
	}
}
