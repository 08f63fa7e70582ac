package render

import (
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/rostermap/internal/model"
)

// Placed is a marker with its position.
type Placed struct {
	ID     string            `json:"id"`
	At     model.Coordinates `json:"at"`
	Marker Marker            `json:"marker"`
}

// LayerOption configures a Layer.
type LayerOption func(*Layer)

// WithBase adds a base location drawn as its own point.
func WithBase(at model.Coordinates, label string) LayerOption {
	return func(l *Layer) {
		l.base = &at
		l.baseLabel = label
	}
}

// WithLinks draws a dashed line from the base to every marker.
func WithLinks(on bool) LayerOption {
	return func(l *Layer) {
		l.links = on
	}
}

// Layer is an in-memory marker layer, safe for concurrent use. Markers keep
// the order in which they were first upserted; a removed id keeps its slot so
// it returns to the same place when upserted again.
type Layer struct {
	mu      sync.RWMutex
	markers map[string]Placed
	slotted map[string]bool
	order   []string
	version uint64

	base      *model.Coordinates
	baseLabel string
	links     bool
}

var _ Sink = (*Layer)(nil)

// NewLayer creates an empty layer.
func NewLayer(opts ...LayerOption) *Layer {
	l := &Layer{markers: make(map[string]Placed), slotted: make(map[string]bool)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// UpsertMarker implements Sink.
func (l *Layer) UpsertMarker(id string, at model.Coordinates, m Marker) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.markers[id]; ok && prev.At == at && prev.Marker == m {
		return
	}
	if !l.slotted[id] {
		l.slotted[id] = true
		l.order = append(l.order, id)
	}
	l.markers[id] = Placed{ID: id, At: at, Marker: m}
	l.version++
}

// RemoveMarker implements Sink.
func (l *Layer) RemoveMarker(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.markers[id]; !ok {
		return
	}
	delete(l.markers, id)
	l.version++
}

// Markers returns the placed markers in order.
func (l *Layer) Markers() []Placed {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Placed, 0, len(l.markers))
	for _, id := range l.order {
		if p, ok := l.markers[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Version increases on every visible change; the map page uses it as an ETag.
func (l *Layer) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// FeatureCollection builds the layer as GeoJSON features: one point per
// marker, then the base point and its links when configured.
func (l *Layer) FeatureCollection() *geojson.FeatureCollection {
	markers := l.Markers()
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, 2*len(markers)+1)}

	for _, p := range markers {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       p.ID,
			Geometry: point(p.At),
			Properties: map[string]interface{}{
				"kind":    "marker",
				"id":      p.ID,
				"name":    p.Marker.Name,
				"address": p.Marker.Address,
				"status":  string(p.Marker.Status),
				"label":   p.Marker.Label,
				"color":   Color(p.Marker.Status),
			},
		})
	}

	if l.base == nil {
		return fc
	}
	fc.Features = append(fc.Features, &geojson.Feature{
		ID:       "base",
		Geometry: point(*l.base),
		Properties: map[string]interface{}{
			"kind": "base",
			"name": l.baseLabel,
		},
	})
	if l.links {
		for _, p := range markers {
			fc.Features = append(fc.Features, &geojson.Feature{
				ID: "link-" + p.ID,
				Geometry: geom.NewLineStringFlat(geom.XY, []float64{
					l.base.Lon, l.base.Lat, p.At.Lon, p.At.Lat,
				}),
				Properties: map[string]interface{}{
					"kind":      "link",
					"id":        p.ID,
					"color":     "blue",
					"dashArray": "5, 10",
				},
			})
		}
	}
	return fc
}

// GeoJSON encodes FeatureCollection.
func (l *Layer) GeoJSON() ([]byte, error) {
	b, err := json.Marshal(l.FeatureCollection())
	if err != nil {
		return nil, eris.Wrap(err, "render: encode geojson")
	}
	return b, nil
}

// point builds a GeoJSON point; GeoJSON orders coordinates lon, lat.
func point(c model.Coordinates) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat})
}
