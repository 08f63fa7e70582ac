package model

import (
	"fmt"
	"strings"
)

// Status is the mutable movement state of a field unit.
type Status string

const (
	StatusUnknown     Status = "UNKNOWN"
	StatusNotDeparted Status = "NOT_DEPARTED"
	StatusEnRoute     Status = "EN_ROUTE"
	StatusReturning   Status = "RETURNING"
)

// DefaultStatusLabels maps the labels used in the shared roster sheet to statuses.
var DefaultStatusLabels = map[string]Status{
	"טרם יצאנו": StatusNotDeparted,
	"בדרך":      StatusEnRoute,
	"בדרך חזרה": StatusReturning,
}

// ParseStatus maps a raw roster label to a Status. Labels are looked up in the
// given table first, then compared against the canonical names. Anything else
// is StatusUnknown.
func ParseStatus(label string, labels map[string]Status) Status {
	label = strings.TrimSpace(label)
	if label == "" {
		return StatusUnknown
	}
	if s, ok := labels[label]; ok {
		return s
	}

	canonical := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(label))
	switch Status(canonical) {
	case StatusNotDeparted, StatusEnRoute, StatusReturning:
		return Status(canonical)
	default:
		return StatusUnknown
	}
}

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("(%g,%g)", c.Lat, c.Lon)
}

// Record is one decoded roster row. Empty strings stand for missing cells.
type Record struct {
	Row         int          `json:"row"`
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	Status      string       `json:"status"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Entity is a tracked roster unit as held by the entity store.
type Entity struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Address     string       `json:"address,omitempty" yaml:"address,omitempty"`
	Status      Status       `json:"status" yaml:"status"`
	StatusLabel string       `json:"status_label,omitempty" yaml:"status_label,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	LastError   string       `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Renderable reports whether the entity can be placed on the map.
func (e Entity) Renderable() bool {
	return e.Coordinates != nil
}

// Clone returns a deep copy so callers cannot mutate store-owned coordinates.
func (e Entity) Clone() Entity {
	if e.Coordinates != nil {
		c := *e.Coordinates
		e.Coordinates = &c
	}
	return e
}
