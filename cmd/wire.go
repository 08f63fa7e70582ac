package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rostermap/internal/config"
	"github.com/sells-group/rostermap/internal/entities"
	"github.com/sells-group/rostermap/internal/fetcher"
	"github.com/sells-group/rostermap/internal/model"
	"github.com/sells-group/rostermap/internal/render"
	"github.com/sells-group/rostermap/internal/resilience"
	"github.com/sells-group/rostermap/internal/roster"
	"github.com/sells-group/rostermap/internal/scheduler"
	"github.com/sells-group/rostermap/internal/store"
	"github.com/sells-group/rostermap/pkg/geocode"
)

// engine bundles the sync components built from config.
type engine struct {
	Geocoder  *geocode.Client
	Store     *entities.Store
	Layer     *render.Layer
	History   store.CycleLog
	Scheduler *scheduler.Scheduler
}

func (e *engine) Close() error {
	if e.History == nil {
		return nil
	}
	return e.History.Close()
}

func initGeocoder(c *config.Config) (*geocode.Client, error) {
	opts := []geocode.ProviderOption{
		geocode.WithHTTPClient(&http.Client{Timeout: time.Duration(c.Geocode.TimeoutSecs) * time.Second}),
		geocode.WithBaseURL(c.Geocode.BaseURL),
		geocode.WithRegion(c.Geocode.Region),
	}

	var provider geocode.Provider
	switch c.Geocode.Provider {
	case "google":
		provider = geocode.NewGoogleProvider(c.Geocode.APIKey, opts...)
	case "xyz", "":
		provider = geocode.NewXYZProvider(c.Geocode.APIKey, opts...)
	default:
		return nil, eris.Errorf("unknown geocode provider %q", c.Geocode.Provider)
	}

	return geocode.NewClient(provider,
		geocode.WithRateLimit(c.Geocode.RateLimit),
		geocode.WithCircuitBreaker(resilience.FromCircuitConfig(c.Geocode.CircuitThreshold, c.Geocode.CircuitResetSecs)),
	), nil
}

func initSource(c *config.Config) (*roster.SheetSource, error) {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Fetch.UserAgent,
		Timeout:    time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: c.Fetch.MaxRetries,
	})
	cols := c.Roster.Columns
	return roster.NewSheetSource(f, roster.Options{
		URL:        c.Roster.URL,
		SheetID:    c.Roster.SheetID,
		Sheet:      c.Roster.Sheet,
		Format:     roster.Format(c.Roster.Format),
		HeaderRows: c.Roster.HeaderRows,
		Columns: roster.Columns{
			ID:          cols.ID,
			Name:        cols.Name,
			Address:     cols.Address,
			Status:      cols.Status,
			Coordinates: cols.Coordinates,
		},
	})
}

// statusLabels converts configured labels to a lookup table. An empty list
// keeps the built-in labels.
func statusLabels(c *config.Config) (map[string]model.Status, error) {
	if len(c.Roster.StatusLabels) == 0 {
		return nil, nil
	}
	labels := make(map[string]model.Status, len(c.Roster.StatusLabels))
	for _, l := range c.Roster.StatusLabels {
		s := model.ParseStatus(l.Status, nil)
		if s == model.StatusUnknown && !strings.EqualFold(strings.TrimSpace(l.Status), string(model.StatusUnknown)) {
			return nil, eris.Errorf("roster.status_labels: unknown status %q for label %q", l.Status, l.Label)
		}
		labels[strings.TrimSpace(l.Label)] = s
	}
	return labels, nil
}

func initLayer(c *config.Config) *render.Layer {
	if !c.Map.BaseEnabled {
		return render.NewLayer()
	}
	return render.NewLayer(
		render.WithBase(model.Coordinates{Lat: c.Map.BaseLat, Lon: c.Map.BaseLon}, c.Map.BaseLabel),
		render.WithLinks(c.Map.Links),
	)
}

func initEngine(ctx context.Context, c *config.Config) (*engine, error) {
	geo, err := initGeocoder(c)
	if err != nil {
		return nil, err
	}
	src, err := initSource(c)
	if err != nil {
		return nil, err
	}
	labels, err := statusLabels(c)
	if err != nil {
		return nil, err
	}
	history, err := store.Open(ctx, c.History.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "open cycle history")
	}

	es := entities.New(geo,
		entities.WithStatusLabels(labels),
		entities.WithCooldown(c.Sync.CooldownEvery, c.Sync.Cooldown),
	)
	layer := initLayer(c)
	sched := scheduler.New(src, es, render.Multi{layer, render.LogSink{}}, scheduler.WithCycleLog(history))

	return &engine{
		Geocoder:  geo,
		Store:     es,
		Layer:     layer,
		History:   history,
		Scheduler: sched,
	}, nil
}
