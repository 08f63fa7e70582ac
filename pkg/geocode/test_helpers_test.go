package geocode

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

func unlimited() Option {
	return WithLimiter(rate.NewLimiter(rate.Inf, 1))
}

// stubProvider answers from a fixed table and counts calls.
type stubProvider struct {
	mu      sync.Mutex
	answers map[string]*Result
	errs    map[string]error
	calls   atomic.Int64
	seen    []string
}

func newStubProvider() *stubProvider {
	return &stubProvider{answers: map[string]*Result{}, errs: map[string]error{}}
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Geocode(_ context.Context, address string) (*Result, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, address)
	if err, ok := s.errs[address]; ok {
		return nil, err
	}
	if r, ok := s.answers[address]; ok {
		return r, nil
	}
	return &Result{Matched: false, Source: "stub"}, nil
}

func (s *stubProvider) set(address string, lat, lon float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[address] = &Result{Latitude: lat, Longitude: lon, Source: "stub", Matched: true}
}

func (s *stubProvider) fail(address string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[address] = err
}

func (s *stubProvider) clear(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errs, address)
}
