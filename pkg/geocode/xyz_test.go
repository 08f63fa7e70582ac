package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rostermap/internal/resilience"
)

func xyzServer(t *testing.T, status int, body string) (*httptest.Server, *url.URL) {
	t.Helper()
	got := &url.URL{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = *r.URL
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestXYZGeocode_StringCoordinates(t *testing.T) {
	srv, u := xyzServer(t, http.StatusOK, `{"latt":"32.08520","longt":"34.78180","standard":{"city":"Tel Aviv"}}`)
	p := NewXYZProvider("k123", WithBaseURL(srv.URL), WithRegion("IL"))

	res, err := p.Geocode(context.Background(), "דיזנגוף 50, תל אביב")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.InDelta(t, 32.0852, res.Latitude, 1e-6)
	assert.InDelta(t, 34.7818, res.Longitude, 1e-6)
	assert.Equal(t, "xyz", res.Source)

	assert.Equal(t, "/דיזנגוף 50, תל אביב", u.Path)
	assert.Equal(t, "1", u.Query().Get("json"))
	assert.Equal(t, "k123", u.Query().Get("auth"))
	assert.Equal(t, "IL", u.Query().Get("region"))
}

func TestXYZGeocode_NumericCoordinates(t *testing.T) {
	srv, _ := xyzServer(t, http.StatusOK, `{"latt":31.5,"longt":34.9}`)
	p := NewXYZProvider("", WithBaseURL(srv.URL))

	res, err := p.Geocode(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.InDelta(t, 31.5, res.Latitude, 1e-9)
}

func TestXYZGeocode_ErrorBodyIsMiss(t *testing.T) {
	srv, _ := xyzServer(t, http.StatusOK, `{"error":{"code":"018","description":"No Match"}}`)
	p := NewXYZProvider("", WithBaseURL(srv.URL))

	res, err := p.Geocode(context.Background(), "zzz")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestXYZGeocode_EmptyCoordinatesIsMiss(t *testing.T) {
	srv, _ := xyzServer(t, http.StatusOK, `{"latt":"","longt":""}`)
	p := NewXYZProvider("", WithBaseURL(srv.URL))

	res, err := p.Geocode(context.Background(), "zzz")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestXYZGeocode_ThrottledIsTransient(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"string code", `{"error":{"code":"006","message":"Throttled! See geocode.xyz/pricing"}}`},
		{"numeric code", `{"error":{"code":6,"description":"Throttled"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := xyzServer(t, http.StatusOK, tt.body)
			p := NewXYZProvider("", WithBaseURL(srv.URL))

			_, err := p.Geocode(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, resilience.IsTransient(err))
		})
	}
}

func TestXYZGeocode_HTTPStatus(t *testing.T) {
	srv, _ := xyzServer(t, http.StatusServiceUnavailable, `busy`)
	p := NewXYZProvider("", WithBaseURL(srv.URL))
	_, err := p.Geocode(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	srv, _ = xyzServer(t, http.StatusForbidden, `no`)
	p = NewXYZProvider("", WithBaseURL(srv.URL))
	_, err = p.Geocode(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestXYZGeocode_BadJSON(t *testing.T) {
	srv, _ := xyzServer(t, http.StatusOK, `<html>`)
	p := NewXYZProvider("", WithBaseURL(srv.URL))
	_, err := p.Geocode(context.Background(), "x")
	require.Error(t, err)
}
