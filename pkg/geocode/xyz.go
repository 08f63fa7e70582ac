package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rostermap/internal/fetcher"
	"github.com/sells-group/rostermap/internal/resilience"
)

const xyzGeocodeURL = "https://geocode.xyz"

// xyzThrottled is the error code geocode.xyz returns when the caller exceeds
// its request allowance.
const xyzThrottled = "006"

// XYZProvider geocodes addresses with the geocode.xyz API.
type XYZProvider struct {
	cfg     providerConfig
	authKey string
}

var _ Provider = (*XYZProvider)(nil)

// NewXYZProvider creates a geocode.xyz provider. authKey may be empty for the
// throttled free tier.
func NewXYZProvider(authKey string, opts ...ProviderOption) *XYZProvider {
	return &XYZProvider{
		cfg:     newProviderConfig(xyzGeocodeURL, opts),
		authKey: authKey,
	}
}

// Name implements Provider.
func (p *XYZProvider) Name() string { return "xyz" }

// flexFloat accepts both JSON numbers and numeric strings.
type flexFloat struct {
	val float64
	ok  bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil //nolint:nilerr // unparseable coordinates are a miss, not a decode failure
	}
	f.val, f.ok = v, true
	return nil
}

type xyzError struct {
	Code        json.RawMessage `json:"code"`
	Description string          `json:"description"`
	Message     string          `json:"message"`
}

func (e *xyzError) code() string {
	if e == nil {
		return ""
	}
	var n int
	if err := json.Unmarshal(e.Code, &n); err == nil {
		return fmt.Sprintf("%03d", n)
	}
	var s string
	if err := json.Unmarshal(e.Code, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(e.Code))
}

func (e *xyzError) text() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Message
}

type xyzResponse struct {
	Latt  flexFloat `json:"latt"`
	Longt flexFloat `json:"longt"`
	Error *xyzError `json:"error"`
}

// Geocode implements Provider.
func (p *XYZProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	params := url.Values{"json": {"1"}}
	if p.authKey != "" {
		params.Set("auth", p.authKey)
	}
	if p.cfg.region != "" {
		params.Set("region", p.cfg.region)
	}
	reqURL := strings.TrimRight(p.cfg.baseURL, "/") + "/" + url.PathEscape(address) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: xyz build request")
	}

	resp, err := p.cfg.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: xyz request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: xyz returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	xr, err := fetcher.DecodeJSON[xyzResponse](resp.Body, 0)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: xyz parse response")
	}

	if xr.Error != nil {
		if xr.Error.code() == xyzThrottled {
			return nil, resilience.NewTransientError(
				eris.Errorf("geocode: xyz throttled: %s", xr.Error.text()), http.StatusTooManyRequests)
		}
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	if !xr.Latt.ok || !xr.Longt.ok {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	return &Result{
		Latitude:  xr.Latt.val,
		Longitude: xr.Longt.val,
		Source:    p.Name(),
		Matched:   true,
	}, nil
}
