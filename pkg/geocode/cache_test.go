package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"Herzl 1, Tel Aviv", "herzl 1,  tel aviv"},
		{" Main St ", "MAIN ST"},
		{"Ｍａｉｎ Ｓｔ", "main st"},
		{"רחוב הרצל 5", "רחוב  הרצל 5 "},
	}
	for _, tt := range tests {
		assert.Equal(t, cacheKey(tt.a), cacheKey(tt.b), "%q vs %q", tt.a, tt.b)
	}
	assert.NotEqual(t, cacheKey("Herzl 1"), cacheKey("Herzl 2"))
}

func TestMemoryCache(t *testing.T) {
	c := newMemoryCache()

	_, ok := c.get("a")
	assert.False(t, ok)

	c.put("a", cacheEntry{res: Resolution{Latitude: 1, Longitude: 2}})
	c.put("b", cacheEntry{failure: &ResolutionError{Kind: NoMatch, Address: "b"}})

	e, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1.0, e.res.Latitude)

	matched, failed := c.counts()
	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, failed)

	assert.True(t, c.delete("a"))
	assert.False(t, c.delete("a"))
}
