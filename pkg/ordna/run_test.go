package ordna

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tstromberg/ordna/pkg/geocode"
)

// fakeExtractor serves canned metadata by base name.
type fakeExtractor struct {
	meta map[string]Metadata
}

func (f fakeExtractor) Extract(path string) Metadata { return f.meta[filepath.Base(path)] }
func (f fakeExtractor) Close() error                 { return nil }

// fakeGeocoder answers from a function and counts calls. A nil
// function makes every call an error.
type fakeGeocoder struct {
	fn    func(lat, lon float64) (string, error)
	calls int
}

func (f *fakeGeocoder) ReverseGeocode(_ context.Context, lat float64, lon float64) (string, error) {
	f.calls++
	if f.fn == nil {
		return "", fmt.Errorf("unexpected lookup for %.4f,%.4f", lat, lon)
	}
	return f.fn(lat, lon)
}

func testConfig(t *testing.T, src string) *Config {
	t.Helper()
	c := &Config{SrcDir: src, DstDir: filepath.Join(t.TempDir(), "organized")}
	require.NoError(t, c.Validate())
	return c
}

func run(t *testing.T, c *Config, ex Extractor, geo geocode.Geocoder, cache *geocode.Cache) *Result {
	t.Helper()
	if cache == nil {
		cache = geocode.NewCache()
	}
	res, err := organize(context.Background(), c, ex, geocode.NewResolver(cache, geo), cache)
	require.NoError(t, err)
	return res
}

func TestOrganizeEndToEnd(t *testing.T) {
	src := t.TempDir()
	touch(t, filepath.Join(src, "a.jpg"))

	c := testConfig(t, src)
	ex := fakeExtractor{meta: map[string]Metadata{
		"a.jpg": {Taken: time.Date(2024, 10, 5, 14, 3, 0, 0, time.UTC), Lat: f64(35.68), Lon: f64(139.76)},
	}}
	geo := &fakeGeocoder{fn: func(_, _ float64) (string, error) { return "Japan", nil }}

	res := run(t, c, ex, geo, nil)
	assert.Equal(t, 1, res.Transferred)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 1, geo.calls)

	bs, err := os.ReadFile(filepath.Join(c.DstDir, "2024-10-Japan", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(bs))

	// The lookup is on disk for the next run.
	cache, err := geocode.Load(c.CacheFile)
	require.NoError(t, err)
	country, ok := cache.Lookup(35.68, 139.76)
	assert.True(t, ok)
	assert.Equal(t, "Japan", country)
}

func TestOrganizeProximityReuse(t *testing.T) {
	src := t.TempDir()
	touch(t, filepath.Join(src, "b.jpg"))

	c := testConfig(t, src)
	cache := geocode.NewCache()
	cache.Record(35.68, 139.76, "Japan")

	// About 15 km north of the cached coordinate.
	ex := fakeExtractor{meta: map[string]Metadata{
		"b.jpg": {Taken: octo, Lat: f64(35.815), Lon: f64(139.76)},
	}}
	geo := &fakeGeocoder{}

	res := run(t, c, ex, geo, cache)
	assert.Equal(t, 1, res.Transferred)
	assert.Equal(t, 0, geo.calls)

	_, err := os.Stat(filepath.Join(c.DstDir, "2024-10-Japan", "b.jpg"))
	assert.NoError(t, err)
}

func TestOrganizeReportOnly(t *testing.T) {
	src := t.TempDir()
	touch(t, filepath.Join(src, "a.jpg"))
	touch(t, filepath.Join(src, "b.jpg"))
	touch(t, filepath.Join(src, "c.jpg"))

	c := testConfig(t, src)
	c.ReportOnly = true

	ex := fakeExtractor{meta: map[string]Metadata{
		"a.jpg": {Taken: octo, Lat: f64(35.68), Lon: f64(139.76)},
		"b.jpg": {Taken: octo, Lat: f64(-33.87), Lon: f64(151.21)},
		"c.jpg": {Taken: octo},
	}}
	geo := &fakeGeocoder{fn: func(lat, _ float64) (string, error) {
		if lat > 0 {
			return "Japan", nil
		}
		return "", fmt.Errorf("service unavailable")
	}}

	res := run(t, c, ex, geo, nil)
	assert.Equal(t, 0, res.Transferred)
	require.Len(t, res.Decisions, 3)

	f, err := os.Open(c.ReportFile)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	countries := []string{rows[1][4], rows[2][4], rows[3][4]}
	assert.Equal(t, []string{"Japan", "Unknown", ""}, countries)

	// Unknown and missing countries fold into the date-only folder.
	assert.Equal(t, "2024-10", rows[2][5])
	assert.Equal(t, "2024-10", rows[3][5])

	// Nothing was copied, and the failed lookup was not cached.
	_, err = os.Stat(filepath.Join(c.DstDir, "2024-10-Japan"))
	assert.True(t, os.IsNotExist(err))

	cache, err := geocode.Load(c.CacheFile)
	require.NoError(t, err)
	_, ok := cache.Lookup(-33.87, 151.21)
	assert.False(t, ok)
}

func TestOrganizeDryRun(t *testing.T) {
	src := t.TempDir()
	touch(t, filepath.Join(src, "a.jpg"))

	c := testConfig(t, src)
	c.DryRun = true

	ex := fakeExtractor{meta: map[string]Metadata{"a.jpg": {Taken: octo}}}
	res := run(t, c, ex, &fakeGeocoder{}, nil)

	require.Len(t, res.Decisions, 1)
	assert.Equal(t, filepath.Join(c.DstDir, "2024-10", "a.jpg"), res.Decisions[0].Dest)

	_, err := os.Stat(res.Decisions[0].Dest)
	assert.True(t, os.IsNotExist(err))

	// Geocoding progress is still flushed.
	_, err = os.Stat(c.CacheFile)
	assert.NoError(t, err)
}

func TestOrganizeIdempotentReruns(t *testing.T) {
	src := t.TempDir()
	touch(t, filepath.Join(src, "a.jpg"))

	c := testConfig(t, src)
	ex := fakeExtractor{meta: map[string]Metadata{"a.jpg": {Taken: octo}}}

	run(t, c, ex, &fakeGeocoder{}, nil)
	run(t, c, ex, &fakeGeocoder{}, nil)
	res := run(t, c, ex, &fakeGeocoder{}, nil)
	assert.Equal(t, 1, res.Transferred)

	// Suffixes continue where the previous run left off, and nothing
	// is overwritten.
	dir := filepath.Join(c.DstDir, "2024-10")
	for _, name := range []string{"a.jpg", "a_1.jpg", "a_2.jpg"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(dir, "a_3.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestOrganizeMove(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "a.jpg")
	touch(t, path)

	c := testConfig(t, src)
	c.Move = true

	ex := fakeExtractor{meta: map[string]Metadata{"a.jpg": {Taken: octo}}}
	res := run(t, c, ex, &fakeGeocoder{}, nil)
	assert.Equal(t, 1, res.Transferred)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(c.DstDir, "2024-10", "a.jpg"))
	assert.NoError(t, err)
}

func TestOrganizeTwoLevelSkipsGeocoding(t *testing.T) {
	src := t.TempDir()
	touch(t, filepath.Join(src, "a.jpg"))

	c := testConfig(t, src)
	c.TwoLevel = true

	ex := fakeExtractor{meta: map[string]Metadata{
		"a.jpg": {Taken: octo, Lat: f64(35.68), Lon: f64(139.76)},
	}}
	geo := &fakeGeocoder{fn: func(_, _ float64) (string, error) { return "Japan", nil }}

	run(t, c, ex, geo, nil)
	assert.Equal(t, 0, geo.calls)

	_, err := os.Stat(filepath.Join(c.DstDir, "2024-10", "a.jpg"))
	assert.NoError(t, err)
}

func TestOrganizeTransferFailureContinues(t *testing.T) {
	src := t.TempDir()
	touch(t, filepath.Join(src, "apr.jpg"))
	touch(t, filepath.Join(src, "nov.jpg"))

	c := testConfig(t, src)
	c.TwoLevel = true

	// A plain file where the April folder should go makes that
	// transfer fail.
	require.NoError(t, os.MkdirAll(c.DstDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(c.DstDir, "2024-04"), []byte("in the way"), 0o644))

	ex := fakeExtractor{meta: map[string]Metadata{
		"apr.jpg": {Taken: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)},
		"nov.jpg": {Taken: time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC)},
	}}

	res := run(t, c, ex, &fakeGeocoder{}, nil)
	assert.Equal(t, 1, res.Transferred)
	assert.Equal(t, 1, res.Failed)
	assert.Error(t, res.Decisions[0].Err)

	_, err := os.Stat(filepath.Join(c.DstDir, "2024-11", "nov.jpg"))
	assert.NoError(t, err)
}

func TestFailureSamples(t *testing.T) {
	ds := []*PlacementDecision{
		{Source: "/src/ok.jpg"},
		{Source: "/src/b.jpg", Err: errors.New("disk full")},
		{Source: "/src/c.jpg", Err: errors.New("gone")},
	}

	assert.Equal(t, []string{"/src/b.jpg: disk full", "/src/c.jpg: gone"}, failureSamples(ds, 10))
	assert.Equal(t, []string{"/src/b.jpg: disk full"}, failureSamples(ds, 1))
	assert.Empty(t, failureSamples(nil, 10))
}

func TestOrganizeMtimeFallback(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "noexif.jpg")
	touch(t, path)
	mtime := time.Date(2023, 7, 9, 8, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	c := testConfig(t, src)
	run(t, c, fakeExtractor{}, &fakeGeocoder{}, nil)

	_, err := os.Stat(filepath.Join(c.DstDir, "2023-07", "noexif.jpg"))
	assert.NoError(t, err)
}

func TestOrganizeNoFiles(t *testing.T) {
	c := testConfig(t, t.TempDir())
	res := run(t, c, fakeExtractor{}, &fakeGeocoder{}, nil)
	assert.Empty(t, res.Decisions)
	assert.Equal(t, 0, res.Transferred)
}

func TestOrganizeCancelled(t *testing.T) {
	src := t.TempDir()
	touch(t, filepath.Join(src, "a.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testConfig(t, src)
	cache := geocode.NewCache()
	_, err := organize(ctx, c, fakeExtractor{}, geocode.NewResolver(cache, &fakeGeocoder{}), cache)
	assert.Error(t, err)
}
