package geocode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// DefaultRadiusKM is how far a cached coordinate may sit from a query
// point and still answer for it.
const DefaultRadiusKM = 20.0

const earthRadiusKM = 6371.0

// Unknown marks a coordinate whose country could not be resolved.
// Unknown is never written to the cache, so later runs retry it.
const Unknown = "Unknown"

// Cache maps rounded "lat,lon" keys to country names. Entries keep
// their insertion order: proximity scans return the first entry in
// that order, and the saved file lists keys the same way.
type Cache struct {
	keys    []string
	entries map[string]string
}

func NewCache() *Cache {
	return &Cache{entries: map[string]string{}}
}

// Key rounds a coordinate to the cache grid resolution.
func Key(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

func parseKey(k string) (float64, float64, error) {
	las, los, ok := strings.Cut(k, ",")
	if !ok {
		return 0, 0, fmt.Errorf("malformed key %q", k)
	}

	lat, err := strconv.ParseFloat(las, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse latitude %q: %w", las, err)
	}

	lon, err := strconv.ParseFloat(los, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse longitude %q: %w", los, err)
	}

	return lat, lon, nil
}

func (c *Cache) Len() int {
	return len(c.keys)
}

// Lookup returns the country recorded for the exact rounded coordinate.
func (c *Cache) Lookup(lat, lon float64) (string, bool) {
	country, ok := c.entries[Key(lat, lon)]
	return country, ok
}

// Nearby scans entries in insertion order and returns the first country
// recorded within radiusKM of the query point. The first close-enough
// entry wins, not the nearest one. Keys that fail to parse and entries
// without a real country name are skipped.
func (c *Cache) Nearby(lat, lon float64, radiusKM float64) (string, bool) {
	for _, k := range c.keys {
		clat, clon, err := parseKey(k)
		if err != nil {
			klog.V(2).Infof("skipping cache entry: %v", err)
			continue
		}

		v := c.entries[k]
		if v == "" || v == Unknown {
			continue
		}

		if d := Distance(lat, lon, clat, clon); d <= radiusKM {
			klog.V(2).Infof("%s is %.1f km from cached %s (%s)", Key(lat, lon), d, k, v)
			return v, true
		}
	}

	return "", false
}

// Record stores a country for a coordinate. Recording Unknown is a
// no-op. Re-recording a key overwrites its value in place.
func (c *Cache) Record(lat, lon float64, country string) {
	if country == "" || country == Unknown {
		klog.V(1).Infof("not caching %q for %s", country, Key(lat, lon))
		return
	}
	c.put(Key(lat, lon), country)
}

func (c *Cache) put(k string, country string) {
	if _, ok := c.entries[k]; !ok {
		c.keys = append(c.keys, k)
	}
	c.entries[k] = country
}

// Distance returns the great-circle distance between two coordinates in
// kilometers.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

// MarshalJSON writes the cache as a JSON object with keys in insertion
// order. encoding/json sorts map keys, which would reorder entries and
// change which one a proximity scan finds first on the next run.
func (c *Cache) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')

	for i, k := range c.keys {
		if i > 0 {
			b.WriteByte(',')
		}

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(c.entries[k])
		if err != nil {
			return nil, err
		}

		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}

	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping keys in file order.
func (c *Cache) UnmarshalJSON(data []byte) error {
	c.keys = nil
	c.entries = map[string]string{}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		k, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", tok)
		}

		var country string
		if err := dec.Decode(&country); err != nil {
			return fmt.Errorf("decode value for %q: %w", k, err)
		}

		c.put(k, country)
	}

	_, err = dec.Token()
	return err
}

// Load reads a cache file. A missing file yields an empty cache. A
// corrupt or unreadable one also yields an empty usable cache, with the
// failure returned so the caller can warn: organizing must proceed even
// when lookup history is gone.
func Load(path string) (*Cache, error) {
	bs, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewCache(), nil
	}
	if err != nil {
		return NewCache(), fmt.Errorf("read %s: %w", path, err)
	}

	c := NewCache()
	if err := json.Unmarshal(bs, c); err != nil {
		return NewCache(), fmt.Errorf("parse %s: %w", path, err)
	}

	return c, nil
}

// Save writes the cache to path via a temporary file and rename, so an
// interrupted run cannot truncate the previous file.
func (c *Cache) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	bs, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, bs, "", "  "); err != nil {
		return fmt.Errorf("indent: %w", err)
	}
	out.WriteByte('\n')

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, out.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}

	klog.V(1).Infof("saved %d cache entries to %s", c.Len(), path)
	return nil
}
