package geocode

import (
	"context"

	"k8s.io/klog/v2"
)

// Resolver answers country lookups from a Cache first and falls back to
// a Geocoder, recording what the network teaches it.
type Resolver struct {
	cache    *Cache
	geo      Geocoder
	radiusKM float64
}

func NewResolver(cache *Cache, geo Geocoder) *Resolver {
	return &Resolver{cache: cache, geo: geo, radiusKM: DefaultRadiusKM}
}

// Country names the country containing a coordinate: an exact cache
// hit, then any cached entry within the proximity radius, then the
// network. Lookup failures and empty answers come back as Unknown and
// are never cached, so a later file at the same spot retries.
func (r *Resolver) Country(ctx context.Context, lat float64, lon float64) string {
	if country, ok := r.cache.Lookup(lat, lon); ok {
		klog.V(1).Infof("cache hit %s: %s", Key(lat, lon), country)
		return country
	}

	if country, ok := r.cache.Nearby(lat, lon, r.radiusKM); ok {
		klog.V(1).Infof("nearby hit %s: %s", Key(lat, lon), country)
		return country
	}

	country, err := r.geo.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		klog.V(1).Infof("reverse geocode %s failed: %v", Key(lat, lon), err)
		return Unknown
	}
	if country == "" {
		country = Unknown
	}

	r.cache.Record(lat, lon, country)
	return country
}
