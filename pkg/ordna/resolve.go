package ordna

import "time"

// Resolve picks the capture time and coordinate for one file. The
// capture time falls back to the file's modified time, so it is always
// present. A coordinate survives only when both halves exist and are in
// range; partial or out-of-range GPS data yields none.
func Resolve(m Metadata, mtime time.Time) (time.Time, *Coordinate) {
	taken := m.Taken
	if taken.IsZero() {
		taken = mtime
	}
	if taken.IsZero() {
		taken = time.Now()
	}

	if m.Lat == nil || m.Lon == nil {
		return taken, nil
	}

	lat, lon := *m.Lat, *m.Lon
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return taken, nil
	}

	return taken, &Coordinate{Lat: lat, Lon: lon}
}
