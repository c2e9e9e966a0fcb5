package ordna

import (
	"fmt"
	"os"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"k8s.io/klog/v2"
)

var exifDate = "2006:01:02 15:04:05"

// dateTags are tried in order; the first parseable one wins.
var dateTags = []string{"DateTimeOriginal", "CreateDate", "ModifyDate"}

func init() {
	exif.RegisterParsers(mknote.All...)
}

// Metadata is what an extractor recovers from one file. Zero fields
// mean the tag was absent or unreadable.
type Metadata struct {
	Taken time.Time
	Lat   *float64
	Lon   *float64
}

// Extractor pulls capture metadata out of a file. Implementations do
// not fail: missing or malformed metadata yields empty fields.
type Extractor interface {
	Extract(path string) Metadata
	Close() error
}

// NewExtractor returns the best extractor available. With noHEIF set,
// or when no exiftool binary is installed, extraction degrades to the
// raw decoder.
func NewExtractor(noHEIF bool) Extractor {
	if noHEIF {
		klog.V(1).Infof("using raw EXIF decoder")
		return RawExtractor{}
	}

	e, err := NewExiftoolExtractor()
	if err != nil {
		klog.Warningf("exiftool unavailable, using raw EXIF decoder: %v", err)
		return RawExtractor{}
	}
	return e
}

// ExiftoolExtractor reads metadata through an exiftool subprocess,
// which understands HEIC/HEIF and video containers.
type ExiftoolExtractor struct {
	et *exiftool.Exiftool
}

func NewExiftoolExtractor() (*ExiftoolExtractor, error) {
	et, err := exiftool.NewExiftool(exiftool.NoPrintConversion())
	if err != nil {
		return nil, fmt.Errorf("exiftool: %w", err)
	}
	return &ExiftoolExtractor{et: et}, nil
}

func (e *ExiftoolExtractor) Close() error {
	return e.et.Close()
}

func (e *ExiftoolExtractor) Extract(path string) Metadata {
	m := Metadata{}

	fis := e.et.ExtractMetadata(path)
	if len(fis) == 0 {
		return m
	}
	fi := fis[0]
	if fi.Err != nil {
		klog.V(1).Infof("extract %s: %v", path, fi.Err)
		return m
	}

	for _, tag := range dateTags {
		ds, err := fi.GetString(tag)
		if err != nil {
			continue
		}
		if ts, err := time.Parse(exifDate, ds); err == nil {
			m.Taken = ts
			break
		}
	}

	lat, latErr := fi.GetFloat("GPSLatitude")
	lon, lonErr := fi.GetFloat("GPSLongitude")
	if latErr == nil && lonErr == nil {
		m.Lat = &lat
		m.Lon = &lon
	}

	return m
}

// RawExtractor decodes EXIF straight from the file bytes. It only
// understands JPEG and TIFF containers, so HEIC and video files come
// back empty and fall through to their modified time.
type RawExtractor struct{}

func (RawExtractor) Close() error { return nil }

func (RawExtractor) Extract(path string) Metadata {
	m := Metadata{}

	f, err := os.Open(path)
	if err != nil {
		klog.V(1).Infof("open %s: %v", path, err)
		return m
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		klog.V(1).Infof("decode %s: %v", path, err)
		return m
	}

	if ts, err := x.DateTime(); err == nil {
		m.Taken = ts
	}

	if lat, lon, err := x.LatLong(); err == nil {
		m.Lat = &lat
		m.Lon = &lon
	}

	return m
}
