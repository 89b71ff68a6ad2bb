package forensics

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder for container sniffing
	_ "image/jpeg" // register decoder for container sniffing
	_ "image/png"  // register decoder for container sniffing
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/okian/truthfuse/internal/domain/model"
)

// Metadata is the subset of embedded image metadata the verifier inspects.
type Metadata struct {
	HasGPS   bool
	Location model.Location
	HasTime  bool
	TakenAt  time.Time
}

// MetadataReader extracts Metadata from raw image bytes. It returns ErrCorrupt
// when the bytes are not an image at all.
type MetadataReader interface {
	Read(img []byte) (Metadata, error)
}

// ExifReader reads GPS and capture time from EXIF tags.
type ExifReader struct{}

// Read implements MetadataReader.
func (ExifReader) Read(img []byte) (Metadata, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(img)); err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	x, err := exif.Decode(bytes.NewReader(img))
	if err != nil {
		// A valid image without an EXIF block carries neither GPS nor time.
		return Metadata{}, nil
	}

	var md Metadata
	if lat, lon, err := x.LatLong(); err == nil {
		md.HasGPS = true
		md.Location = model.Location{Lat: lat, Lon: lon}
	}
	if ts, ok := captureTime(x); ok {
		md.HasTime = true
		md.TakenAt = ts
	}
	return md, nil
}

// exifTimeLayout is the EXIF 2.x date format. The tag carries no zone, so
// the wall clock is taken as UTC rather than the host's local zone.
const exifTimeLayout = "2006:01:02 15:04:05"

// captureTime reads DateTimeOriginal, the moment the shutter fired. The
// file-level DateTime changes on every edit and is ignored.
func captureTime(x *exif.Exif) (time.Time, bool) {
	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return time.Time{}, false
	}
	raw, err := tag.StringVal()
	if err != nil {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(exifTimeLayout, strings.TrimSpace(strings.TrimRight(raw, "\x00")), time.UTC)
	if err != nil || ts.IsZero() {
		return time.Time{}, false
	}
	return ts, true
}
