// Package geo computes great-circle distances and spatial cell keys.
package geo

import (
	"math"
	"slices"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/okian/truthfuse/internal/domain/model"
)

// EarthRadiusM is the mean earth radius in metres.
const EarthRadiusM = 6_371_008.8

// DefaultCellLevel yields cells roughly 1 km across.
const DefaultCellLevel = 13

func latLng(l model.Location) s2.LatLng {
	return s2.LatLngFromDegrees(l.Lat, l.Lon)
}

// Distance returns the great-circle distance between a and b in metres.
func Distance(a, b model.Location) float64 {
	return angleToMeters(latLng(a).Distance(latLng(b)))
}

// RoundedDistance returns Distance rounded to whole metres.
func RoundedDistance(a, b model.Location) float64 {
	return math.Round(Distance(a, b))
}

func angleToMeters(a s1.Angle) float64 {
	return a.Radians() * EarthRadiusM
}

// CoveringKeys returns the sorted tokens of every cell at level that
// intersects the cap of radiusM metres around loc. Two points within radiusM
// of each other always share at least one key.
func CoveringKeys(loc model.Location, radiusM float64, level int) []string {
	if level < 0 || level > s2.MaxLevel {
		level = DefaultCellLevel
	}
	center := s2.PointFromLatLng(latLng(loc))
	// One extra metre absorbs the rounding applied to reported distances.
	c := s2.CapFromCenterAngle(center, s1.Angle((radiusM+1)/EarthRadiusM))
	ids := s2.SimpleRegionCovering(c, center, level)
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.ToToken())
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// Valid reports whether loc is a finite coordinate within WGS84 bounds.
func Valid(loc model.Location) bool {
	if math.IsNaN(loc.Lat) || math.IsNaN(loc.Lon) || math.IsInf(loc.Lat, 0) || math.IsInf(loc.Lon, 0) {
		return false
	}
	return loc.Lat >= -90 && loc.Lat <= 90 && loc.Lon >= -180 && loc.Lon <= 180
}

// Offset returns the point displaced by north/east metres from loc. It is a
// flat-earth approximation, accurate to well under a metre for the short
// distances used when placing synthetic reports.
func Offset(loc model.Location, northM, eastM float64) model.Location {
	dLat := northM / EarthRadiusM
	dLon := eastM / (EarthRadiusM * math.Cos(loc.Lat*math.Pi/180))
	return model.Location{
		Lat: loc.Lat + dLat*180/math.Pi,
		Lon: loc.Lon + dLon*180/math.Pi,
	}
}
