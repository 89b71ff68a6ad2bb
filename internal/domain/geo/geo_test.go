package geo_test

import (
	"math"
	"slices"
	"testing"

	"github.com/okian/truthfuse/internal/domain/geo"
	"github.com/okian/truthfuse/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDistance(t *testing.T) {
	Convey("Given two points", t, func() {
		origin := model.Location{Lat: 28.6139, Lon: 77.2090}

		Convey("When they are identical", func() {
			Convey("Then the distance is zero", func() {
				So(geo.Distance(origin, origin), ShouldEqual, 0)
			})
		})

		Convey("When one is displaced 300 m north", func() {
			p := geo.Offset(origin, 300, 0)

			Convey("Then the distance is about 300 m", func() {
				So(geo.Distance(origin, p), ShouldAlmostEqual, 300, 0.5)
				So(geo.RoundedDistance(origin, p), ShouldEqual, 300)
			})
		})

		Convey("When one is displaced diagonally", func() {
			p := geo.Offset(origin, 400, 300)

			Convey("Then the distance follows the hypotenuse", func() {
				So(geo.Distance(origin, p), ShouldAlmostEqual, 500, 0.5)
			})
		})

		Convey("When measuring a known city pair", func() {
			paris := model.Location{Lat: 48.8566, Lon: 2.3522}
			london := model.Location{Lat: 51.5074, Lon: -0.1278}

			Convey("Then the haversine distance is about 343.5 km", func() {
				So(math.Abs(geo.Distance(paris, london)-343_500), ShouldBeLessThan, 1_000)
			})
		})
	})
}

func TestCoveringKeys(t *testing.T) {
	Convey("Given a point and its neighbourhood", t, func() {
		a := model.Location{Lat: 40.7128, Lon: -74.0060}
		far := model.Location{Lat: 34.0522, Lon: -118.2437}

		Convey("Then the keys are sorted and unique", func() {
			keys := geo.CoveringKeys(a, 500, geo.DefaultCellLevel)
			So(keys, ShouldNotBeEmpty)
			So(slices.IsSorted(keys), ShouldBeTrue)
			So(len(slices.Compact(slices.Clone(keys))), ShouldEqual, len(keys))
		})

		Convey("Then points within the radius always share a key", func() {
			for _, off := range [][2]float64{{0, 0}, {300, 0}, {0, -450}, {-350, 350}, {499, 0}} {
				b := geo.Offset(a, off[0], off[1])
				ka := geo.CoveringKeys(a, 500, geo.DefaultCellLevel)
				kb := geo.CoveringKeys(b, 500, geo.DefaultCellLevel)
				shared := false
				for _, k := range kb {
					if slices.Contains(ka, k) {
						shared = true
					}
				}
				So(shared, ShouldBeTrue)
			}
		})

		Convey("Then distant points share nothing", func() {
			ka := geo.CoveringKeys(a, 500, geo.DefaultCellLevel)
			for _, k := range geo.CoveringKeys(far, 500, geo.DefaultCellLevel) {
				So(ka, ShouldNotContain, k)
			}
		})

		Convey("Then an out-of-range level falls back to the default", func() {
			So(geo.CoveringKeys(a, 100, 99), ShouldResemble, geo.CoveringKeys(a, 100, geo.DefaultCellLevel))
		})
	})
}

func TestValid(t *testing.T) {
	Convey("Given coordinates", t, func() {
		So(geo.Valid(model.Location{Lat: 10, Lon: 20}), ShouldBeTrue)
		So(geo.Valid(model.Location{Lat: 91, Lon: 0}), ShouldBeFalse)
		So(geo.Valid(model.Location{Lat: 0, Lon: -181}), ShouldBeFalse)
		So(geo.Valid(model.Location{Lat: math.NaN(), Lon: 0}), ShouldBeFalse)
	})
}
