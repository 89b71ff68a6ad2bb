package matching_test

import (
	"testing"

	"github.com/okian/truthfuse/internal/domain/geo"
	"github.com/okian/truthfuse/internal/domain/matching"
	"github.com/okian/truthfuse/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var origin = model.Location{Lat: 19.0760, Lon: 72.8777}

func event(id, name string, loc model.Location, keywords ...string) model.Event {
	return model.Event{
		ID:       id,
		Name:     name,
		Location: loc,
		Active:   true,
		Reporters: []model.Reporter{
			{ReporterID: "seed-" + id, Role: model.RoleCitizen, Keywords: keywords},
		},
	}
}

func report(title string, loc model.Location) model.Report {
	return model.Report{Title: title, Keywords: model.TitleKeywords(title), Location: loc}
}

func TestFindMatch(t *testing.T) {
	Convey("Given a default matcher", t, func() {
		m := matching.NewMatcher()

		Convey("When there are no active events", func() {
			_, ok := m.FindMatch(report("Fire at Metro Station", origin), nil)

			Convey("Then nothing matches", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When every event is 600 m away", func() {
			far := []model.Event{
				event("n", "FIRE AT METRO STATION", geo.Offset(origin, 600, 0), "fire", "at", "metro", "station"),
				event("e", "FIRE AT METRO STATION", geo.Offset(origin, 0, 600), "fire", "at", "metro", "station"),
			}
			_, ok := m.FindMatch(report("Fire at Metro Station", origin), far)

			Convey("Then the radius cutoff wins over identical wording", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When an unrelated event sits 30 m away", func() {
			ev := event("near", "FIRE AT METRO STATION", geo.Offset(origin, 30, 0), "fire", "at", "metro", "station")
			r := report("Water leakage", origin)

			Convey("Then proximity alone merges it", func() {
				So(matching.TitleSimilarity(r.Title, ev.Name), ShouldBeLessThan, 0.85)
				match, ok := m.FindMatch(r, []model.Event{ev})
				So(ok, ShouldBeTrue)
				So(match.Event.ID, ShouldEqual, "near")
				So(match.Reason, ShouldEqual, matching.ReasonProximity)
				So(match.Distance, ShouldEqual, 30)
			})
		})

		Convey("When an unrelated event sits 200 m away", func() {
			ev := event("mid", "FIRE AT METRO STATION", geo.Offset(origin, 200, 0), "fire", "at", "metro", "station")
			_, ok := m.FindMatch(report("Water leakage", origin), []model.Event{ev})

			Convey("Then it is not eligible", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When an event 300 m away shares an inflected keyword", func() {
			ev := event("kw", "ROAD FLOODED", geo.Offset(origin, 300, 0), "road", "flooded")
			match, ok := m.FindMatch(report("Flooding near school", origin), []model.Event{ev})

			Convey("Then the stems overlap", func() {
				So(ok, ShouldBeTrue)
				So(match.Reason, ShouldEqual, matching.ReasonKeyword)
			})
		})

		Convey("When the title closely resembles the event name", func() {
			ev := event("ttl", "GAS LEAK IN SECTOR 7", geo.Offset(origin, 400, 0))
			match, ok := m.FindMatch(report("gas leak in sector 9", origin), []model.Event{ev})

			Convey("Then title similarity makes it eligible", func() {
				So(ok, ShouldBeTrue)
				So(match.Reason, ShouldEqual, matching.ReasonTitle)
			})
		})

		Convey("When several events are eligible", func() {
			events := []model.Event{
				event("far", "FIRE", geo.Offset(origin, 300, 0), "fire"),
				event("close", "FIRE", geo.Offset(origin, 100, 0), "fire"),
				event("closeTwin", "FIRE", geo.Offset(origin, -100, 0), "fire"),
			}
			match, ok := m.FindMatch(report("fire", origin), events)

			Convey("Then the nearest wins and ties keep the first", func() {
				So(ok, ShouldBeTrue)
				So(match.Event.ID, ShouldEqual, "close")
			})
		})
	})

	Convey("Given a matcher with a wider radius", t, func() {
		m := matching.NewMatcher(matching.WithSpatialRadius(1000), matching.WithAutoMergeRadius(0))
		ev := event("wide", "FIRE", geo.Offset(origin, 600, 0), "fire")

		Convey("Then the 600 m event is considered", func() {
			_, ok := m.FindMatch(report("fire", origin), []model.Event{ev})
			So(ok, ShouldBeTrue)
		})
	})
}
