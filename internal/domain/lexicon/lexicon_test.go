package lexicon_test

import (
	"testing"

	"github.com/okian/truthfuse/internal/domain/lexicon"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTokenize(t *testing.T) {
	Convey("Given text with punctuation and mixed case", t, func() {
		Convey("Then it splits on non-alphanumerics", func() {
			So(lexicon.Tokenize("Not on FIRE - false alarm!"), ShouldResemble,
				[]string{"not", "on", "fire", "false", "alarm"})
			So(lexicon.Tokenize("Route 66, exit-4"), ShouldResemble, []string{"route", "66", "exit", "4"})
			So(lexicon.Tokenize(" ... "), ShouldBeEmpty)
		})
	})
}

func TestStem(t *testing.T) {
	Convey("Given inflected words", t, func() {
		Convey("Then inflections share a stem", func() {
			So(lexicon.Stem("Flooding"), ShouldEqual, lexicon.Stem("flooded"))
			So(lexicon.Stem("fires"), ShouldEqual, lexicon.Stem("fire"))
			So(lexicon.Stem("false"), ShouldEqual, "fals")
		})
	})
}

func TestSharesStem(t *testing.T) {
	Convey("Given two keyword sets", t, func() {
		Convey("When an inflection overlaps", func() {
			So(lexicon.SharesStem([]string{"flooding", "road"}, []string{"flooded", "street"}), ShouldBeTrue)
		})

		Convey("When nothing overlaps", func() {
			So(lexicon.SharesStem([]string{"fire"}, []string{"flood"}), ShouldBeFalse)
		})

		Convey("When either side is empty", func() {
			So(lexicon.SharesStem(nil, []string{"fire"}), ShouldBeFalse)
			So(lexicon.SharesStem([]string{"fire"}, nil), ShouldBeFalse)
		})
	})
}

func TestDenial(t *testing.T) {
	Convey("Given report titles", t, func() {
		Convey("When the title denies the incident", func() {
			root, ok := lexicon.Denial("not on fire - false alarm")

			Convey("Then the first denial root is returned", func() {
				So(ok, ShouldBeTrue)
				So(root, ShouldEqual, "not")
			})
		})

		Convey("When the title calls it a hoax", func() {
			root, ok := lexicon.Denial("Bridge collapse is a HOAX")
			So(ok, ShouldBeTrue)
			So(root, ShouldEqual, "hoax")
		})

		Convey("When the title reports fake news", func() {
			_, ok := lexicon.Denial("fake video of explosion")
			So(ok, ShouldBeTrue)
		})

		Convey("When the title is an ordinary report", func() {
			_, ok := lexicon.Denial("Fire at Metro Station")
			So(ok, ShouldBeFalse)
		})
	})
}
