package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/truthfuse/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When recording keys", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the key is new", func() {
				seen := d.SeenAndRecord(ctx, dedupe.Key("u1", "k1"))

				Convey("Then it should return false and record the key", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key was already seen", func() {
				d.SeenAndRecord(ctx, dedupe.Key("u1", "k1"))
				seen := d.SeenAndRecord(ctx, dedupe.Key("u1", "k1"))

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And another reporter reuses the same key", func() {
				d.SeenAndRecord(ctx, dedupe.Key("u1", "k1"))
				seen := d.SeenAndRecord(ctx, dedupe.Key("u2", "k1"))

				Convey("Then keys are scoped per reporter", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 2)
				})
			})
		})

		Convey("When a key is unrecorded", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "a")
			d.Unrecord(ctx, "a")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})

		Convey("When the bound is reached", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, k := range []string{"a", "b", "c", "d"} {
				d.SeenAndRecord(ctx, k)
			}

			Convey("Then the oldest key is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})

		Convey("When unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 1000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i))
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.SeenAndRecord(ctx, "k-0"), ShouldBeTrue)
			})
		})

		Convey("When many goroutines race on one key", func() {
			d := dedupe.NewInMemoryDeduper()
			var fresh atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 64; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(ctx, "same") {
						fresh.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one caller records it", func() {
				So(fresh.Load(), ShouldEqual, 1)
			})
		})
	})
}
