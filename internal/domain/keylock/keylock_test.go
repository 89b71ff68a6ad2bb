package keylock

import (
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLocker(t *testing.T) {
	Convey("Given a key locker", t, func() {
		l := New()

		Convey("When many goroutines increment under the same key", func() {
			var wg sync.WaitGroup
			counter := 0
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock := l.Lock("cell")
					counter++
					unlock()
				}()
			}
			wg.Wait()

			Convey("Then no increment is lost and the entry is released", func() {
				So(counter, ShouldEqual, 100)
				So(l.Len(), ShouldEqual, 0)
			})
		})

		Convey("When two different keys are held", func() {
			a := l.Lock("a")
			b := l.Lock("b")

			Convey("Then both are tracked until released", func() {
				So(l.Len(), ShouldEqual, 2)
				a()
				b()
				So(l.Len(), ShouldEqual, 0)
			})
		})

		Convey("When unlock is called twice", func() {
			unlock := l.Lock("k")
			unlock()

			Convey("Then the second call is a no-op", func() {
				So(unlock, ShouldNotPanic)
				So(l.Len(), ShouldEqual, 0)
			})
		})

		Convey("When overlapping key sets are locked concurrently", func() {
			var wg sync.WaitGroup
			var inside, peak int32
			for i := 0; i < 20; i++ {
				keys := []string{"a", "b", "c"}
				if i%2 == 1 {
					keys = []string{"c", "b", "b"}
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock := l.LockAll(keys...)
					defer unlock()
					n := atomic.AddInt32(&inside, 1)
					for {
						p := atomic.LoadInt32(&peak)
						if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
							break
						}
					}
					atomic.AddInt32(&inside, -1)
				}()
			}
			wg.Wait()

			Convey("Then holders never overlap and nothing deadlocks", func() {
				So(atomic.LoadInt32(&peak), ShouldEqual, 1)
				So(l.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the zero value is used", func() {
			var zero Locker
			unlock := zero.Lock("k")
			unlock()

			Convey("Then it behaves like New", func() {
				So(zero.Len(), ShouldEqual, 0)
			})
		})
	})
}
