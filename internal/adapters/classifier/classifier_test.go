package classifier_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/truthfuse/internal/adapters/classifier"
	. "github.com/smartystreets/goconvey/convey"
)

var img = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

func okHandler(calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		got, _ := io.ReadAll(f)
		if hdr.Filename != "report_image.jpg" || len(got) != len(img) {
			http.Error(w, "unexpected upload", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"verified":          true,
			"detected_category": "FIRE",
			"confidence":        0.91,
			"raw_detections":    []map[string]any{{"label": "fire", "score": 0.91}, {"label": "smoke", "score": 0.4}},
		})
	}
}

func TestClassify(t *testing.T) {
	Convey("Given a reachable classifier", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(okHandler(&calls))
		defer srv.Close()
		c := classifier.New(srv.URL)

		Convey("When an image is classified", func() {
			v := c.Classify(context.Background(), img)

			Convey("Then the verdict is decoded", func() {
				So(v.Fallback, ShouldBeFalse)
				So(v.Verified, ShouldBeTrue)
				So(v.Category, ShouldEqual, "fire")
				So(v.Confidence, ShouldEqual, 0.91)
				So(v.Labels, ShouldResemble, []string{"fire", "smoke"})
			})
		})

		Convey("When there is no image", func() {
			v := c.Classify(context.Background(), nil)

			Convey("Then the fallback is returned without a call", func() {
				So(v, ShouldResemble, classifier.Fallback())
				So(calls.Load(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a classifier answering a null category", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"verified":false,"detected_category":null,"confidence":0.1,"raw_detections":[]}`)
		}))
		defer srv.Close()

		Convey("Then a negative answer is not a fallback", func() {
			v := classifier.New(srv.URL).Classify(context.Background(), img)
			So(v.Fallback, ShouldBeFalse)
			So(v.Verified, ShouldBeFalse)
			So(v.Category, ShouldEqual, "")
		})
	})

	Convey("Given a slow classifier", t, func() {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)
		c := classifier.New(srv.URL, classifier.WithTimeout(50*time.Millisecond))

		Convey("When the timeout elapses", func() {
			start := time.Now()
			v := c.Classify(context.Background(), img)

			Convey("Then the fallback is returned promptly", func() {
				So(v.Fallback, ShouldBeTrue)
				So(time.Since(start), ShouldBeLessThan, 2*time.Second)
			})
		})
	})

	Convey("Given a failing classifier", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := classifier.New(srv.URL, classifier.WithBreaker(2, 250*time.Millisecond))
		ctx := context.Background()

		Convey("When failures reach the threshold", func() {
			So(c.Classify(ctx, img).Fallback, ShouldBeTrue)
			So(c.Classify(ctx, img).Fallback, ShouldBeTrue)

			Convey("Then the circuit opens and calls are skipped", func() {
				So(c.BreakerState(), ShouldEqual, classifier.Open)
				So(c.Classify(ctx, img).Fallback, ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 2)
				So(c.BreakerState().String(), ShouldEqual, "open")
			})

			Convey("Then after the reset timeout a single trial is allowed", func() {
				time.Sleep(350 * time.Millisecond)
				So(c.Classify(ctx, img).Fallback, ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 3)
				So(c.BreakerState(), ShouldEqual, classifier.Open)
			})
		})
	})

	Convey("Given a classifier that recovers", t, func() {
		var fail atomic.Bool
		fail.Store(true)
		var calls atomic.Int32
		ok := okHandler(&calls)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fail.Load() {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			ok(w, r)
		}))
		defer srv.Close()
		c := classifier.New(srv.URL, classifier.WithBreaker(1, 250*time.Millisecond))
		ctx := context.Background()

		Convey("When the half-open trial succeeds", func() {
			So(c.Classify(ctx, img).Fallback, ShouldBeTrue)
			So(c.BreakerState(), ShouldEqual, classifier.Open)
			fail.Store(false)
			time.Sleep(350 * time.Millisecond)
			v := c.Classify(ctx, img)

			Convey("Then the circuit closes again", func() {
				So(v.Fallback, ShouldBeFalse)
				So(c.BreakerState(), ShouldEqual, classifier.Closed)
			})
		})
	})

	Convey("Given a classifier with the breaker disabled", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		c := classifier.New(srv.URL, classifier.WithBreaker(0, 0))

		Convey("Then failures never open the circuit", func() {
			for i := 0; i < 5; i++ {
				So(c.Classify(context.Background(), img).Fallback, ShouldBeTrue)
			}
			So(c.BreakerState(), ShouldEqual, classifier.Closed)
		})
	})

	Convey("Given a rate-limited classifier", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(okHandler(&calls))
		defer srv.Close()
		c := classifier.New(srv.URL, classifier.WithRateLimit(0.001, 1))

		Convey("When two calls arrive back to back", func() {
			first := c.Classify(context.Background(), img)
			second := c.Classify(context.Background(), img)

			Convey("Then the second falls back without waiting", func() {
				So(first.Fallback, ShouldBeFalse)
				So(second.Fallback, ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an unreachable classifier", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		Convey("Then the fallback is returned", func() {
			So(classifier.New(url).Classify(context.Background(), img).Fallback, ShouldBeTrue)
		})
	})

	Convey("Given the disabled classifier", t, func() {
		So(classifier.Disabled{}.Classify(context.Background(), img), ShouldResemble, classifier.Fallback())
	})
}
