package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/truthfuse/internal/adapters/classifier"
	"github.com/okian/truthfuse/internal/adapters/http/api"
	"github.com/okian/truthfuse/internal/adapters/notifier"
	"github.com/okian/truthfuse/internal/adapters/repository"
	app "github.com/okian/truthfuse/internal/app"
	"github.com/okian/truthfuse/internal/config"
	"github.com/okian/truthfuse/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestConfigLoading(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		_ = os.Setenv("TRUTHFUSE_ADDR", ":8080")
		_ = os.Setenv("TRUTHFUSE_QUEUE_SIZE", "1000")
		_ = os.Setenv("TRUTHFUSE_WORKER_COUNT", "4")
		defer func() {
			_ = os.Unsetenv("TRUTHFUSE_ADDR")
			_ = os.Unsetenv("TRUTHFUSE_QUEUE_SIZE")
			_ = os.Unsetenv("TRUTHFUSE_WORKER_COUNT")
		}()

		convey.Convey("Then configuration should be loadable", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})
	})
}

func TestBuilders(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()
		log := logger.Discard()

		convey.Convey("When building the store", func() {
			store, err := buildStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer store.Close()

			convey.Convey("Then the memory store is used", func() {
				_, ok := store.(*repository.MemoryStore)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When sqlite is configured", func() {
			cfg.StoreDriver = config.StoreSQLite
			cfg.StoreDSN = "file::memory:"
			store, err := buildStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer store.Close()

			convey.Convey("Then a SQL store is opened", func() {
				_, ok := store.(*repository.SQLStore)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When building the sink", func() {
			sink, err := buildSink(cfg, log)

			convey.Convey("Then notifications go to the log", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := sink.(*notifier.LogSink)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When kafka is configured", func() {
			cfg.Notifier = config.NotifierKafka
			cfg.KafkaBrokers = "localhost:9092"
			sink, err := buildSink(cfg, log)

			convey.Convey("Then the log and kafka sinks fan out", func() {
				convey.So(err, convey.ShouldBeNil)
				fan, ok := sink.(notifier.FanOut)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(fan, convey.ShouldHaveLength, 2)
				convey.So(fan.Close(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When no classifier URL is set", func() {
			convey.Convey("Then the disabled classifier is used", func() {
				_, ok := buildClassifier(cfg, log).(classifier.Disabled)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a classifier URL is set", func() {
			cfg.ClassifierURL = "http://classifier.local/classify"

			convey.Convey("Then the HTTP classifier is used", func() {
				_, ok := buildClassifier(cfg, log).(*classifier.HTTPClassifier)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("Then engine options cover matcher, scorer, cell and dedup radius", func() {
			convey.So(engineOptions(cfg), convey.ShouldHaveLength, 4)
		})
	})
}

func TestHandler(t *testing.T) {
	convey.Convey("Given a started service behind the HTTP handler", t, func() {
		ctx := context.Background()
		cfg := config.New()
		svc := app.New(
			app.WithLogger(logger.Discard()),
			app.WithWorkerCount(2),
			app.WithQueueSize(100),
			app.WithEngineOptions(engineOptions(cfg)...),
		)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		h := newHandler(ctx, cfg, svc, logger.Discard())

		convey.Convey("When a report is posted", func() {
			req := httptest.NewRequest(http.MethodPost, "/reports",
				strings.NewReader(`{"title":"Fire at Metro Station","lat":28.6139,"lng":77.209}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(api.HeaderReporterID, "u1")
			req.Header.Set(api.HeaderReporterRole, "citizen")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			convey.Convey("Then an event is created and listed", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)

				list := httptest.NewRecorder()
				h.ServeHTTP(list, httptest.NewRequest(http.MethodGet, "/events", http.NoBody))
				convey.So(list.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(list.Body.String(), convey.ShouldContainSubstring, "FIRE AT METRO STATION")
			})
		})

		convey.Convey("When fetching the API docs", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody))

			convey.Convey("Then the OpenAPI document is served", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "openapi: 3.0.3")
			})
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}
