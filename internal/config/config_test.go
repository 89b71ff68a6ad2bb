package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/truthfuse/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.SpatialRadiusM, convey.ShouldEqual, 500)
			convey.So(cfg.AutoMergeRadiusM, convey.ShouldEqual, 50)
			convey.So(cfg.DedupRadiusM, convey.ShouldEqual, 500)
			convey.So(cfg.TitleSimilarity, convey.ShouldEqual, 0.85)
			convey.So(cfg.ClassifierTimeoutMS, convey.ShouldEqual, 5000)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.Notifier, convey.ShouldEqual, config.NotifierLog)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When the sqlite driver has no DSN", func() {
			cfg.StoreDriver = config.StoreSQLite

			convey.Convey("Then validation fails with ErrInvalidConfig", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "store_dsn")
			})
		})

		convey.Convey("When the kafka notifier has no brokers", func() {
			cfg.Notifier = config.NotifierKafka
			cfg.KafkaBrokers = " , "

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the auto-merge radius exceeds the spatial radius", func() {
			cfg.AutoMergeRadiusM = 600

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When an unknown notifier is configured", func() {
			cfg.Notifier = "carrier-pigeon"

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "carrier-pigeon")
			})
		})

		convey.Convey("When brokers are listed with spaces", func() {
			cfg.KafkaBrokers = "k1:9092, k2:9092,,"

			convey.Convey("Then Brokers trims and drops empties", func() {
				convey.So(cfg.Brokers(), convey.ShouldResemble, []string{"k1:9092", "k2:9092"})
			})
		})
	})
}
