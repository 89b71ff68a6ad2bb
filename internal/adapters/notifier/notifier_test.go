package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/truthfuse/internal/domain/model"
	"github.com/okian/truthfuse/pkg/logger"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMQTT struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (f *fakeMQTT) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload.([]byte))
	return newFakeToken(f.err)
}

func sampleEvent() *model.Event {
	return &model.Event{ID: "ev-9", Name: "FIRE AT DEPOT", Status: model.StatusMonitoring, ConfidenceScore: 14.4, ReportCount: 1}
}

func sampleActivity() model.Notification {
	return model.Notification{
		Kind:     model.KindActivity,
		Activity: &model.ActivityEntry{Message: "new event created", Level: model.LevelSuccess, EventID: "ev-9"},
	}
}

func TestKafkaSink(t *testing.T) {
	Convey("Given a Kafka sink over a fake writer", t, func() {
		w := &fakeWriter{}
		s := newKafkaSink(w, "admin_log", "event_update")
		ctx := context.Background()

		Convey("When an event update is published", func() {
			err := s.Publish(ctx, model.Notification{Kind: model.KindEventUpdate, Event: sampleEvent()})

			Convey("Then it lands on the event topic keyed by id", func() {
				So(err, ShouldBeNil)
				So(w.msgs, ShouldHaveLength, 1)
				So(w.msgs[0].Topic, ShouldEqual, "event_update")
				So(string(w.msgs[0].Key), ShouldEqual, "ev-9")
				var ev model.Event
				So(json.Unmarshal(w.msgs[0].Value, &ev), ShouldBeNil)
				So(ev.Name, ShouldEqual, "FIRE AT DEPOT")
			})
		})

		Convey("When an activity entry is published", func() {
			So(s.Publish(ctx, sampleActivity()), ShouldBeNil)

			Convey("Then it lands on the activity topic", func() {
				So(w.msgs[0].Topic, ShouldEqual, "admin_log")
				So(string(w.msgs[0].Value), ShouldContainSubstring, `"type":"success"`)
			})
		})

		Convey("When the kind is unknown", func() {
			err := s.Publish(ctx, model.Notification{Kind: "bogus"})

			Convey("Then nothing is written", func() {
				So(errors.Is(err, ErrUnknownKind), ShouldBeTrue)
				So(w.msgs, ShouldBeEmpty)
			})
		})

		Convey("When the writer fails", func() {
			w.err = errors.New("leader not available")

			Convey("Then the error is wrapped", func() {
				err := s.Publish(ctx, sampleActivity())
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "admin_log")
				So(s.Close(), ShouldBeNil)
				So(w.closed, ShouldBeTrue)
			})
		})
	})
}

func TestMQTTSink(t *testing.T) {
	Convey("Given an MQTT sink over a fake client", t, func() {
		c := &fakeMQTT{}
		s := newMQTTSink(c, "truthfuse")
		ctx := context.Background()

		Convey("When both kinds are published", func() {
			So(s.Publish(ctx, sampleActivity()), ShouldBeNil)
			So(s.Publish(ctx, model.Notification{Kind: model.KindEventUpdate, Event: sampleEvent()}), ShouldBeNil)

			Convey("Then topics are prefixed per channel", func() {
				So(c.topics, ShouldResemble, []string{"truthfuse/admin_log", "truthfuse/event_update"})
				So(string(c.payloads[1]), ShouldContainSubstring, `"id":"ev-9"`)
			})
		})

		Convey("When the broker rejects the publish", func() {
			c.err = errors.New("not connected")

			Convey("Then the error surfaces", func() {
				So(s.Publish(ctx, sampleActivity()), ShouldNotBeNil)
				So(s.Close(), ShouldBeNil)
			})
		})

		Convey("When there is no prefix", func() {
			So(newMQTTSink(c, "").Topic(model.KindEventUpdate), ShouldEqual, "event_update")
		})
	})
}

func TestLogSinkAndFanOut(t *testing.T) {
	Convey("Given a log sink and a recorder behind a fan-out", t, func() {
		var buf bytes.Buffer
		logSink := NewLogSink(logger.New(&buf, logger.Options{}))
		rec := &Recorder{}
		empty := FanOut{}
		fan := FanOut{logSink, rec}
		ctx := context.Background()

		Convey("When notifications are published", func() {
			So(fan.Publish(ctx, sampleActivity()), ShouldBeNil)
			So(fan.Publish(ctx, model.Notification{Kind: model.KindEventUpdate, Event: sampleEvent()}), ShouldBeNil)

			Convey("Then both sinks receive them", func() {
				So(buf.String(), ShouldContainSubstring, "new event created")
				So(buf.String(), ShouldContainSubstring, "event_id=ev-9")
				So(rec.Activities(), ShouldResemble, []string{"new event created"})
				So(rec.Events(), ShouldHaveLength, 1)
				So(fan.Close(), ShouldBeNil)
				So(empty.Publish(ctx, sampleActivity()), ShouldBeNil)
			})
		})

		Convey("When one sink fails", func() {
			w := &fakeWriter{err: errors.New("down")}
			fan = append(fan, newKafkaSink(w, "a", "b"))
			err := fan.Publish(ctx, sampleActivity())

			Convey("Then the others still deliver and the error is joined", func() {
				So(err, ShouldNotBeNil)
				So(rec.Activities(), ShouldHaveLength, 1)
			})
		})
	})
}

func TestDispatcher(t *testing.T) {
	Convey("Given a dispatcher in front of a recorder", t, func() {
		_ = logger.Init()
		rec := &Recorder{}
		d := NewDispatcher(rec, 8, 2)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		d.Start(ctx)

		Convey("When notifications are published and the dispatcher drains", func() {
			for i := 0; i < 5; i++ {
				So(d.Publish(ctx, sampleActivity()), ShouldBeNil)
			}
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()

			Convey("Then all are delivered", func() {
				So(d.Shutdown(sctx), ShouldBeNil)
				So(rec.Activities(), ShouldHaveLength, 5)
				So(d.Workers(), ShouldEqual, 2)
			})
		})

		Convey("When the dispatcher is shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			So(d.Shutdown(sctx), ShouldBeNil)

			Convey("Then further notifications are dropped", func() {
				So(errors.Is(d.Publish(ctx, sampleActivity()), ErrDropped), ShouldBeTrue)
			})
		})
	})
}
