// Package telemetry writes device snapshots to InfluxDB.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/config"
	"github.com/dokzlo13/wledd/internal/entity"
	"github.com/dokzlo13/wledd/internal/eventbus"
	"github.com/dokzlo13/wledd/internal/wled"
)

const (
	pingTimeout           = 10 * time.Second
	millisecondsPerSecond = 1000

	MeasurementMaster  = "wled_master"
	MeasurementSegment = "wled_segment"
)

var ErrConnectionFailed = errors.New("influxdb: connection failed")

// Writer is a non-blocking InfluxDB point sink
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	done     chan struct{}
}

// Connect pings the server and sets up the batching write API
func Connect(cfg config.InfluxDBConfig) (*Writer, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	w := &Writer{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		done:     make(chan struct{}),
	}
	go w.logErrors()

	log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("Connected to InfluxDB")
	return w, nil
}

func (w *Writer) logErrors() {
	errs := w.writeAPI.Errors()
	for {
		select {
		case err := <-errs:
			log.Warn().Err(err).Msg("InfluxDB write failed")
		case <-w.done:
			return
		}
	}
}

// Start writes points for every snapshot event
func (w *Writer) Start(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeSnapshot, w.HandleEvent)
}

// HandleEvent writes the points of one snapshot event
func (w *Writer) HandleEvent(event eventbus.Event) {
	d, ok := event.Data["device"].(*wled.Device)
	if !ok || d == nil {
		return
	}
	master, _ := event.Data["master"].(bool)

	for _, p := range Points(d, master, event.Timestamp) {
		w.writeAPI.WritePoint(p)
	}
}

// Close flushes pending points and closes the client
func (w *Writer) Close() error {
	w.writeAPI.Flush()
	close(w.done)
	w.client.Close()
	return nil
}

// Points converts a snapshot into one master point and one point per
// segment. Without a master light the effective segment state folds in
// the device-level power and brightness.
func Points(d *wled.Device, hasMaster bool, ts time.Time) []*write.Point {
	if ts.IsZero() {
		ts = time.Now()
	}
	tags := map[string]string{
		"device": d.Info.Name,
		"mac":    d.Info.MACAddress,
	}

	points := make([]*write.Point, 0, len(d.State.Segments)+1)
	points = append(points, write.NewPoint(
		MeasurementMaster,
		tags,
		map[string]interface{}{
			"on":         d.State.On,
			"brightness": int(d.State.Brightness),
		},
		ts,
	))

	for _, seg := range d.State.Segments {
		segTags := map[string]string{
			"device":  d.Info.Name,
			"mac":     d.Info.MACAddress,
			"segment": strconv.Itoa(seg.ID),
		}

		on, effective := seg.On, seg.Brightness
		if !hasMaster {
			on = entity.EffectiveOn(d.State.On, seg.On)
			effective = entity.EffectiveBrightness(seg.Brightness, d.State.Brightness)
		}

		points = append(points, write.NewPoint(
			MeasurementSegment,
			segTags,
			map[string]interface{}{
				"on":                   on,
				"brightness":           int(seg.Brightness),
				"effective_brightness": int(effective),
			},
			ts,
		))
	}
	return points
}
