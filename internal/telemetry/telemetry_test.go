package telemetry

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/dokzlo13/wledd/internal/wled"
)

func snapshot() *wled.Device {
	return &wled.Device{
		Info: wled.Info{Name: "Desk", MACAddress: "aabbccddeeff"},
		State: wled.State{
			On:         true,
			Brightness: 128,
			Segments: []wled.Segment{
				{ID: 0, On: true, Brightness: 156},
				{ID: 2, On: false, Brightness: 255},
			},
		},
	}
}

func TestPoints(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		hasMaster bool
		on        []bool
		effective []int64
	}{
		{"without master", false, []bool{true, false}, []int64{78, 128}},
		{"with master", true, []bool{true, false}, []int64{156, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := Points(snapshot(), tt.hasMaster, ts)
			if len(points) != 3 {
				t.Fatalf("got %d points, want 3", len(points))
			}

			master := points[0]
			if master.Name() != MeasurementMaster {
				t.Errorf("first point = %s, want %s", master.Name(), MeasurementMaster)
			}
			if !master.Time().Equal(ts) {
				t.Errorf("time = %v, want %v", master.Time(), ts)
			}

			for i, p := range points[1:] {
				if p.Name() != MeasurementSegment {
					t.Errorf("point %d = %s, want %s", i, p.Name(), MeasurementSegment)
				}
				fields := fieldMap(p)
				if fields["on"] != tt.on[i] {
					t.Errorf("segment %d on = %v, want %v", i, fields["on"], tt.on[i])
				}
				if fields["effective_brightness"] != tt.effective[i] {
					t.Errorf("segment %d effective_brightness = %v, want %v", i, fields["effective_brightness"], tt.effective[i])
				}
			}

			tags := tagMap(points[2])
			if tags["segment"] != "2" || tags["mac"] != "aabbccddeeff" {
				t.Errorf("unexpected tags %v", tags)
			}
		})
	}
}

func fieldMap(p *write.Point) map[string]any {
	m := make(map[string]any)
	for _, f := range p.FieldList() {
		m[f.Key] = f.Value
	}
	return m
}

func tagMap(p *write.Point) map[string]string {
	m := make(map[string]string)
	for _, t := range p.TagList() {
		m[t.Key] = t.Value
	}
	return m
}
