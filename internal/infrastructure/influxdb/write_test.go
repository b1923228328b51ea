package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/config"
)

func TestFramePoint(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	line := write.PointToLineProtocol(framePoint("bench-01", "upstream", "publish", "home/temp", 2, ts), time.Nanosecond)

	for _, want := range []string{
		"serial_frames,",
		"bridge_id=bench-01",
		"direction=upstream",
		"kind=publish",
		`topic="home/temp"`,
		"bytes=2i",
		"count=1i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}

func TestBridgePoint(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	line := write.PointToLineProtocol(bridgePoint("bench-01", map[string]uint64{"lines": 7}, ts), time.Nanosecond)

	if !strings.HasPrefix(line, "serial_bridge,bridge_id=bench-01 ") {
		t.Errorf("line protocol %q has wrong measurement or tags", line)
	}
	if !strings.Contains(line, "lines=7u") {
		t.Errorf("line protocol %q missing counter", line)
	}
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name      string
		batch     int
		flush     int
		wantBatch uint
		wantFlush uint
	}{
		{"configured", 500, 2, 500, 2000},
		{"defaults", 0, 0, defaultBatchSize, 10000},
		{"negative falls back", -1, -5, defaultBatchSize, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := clientOptions(config.InfluxDBConfig{BatchSize: tt.batch, FlushInterval: tt.flush})
			if opts.BatchSize() != tt.wantBatch {
				t.Errorf("BatchSize() = %d, want %d", opts.BatchSize(), tt.wantBatch)
			}
			if opts.FlushInterval() != tt.wantFlush {
				t.Errorf("FlushInterval() = %d, want %d", opts.FlushInterval(), tt.wantFlush)
			}
			if opts.Precision() != time.Millisecond {
				t.Errorf("Precision() = %v, want 1ms", opts.Precision())
			}
			if !opts.UseGZip() {
				t.Error("UseGZip() = false")
			}
		})
	}
}

func TestWritesWhenDisconnected(t *testing.T) {
	c := &Client{}

	// None of these may touch the nil write API.
	c.WriteFrame("b", "upstream", "publish", "t", 1)
	c.WriteBridgeStats("b", map[string]uint64{"x": 1})
	c.Flush()

	if got := c.Stats().Points; got != 0 {
		t.Errorf("Stats().Points = %d, want 0", got)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
