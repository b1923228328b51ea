package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	measurementFrames = "serial_frames"
	measurementBridge = "serial_bridge"
)

// WriteFrame records one relayed frame. Topics are unbounded, so the topic
// is a field rather than a tag.
//
//	client.WriteFrame("bench-01", "upstream", "publish", "home/temp", 2)
func (c *Client) WriteFrame(bridgeID, direction, kind, topic string, size int) {
	c.write(framePoint(bridgeID, direction, kind, topic, size, time.Now()))
}

// WriteBridgeStats records a snapshot of the bridge counters, one field per
// counter.
func (c *Client) WriteBridgeStats(bridgeID string, counters map[string]uint64) {
	if len(counters) == 0 {
		return
	}
	c.write(bridgePoint(bridgeID, counters, time.Now()))
}

func (c *Client) write(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.points.Add(1)
	c.writeAPI.WritePoint(p)
}

func framePoint(bridgeID, direction, kind, topic string, size int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementFrames,
		map[string]string{
			"bridge_id": bridgeID,
			"direction": direction,
			"kind":      kind,
		},
		map[string]interface{}{
			"topic": topic,
			"bytes": int64(size),
			"count": int64(1),
		},
		ts,
	)
}

func bridgePoint(bridgeID string, counters map[string]uint64, ts time.Time) *write.Point {
	fields := make(map[string]interface{}, len(counters))
	for name, v := range counters {
		fields[name] = v
	}
	return write.NewPoint(
		measurementBridge,
		map[string]string{"bridge_id": bridgeID},
		fields,
		ts,
	)
}
