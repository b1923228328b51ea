package bridge

import "sync/atomic"

// counters are updated from the read loop and MQTT handler goroutines.
type counters struct {
	lines               atomic.Uint64
	subscribes          atomic.Uint64
	duplicateSubscribes atomic.Uint64
	subscribeErrors     atomic.Uint64
	published           atomic.Uint64
	publishErrors       atomic.Uint64
	forwarded           atomic.Uint64
	rejected            atomic.Uint64
	keepAlives          atomic.Uint64
	diagnostics         atomic.Uint64
	malformed           atomic.Uint64
	ignored             atomic.Uint64
	oversized           atomic.Uint64
	connects            atomic.Uint64
	writeErrors         atomic.Uint64
	journalErrors       atomic.Uint64
}

// Stats is a snapshot of the bridge counters.
type Stats struct {
	Lines               uint64 `json:"lines"`
	Subscribes          uint64 `json:"subscribes"`
	DuplicateSubscribes uint64 `json:"duplicate_subscribes"`
	SubscribeErrors     uint64 `json:"subscribe_errors"`
	Published           uint64 `json:"published"`
	PublishErrors       uint64 `json:"publish_errors"`
	Forwarded           uint64 `json:"forwarded"`
	Rejected            uint64 `json:"rejected"`
	KeepAlives          uint64 `json:"keep_alives"`
	Diagnostics         uint64 `json:"diagnostics"`
	Malformed           uint64 `json:"malformed"`
	Ignored             uint64 `json:"ignored"`
	Oversized           uint64 `json:"oversized"`
	Connects            uint64 `json:"connects"`
	WriteErrors         uint64 `json:"write_errors"`
	JournalErrors       uint64 `json:"journal_errors"`
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	c := &b.stats
	return Stats{
		Lines:               c.lines.Load(),
		Subscribes:          c.subscribes.Load(),
		DuplicateSubscribes: c.duplicateSubscribes.Load(),
		SubscribeErrors:     c.subscribeErrors.Load(),
		Published:           c.published.Load(),
		PublishErrors:       c.publishErrors.Load(),
		Forwarded:           c.forwarded.Load(),
		Rejected:            c.rejected.Load(),
		KeepAlives:          c.keepAlives.Load(),
		Diagnostics:         c.diagnostics.Load(),
		Malformed:           c.malformed.Load(),
		Ignored:             c.ignored.Load(),
		Oversized:           c.oversized.Load(),
		Connects:            c.connects.Load(),
		WriteErrors:         c.writeErrors.Load(),
		JournalErrors:       c.journalErrors.Load(),
	}
}

// Map returns the counters keyed by their JSON names, as written to metrics.
func (s Stats) Map() map[string]uint64 {
	return map[string]uint64{
		"lines":                s.Lines,
		"subscribes":           s.Subscribes,
		"duplicate_subscribes": s.DuplicateSubscribes,
		"subscribe_errors":     s.SubscribeErrors,
		"published":            s.Published,
		"publish_errors":       s.PublishErrors,
		"forwarded":            s.Forwarded,
		"rejected":             s.Rejected,
		"keep_alives":          s.KeepAlives,
		"diagnostics":          s.Diagnostics,
		"malformed":            s.Malformed,
		"ignored":              s.Ignored,
		"oversized":            s.Oversized,
		"connects":             s.Connects,
		"write_errors":         s.WriteErrors,
		"journal_errors":       s.JournalErrors,
	}
}
