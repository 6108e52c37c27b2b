// Package metrics tracks request and queue counters and renders them in the
// prometheus text exposition format for the debug listener.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/ostep-web/wserver/pkg/logging"
)

// Tracker accumulates server counters. All methods are safe for concurrent
// use and tolerate a nil receiver, so components can treat metrics as
// optional.
type Tracker struct {
	// log is the associated logger.
	log logging.Logger
	// lock protects all subsequent fields.
	lock sync.Mutex
	// accepted is the number of connections accepted.
	accepted uint64
	// responses counts responses by HTTP status code.
	responses map[int]uint64
	// dispatches counts queue dequeues by discipline name.
	dispatches map[string]uint64
	// staticBytes is the total number of static payload bytes served.
	staticBytes uint64
	// queueDepth is the last observed queue depth.
	queueDepth int
	// queueDepthPeak is the highest observed queue depth.
	queueDepthPeak int
}

// NewTracker creates a new tracker.
func NewTracker(log logging.Logger) *Tracker {
	return &Tracker{
		log:        log,
		responses:  make(map[int]uint64),
		dispatches: make(map[string]uint64),
	}
}

// TrackAccepted records an accepted connection.
func (t *Tracker) TrackAccepted() {
	if t == nil {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.accepted++
}

// TrackResponse records a response with the given status code.
func (t *Tracker) TrackResponse(status int) {
	if t == nil {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.responses[status]++
}

// TrackDispatch records a dequeue under the given discipline.
func (t *Tracker) TrackDispatch(discipline string) {
	if t == nil {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.dispatches[discipline]++
}

// TrackStaticBytes records bytes of static payload written to a client.
func (t *Tracker) TrackStaticBytes(n int64) {
	if t == nil || n <= 0 {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.staticBytes += uint64(n)
}

// TrackQueueDepth records an observed queue depth.
func (t *Tracker) TrackQueueDepth(depth int) {
	if t == nil {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.queueDepth = depth
	if depth > t.queueDepthPeak {
		t.queueDepthPeak = depth
	}
}

// counter builds a single-metric counter family.
func counter(name, help string, value uint64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{
			Counter: &dto.Counter{Value: proto.Float64(float64(value))},
		}},
	}
}

// gauge builds a single-metric gauge family.
func gauge(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{
			Gauge: &dto.Gauge{Value: proto.Float64(value)},
		}},
	}
}

// Gather renders the current counters as metric families.
func (t *Tracker) Gather() []*dto.MetricFamily {
	if t == nil {
		return nil
	}
	t.lock.Lock()
	defer t.lock.Unlock()

	families := []*dto.MetricFamily{
		counter("wserver_connections_accepted_total",
			"Connections accepted by the acceptor.", t.accepted),
		counter("wserver_static_bytes_served_total",
			"Static payload bytes written to clients.", t.staticBytes),
		gauge("wserver_queue_depth",
			"Entries resident in the scheduling queue.", float64(t.queueDepth)),
		gauge("wserver_queue_depth_peak",
			"Highest observed scheduling queue depth.", float64(t.queueDepthPeak)),
	}

	responses := &dto.MetricFamily{
		Name: proto.String("wserver_responses_total"),
		Help: proto.String("Responses sent, by HTTP status code."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, status := range sortedIntKeys(t.responses) {
		responses.Metric = append(responses.Metric, &dto.Metric{
			Label: []*dto.LabelPair{{
				Name:  proto.String("code"),
				Value: proto.String(fmt.Sprintf("%d", status)),
			}},
			Counter: &dto.Counter{Value: proto.Float64(float64(t.responses[status]))},
		})
	}
	if len(responses.Metric) > 0 {
		families = append(families, responses)
	}

	dispatches := &dto.MetricFamily{
		Name: proto.String("wserver_dispatches_total"),
		Help: proto.String("Queue dequeues, by scheduling discipline."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, name := range sortedStringKeys(t.dispatches) {
		dispatches.Metric = append(dispatches.Metric, &dto.Metric{
			Label: []*dto.LabelPair{{
				Name:  proto.String("discipline"),
				Value: proto.String(name),
			}},
			Counter: &dto.Counter{Value: proto.Float64(float64(t.dispatches[name]))},
		})
	}
	if len(dispatches.Metric) > 0 {
		families = append(families, dispatches)
	}

	return families
}

// ServeHTTP implements net/http.Handler, writing the text exposition format.
func (t *Tracker) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	encoder := expfmt.NewEncoder(w, format)
	for _, family := range t.Gather() {
		if err := encoder.Encode(family); err != nil {
			if t.log != nil {
				t.log.Warnf("Failed to encode metric family: %v", err)
			}
			return
		}
	}
}

func sortedIntKeys(m map[int]uint64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedStringKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
