package session

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a Prometheus-backed observer over a Session, grounded on the
// approach github.com/simeonmiteff/go-tcpinfo takes to exporting
// per-connection TCP statistics: laneproto tracks the same shape of data
// (bytes in flight, RTT, retransmits) for its own reliable-UDP session.
// Metrics never influences protocol behaviour; it only reads data the
// session already produces.
type Metrics struct {
	packetsSent       prometheus.Counter
	packetsRecv       prometheus.Counter
	bytesSent         prometheus.Counter
	messagesSent      prometheus.Counter
	fragmentsSent     prometheus.Counter
	fragmentsResent   prometheus.Counter
	messagesRecv      prometheus.Counter
	messageAcks       prometheus.Counter
	reassembliesGC    prometheus.Counter
	srtt              prometheus.Gauge
	pto               prometheus.Gauge
	bytesLeft         prometheus.Gauge
	memoryUsage       prometheus.Gauge
	bufferedMessages  *prometheus.GaugeVec // labeled direction=send|recv, lane=<index>
}

// NewMetrics builds a Metrics collector labeled with sessionID, ready to
// register against reg.
func NewMetrics(reg prometheus.Registerer, sessionID string) *Metrics {
	constLabels := prometheus.Labels{"session_id": sessionID}
	m := &Metrics{
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "laneproto", Name: "packets_sent_total", ConstLabels: constLabels,
		}),
		packetsRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "laneproto", Name: "packets_received_total", ConstLabels: constLabels,
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "laneproto", Name: "bytes_sent_total", ConstLabels: constLabels,
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "laneproto", Name: "messages_sent_total", ConstLabels: constLabels,
		}),
		fragmentsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "laneproto", Name: "fragments_sent_total", ConstLabels: constLabels,
		}),
		fragmentsResent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "laneproto", Name: "fragments_retransmitted_total", ConstLabels: constLabels,
		}),
		messagesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "laneproto", Name: "messages_received_total", ConstLabels: constLabels,
		}),
		messageAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "laneproto", Name: "message_acks_total", ConstLabels: constLabels,
		}),
		reassembliesGC: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "laneproto", Name: "stale_reassemblies_purged_total", ConstLabels: constLabels,
		}),
		srtt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "laneproto", Name: "srtt_seconds", ConstLabels: constLabels,
		}),
		pto: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "laneproto", Name: "pto_seconds", ConstLabels: constLabels,
		}),
		bytesLeft: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "laneproto", Name: "bytes_left", ConstLabels: constLabels,
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "laneproto", Name: "memory_usage_bytes", ConstLabels: constLabels,
		}),
		bufferedMessages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "laneproto", Name: "buffered_messages", ConstLabels: constLabels,
		}, []string{"direction", "lane"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.packetsSent, m.packetsRecv, m.bytesSent, m.messagesSent, m.fragmentsSent,
			m.fragmentsResent, m.messagesRecv, m.messageAcks, m.reassembliesGC, m.srtt,
			m.pto, m.bytesLeft, m.memoryUsage, m.bufferedMessages,
		)
	}
	return m
}

// observeSend records one Send call: one message queued, its fragment
// count, and the bytes reserved against the memory accountant for it.
// laneIndex is folded into the per-lane buffered-message gauge rather than
// its own series, since Send already knows exactly how many messages are
// now outstanding on that lane.
func (m *Metrics) observeSend(s *Session, laneIndex uint32, numFrags int, totalBytes uint64) {
	m.messagesSent.Inc()
	m.fragmentsSent.Add(float64(numFrags))
	m.bytesSent.Add(float64(totalBytes))
	m.setBufferedMessages(s)
}

func (m *Metrics) observeFlush(s *Session, packets [][]byte, retransmits int) {
	m.packetsSent.Add(float64(len(packets)))
	for _, p := range packets {
		m.bytesSent.Add(float64(len(p)))
	}
	m.fragmentsResent.Add(float64(retransmits))
	m.srtt.Set(s.rtt.SRTT().Seconds())
	m.pto.Set(s.rtt.PTO().Seconds())
	m.bytesLeft.Set(float64(s.bytesLeft.Remaining()))
	m.memoryUsage.Set(float64(s.mem.Usage()))
	m.setBufferedMessages(s)
}

func (m *Metrics) observeRecv(numMessages, numAcks int) {
	m.packetsRecv.Inc()
	m.messagesRecv.Add(float64(numMessages))
	m.messageAcks.Add(float64(numAcks))
}

func (m *Metrics) observeUpdate(s *Session, purged int) {
	m.reassembliesGC.Add(float64(purged))
	m.memoryUsage.Set(float64(s.mem.Usage()))
	m.setBufferedMessages(s)
}

// setBufferedMessages refreshes the per-lane buffered-message gauges: one
// series per send lane (in-flight, unacked messages) and one per recv lane
// (out-of-order arrivals parked in a ReliableOrdered reorder buffer).
func (m *Metrics) setBufferedMessages(s *Session) {
	for i, l := range s.sendLanes {
		m.bufferedMessages.WithLabelValues("send", strconv.Itoa(i)).Set(float64(len(l.Sent)))
	}
	for i, l := range s.recvLanes {
		m.bufferedMessages.WithLabelValues("recv", strconv.Itoa(i)).Set(float64(l.Pending()))
	}
}
