package session

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserveSendRecordsMessageAndByteCounts(t *testing.T) {
	a, b := newPair(t)
	m := NewMetrics(prometheus.NewRegistry(), "a")
	a.AttachMetrics(m)
	now := time.Now()

	_, err := a.Send(now, 0, []byte("hello"))
	require.NoError(t, err)

	assert := require.New(t)
	assert.Equal(float64(1), testutil.ToFloat64(m.messagesSent))
	assert.Greater(testutil.ToFloat64(m.fragmentsSent), float64(0))
	// reserved bytes: the payload plus its 1-byte lane-index prefix.
	assert.Equal(float64(len("hello")+1), testutil.ToFloat64(m.bytesSent))
	assert.Equal(float64(1), testutil.ToFloat64(m.bufferedMessages.WithLabelValues("send", "0")))

	deliver(t, now, a, b)
}

func TestMetricsObserveFlushCountsRetransmits(t *testing.T) {
	a, b := newPair(t)
	m := NewMetrics(prometheus.NewRegistry(), "a")
	a.AttachMetrics(m)
	now := time.Now()

	_, err := a.Send(now, 0, []byte("retry me"))
	require.NoError(t, err)

	first := a.Flush(now)
	require.NotEmpty(t, first)
	require.Equal(t, float64(0), testutil.ToFloat64(m.fragmentsResent))

	// Re-flushing before the peer acks, past the (tiny) PTO, should be
	// treated as a retransmission of the same fragment.
	later := now.Add(time.Second)
	second := a.Flush(later)
	require.NotEmpty(t, second)
	require.Greater(t, testutil.ToFloat64(m.fragmentsResent), float64(0))

	_ = b
}
