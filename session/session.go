// Package session ties together sequence arithmetic, acknowledgement
// tracking, fragmentation, per-lane reliability policies, the packet
// assembler/parser, RTT estimation, flow control and memory accounting
// into the single owner-driven engine described by this module: one
// Session per peer pair.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ventosilenzioso/laneproto/ack"
	"github.com/ventosilenzioso/laneproto/flow"
	"github.com/ventosilenzioso/laneproto/frag"
	"github.com/ventosilenzioso/laneproto/lane"
	"github.com/ventosilenzioso/laneproto/logx"
	"github.com/ventosilenzioso/laneproto/memacct"
	"github.com/ventosilenzioso/laneproto/rtt"
	"github.com/ventosilenzioso/laneproto/seq"
	"github.com/ventosilenzioso/laneproto/wire"
)

// fragPath back-references one outgoing fragment by lane, message and
// fragment slot (its position in lane.SentMessage.Frags), the same (lane_index, msg_seq, frag_index) triple the
// spec calls a FragmentPath. Using a path instead of a direct pointer to
// the SentFragment avoids an ownership cycle between flushedPackets and
// the send lanes: resolving an ack is a lookup, and a path whose fragment
// was already dropped (e.g. unreliable, already forgotten) simply resolves
// to nothing.
type fragPath struct {
	laneIndex uint32
	msgSeq    seq.Message
	fragIndex int
}

// flushedPacket records which fragments went into one packet we sent, so
// that when the peer acks that packet sequence we know which outgoing
// fragments (and potentially whole messages) are now acknowledged.
type flushedPacket struct {
	flushedAt time.Time
	frags     []fragPath
	sampled   bool // has this packet's ack already produced an RTT sample?
}

// RecvMessage is one application message yielded by Recv, tagged with the
// lane it arrived on.
type RecvMessage struct {
	LaneIndex uint32
	Payload   []byte
}

// MessageAck reports that every fragment of one previously sent message has
// now been acknowledged by the peer.
type MessageAck struct {
	LaneIndex uint32
	MsgSeq    seq.Message
}

// Session is one engine instance for one peer pair. It is not internally
// synchronised: an owner wrapping it behind a lock must hold that lock for
// the entire duration of any method call. All methods are synchronous and
// non-suspending; the owner drives Send, Flush, Recv and Update from its
// own loop.
type Session struct {
	ID uuid.UUID

	cfg *Config
	log zerolog.Logger

	sendLanes []*lane.SendLane
	recvLanes []*lane.RecvLane

	sender       *frag.Sender
	reassembler  *frag.Receiver
	maxFragPayload int

	nextPacketSeq seq.Packet
	acks          ack.Acknowledge

	flushedPackets map[seq.Packet]*flushedPacket

	rtt       *rtt.Estimator
	bytesLeft *flow.Bucket

	mem *memacct.Accountant

	nextKeepAliveAt time.Time

	metrics *Metrics
}

func toSendKind(k LaneKind) lane.SendKind {
	switch k {
	case ReliableUnordered, ReliableSequenced, ReliableOrdered:
		return lane.Reliable
	default:
		return lane.Unreliable
	}
}

// New builds a Session from cfg. now is the session's construction time,
// used to seed the first keep-alive deadline.
func New(cfg *Config, now time.Time) (*Session, error) {
	mem := memacct.New(cfg.MaxMemory)

	sendLanes := make([]*lane.SendLane, len(cfg.SendLaneKinds))
	for i, k := range cfg.SendLaneKinds {
		sendLanes[i] = lane.NewSendLane(toSendKind(k), cfg.SendBytesPerSec)
	}

	recvLanes := make([]*lane.RecvLane, len(cfg.RecvLaneKinds))
	for i, k := range cfg.RecvLaneKinds {
		recvLanes[i] = lane.NewRecvLane(k, mem)
	}

	// A fragment's raw payload must leave room in the packet body for its
	// own wire overhead (the FragmentHeader plus the payload-length
	// varint), or a freshly split fragment could never fit into an
	// otherwise-empty packet and would sit in Candidates forever.
	maxLaneIndex := uint64(0)
	if n := len(cfg.SendLaneKinds); n > 0 {
		maxLaneIndex = uint64(n - 1)
	}
	fragOverhead := wire.VarintLen(maxLaneIndex) + wire.FragmentHeaderLen + wire.VarintLen(uint64(cfg.MTU))
	maxFragPayload := cfg.MTU - wire.PacketHeaderLen - fragOverhead
	sender, err := frag.NewSender(maxFragPayload)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:              uuid.New(),
		cfg:             cfg,
		log:             logx.New().With().Str("component", "session").Logger(),
		sendLanes:       sendLanes,
		recvLanes:       recvLanes,
		sender:          sender,
		reassembler:     frag.NewReceiver(mem),
		maxFragPayload:  maxFragPayload,
		flushedPackets:  make(map[seq.Packet]*flushedPacket),
		rtt:             rtt.New(rtt.DefaultGranularity, cfg.MinPTO),
		bytesLeft:       flow.NewBucket(cfg.SendBytesPerSec),
		mem:             mem,
		nextKeepAliveAt: now.Add(cfg.MaxAckDelay),
	}
	s.log = s.log.With().Str("session_id", s.ID.String()).Logger()
	return s, nil
}

// AttachMetrics registers a Metrics collector that Send/Flush/Recv/Update
// keep updated. Purely an observer: it never participates in protocol
// logic. Pass nil to detach.
func (s *Session) AttachMetrics(m *Metrics) {
	s.metrics = m
}

// MemoryUsage returns bytes currently counted against MaxMemory.
func (s *Session) MemoryUsage() uint64 { return s.mem.Usage() }

// Update advances time-driven bookkeeping: token-bucket refill and
// stale-reassembly purging. dt is the elapsed time since the previous
// Update call.
func (s *Session) Update(now time.Time, dt time.Duration) {
	// SendBytesPerSec is the bucket's cap, i.e. its refill rate per
	// second; refilling cap*dt.Seconds() over an interval of dt restores
	// exactly dt seconds' worth of budget.
	portion := dt.Seconds()
	s.bytesLeft.Refill(portion)
	for _, l := range s.sendLanes {
		l.BytesLeft.Refill(portion)
	}
	purged := s.reassembler.PurgeStale(now, s.cfg.FragmentTimeout)
	for _, l := range s.recvLanes {
		purged += l.PurgeStale(now, s.cfg.FragmentTimeout)
	}
	if s.metrics != nil {
		s.metrics.observeUpdate(s, purged)
	}
}
