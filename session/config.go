package session

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ventosilenzioso/laneproto/lane"
	"github.com/ventosilenzioso/laneproto/wire"
)

// LaneKind names one of the five inbound ordering/sequencing policies. A
// lane's outbound behaviour (Unreliable vs Reliable retransmission) is
// derived from it: a Reliable* kind gets reliable send semantics, anything
// else gets unreliable send semantics.
type LaneKind = lane.RecvKind

const (
	UnreliableUnordered = lane.UnreliableUnordered
	UnreliableSequenced = lane.UnreliableSequenced
	ReliableUnordered   = lane.ReliableUnordered
	ReliableSequenced   = lane.ReliableSequenced
	ReliableOrdered     = lane.ReliableOrdered
)

const (
	defaultMaxMemory       = 4 * 1024 * 1024
	defaultMaxAckDelay     = 1000 * time.Millisecond
	defaultFragmentTimeout = 10 * time.Second
	defaultMinPTO          = 100 * time.Millisecond
	unlimitedBytesPerSec   = 1 << 40
)

// Config configures a Session. Build one with NewConfig and functional
// Options, or load one from YAML with LoadConfig.
type Config struct {
	SendLaneKinds []LaneKind
	RecvLaneKinds []LaneKind

	MaxMemory       uint64
	SendBytesPerSec uint64
	MaxAckDelay     time.Duration
	MTU             int

	// FragmentTimeout bounds how long a partially-reassembled message is
	// kept before being purged as stale. Not specified exactly by the
	// source spec (left as an open question there); defaults to 10s.
	FragmentTimeout time.Duration

	// MinPTO floors the probe timeout reported by the RTT estimator before
	// any sample has been taken, and after.
	MinPTO time.Duration
}

// Option mutates a Config under construction.
type Option func(*Config)

func WithSendLanes(kinds ...LaneKind) Option {
	return func(c *Config) { c.SendLaneKinds = kinds }
}

func WithRecvLanes(kinds ...LaneKind) Option {
	return func(c *Config) { c.RecvLaneKinds = kinds }
}

func WithMaxMemory(n uint64) Option {
	return func(c *Config) { c.MaxMemory = n }
}

func WithSendBytesPerSec(n uint64) Option {
	return func(c *Config) { c.SendBytesPerSec = n }
}

func WithMaxAckDelay(d time.Duration) Option {
	return func(c *Config) { c.MaxAckDelay = d }
}

func WithMTU(n int) Option {
	return func(c *Config) { c.MTU = n }
}

func WithFragmentTimeout(d time.Duration) Option {
	return func(c *Config) { c.FragmentTimeout = d }
}

// NewConfig builds a Config from sane defaults plus the given Options, and
// validates it.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		MaxMemory:       defaultMaxMemory,
		SendBytesPerSec: unlimitedBytesPerSec,
		MaxAckDelay:     defaultMaxAckDelay,
		FragmentTimeout: defaultFragmentTimeout,
		MinPTO:          defaultMinPTO,
		MTU:             1200,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.MTU <= wire.PacketHeaderLen {
		return errors.Errorf("session: mtu %d must exceed packet header length %d", c.MTU, wire.PacketHeaderLen)
	}
	if len(c.SendLaneKinds) == 0 {
		return errors.New("session: at least one send lane must be configured")
	}
	if len(c.RecvLaneKinds) == 0 {
		return errors.New("session: at least one recv lane must be configured")
	}
	return nil
}

// yamlConfig is the on-disk shape LoadConfig parses, using lane kind names
// instead of the numeric lane.RecvKind values.
type yamlConfig struct {
	SendLanes       []string `yaml:"send_lanes"`
	RecvLanes       []string `yaml:"recv_lanes"`
	MaxMemory       uint64   `yaml:"max_memory"`
	SendBytesPerSec uint64   `yaml:"send_bytes_per_sec"`
	MaxAckDelayMS   int64    `yaml:"max_ack_delay_ms"`
	MTU             int      `yaml:"mtu"`
	FragmentTimeout int64    `yaml:"fragment_timeout_ms"`
}

var laneKindNames = map[string]LaneKind{
	"unreliable_unordered": UnreliableUnordered,
	"unreliable_sequenced": UnreliableSequenced,
	"reliable_unordered":   ReliableUnordered,
	"reliable_sequenced":   ReliableSequenced,
	"reliable_ordered":     ReliableOrdered,
}

func parseLaneKinds(names []string) ([]LaneKind, error) {
	kinds := make([]LaneKind, len(names))
	for i, name := range names {
		kind, ok := laneKindNames[name]
		if !ok {
			return nil, errors.Errorf("session: unknown lane kind %q", name)
		}
		kinds[i] = kind
	}
	return kinds, nil
}

// LoadConfig reads a Config from a YAML file, layered on top of the same
// defaults NewConfig uses.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "session: reading config file")
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "session: parsing config file")
	}

	sendKinds, err := parseLaneKinds(raw.SendLanes)
	if err != nil {
		return nil, err
	}
	recvKinds, err := parseLaneKinds(raw.RecvLanes)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithSendLanes(sendKinds...), WithRecvLanes(recvKinds...)}
	if raw.MaxMemory != 0 {
		opts = append(opts, WithMaxMemory(raw.MaxMemory))
	}
	if raw.SendBytesPerSec != 0 {
		opts = append(opts, WithSendBytesPerSec(raw.SendBytesPerSec))
	}
	if raw.MaxAckDelayMS != 0 {
		opts = append(opts, WithMaxAckDelay(time.Duration(raw.MaxAckDelayMS)*time.Millisecond))
	}
	if raw.MTU != 0 {
		opts = append(opts, WithMTU(raw.MTU))
	}
	if raw.FragmentTimeout != 0 {
		opts = append(opts, WithFragmentTimeout(time.Duration(raw.FragmentTimeout)*time.Millisecond))
	}

	return NewConfig(opts...)
}
