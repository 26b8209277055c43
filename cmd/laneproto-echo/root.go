package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ventosilenzioso/laneproto/internal/memnet"
	"github.com/ventosilenzioso/laneproto/logx"
	"github.com/ventosilenzioso/laneproto/session"
)

type echoFlags struct {
	mtu        int
	lossPct    float64
	jitter     int
	count      int
	tickPeriod time.Duration
	laneKind   string
}

func newRootCmd() *cobra.Command {
	flags := &echoFlags{}

	cmd := &cobra.Command{
		Use:   "laneproto-echo",
		Short: "Exchange messages between two laneproto sessions over a simulated lossy link",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEcho(flags)
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.mtu, "mtu", 512, "packet MTU in bytes")
	f.Float64Var(&flags.lossPct, "loss", 0.1, "fraction of packets dropped in transit, 0..1")
	f.IntVar(&flags.jitter, "jitter", 2, "max packets held back to simulate reordering")
	f.IntVar(&flags.count, "count", 50, "number of echo messages to send")
	f.DurationVar(&flags.tickPeriod, "tick", 50*time.Millisecond, "driver loop tick period")
	f.StringVar(&flags.laneKind, "lane", "reliable_ordered", "lane kind: unreliable_unordered|unreliable_sequenced|reliable_unordered|reliable_sequenced|reliable_ordered")

	return cmd
}

func runEcho(flags *echoFlags) error {
	kind, err := parseLaneFlag(flags.laneKind)
	if err != nil {
		return err
	}

	cfg, err := session.NewConfig(
		session.WithSendLanes(kind),
		session.WithRecvLanes(kind),
		session.WithMTU(flags.mtu),
	)
	if err != nil {
		return fmt.Errorf("building session config: %w", err)
	}

	now := time.Now()
	client, err := session.New(cfg, now)
	if err != nil {
		return fmt.Errorf("constructing client session: %w", err)
	}
	server, err := session.New(cfg, now)
	if err != nil {
		return fmt.Errorf("constructing server session: %w", err)
	}

	clientLink, serverLink := memnet.NewPair(flags.lossPct, flags.jitter, now.UnixNano())
	defer clientLink.Close()

	logx.Section("laneproto-echo")
	logx.Info(fmt.Sprintf("mtu=%d loss=%.2f jitter=%d lane=%s count=%d",
		flags.mtu, flags.lossPct, flags.jitter, flags.laneKind, flags.count))

	sent := 0
	acked := 0
	received := 0

	ticker := time.NewTicker(flags.tickPeriod)
	defer ticker.Stop()

	// Unreliable lanes never produce a MessageAck (their fragments are
	// dropped at send time, before any ack can resolve them), so the
	// acked>=count exit condition below would never trigger. Bound the
	// run by tick count as well so the demo always terminates.
	maxTicks := flags.count * 20
	for tick := 0; tick < maxTicks; tick++ {
		<-ticker.C
		now = time.Now()

		if sent < flags.count {
			msg := []byte(fmt.Sprintf("echo-%d", sent))
			if _, err := client.Send(now, 0, msg); err != nil {
				logx.Warn(fmt.Sprintf("client send failed: %v", err))
			} else {
				sent++
			}
		}

		client.Update(now, flags.tickPeriod)
		server.Update(now, flags.tickPeriod)

		for _, pkt := range client.Flush(now) {
			if err := clientLink.Send(pkt); err != nil {
				return fmt.Errorf("client link send: %w", err)
			}
		}
		for _, pkt := range server.Flush(now) {
			if err := serverLink.Send(pkt); err != nil {
				return fmt.Errorf("server link send: %w", err)
			}
		}

		for _, pkt := range serverLink.Recv() {
			msgs, _, err := server.Recv(now, pkt)
			if err != nil {
				return fmt.Errorf("server recv: %w", err)
			}
			for _, m := range msgs {
				received++
				if _, err := server.Send(now, 0, m.Payload); err != nil {
					logx.Warn(fmt.Sprintf("server echo failed: %v", err))
				}
			}
		}
		for _, pkt := range clientLink.Recv() {
			_, acks, err := client.Recv(now, pkt)
			if err != nil {
				return fmt.Errorf("client recv: %w", err)
			}
			acked += len(acks)
		}

		if sent >= flags.count && acked >= flags.count {
			break
		}
	}

	logx.Success(fmt.Sprintf("done: sent=%d received_by_server=%d acked=%d", sent, received, acked))
	return nil
}

func parseLaneFlag(name string) (session.LaneKind, error) {
	switch name {
	case "unreliable_unordered":
		return session.UnreliableUnordered, nil
	case "unreliable_sequenced":
		return session.UnreliableSequenced, nil
	case "reliable_unordered":
		return session.ReliableUnordered, nil
	case "reliable_sequenced":
		return session.ReliableSequenced, nil
	case "reliable_ordered":
		return session.ReliableOrdered, nil
	default:
		return 0, fmt.Errorf("unknown lane kind %q", name)
	}
}
