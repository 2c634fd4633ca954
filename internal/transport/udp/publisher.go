// SPDX-License-Identifier: MIT
//
// Package udp publishes every raster column's intensities as a compact
// binary datagram for external visualisers.
package udp

import (
	"fmt"
	"time"

	applog "spectro/internal/log"
	"spectro/internal/render"
	"spectro/internal/transport"
)

var logPub = applog.With("UDPPublisher")

// Publisher is a display that sends each frame's levels through a Sender.
// With a positive interval it skips frames that arrive sooner than
// interval after the last packet.
type Publisher struct {
	sender   *Sender
	interval time.Duration

	last   time.Time
	seq    uint32
	packet []byte // Reused across frames.
	errs   uint64
}

// NewPublisher creates a publisher over sender.
func NewPublisher(sender *Sender, interval time.Duration) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if interval < 0 {
		interval = 0
	}
	logPub.Infof("Initializing (Target: %s, Interval: %s)", sender.Target(), interval)
	return &Publisher{
		sender:   sender,
		interval: interval,
		packet:   make([]byte, 0, HeaderSize+4*1024),
	}, nil
}

// Redisplay packs and sends the frame's levels.
func (p *Publisher) Redisplay(frame *render.Frame) {
	if p.interval > 0 && !p.last.IsZero() && frame.Time.Sub(p.last) < p.interval {
		return
	}
	p.last = frame.Time

	p.seq++
	pkt, err := AppendPacket(p.packet[:0], p.seq, frame.Time.UnixNano(), frame.Levels)
	if err != nil {
		logPub.Errorf("Error packing frame %d: %v", frame.Seq, err)
		return
	}
	p.packet = pkt

	if err := p.sender.Send(pkt); err != nil {
		// Log the first failure and then every hundredth.
		if p.errs%100 == 0 {
			logPub.Warnf("Error sending packet %d: %v", p.seq, err)
		}
		p.errs++
		return
	}
	logPub.Debugf("Sent packet %d (%d bytes)", p.seq, len(pkt))
}

// Sent returns the last sequence number used.
func (p *Publisher) Sent() uint32 {
	return p.seq
}

// Close closes the underlying sender.
func (p *Publisher) Close() error {
	logPub.Debugf("Close called after %d packets", p.seq)
	return p.sender.Close()
}

var _ transport.Display = (*Publisher)(nil)
