// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"testing"
	"time"

	"spectro/internal/render"
)

func listenLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPacket(t *testing.T, conn *net.UDPConn) Packet {
	t.Helper()
	buf := make([]byte, 65536)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error = %v", err)
	}
	p, err := ParsePacket(buf[:n])
	if err != nil {
		t.Fatalf("ParsePacket() error = %v", err)
	}
	return p
}

func TestPacketLayout(t *testing.T) {
	levels := [][]float64{{0, 0.5}, {1, 0.25}}
	b, err := AppendPacket(nil, 7, 1234567890, levels)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != HeaderSize+4*4 {
		t.Fatalf("packet length = %d, want %d", len(b), HeaderSize+16)
	}
	// Sequence, then channel count at byte 12, then level count.
	if b[3] != 7 || b[12] != 2 || b[14] != 4 {
		t.Errorf("unexpected header bytes % x", b[:HeaderSize])
	}

	p, err := ParsePacket(b)
	if err != nil {
		t.Fatal(err)
	}
	if p.Seq != 7 || p.Timestamp != 1234567890 || p.Channels != 2 {
		t.Errorf("header = %+v", p)
	}
	if got := p.Channel(1); len(got) != 2 || got[0] != 1 || got[1] != 0.25 {
		t.Errorf("Channel(1) = %v, want [1 0.25]", got)
	}
	if p.Channel(2) != nil {
		t.Error("Channel(2) should be nil")
	}
}

func TestParsePacketErrors(t *testing.T) {
	if _, err := ParsePacket(make([]byte, HeaderSize-1)); err == nil {
		t.Error("expected error for short header")
	}
	b, _ := AppendPacket(nil, 1, 0, [][]float64{{1, 2, 3}})
	if _, err := ParsePacket(b[:len(b)-1]); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestAppendPacketTooLarge(t *testing.T) {
	if _, err := AppendPacket(nil, 1, 0, [][]float64{make([]float64, MaxLevels+1)}); err == nil {
		t.Error("expected error for oversized column")
	}
}

func TestPublisherSendsFrames(t *testing.T) {
	conn := listenLoopback(t)
	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	pub, err := NewPublisher(sender, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	frame := &render.Frame{
		Seq:    1,
		Time:   time.Unix(100, 0),
		Levels: [][]float64{{0.1, 0.9, 0.3}},
	}
	pub.Redisplay(frame)

	p := readPacket(t, conn)
	if p.Seq != 1 || p.Channels != 1 || len(p.Levels) != 3 {
		t.Fatalf("packet = %+v", p)
	}
	if p.Timestamp != time.Unix(100, 0).UnixNano() {
		t.Errorf("Timestamp = %d", p.Timestamp)
	}
	if p.Levels[1] != float32(0.9) {
		t.Errorf("Levels[1] = %v, want 0.9", p.Levels[1])
	}
}

func TestPublisherInterval(t *testing.T) {
	conn := listenLoopback(t)
	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	pub, _ := NewPublisher(sender, 100*time.Millisecond)
	defer pub.Close()

	start := time.Unix(0, 0)
	for i := range 5 {
		pub.Redisplay(&render.Frame{
			Seq:    uint64(i + 1),
			Time:   start.Add(time.Duration(i) * 40 * time.Millisecond),
			Levels: [][]float64{{0.5}},
		})
	}

	// Frames at 0, 40, 80, 120, 160 ms: only 0 and 120 are sent.
	if pub.Sent() != 2 {
		t.Errorf("Sent() = %d, want 2", pub.Sent())
	}
	if p := readPacket(t, conn); p.Seq != 1 {
		t.Errorf("first packet seq = %d, want 1", p.Seq)
	}
	if p := readPacket(t, conn); p.Seq != 2 {
		t.Errorf("second packet seq = %d, want 2", p.Seq)
	}
}

func TestSenderClosed(t *testing.T) {
	conn := listenLoopback(t)
	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := sender.Send([]byte{1}); err == nil {
		t.Error("Send() after Close should fail")
	}
}

func TestNewSenderBadAddress(t *testing.T) {
	if _, err := NewSender("not an address"); err == nil {
		t.Error("expected error for bad address")
	}
}

func TestNewPublisherNilSender(t *testing.T) {
	if _, err := NewPublisher(nil, 0); err == nil {
		t.Error("expected error for nil sender")
	}
}
