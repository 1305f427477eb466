package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
)

// wolAddr is the limited broadcast address on the discard port.
const wolAddr = "255.255.255.255:9"

// magicPacket builds a wake-on-LAN frame: six 0xFF bytes followed by the
// hardware address repeated sixteen times.
func magicPacket(mac string) ([]byte, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return nil, fmt.Errorf("parse MAC: %w", err)
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("parse MAC: %s is not a 48-bit address", mac)
	}
	var buf bytes.Buffer
	buf.Grow(6 + 16*6)
	buf.Write(bytes.Repeat([]byte{0xFF}, 6))
	for range 16 {
		buf.Write(hw)
	}
	return buf.Bytes(), nil
}

// wolWaker sends a magic packet to addr.
type wolWaker struct {
	packet []byte
	addr   string
}

func newWOLWaker(mac, addr string) (*wolWaker, error) {
	pkt, err := magicPacket(mac)
	if err != nil {
		return nil, err
	}
	if addr == "" {
		addr = wolAddr
	}
	return &wolWaker{packet: pkt, addr: addr}, nil
}

// Wake implements device.Waker.
func (w *wolWaker) Wake(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", w.addr)
	if err != nil {
		return fmt.Errorf("wake-on-LAN: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Write(w.packet); err != nil {
		return fmt.Errorf("wake-on-LAN: %w", err)
	}
	return nil
}
