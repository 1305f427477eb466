package main

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagicPacket(t *testing.T) {
	pkt, err := magicPacket("00:11:22:33:44:55")
	require.NoError(t, err)
	require.Len(t, pkt, 102)

	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 6), pkt[:6])
	hw := []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	for i := range 16 {
		off := 6 + i*6
		assert.Equal(t, hw, pkt[off:off+6], "repetition %d", i)
	}
}

func TestMagicPacketRejectsBadMAC(t *testing.T) {
	for _, mac := range []string{"", "nope", "00:11:22:33:44:55:66:77"} {
		_, err := magicPacket(mac)
		assert.Error(t, err, mac)
	}
}

func TestWOLWakerSends(t *testing.T) {
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	w, err := newWOLWaker("00-11-22-33-44-55", pc.LocalAddr().String())
	require.NoError(t, err)
	require.NoError(t, w.Wake(context.Background()))

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 256)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, w.packet, buf[:n])
}

func TestWOLWakerDefaultAddr(t *testing.T) {
	w, err := newWOLWaker("00:11:22:33:44:55", "")
	require.NoError(t, err)
	assert.Equal(t, wolAddr, w.addr)
}
