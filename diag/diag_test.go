package diag

import (
	"bytes"
	"testing"
)

func TestChecksum(t *testing.T) {
	if got := checksum([]byte{0x01, 0x02, 0x03}); got != 0x0006 {
		t.Fatalf("wrong checksum: 0x%04X", got)
	}
	// sum folds into 16 bits
	big := bytes.Repeat([]byte{0xff}, 0x100)
	if got := checksum(big); got != 0xFF00 {
		t.Fatalf("wrong folded checksum: 0x%04X", got)
	}
}

func TestEchoLoopback(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("loopback payload 0123456789")
	if err := echo(&buf, payload, nil); err != nil {
		t.Fatal(err)
	}
}

type corruptingEcho struct {
	buf bytes.Buffer
}

func (c *corruptingEcho) Write(p []byte) (int, error) {
	mangled := append([]byte(nil), p...)
	mangled[0] ^= 0xff
	return c.buf.Write(mangled)
}

func (c *corruptingEcho) Read(p []byte) (int, error) {
	return c.buf.Read(p)
}

func TestEchoMismatch(t *testing.T) {
	payload := []byte("loopback payload")
	if err := echo(&corruptingEcho{}, payload, nil); err == nil {
		t.Fatal("expected checksum mismatch")
	}
}
