package bitstream

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func makeBit(design, part, date, tm string, payload []byte) []byte {
	var b bytes.Buffer
	writeChunk := func(data []byte) {
		binary.Write(&b, binary.BigEndian, uint16(len(data)))
		b.Write(data)
	}
	writeChunk(bitMagic)
	binary.Write(&b, binary.BigEndian, uint16(1))
	for _, f := range []struct {
		key byte
		val string
	}{
		{'a', design},
		{'b', part},
		{'c', date},
		{'d', tm},
	} {
		b.WriteByte(f.key)
		writeChunk(append([]byte(f.val), 0))
	}
	b.WriteByte('e')
	binary.Write(&b, binary.BigEndian, uint32(len(payload)))
	b.Write(payload)
	return b.Bytes()
}

func TestParse(t *testing.T) {
	raw := makeBit("alveo_u50_top;UserID=0XFFFFFFFF", "xcu50-fsvh2104-2-e", "2020/01/07", "10:31:53", []byte{0xff, 0xff, 0xff, 0xff})
	info, err := Parse(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if info.Design != "alveo_u50_top;UserID=0XFFFFFFFF" {
		t.Fatal("wrong design:", info.Design)
	}
	if info.Part != "xcu50-fsvh2104-2-e" {
		t.Fatal("wrong part:", info.Part)
	}
	if info.Date != "2020/01/07" || info.Time != "10:31:53" {
		t.Fatal("wrong build stamp:", info.Date, info.Time)
	}
	if info.Length != 4 {
		t.Fatal("wrong payload length:", info.Length)
	}
}

func TestParseBadMagic(t *testing.T) {
	raw := makeBit("d", "p", "c", "t", nil)
	raw[4] ^= 0xff
	if _, err := Parse(bytes.NewReader(raw)); err == nil {
		t.Fatal("expected bad magic error")
	}
}

func TestParseTruncated(t *testing.T) {
	raw := makeBit("d", "xc7a35t", "c", "t", []byte{1, 2, 3})
	if _, err := Parse(bytes.NewReader(raw[:20])); err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestLocateNewest(t *testing.T) {
	dir, err := ioutil.TempDir("", "bitdir")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	old := filepath.Join(dir, "old.bit")
	fresh := filepath.Join(dir, "fresh.bit")
	if err := ioutil.WriteFile(old, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(fresh, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	newest, count, err := Locate(dir)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatal("wrong count:", count)
	}
	if newest != fresh {
		t.Fatal("wrong pick:", newest)
	}
}

func TestLocateEmpty(t *testing.T) {
	dir, err := ioutil.TempDir("", "bitdir")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	if _, _, err := Locate(dir); err == nil {
		t.Fatal("expected no .bit file error")
	}
}

func TestParseFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "bitdir")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "top.bit")
	raw := makeBit("top", "xcu50-fsvh2104-2-e", "2020/01/07", "10:31:53", bytes.Repeat([]byte{0xaa}, 64))
	if err := ioutil.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	info, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Length != 64 {
		t.Fatal("wrong payload length:", info.Length)
	}

	// truncated payload must fail even when the shortfall is smaller
	// than the header itself
	if err := ioutil.WriteFile(path, raw[:len(raw)-32], 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected short payload error")
	}

	// trailing junk past the declared payload must fail too
	if err := ioutil.WriteFile(path, append(raw, 0xde, 0xad), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected oversized payload error")
	}
}

func TestPartMatches(t *testing.T) {
	if !PartMatches("xcu50-fsvh2104-2-e", "xilinx_u50_gen3x16_xdma_201920_3") {
		t.Fatal("u50 part should match u50 platform")
	}
	if PartMatches("xcu280-fsvh2892-2L-e", "xilinx_u50_gen3x16_xdma_201920_3") {
		t.Fatal("u280 part must not match u50 platform")
	}
	if PartMatches("", "xilinx_u50_gen3x16_xdma_201920_3") {
		t.Fatal("empty part must not match")
	}
}
