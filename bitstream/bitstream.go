//Package bitstream locates and identifies Xilinx .bit files.
package bitstream

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Info holds the metadata fields of a .bit header. The payload itself
// is opaque to us, the programming tools own it.
type Info struct {
	Design string `json:"design"`
	Part   string `json:"part"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Length uint32 `json:"length"`
}

var bitMagic = []byte{0x0f, 0xf0, 0x0f, 0xf0, 0x0f, 0xf0, 0x0f, 0xf0, 0x00}

// Locate returns the newest *.bit file under dir by modification time,
// together with how many candidates were found.
func Locate(dir string) (newest string, count int, err error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.bit"))
	if err != nil {
		return "", 0, err
	}
	if len(matches) == 0 {
		return "", 0, fmt.Errorf("no .bit file found in %s", dir)
	}
	sort.Slice(matches, func(i, j int) bool {
		fi, erri := os.Stat(matches[i])
		fj, errj := os.Stat(matches[j])
		if erri != nil || errj != nil {
			return matches[i] < matches[j]
		}
		return fi.ModTime().Before(fj.ModTime())
	})
	return matches[len(matches)-1], len(matches), nil
}

// Parse walks the field structure at the head of a .bit file:
// a length-prefixed magic block, a 16-bit field count word, then
// 'a'..'d' length-prefixed strings (design, part, date, time) and the
// 'e' field carrying the 32-bit payload length.
func Parse(r io.Reader) (Info, error) {
	info, _, err := parse(bufio.NewReader(r))
	return info, err
}

// parse additionally reports how many header bytes were consumed, so
// callers can check the payload length against what is left.
func parse(br *bufio.Reader) (info Info, headerLen int64, err error) {
	hdr, err := readChunk16(br)
	if err != nil {
		return info, 0, fmt.Errorf("bit header: %v", err)
	}
	headerLen += 2 + int64(len(hdr))
	if !bytes.Equal(hdr, bitMagic) {
		return info, headerLen, fmt.Errorf("bit header: bad magic %02X", hdr)
	}
	var one uint16
	if err = binary.Read(br, binary.BigEndian, &one); err != nil {
		return info, headerLen, fmt.Errorf("bit header: %v", err)
	}
	headerLen += 2

	for {
		key, err := br.ReadByte()
		if err != nil {
			return info, headerLen, fmt.Errorf("bit header: truncated fields: %v", err)
		}
		headerLen++
		if key == 'e' {
			if err = binary.Read(br, binary.BigEndian, &info.Length); err != nil {
				return info, headerLen, fmt.Errorf("bit header: payload length: %v", err)
			}
			headerLen += 4
			return info, headerLen, nil
		}
		val, err := readChunk16(br)
		if err != nil {
			return info, headerLen, fmt.Errorf("bit header: field %c: %v", key, err)
		}
		headerLen += 2 + int64(len(val))
		s := strings.TrimRight(string(val), "\x00")
		switch key {
		case 'a':
			info.Design = s
		case 'b':
			info.Part = s
		case 'c':
			info.Date = s
		case 'd':
			info.Time = s
		default:
			return info, headerLen, fmt.Errorf("bit header: unknown field %02X", key)
		}
	}
}

// ParseFile parses the header and checks that the recorded payload
// length matches exactly the bytes remaining after the header.
func ParseFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	info, headerLen, err := parse(bufio.NewReader(f))
	if err != nil {
		return info, fmt.Errorf("%s: %v", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		return info, err
	}
	if remaining := fi.Size() - headerLen; remaining != int64(info.Length) {
		return info, fmt.Errorf("%s: header claims %d payload bytes, file has %d", path, info.Length, remaining)
	}
	return info, nil
}

// PartMatches reports whether a bitstream part name is plausible for
// the configured target. Vivado part names (xcu50-fsvh2104-2-e) and
// platform names (xilinx_u50_gen3x16_xdma_201920_3) only share the
// family token, so this is a family substring check.
func PartMatches(part, target string) bool {
	family := strings.ToLower(part)
	if i := strings.IndexByte(family, '-'); i >= 0 {
		family = family[:i]
	}
	family = strings.TrimPrefix(family, "xc")
	if family == "" {
		return false
	}
	return strings.Contains(strings.ToLower(target), family)
}

func readChunk16(br *bufio.Reader) ([]byte, error) {
	var n uint16
	if err := binary.Read(br, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
