// Package flux reads event scripts saved by the Temporal Flux editor.
//
// A .flux file starts with a 0x17-byte header. The script length sits at
// 0x13 and counts from 0x17, where the object count byte begins the same
// packet the ROM stores. The string table follows the script as ASCII
// records that are re-encoded for the game.
package flux

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/fortiblox/eventforge/pkg/ctstring"
	"github.com/fortiblox/eventforge/pkg/script"
)

const (
	lengthOffset = 0x13
	packetOffset = 0x17

	// Bytes between the string count and the first record.
	stringGap = 3

	// A byte below this after a record's length extends the length.
	extendLimit = 12
)

// ErrFormat is returned for files that do not parse as flux scripts.
var ErrFormat = errors.New("malformed flux file")

// placeholder fills string slots the file never defines.
var placeholder = []byte("error!{null}")

var log = commonlog.GetLogger("eventforge.flux")

// ParseFile reads and parses a .flux file.
func ParseFile(path string) (*script.Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flux: %w", err)
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func formatf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

// Parse decodes a flux file into a script with the same shape a ROM decode
// produces. The string table is marked modified, since it has no home in
// the ROM yet.
func Parse(b []byte) (*script.Script, error) {
	if len(b) < packetOffset+1 {
		return nil, formatf("file of %d bytes is shorter than the header", len(b))
	}
	end := packetOffset + int(binary.LittleEndian.Uint16(b[lengthOffset:]))
	if end > len(b) || end <= packetOffset {
		return nil, formatf("script length 0x%X runs past the file", end-packetOffset)
	}
	s, err := script.FromPacket(b[packetOffset:end])
	if err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if end == len(b) {
		return s, nil
	}

	strs, err := parseStrings(b, end)
	if err != nil {
		return nil, err
	}
	s.SetStrings(strs)
	if len(strs) > 0 {
		s.MarkStringsModified()
	}
	log.Debugf("parsed flux script: %d objects, %d bytes, %d strings", s.NumObjects(), s.Len(), len(strs))
	return s, nil
}

func parseStrings(b []byte, pos int) ([][]byte, error) {
	count := int(b[pos])
	fill, err := encode(placeholder)
	if err != nil {
		return nil, err
	}
	strs := make([][]byte, count)
	for i := range strs {
		strs[i] = fill
	}

	pos += 1 + stringGap
	for pos < len(b) {
		if pos+2 > len(b) {
			return nil, formatf("truncated string record at 0x%X", pos)
		}
		index, n := int(b[pos]), int(b[pos+1])
		pos += 2
		if pos < len(b) && b[pos] < extendLimit {
			n += 0x80 * (int(b[pos]) - 1)
			pos++
		}
		if index >= count {
			return nil, formatf("string %d of %d at 0x%X", index, count, pos)
		}
		if n < 0 || pos+n > len(b) {
			return nil, formatf("string %d of length %d runs past the file", index, n)
		}
		str, err := encode(b[pos : pos+n])
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", index, err)
		}
		strs[index] = str
		pos += n
	}
	return strs, nil
}

// encode strips the padding zeros flux stores between ASCII characters and
// converts the text. The result always ends in the 0x00 terminator.
func encode(raw []byte) ([]byte, error) {
	text := make([]byte, 0, len(raw))
	for _, c := range raw {
		if c != 0 {
			text = append(text, c)
		}
	}
	ct, err := ctstring.Encode(string(text))
	if err != nil {
		return nil, err
	}
	if len(ct) == 0 || ct[len(ct)-1] != 0 {
		ct = append(ct, 0)
	}
	return ct, nil
}
