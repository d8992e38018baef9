// Package ctstring converts between the game's text encoding and a readable
// ASCII form with {keyword} tokens for control codes and names.
package ctstring

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Code ranges.
const (
	controlEnd = 0x21 // [0x00, 0x21) control codes
	subEnd     = 0xA0 // [0x21, 0xA0) substring references
	upperStart = 0xA0
	lowerStart = 0xBA
	digitStart = 0xD4
	symStart   = 0xDE
	wideSpace  = 0xFF

	codeDelay     = 0x03
	codeLinebreak = 0x05
)

// ErrUnknownToken is returned by Encode for text it cannot represent.
var ErrUnknownToken = errors.New("unknown text token")

var keywords = [controlEnd]string{
	"null", "unused 0x01", "unused 0x02", "delay",
	"unused 0x04", "linebreak+0", "line break",
	"pause linebreak", "pause linebreak+3",
	"instant full break", "page break+3",
	"full break", "page break",
	"value 8", "value 16", "value 32",
	"unused 0x10", "prev substr", "tech name",
	"crono", "marle", "lucca", "robo", "frog", "ayla",
	"magus", "crononick", "pc1", "pc2", "pc3", "nadia",
	"item", "epoch",
}

var symbols = []string{
	"!", "?", "/", `{"1}`, `{"2}`, ":", "&", "(", ")", "'", ".",
	",", "=", "-", "+", "%", "{note}", " ", "{:heart:}", "...",
	"{:inf:}", "{none}",
}

// Control codes after which a literal CRLF is only formatting.
var breakCodes = map[byte]bool{5: true, 6: true, 7: true, 8: true, 10: true, 11: true, 12: true}

var (
	keywordCode = map[string]byte{}
	symbolCode  = map[string]byte{}
)

func init() {
	for i, k := range keywords {
		keywordCode[k] = byte(i)
	}
	for i, s := range symbols {
		symbolCode[s] = byte(symStart + i)
	}
}

// Decode renders ct as ASCII. Substring references print as {sub XX} and
// bytes with no meaning as {byte XX}, so Encode can restore every input.
func Decode(ct []byte) string {
	var sb strings.Builder
	for pos := 0; pos < len(ct); pos++ {
		c := ct[pos]
		switch {
		case c == codeDelay && pos+1 < len(ct):
			pos++
			fmt.Fprintf(&sb, "{delay %02X}", ct[pos])
		case c < controlEnd:
			sb.WriteString("{" + keywords[c] + "}")
		case c < subEnd:
			fmt.Fprintf(&sb, "{sub %02X}", c)
		case c < lowerStart:
			sb.WriteByte('A' + c - upperStart)
		case c < digitStart:
			sb.WriteByte('a' + c - lowerStart)
		case c < symStart:
			sb.WriteByte('0' + c - digitStart)
		case int(c) < symStart+len(symbols):
			sb.WriteString(symbols[c-symStart])
		case c == wideSpace:
			sb.WriteByte(' ')
		default:
			fmt.Fprintf(&sb, "{byte %02X}", c)
		}
	}
	return sb.String()
}

// Encode converts ASCII text with {keyword} tokens to the game encoding.
// A CRLF becomes a line break unless it directly follows a break code.
func Encode(text string) ([]byte, error) {
	var out []byte
	for pos := 0; pos < len(text); {
		c := text[pos]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, upperStart+c-'A')
			pos++
		case c >= 'a' && c <= 'z':
			out = append(out, lowerStart+c-'a')
			pos++
		case c >= '0' && c <= '9':
			out = append(out, digitStart+c-'0')
			pos++
		case c == '\r' && pos+1 < len(text) && text[pos+1] == '\n':
			out = append(out, codeLinebreak)
			pos += 2
		case c == '{':
			end := strings.IndexByte(text[pos:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed brace at %d", ErrUnknownToken, pos)
			}
			b, err := encodeBraced(text[pos : pos+end+1])
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
			pos += end + 1
			if len(b) == 1 && breakCodes[b[0]] && strings.HasPrefix(text[pos:], "\r\n") {
				pos += 2
			}
		default:
			code, ok := matchSymbol(text[pos:])
			if !ok {
				return nil, fmt.Errorf("%w: %q at %d", ErrUnknownToken, c, pos)
			}
			out = append(out, code)
			pos += len(symbols[code-symStart])
		}
	}
	return out, nil
}

// matchSymbol finds the longest plain symbol at the start of s.
func matchSymbol(s string) (byte, bool) {
	best, found := byte(0), false
	for i, sym := range symbols {
		if sym[0] == '{' || !strings.HasPrefix(s, sym) {
			continue
		}
		if !found || len(sym) > len(symbols[best-symStart]) {
			best, found = byte(symStart+i), true
		}
	}
	return best, found
}

// encodeBraced handles one {token}, braces included.
func encodeBraced(tok string) ([]byte, error) {
	if code, ok := symbolCode[tok]; ok {
		return []byte{code}, nil
	}
	inner := strings.ToLower(tok[1 : len(tok)-1])
	if code, ok := keywordCode[inner]; ok {
		return []byte{code}, nil
	}
	name, arg, ok := strings.Cut(inner, " ")
	if ok {
		v, err := strconv.ParseUint(arg, 16, 8)
		if err == nil {
			switch name {
			case "delay":
				return []byte{codeDelay, byte(v)}, nil
			case "sub":
				if v >= controlEnd && v < subEnd {
					return []byte{byte(v)}, nil
				}
			case "byte":
				return []byte{byte(v)}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownToken, tok)
}
