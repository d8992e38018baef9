package ctstring

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []byte
	}{
		{"letters", "Az", []byte{0xA0, 0xD3}},
		{"digits", "09", []byte{0xD4, 0xDD}},
		{"symbols", "!?...", []byte{0xDE, 0xDF, 0xF1}},
		{"space", "A B", []byte{0xA0, 0xEF, 0xA1}},
		{"keyword", "{Crono}{null}", []byte{0x13, 0x00}},
		{"braced symbol", `{"1}{note}`, []byte{0xE1, 0xEE}},
		{"delay", "{delay 1A}", []byte{0x03, 0x1A}},
		{"substring", "{sub 21}{sub 9F}", []byte{0x21, 0x9F}},
		{"crlf is a line break", "A\r\nB", []byte{0xA0, 0x05, 0xA1}},
		{"crlf after a break is formatting", "A{line break}\r\nB", []byte{0xA0, 0x06, 0xA1}},
		{"crlf after a name is kept", "{marle}\r\n", []byte{0x14, 0x05}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.text)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode(%q) = % X, want % X", tt.text, got, tt.want)
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	for _, text := range []string{"{unclosed", "{bogus}", "{sub 10}", "{delay zz}", "~", "\n"} {
		if _, err := Encode(text); !errors.Is(err, ErrUnknownToken) {
			t.Errorf("Encode(%q) err = %v", text, err)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		ct   []byte
		want string
	}{
		{[]byte{0xA7, 0xBE, 0xC5, 0xC5, 0xC8, 0xDE, 0x00}, "Hello!{null}"},
		{[]byte{0x03, 0x10, 0x1F}, "{delay 10}{item}"},
		{[]byte{0x45, 0xFF, 0xF5}, "{sub 45} {byte F5}"},
		{[]byte{0x03}, "{delay}"},
	}
	for _, tt := range tests {
		if got := Decode(tt.ct); got != tt.want {
			t.Errorf("Decode(% X) = %q, want %q", tt.ct, got, tt.want)
		}
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	var all []byte
	for c := 0; c < 0x100; c++ {
		if c == codeDelay || c == wideSpace {
			continue
		}
		all = append(all, byte(c))
	}
	all = append(all, codeDelay, 0x7F)

	got, err := Encode(Decode(all))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, all) {
		t.Errorf("round trip changed the bytes:\n got % X\nwant % X", got, all)
	}
}
