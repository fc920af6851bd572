// gd3.go - GD3 metadata tag codec: 11 fixed UTF-16LE fields, double-null
// terminated, with a 12-byte "Gd3 "+version+length header.
//
// Grounded on yalue-midi's chunk-header-then-payload serialization shape
// (magic, size, content) adapted from SMF chunks to the GD3 tag layout;
// field-count and ordering come from the VGM 1.51 GD3 specification named
// in the glossary.
package opl9

import (
	"encoding/binary"
	"unicode/utf16"
	"unicode/utf8"
)

const gd3Magic = "Gd3 "

// GD3Tag holds the eleven fixed metadata fields a VGM file may carry.
type GD3Tag struct {
	TitleEN, TitleJP   string
	GameEN, GameJP     string
	SystemEN, SystemJP string
	AuthorEN, AuthorJP string
	Date               string
	ConvertedBy        string
	Notes              string
}

func (g *GD3Tag) fields() []string {
	return []string{
		g.TitleEN, g.TitleJP,
		g.GameEN, g.GameJP,
		g.SystemEN, g.SystemJP,
		g.AuthorEN, g.AuthorJP,
		g.Date,
		g.ConvertedBy,
		g.Notes,
	}
}

// Serialize never fails: a field that is not valid UTF-8 degrades to an
// empty string rather than aborting the whole tag.
func (g *GD3Tag) Serialize() []byte {
	var payload []byte
	for _, f := range g.fields() {
		payload = append(payload, utf16LEBytes(f)...)
		payload = append(payload, 0x00, 0x00)
	}
	out := make([]byte, 0, 12+len(payload))
	out = append(out, gd3Magic...)
	out = append(out, 0x00, 0x01, 0x00, 0x00) // version 1.00
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(payload)))
	out = append(out, lenBuf...)
	out = append(out, payload...)
	return out
}

func utf16LEBytes(s string) []byte {
	if s == "" {
		return nil
	}
	if !utf8.ValidString(s) {
		return nil
	}
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[i*2:], u)
	}
	return b
}

// ParseGD3 decodes a "Gd3 " chunk. It terminates each field read on a NUL
// pair regardless of what the length field claims, so a corrupt length
// cannot desynchronize field boundaries.
func ParseGD3(data []byte) (*GD3Tag, error) {
	if len(data) < 12 || string(data[0:4]) != gd3Magic {
		return nil, newErr(ErrBadMagic, "gd3: missing 'Gd3 ' magic")
	}
	length := binary.LittleEndian.Uint32(data[8:12])
	payload := data[12:]
	if uint32(len(payload)) > length {
		payload = payload[:length]
	}

	var fields []string
	pos := 0
	for len(fields) < 11 && pos < len(payload) {
		start := pos
		for pos+1 < len(payload) && !(payload[pos] == 0 && payload[pos+1] == 0) {
			pos += 2
		}
		raw := payload[start:pos]
		units := make([]uint16, len(raw)/2)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(raw[i*2:])
		}
		fields = append(fields, string(utf16.Decode(units)))
		pos += 2
	}
	for len(fields) < 11 {
		fields = append(fields, "")
	}

	return &GD3Tag{
		TitleEN: fields[0], TitleJP: fields[1],
		GameEN: fields[2], GameJP: fields[3],
		SystemEN: fields[4], SystemJP: fields[5],
		AuthorEN: fields[6], AuthorJP: fields[7],
		Date:        fields[8],
		ConvertedBy: fields[9],
		Notes:       fields[10],
	}, nil
}
