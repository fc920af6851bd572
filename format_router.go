// format_router.go - input classification and the VGM/VGZ/FM9
// pass-through path (re-wrap and GD3 merge without re-driving a player).
//
// Grounded on unified_converter.cpp's top-level dispatch, which branches
// on extension before deciding whether a file needs a driver loop at all.
package opl9

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
)

// RouteCategory says which conversion path an input file should take.
type RouteCategory int

const (
	RouteVGMPass RouteCategory = iota
	RouteMIDIStyle
	RouteTracker
	RouteNativeOPL
	RouteUnknown
)

var vgmExt = map[string]bool{".vgm": true, ".vgz": true, ".fm9": true}
var midiStyleExt = map[string]bool{".hmp": true, ".hmi": true, ".mid": true, ".midi": true, ".xmi": true, ".mus": true, ".kar": true}
var trackerExt = map[string]bool{".s3m": true, ".mod": true, ".xm": true, ".it": true}

// ClassifyInput chooses a route from the file extension alone; content
// sniffing for ambiguous or extensionless inputs is left to the calling
// driver, which knows what player backends it has registered.
func ClassifyInput(filename string) RouteCategory {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case vgmExt[ext]:
		return RouteVGMPass
	case midiStyleExt[ext]:
		return RouteMIDIStyle
	case trackerExt[ext]:
		return RouteTracker
	case ext == "":
		return RouteUnknown
	default:
		return RouteNativeOPL
	}
}

// OpenInputFile reads path, wrapping any OS-level failure as an
// ErrInputOpen carrying the offending path so a CLI driver can report it as
// a typed error rather than propagating a raw os.PathError string.
func OpenInputFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newErrPath(ErrInputOpen, err.Error(), path)
	}
	return data, nil
}

// DefaultSourceFormat maps a classified route to the source-format range
// anchor an FM9Builder should use when the caller has no more specific
// per-format code from the (out-of-scope) ~120-entry registry.
func DefaultSourceFormat(route RouteCategory) uint8 {
	switch route {
	case RouteVGMPass:
		return SourceFormatPassthrough
	case RouteMIDIStyle:
		return SourceFormatMIDIStyle
	case RouteTracker:
		return SourceFormatTracker
	default: // RouteNativeOPL, RouteUnknown
		return SourceFormatNativeOPL
	}
}

func mergeGD3(existing, overrides *GD3Tag) *GD3Tag {
	if existing == nil && overrides == nil {
		return nil
	}
	merged := &GD3Tag{}
	if existing != nil {
		*merged = *existing
	}
	if overrides == nil {
		return merged
	}
	pick := func(o, e string) string {
		if o != "" {
			return o
		}
		return e
	}
	merged.TitleEN = pick(overrides.TitleEN, merged.TitleEN)
	merged.TitleJP = pick(overrides.TitleJP, merged.TitleJP)
	merged.GameEN = pick(overrides.GameEN, merged.GameEN)
	merged.GameJP = pick(overrides.GameJP, merged.GameJP)
	merged.SystemEN = pick(overrides.SystemEN, merged.SystemEN)
	merged.SystemJP = pick(overrides.SystemJP, merged.SystemJP)
	merged.AuthorEN = pick(overrides.AuthorEN, merged.AuthorEN)
	merged.AuthorJP = pick(overrides.AuthorJP, merged.AuthorJP)
	merged.Date = pick(overrides.Date, merged.Date)
	merged.ConvertedBy = pick(overrides.ConvertedBy, merged.ConvertedBy)
	merged.Notes = pick(overrides.Notes, merged.Notes)
	return merged
}

func patchVGMTrailer(buf []byte, gd3Start int, hasGD3 bool) {
	binary.LittleEndian.PutUint32(buf[0x04:0x08], uint32(len(buf))-4)
	if hasGD3 {
		binary.LittleEndian.PutUint32(buf[0x14:0x18], uint32(gd3Start-0x14))
	} else {
		binary.LittleEndian.PutUint32(buf[0x14:0x18], 0)
	}
}

// PrepareVGMPassthrough loads an existing VGM, VGZ, or FM9 file, strips
// any FM9 extension trailing the VGM body, merges CLI-supplied GD3 fields
// with whatever tag was already embedded (CLI wins field-by-field), and
// returns a byte-exact VGM ready for re-wrapping into VGZ or a fresh FM9.
func PrepareVGMPassthrough(data []byte, overrides *GD3Tag) ([]byte, error) {
	raw := data
	if len(raw) >= 2 && raw[0] == 0x1F && raw[1] == 0x8B {
		var err error
		raw, err = GzipUnwrap(raw)
		if err != nil {
			return nil, err
		}
	}
	if len(raw) < 0x40 || string(raw[0:4]) != "Vgm " {
		return nil, newErr(ErrBadMagic, "vgm: missing 'Vgm ' magic")
	}

	if idx := bytes.Index(raw, []byte(fm9Magic)); idx != -1 {
		raw = raw[:idx]
	}

	var existing *GD3Tag
	gd3Offset := binary.LittleEndian.Uint32(raw[0x14:0x18])
	body := raw
	if gd3Offset != 0 {
		gd3Start := 0x14 + int(gd3Offset)
		if gd3Start >= 0 && gd3Start < len(raw) {
			if tag, err := ParseGD3(raw[gd3Start:]); err == nil {
				existing = tag
			}
			body = raw[:gd3Start]
		}
	}

	merged := mergeGD3(existing, overrides)
	out := append([]byte{}, body...)
	hasGD3 := merged != nil
	gd3Start := len(out)
	if hasGD3 {
		out = append(out, merged.Serialize()...)
	}
	patchVGMTrailer(out, gd3Start, hasGD3)
	return out, nil
}
