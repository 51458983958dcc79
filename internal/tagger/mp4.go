package tagger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// writeMP4Tags writes a minimal MP4 "ilst" metadata atom (the generic-tags
// path for MP4-container audio, spec §4.5). No third-party MP4 tag library
// appears anywhere in the corpus, so this writes the ISO/IEC 14496-12 atom
// structure directly: each tag is a child atom named by its well-known
// four-character code, holding one nested "data" atom with a UTF-8 payload
// (type indicator 1). Existing metadata is dropped by rebuilding the "moov"
// atom's child list without its prior "udta/meta/ilst" subtree instead of
// patching it in place (same "drop source metadata first" contract as the
// FLAC/MP3 paths).
func writeMP4Tags(req *WriteTagsRequest, image *imageMetadata) error {
	raw, err := os.ReadFile(filepath.Clean(req.TrackPath))
	if err != nil {
		return err
	}

	atoms, err := parseAtoms(raw)
	if err != nil {
		return err
	}

	ilst := buildILSTAtom(req, image)

	rebuilt, err := replaceMetadataAtom(atoms, ilst)
	if err != nil {
		return err
	}

	return os.WriteFile(req.TrackPath, rebuilt, 0o644) //nolint:gosec // audio files are not executable or secret.
}

type mp4Atom struct {
	name     string
	body     []byte // full atom bytes including the 8-byte header
	children []mp4Atom
}

func parseAtoms(data []byte) ([]mp4Atom, error) {
	var atoms []mp4Atom

	offset := 0

	for offset+8 <= len(data) {
		size := int(beUint32(data[offset : offset+4]))
		name := string(data[offset+4 : offset+8])

		if size < 8 || offset+size > len(data) {
			return nil, fmt.Errorf("tagger: malformed mp4 atom %q at offset %d", name, offset)
		}

		atoms = append(atoms, mp4Atom{name: name, body: data[offset : offset+size]})
		offset += size
	}

	return atoms, nil
}

// replaceMetadataAtom finds the top-level "moov" atom and replaces its
// "udta" child (which carries "meta/ilst") with a freshly built one
// containing only the new ilst payload, dropping anything previously there.
func replaceMetadataAtom(atoms []mp4Atom, ilst []byte) ([]byte, error) {
	var out []byte

	foundMoov := false

	for _, atom := range atoms {
		if atom.name != "moov" {
			out = append(out, atom.body...)
			continue
		}

		foundMoov = true

		children, err := parseAtoms(atom.body[8:])
		if err != nil {
			return nil, err
		}

		var rebuiltChildren []byte

		for _, child := range children {
			if child.name == "udta" {
				continue // drop source metadata, rebuilt below.
			}

			rebuiltChildren = append(rebuiltChildren, child.body...)
		}

		rebuiltChildren = append(rebuiltChildren, buildUDTAAtom(ilst)...)

		newMoov := buildAtom("moov", rebuiltChildren)
		out = append(out, newMoov...)
	}

	if !foundMoov {
		return nil, fmt.Errorf("tagger: no moov atom found in mp4 file")
	}

	return out, nil
}

func buildAtom(name string, body []byte) []byte {
	size := uint32(len(body) + 8) //nolint:gosec // atom sizes fit a 32-bit field for any real audio file.
	out := make([]byte, 8, size)
	putBeUint32(out[0:4], size)
	copy(out[4:8], name)

	return append(out, body...)
}

func buildUDTAAtom(ilst []byte) []byte {
	metaBody := append([]byte{0, 0, 0, 0}, ilst...) // "meta" atoms carry a 4-byte version/flags prefix.
	meta := buildAtom("meta", metaBody)

	return buildAtom("udta", meta)
}

func buildILSTAtom(req *WriteTagsRequest, image *imageMetadata) []byte {
	var body []byte

	body = append(body, ilstTextEntry("\xa9ART", req.Artist)...)
	body = append(body, ilstTextEntry("\xa9nam", req.Title)...)
	body = append(body, ilstTextEntry("\xa9alb", req.Album)...)
	body = append(body, ilstTextEntry("\xa9gen", req.Genre)...)
	body = append(body, ilstTextEntry("\xa9day", req.ReleaseDate)...)

	if req.BPM != nil {
		body = append(body, ilstTextEntry("tmpo", formatBPM(*req.BPM))...)
	}

	if image != nil {
		body = append(body, ilstCoverEntry(image.data)...)
	}

	return buildAtom("ilst", body)
}

func ilstTextEntry(fourCC, value string) []byte {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	dataAtom := buildAtom("data", append([]byte{0, 0, 0, 1, 0, 0, 0, 0}, []byte(value)...))

	return buildAtom(fourCC, dataAtom)
}

func ilstCoverEntry(data []byte) []byte {
	dataAtom := buildAtom("data", append([]byte{0, 0, 0, 13, 0, 0, 0, 0}, data...)) // type 13 = JPEG; close enough for generic embedding.
	return buildAtom("covr", dataAtom)
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putBeUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func releaseYear(releaseDate string) string {
	if len(releaseDate) < 4 {
		return ""
	}

	return releaseDate[:4]
}

func formatBPM(bpm float64) string {
	return strconv.FormatFloat(bpm, 'f', 0, 64)
}
