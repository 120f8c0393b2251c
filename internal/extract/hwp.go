package extract

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/unicode"

	"github.com/docloom/docloom/types"
)

// HWP 5.x stores its body as records inside BodyText/Section streams of an
// OLE compound file. Record header layout (uint32 little-endian):
// bits 0-9 tag, bits 10-19 level, bits 20-31 size.
const (
	hwpHeaderStream   = "FileHeader"
	hwpSummaryStream  = "\x05HwpSummaryInformation"
	hwpSectionPrefix  = "BodyText/Section"
	hwpParaTextTag    = 67
	hwpCompressedBit  = 0x01
	hwpHeaderAttrByte = 36
)

var (
	hwpUTF16 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	wsRun    = regexp.MustCompile(`\s+`)
)

// fromHwp extracts paragraph text from every body section, in section order.
func fromHwp(data []byte) (string, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", types.E(types.ExtractionFailed, "open hwp container", err)
	}

	var header []byte
	haveSummary := false
	type section struct {
		n    int
		data []byte
	}
	var sections []section

	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		name := streamName(entry)
		switch {
		case name == hwpHeaderStream:
			header, _ = io.ReadAll(entry)
		case name == hwpSummaryStream:
			haveSummary = true
		case strings.HasPrefix(name, hwpSectionPrefix):
			n, convErr := strconv.Atoi(strings.TrimPrefix(name, hwpSectionPrefix))
			if convErr != nil {
				continue
			}
			raw, readErr := io.ReadAll(entry)
			if readErr != nil {
				slog.Debug("skipping unreadable hwp section", "section", n, "error", readErr)
				continue
			}
			sections = append(sections, section{n: n, data: raw})
		}
	}

	if len(header) <= hwpHeaderAttrByte || !haveSummary {
		return "", types.E(types.ExtractionFailed, "not a valid hwp document", nil)
	}
	compressed := header[hwpHeaderAttrByte]&hwpCompressedBit != 0

	sort.Slice(sections, func(i, j int) bool { return sections[i].n < sections[j].n })

	var parts []string
	for _, sec := range sections {
		body := sec.data
		if compressed {
			// Body streams use raw DEFLATE, no zlib header.
			fr := flate.NewReader(bytes.NewReader(body))
			inflated, err := io.ReadAll(fr)
			_ = fr.Close()
			if err != nil {
				slog.Debug("skipping undecodable hwp section", "section", sec.n, "error", err)
				continue
			}
			body = inflated
		}
		if text := sectionText(body); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

func streamName(entry *mscfb.File) string {
	if len(entry.Path) == 0 {
		return entry.Name
	}
	return strings.Join(entry.Path, "/") + "/" + entry.Name
}

// sectionText walks a section's records and decodes every paragraph-text
// record it finds.
func sectionText(body []byte) string {
	var texts []string
	i := 0
	for i+4 <= len(body) {
		h := binary.LittleEndian.Uint32(body[i:])
		tag := h & 0x3FF
		size := int(h >> 20 & 0xFFF)
		i += 4
		if i+size > len(body) {
			break
		}
		if tag == hwpParaTextTag {
			if t := cleanParaText(decodeUTF16LE(body[i : i+size])); t != "" {
				texts = append(texts, t)
			}
		}
		i += size
	}
	return strings.Join(texts, "\n")
}

func decodeUTF16LE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	out, err := hwpUTF16.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(out)
}

// cleanParaText drops the inline control codes HWP embeds between
// characters and collapses the whitespace runs they leave behind.
func cleanParaText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(wsRun.ReplaceAllString(sb.String(), " "))
}
