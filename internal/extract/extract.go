// Package extract turns raw document bytes into plain text. Four formats
// are supported: plain text, DOCX, PDF, and HWP. Extraction that yields no
// text at all is an error, so downstream stages never index empty documents.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding/korean"

	"github.com/docloom/docloom/types"
)

// Text extracts plain text from raw file bytes, dispatching on the path's
// extension.
func Text(path string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var text string
	var err error
	switch ext {
	case ".txt":
		text, err = fromTxt(data)
	case ".docx":
		text, err = fromDocx(data)
	case ".pdf":
		text, err = fromPdf(data)
	case ".hwp":
		text, err = fromHwp(data)
	default:
		return "", types.E(types.Unsupported, fmt.Sprintf("unsupported file type %q", ext), nil)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", types.E(types.ExtractionFailed, fmt.Sprintf("no text extracted from %s", filepath.Base(path)), nil)
	}
	return text, nil
}

// FromFile reads path from fs and extracts its text.
func FromFile(fs afero.Fs, path string) (string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", types.E(types.NotFound, fmt.Sprintf("read %s", path), err)
	}
	return Text(path, data)
}

// fromTxt decodes a text file, falling back to EUC-KR/CP949 when the bytes
// are not valid UTF-8.
func fromTxt(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := korean.EUCKR.NewDecoder().Bytes(data)
	if err != nil {
		return "", types.E(types.ExtractionFailed, "decode text file", err)
	}
	return string(decoded), nil
}

// fromDocx pulls the paragraph text out of word/document.xml, one line per
// paragraph. Empty paragraphs stay as blank lines, matching how the
// document reads.
func fromDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", types.E(types.ExtractionFailed, "open docx container", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", types.E(types.ExtractionFailed, "docx has no word/document.xml", nil)
	}
	rc, err := doc.Open()
	if err != nil {
		return "", types.E(types.ExtractionFailed, "open word/document.xml", err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return "", types.E(types.ExtractionFailed, "parse word/document.xml", err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

func docxParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var paragraphs []string
	var para strings.Builder
	inParagraph := false
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				para.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if inParagraph {
					paragraphs = append(paragraphs, para.String())
					inParagraph = false
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inParagraph && inText {
				para.Write([]byte(t))
			}
		}
	}
	return paragraphs, nil
}
