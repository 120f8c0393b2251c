package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docloom/docloom/types"
)

// fromPdf joins the plain text of every page that has any. Pages that fail
// to decode are skipped rather than failing the whole document.
func fromPdf(data []byte) (text string, err error) {
	// The pdf library panics on some malformed files; treat that as a
	// normal extraction failure.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = types.E(types.ExtractionFailed, fmt.Sprintf("pdf parser panic: %v", r), nil)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", types.E(types.ExtractionFailed, "open pdf", err)
	}
	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("skipping unreadable pdf page", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\n"), nil
}
