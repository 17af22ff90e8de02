// Package extract pulls normalized UTF-8 text out of downloaded document
// bytes, routing scanned PDFs and raster images through an OCR
// collaborator.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/gen2brain/go-fitz"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"

	"github.com/northbound-policy/ingest/internal/apperr"
)

// minCharsPerPage below which a PDF's native text layer is considered
// empty and the document is routed to OCR instead.
const minCharsPerPage = 40

// Result is the normalized output of Extract.
type Result struct {
	Text      string
	IsScanned bool
	Pages     int
}

// OCR performs optical character recognition over scanned pages. The
// production collaborator is an external service; Extractor only depends
// on this narrow interface so tests can substitute a stub.
type OCR interface {
	RecognizeImage(ctx context.Context, img image.Image) (string, error)
	RecognizePDF(ctx context.Context, pdfBytes []byte) (string, error)
}

// Extractor extracts text from the declared content types.
type Extractor struct {
	ocr OCR
}

// New builds an Extractor. ocr may be nil, in which case scanned
// documents come back with IsScanned=true rather than erroring: images with
// empty text, PDFs with whatever sparse native text was found.
func New(ocr OCR) *Extractor {
	return &Extractor{ocr: ocr}
}

// Extract dispatches on declaredType (pdf, docx, pptx, xlsx, html, png,
// jpg, jpeg, tiff) and returns UTF-8, newline-normalized text.
func (e *Extractor) Extract(ctx context.Context, data []byte, declaredType string) (Result, error) {
	switch strings.ToLower(strings.TrimPrefix(declaredType, ".")) {
	case "pdf":
		return e.extractPDF(ctx, data)
	case "docx":
		return e.extractDOCX(data)
	case "pptx":
		return e.extractPPTX(data)
	case "png", "jpg", "jpeg", "tiff", "tif":
		return e.extractImage(ctx, data)
	case "xlsx":
		return e.extractXLSX(data)
	case "html", "htm":
		return e.extractHTML(data)
	default:
		return Result{}, apperr.New(apperr.KindExtractionFailed, "unsupported declared type: "+declaredType)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (Result, error) {
	tmp, err := writeTemp(data, "*.pdf")
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindExtractionFailed, err, "failed to stage PDF for extraction")
	}
	defer os.Remove(tmp)

	doc, err := fitz.New(tmp)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindExtractionFailed, err, "failed to open PDF")
	}
	defer doc.Close()

	pages := doc.NumPage()
	var b strings.Builder
	for i := 0; i < pages; i++ {
		text, err := doc.Text(i)
		if err != nil {
			continue
		}
		b.WriteString(normalizeNewlines(text))
		if i < pages-1 {
			b.WriteString("\n\n")
		}
	}
	text := strings.TrimSpace(b.String())

	if pages == 0 || len(text) < minCharsPerPage*pages {
		if e.ocr == nil {
			return Result{Text: text, IsScanned: true, Pages: pages}, nil
		}
		ocrText, err := e.ocr.RecognizePDF(ctx, data)
		if err != nil {
			return Result{}, apperr.Wrap(apperr.KindExtractionFailed, err, "OCR failed for scanned PDF")
		}
		return Result{Text: normalizeNewlines(ocrText), IsScanned: true, Pages: pages}, nil
	}
	return Result{Text: text, IsScanned: false, Pages: pages}, nil
}

func (e *Extractor) extractDOCX(data []byte) (Result, error) {
	tmp, err := writeTemp(data, "*.docx")
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindExtractionFailed, err, "failed to stage DOCX for extraction")
	}
	defer os.Remove(tmp)

	doc, err := docx.ReadDocxFile(tmp)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindExtractionFailed, err, "failed to open DOCX")
	}
	defer doc.Close()

	text := normalizeNewlines(strings.TrimSpace(doc.Editable().GetContent()))
	if text == "" {
		return Result{}, apperr.New(apperr.KindExtractionFailed, "no text extracted from DOCX")
	}
	return Result{Text: text, Pages: 1}, nil
}

// extractPPTX does not read slide text: every pptx input, whatever its
// contents, returns a typed ExtractionFailed.
func (e *Extractor) extractPPTX(data []byte) (Result, error) {
	return Result{}, apperr.New(apperr.KindExtractionFailed, "pptx extraction requires the slide-text collaborator")
}

// extractXLSX renders each sheet as "Row N: Header: Value, ..." lines,
// using the first row of each sheet as column headers.
func (e *Extractor) extractXLSX(data []byte) (Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindExtractionFailed, err, "failed to open XLSX")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, apperr.New(apperr.KindExtractionFailed, "no sheets found in XLSX")
	}

	var b strings.Builder
	for i, sheet := range sheets {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Sheet: " + sheet + "\n")

		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		headers := rows[0]
		for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
			row := rows[rowIdx]
			var parts []string
			for colIdx, header := range headers {
				if colIdx >= len(row) {
					continue
				}
				value := strings.TrimSpace(row[colIdx])
				if value == "" {
					continue
				}
				name := strings.TrimSpace(header)
				if name == "" {
					name = fmt.Sprintf("Column %d", colIdx+1)
				}
				parts = append(parts, fmt.Sprintf("%s: %s", name, value))
			}
			if len(parts) > 0 {
				b.WriteString(fmt.Sprintf("Row %d: %s\n", rowIdx+1, strings.Join(parts, ", ")))
			}
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return Result{}, apperr.New(apperr.KindExtractionFailed, "no content extracted from XLSX")
	}
	return Result{Text: text, Pages: len(sheets)}, nil
}

// extractHTML converts a scraped page that is itself the document (an
// inline notice with no downloadable attachment) into markdown, so it
// chunks and reads the same as any other extracted text.
func (e *Extractor) extractHTML(data []byte) (Result, error) {
	converter := htmlmd.NewConverter("", true, nil)
	md, err := converter.ConvertString(string(data))
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindExtractionFailed, err, "failed to convert HTML to markdown")
	}
	text := normalizeNewlines(strings.TrimSpace(md))
	if text == "" {
		return Result{}, apperr.New(apperr.KindExtractionFailed, "no content extracted from HTML")
	}
	return Result{Text: text, Pages: 1}, nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) (Result, error) {
	if e.ocr == nil {
		return Result{IsScanned: true, Pages: 1}, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindExtractionFailed, err, "failed to decode image")
	}
	text, err := e.ocr.RecognizeImage(ctx, img)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindExtractionFailed, err, "OCR failed for image")
	}
	return Result{Text: normalizeNewlines(text), IsScanned: true, Pages: 1}, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

func writeTemp(data []byte, pattern string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
