package rag

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// LoadDocument reads the file at path and extracts its plain text. The
// second return value is false when the extension is not supported.
func LoadDocument(path string) (string, bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", true, fmt.Errorf("rag: read %s: %w", path, err)
		}
		return string(data), true, nil
	case ".pdf":
		text, err := loadPDF(path)
		return text, true, err
	case ".xlsx":
		text, err := loadXLSX(path)
		return text, true, err
	case ".docx":
		text, err := loadDOCX(path)
		return text, true, err
	default:
		return "", false, nil
	}
}

func loadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("rag: open pdf %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("rag: extract pdf text %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("rag: extract pdf text %s: %w", path, err)
	}
	return buf.String(), nil
}

func loadXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("rag: open spreadsheet %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("rag: read sheet %s of %s: %w", sheet, path, err)
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// loadDOCX pulls the text runs out of word/document.xml. Paragraph ends
// become newlines; all other structure is dropped.
func loadDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("rag: open docx %s: %w", path, err)
	}
	defer zr.Close()

	var doc io.ReadCloser
	for _, zf := range zr.File {
		if zf.Name == "word/document.xml" {
			doc, err = zf.Open()
			if err != nil {
				return "", fmt.Errorf("rag: open docx %s: %w", path, err)
			}
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("rag: %s has no word/document.xml", path)
	}
	defer doc.Close()

	dec := xml.NewDecoder(doc)
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("rag: parse docx %s: %w", path, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
