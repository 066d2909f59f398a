package rag

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestLoadDocument_Text(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("plain contents"), 0644); err != nil {
		t.Fatal(err)
	}

	text, ok, err := LoadDocument(path)
	if err != nil || !ok {
		t.Fatalf("LoadDocument: ok=%v err=%v", ok, err)
	}
	if text != "plain contents" {
		t.Errorf("text = %q", text)
	}
}

func TestLoadDocument_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	if err := os.WriteFile(path, []byte{0x89}, 0644); err != nil {
		t.Fatal(err)
	}

	_, ok, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("ok = true for .png, want false")
	}
}

func TestLoadDocument_DOCX(t *testing.T) {
	const documentXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	text, ok, err := LoadDocument(path)
	if err != nil || !ok {
		t.Fatalf("LoadDocument: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(text, "First paragraph.") {
		t.Errorf("missing first paragraph: %q", text)
	}
	if !strings.Contains(text, "Second paragraph.") {
		t.Errorf("split runs not joined: %q", text)
	}
	if !strings.Contains(text, "First paragraph.\n") {
		t.Errorf("paragraph boundary lost: %q", text)
	}
}

func TestLoadDocument_XLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.xlsx")

	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "name"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "B1", "qty"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "A2", "bolts"); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	text, ok, err := LoadDocument(path)
	if err != nil || !ok {
		t.Fatalf("LoadDocument: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(text, "name\tqty") {
		t.Errorf("header row missing: %q", text)
	}
	if !strings.Contains(text, "bolts") {
		t.Errorf("data row missing: %q", text)
	}
}

func TestLoadDocument_CorruptDOCX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")
	if err := os.WriteFile(path, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}

	_, ok, err := LoadDocument(path)
	if !ok {
		t.Error("ok = false, want true for a supported extension")
	}
	if err == nil {
		t.Error("expected error for corrupt docx")
	}
}
