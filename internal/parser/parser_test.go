package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostProcessText(t *testing.T) {
	in := "  Invoice 42  \n\n\n\nTotal:      100 EUR\n   \nPaid\n"
	assert.Equal(t, "Invoice 42\n\nTotal:   100 EUR\n\nPaid", postProcessText(in))
}

func TestExtractPDFText_NotAPDF(t *testing.T) {
	for _, data := range [][]byte{
		[]byte("plain text, no pdf header"),
		[]byte("%PDF-1.7\nbroken body without xref\n%%EOF"),
		nil,
	} {
		_, err := ExtractPDFText(data)
		assert.ErrorIs(t, err, ErrPDFNotParsed, string(data))
	}
}

func TestValidatePDF(t *testing.T) {
	pdf := []byte("%PDF-1.7\n...")
	assert.NoError(t, ValidatePDF("invoice.PDF", pdf, 100))
	assert.ErrorIs(t, ValidatePDF("invoice.docx", pdf, 100), ErrPDFExtension)
	assert.ErrorIs(t, ValidatePDF("invoice.pdf", pdf, 5), ErrPDFSize)
	assert.ErrorIs(t, ValidatePDF("invoice.pdf", []byte("GIF89a"), 100), ErrPDFMagicNumber)
}

func TestMarkdownToText(t *testing.T) {
	out, err := MarkdownToText([]byte("# Invoice\n\nCustomer **ACME** ltd.\n\n- item one\n- item two\n"))
	require.NoError(t, err)
	assert.Contains(t, out, "Invoice")
	assert.Contains(t, out, "Customer ACME ltd.")
	assert.Contains(t, out, "item one")
	assert.Contains(t, out, "item two")
	assert.NotContains(t, out, "#")
	assert.NotContains(t, out, "**")
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello world"), 0o600))
	out, err := ReadDocument(txt)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	md := filepath.Join(dir, "note.MD")
	require.NoError(t, os.WriteFile(md, []byte("## Title\n\nbody"), 0o600))
	out, err = ReadDocument(md)
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nbody", out)

	_, err = ReadDocument(filepath.Join(dir, "image.png"))
	assert.Error(t, err)

	_, err = ReadDocument(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestExtractTextFromXML(t *testing.T) {
	xml := `<p:sp><a:t>Quarterly</a:t><a:t>report</a:t></p:sp>`
	assert.Equal(t, "Quarterly report ", extractTextFromXML(xml))
}
