package decode

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, name string, parts map[string]string) string {
	t.Helper()

	file := filepath.Join(t.TempDir(), name)
	f, err := os.Create(file)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for partName, body := range parts {
		w, err := zw.Create(partName)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return file
}

func TestOfficeDecodesDocx(t *testing.T) {
	file := writeZip(t, "report.DOCX", map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml": `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Quarterly</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve"> figures</w:t></w:r></w:p>
    <w:p><w:r><w:t>second line</w:t></w:r></w:p>
  </w:body>
</w:document>`,
	})

	text, err := Office{}.Decode(file)
	require.NoError(t, err)
	require.Equal(t, "Quarterly\t figures\nsecond line\n", text)
}

func TestOfficeDecodesSharedStrings(t *testing.T) {
	file := writeZip(t, "book.xlsx", map[string]string{
		"xl/sharedStrings.xml": `<sst><si><t>alpha</t></si><si><r><t>be</t></r><r><t>ta</t></r></si></sst>`,
	})

	text, err := Office{}.Decode(file)
	require.NoError(t, err)
	require.Equal(t, "alpha\nbeta\n", text)
}

func TestOfficeDecodesOpenDocument(t *testing.T) {
	file := writeZip(t, "notes.odt", map[string]string{
		"content.xml": `<office:document-content xmlns:office="o" xmlns:text="t">
<office:body><office:text>
<text:h>Title</text:h>
<text:p>one<text:s/><text:span>two</text:span></text:p>
</office:text></office:body></office:document-content>`,
	})

	text, err := Office{}.Decode(file)
	require.NoError(t, err)
	require.Equal(t, "Title\none two\n", text)
}

func TestOfficeRejectsArchiveWithoutText(t *testing.T) {
	file := writeZip(t, "empty.pptx", map[string]string{"docProps/app.xml": `<x/>`})

	_, err := Office{}.Decode(file)
	require.True(t, errors.Is(err, ErrUnsupported))
}

func TestOfficeFailsOnNonArchive(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fake.docx")
	require.NoError(t, os.WriteFile(file, []byte("plain text"), 0o644))

	_, err := Office{}.Decode(file)
	require.Error(t, err)
}

func TestPDFFailsOnGarbage(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(file, []byte("not a pdf"), 0o644))

	_, err := PDF{}.Decode(file)
	require.Error(t, err)
}

func TestFor(t *testing.T) {
	r := require.New(t)

	names := func(list []Decoder) []string {
		var out []string
		for _, d := range list {
			out = append(out, d.Name())
		}
		return out
	}

	r.Equal([]string{"pdf"}, names(For(Default(), "/tmp/a.PDF")))
	r.Equal([]string{"office"}, names(For(Default(), "deck.pptx")))
	r.Empty(For(Default(), "notes.txt"))
	r.Empty(For(Default(), "Makefile"))
	r.Equal("tar", Ext("archive.Tar"))
}
