package decode

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Office extracts text from OOXML (docx, xlsx, pptx) and OpenDocument
// (odt, ods, odp) files. Both are zip archives of XML parts.
type Office struct{}

type officeFormat struct {
	part func(name string) bool
	// text elements whose character data is kept; ODF keeps everything
	// inside a paragraph.
	text  map[string]bool
	lines map[string]bool
}

var (
	ooxmlText = map[string]bool{"t": true}

	odfFormat = officeFormat{
		part:  func(name string) bool { return name == "content.xml" },
		text:  map[string]bool{"p": true, "h": true},
		lines: map[string]bool{"p": true, "h": true},
	}

	officeFormats = map[string]officeFormat{
		"docx": {
			part: func(name string) bool {
				return name == "word/document.xml" ||
					matchPart("word/header*.xml", name) ||
					matchPart("word/footer*.xml", name)
			},
			text:  ooxmlText,
			lines: map[string]bool{"p": true},
		},
		"pptx": {
			part:  func(name string) bool { return matchPart("ppt/slides/slide*.xml", name) },
			text:  ooxmlText,
			lines: map[string]bool{"p": true},
		},
		"xlsx": {
			part: func(name string) bool {
				return name == "xl/sharedStrings.xml" || matchPart("xl/worksheets/sheet*.xml", name)
			},
			text:  ooxmlText,
			lines: map[string]bool{"si": true, "is": true},
		},
		"odt": odfFormat,
		"ods": odfFormat,
		"odp": odfFormat,
	}

	// inline elements that stand for whitespace
	officeBreaks = map[string]string{
		"tab":        "\t",
		"br":         "\n",
		"line-break": "\n",
		"s":          " ",
	}
)

func matchPart(pattern, name string) bool {
	ok, _ := path.Match(pattern, name)
	return ok
}

func (Office) Name() string { return "office" }

func (Office) MatchesExtension(ext string) bool {
	_, ok := officeFormats[ext]
	return ok
}

func (Office) Decode(file string) (string, error) {
	format, ok := officeFormats[Ext(file)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, file)
	}

	archive, err := zip.OpenReader(file)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	var sb strings.Builder
	found := false
	for _, f := range archive.File {
		if !format.part(f.Name) {
			continue
		}
		found = true
		if err := extractPart(f, format, &sb); err != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if !found {
		return "", fmt.Errorf("%w: no text parts in %s", ErrUnsupported, file)
	}
	return sb.String(), nil
}

func extractPart(f *zip.File, format officeFormat, sb *strings.Builder) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	depth := 0 // nesting of text elements
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if format.text[t.Name.Local] {
				depth++
			}
			if br, ok := officeBreaks[t.Name.Local]; ok {
				sb.WriteString(br)
			}
		case xml.EndElement:
			if format.text[t.Name.Local] && depth > 0 {
				depth--
			}
			if format.lines[t.Name.Local] {
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if depth > 0 {
				sb.Write(t)
			}
		}
	}
}
