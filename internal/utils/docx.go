package utils

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// DOCXToText extracts paragraph text from a DOCX document
func DOCXToText(data []byte) (string, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("invalid DOCX: not a valid ZIP file: %w", err)
	}

	for _, file := range zipReader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, 4*MaxDocumentTextSize))
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read document.xml: %w", err)
		}
		text := NormalizeText(paragraphsFromDOCXML(content))
		return TruncateText(text, MaxDocumentTextSize), nil
	}

	return "", fmt.Errorf("invalid DOCX: missing word/document.xml")
}

// paragraphsFromDOCXML joins the runs of each w:p, one paragraph per blank-line block
func paragraphsFromDOCXML(xmlContent []byte) string {
	var out strings.Builder
	var paragraph strings.Builder
	inParagraph := false
	decoder := xml.NewDecoder(bytes.NewReader(xmlContent))

	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				inParagraph = true
				paragraph.Reset()
			case "tab":
				paragraph.WriteString(" ")
			case "br":
				paragraph.WriteString("\n")
			}
		case xml.EndElement:
			if t.Name.Local == "p" && t.Name.Space == wordprocessingNS {
				if text := strings.TrimSpace(paragraph.String()); text != "" {
					out.WriteString(text)
					out.WriteString("\n\n")
				}
				inParagraph = false
			}
		case xml.CharData:
			if inParagraph {
				paragraph.Write(t)
			}
		}
	}

	return out.String()
}
