package dmarc

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
)

// some xmls contain invalid XML by adding an unclosed xs tag
const xsTag = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="http://dmarc.org/dmarc-xml/0.1">`

// https://en.wikipedia.org/wiki/List_of_file_signatures
var (
	gzMagic   = []byte{31, 139}
	zipMagics = [][]byte{
		{80, 75, 3, 4},
		{80, 75, 5, 6},
		{80, 75, 7, 8},
	}
)

func isGZ(content []byte) bool {
	return bytes.HasPrefix(content, gzMagic)
}

func isZIP(content []byte) bool {
	for _, magic := range zipMagics {
		if bytes.HasPrefix(content, magic) {
			return true
		}
	}
	return false
}

func readGZ(content []byte) ([]byte, error) {
	buf := bytes.NewBuffer(content)
	gz, err := gzip.NewReader(buf)
	if err != nil {
		return nil, fmt.Errorf("could not gzip read: %w", err)
	}
	defer gz.Close()

	xmlContent, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("could not read: %w", err)
	}
	return xmlContent, nil
}

func readZIP(content []byte) ([]byte, error) {
	buf := bytes.NewReader(content)
	r, err := zip.NewReader(buf, int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("could not open zip: %w", err)
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		x, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("could not open file %s inside zip: %w", f.Name, err)
		}
		xmlContent, err := io.ReadAll(x)
		if err != nil {
			return nil, fmt.Errorf("could not read file %s inside zip: %w", f.Name, err)
		}
		// only use the first file in the zip file
		return xmlContent, nil
	}
	return nil, errors.New("no valid file found within zip archive")
}

// extractXML returns the xml payload of a report file. Vendors regularly
// deliver gzip or zip compressed payloads under an .xml name, so the content
// is sniffed by magic bytes instead of trusting the extension.
func extractXML(content []byte) ([]byte, error) {
	var xmlContent []byte
	var err error
	switch {
	case isGZ(content):
		xmlContent, err = readGZ(content)
		if err != nil {
			return nil, err
		}
	case isZIP(content):
		xmlContent, err = readZIP(content)
		if err != nil {
			return nil, err
		}
	default:
		xmlContent = content
	}

	return bytes.ReplaceAll(xmlContent, []byte(xsTag), []byte("")), nil
}
