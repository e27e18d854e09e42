// Package sniffer detects a statement document's format from its content and
// file name, and the delimiter of CSV exports.
package sniffer

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
)

var (
	ErrEmptyFile     = errors.New("file is empty")
	ErrUnknownFormat = errors.New("could not detect document format")
)

// pdfMagic may be preceded by junk bytes; readers accept it within the first
// kilobyte.
var pdfMagic = []byte("%PDF-")

const magicWindow = 1024

// DetectFormat decides a document's format. Content wins over the file
// extension: a .pdf that holds CSV text is CSV.
func DetectFormat(doc model.Document) (model.Format, error) {
	data := doc.Data
	if len(bytes.TrimSpace(data)) == 0 {
		return model.FormatUnknown, ErrEmptyFile
	}

	head := data
	if len(head) > magicWindow {
		head = head[:magicWindow]
	}
	if bytes.Contains(head, pdfMagic) {
		return model.FormatPDF, nil
	}
	if !isText(head) {
		return model.FormatUnknown, ErrUnknownFormat
	}

	if _, count := DetectDelimiter(data); count > 0 {
		return model.FormatCSV, nil
	}
	switch doc.Extension() {
	case "csv", "tsv", "txt":
		return model.FormatCSV, nil
	}
	return model.FormatUnknown, ErrUnknownFormat
}

// DetectDelimiter returns the most frequent candidate delimiter on the first
// non-empty line and how often it occurs.
func DetectDelimiter(data []byte) (rune, int) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	first := true
	for scanner.Scan() {
		line := cleanLine(scanner.Text(), first)
		first = false
		if line == "" {
			continue
		}
		return detectDelimiter(line)
	}
	return 0, 0
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

func detectDelimiter(line string) (rune, int) {
	delimiters := []rune{';', '\t', ',', '|'}
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}

// isText reports whether sample looks like UTF-8 text. A multi-byte rune cut
// at the end of the sample is tolerated.
func isText(sample []byte) bool {
	if bytes.IndexByte(sample, 0) >= 0 {
		return false
	}
	for len(sample) > 0 {
		r, size := utf8.DecodeRune(sample)
		if r == utf8.RuneError && size == 1 {
			return len(sample) < utf8.UTFMax && !utf8.FullRune(sample)
		}
		sample = sample[size:]
	}
	return true
}
