package ocr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ConfidencePrefix starts the optional trailing line carrying the tool's confidence.
const ConfidencePrefix = "───Confidence:"

var (
	ErrMalformedConfidence = errors.New("malformed confidence line")
	ErrConfidenceRange     = errors.New("confidence outside [0, 1]")
	ErrInvalidEncoding     = errors.New("tool output is not valid UTF-8")
)

// ParseOutput splits captured tool output into recognized text and confidence.
//
// When the last non-blank line starts with ConfidencePrefix it is consumed as the
// confidence and matched is true. Otherwise the confidence is 1.0 for non-empty
// text and 0.0 for empty text. A sentinel line whose number cannot be parsed, or
// lies outside [0, 1], returns an error, as does output that is not UTF-8.
func ParseOutput(stdout string) (text string, confidence float64, matched bool, err error) {
	if !utf8.ValidString(stdout) {
		return "", 0, false, ErrInvalidEncoding
	}
	lines := splitLines(stdout)

	if n := len(lines); n > 0 && strings.HasPrefix(lines[n-1], ConfidencePrefix) {
		raw := strings.TrimSpace(strings.TrimPrefix(lines[n-1], ConfidencePrefix))
		conf, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			return "", 0, true, fmt.Errorf("%w: %q", ErrMalformedConfidence, raw)
		}
		if math.IsNaN(conf) || conf < 0 || conf > 1 {
			return "", 0, true, fmt.Errorf("%w: %v", ErrConfidenceRange, conf)
		}
		return strings.TrimSpace(strings.Join(lines[:n-1], "\n")), conf, true, nil
	}

	text = strings.TrimSpace(strings.Join(lines, "\n"))
	if text != "" {
		// TODO: make the sentinel-less score configurable; 1.0 is a guess, not a measurement.
		return text, 1.0, false, nil
	}
	return "", 0, false, nil
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
