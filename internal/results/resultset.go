package results

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/batch-ocr/internal/entity"
)

// ResultSet is the consolidated outcome of a batch.
type ResultSet struct {
	Entries     []entity.ResultEntry // sorted by confidence, highest first
	Outcomes    []entity.Outcome     // stream (submission) order
	Quarantined map[string]string    // identifier -> quarantine copy path
}

// Failed counts outcomes flagged as failures.
func (rs *ResultSet) Failed() int {
	n := 0
	for _, o := range rs.Outcomes {
		if o.Failed {
			n++
		}
	}
	return n
}

// RoundConfidence rounds to 4 decimal places.
func RoundConfidence(c float64) float64 {
	return math.Round(c*1e4) / 1e4
}

// sortEntries orders by confidence descending; equal confidences keep stream order.
func sortEntries(entries []entity.ResultEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Confidence > entries[j].Confidence
	})
}

// MarshalJSON renders the mapping identifier -> {text, confidence} with keys in
// entry order and 4-space indentation.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if len(rs.Entries) == 0 {
		return []byte("{}"), nil
	}
	buf.WriteString("{\n")
	for i, e := range rs.Entries {
		key, err := encodeString(e.ID)
		if err != nil {
			return nil, err
		}
		text, err := encodeString(e.Text)
		if err != nil {
			return nil, err
		}
		buf.WriteString("    ")
		buf.Write(key)
		buf.WriteString(": {\n        \"text\": ")
		buf.Write(text)
		buf.WriteString(",\n        \"confidence\": ")
		buf.WriteString(formatConfidence(e.Confidence))
		buf.WriteString("\n    }")
		if i < len(rs.Entries)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

// encodeString JSON-quotes s without escaping <, > and &.
func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// formatConfidence always keeps a decimal point, so 0 renders as 0.0 and 1 as 1.0.
func formatConfidence(c float64) string {
	s := strconv.FormatFloat(c, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
