// Package reconcile turns a model's raw reply into either parsed JSON or a
// labeled raw-text fallback. It never returns an error.
package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Outcome kinds.
const (
	KindStructured = "structured"
	KindFallback   = "fallback"
)

// ReasonNotJSON is the diagnostic attached to a Fallback.
const ReasonNotJSON = "not valid JSON"

// Display labels for each outcome kind.
const (
	LabelStructured = "Structured JSON Output"
	LabelFallback   = "Raw Output (Not Valid JSON)"
)

// Outcome is either Structured or Fallback.
type Outcome interface {
	Kind() string
	Label() string
	outcome()
}

// Structured holds the parsed reply. Numbers are kept as json.Number.
type Structured struct {
	Value any
}

func (Structured) Kind() string  { return KindStructured }
func (Structured) Label() string { return LabelStructured }
func (Structured) outcome()      {}

// MarshalJSON renders {"kind":"structured","value":...}.
func (s Structured) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value any    `json:"value"`
	}{KindStructured, s.Value})
}

// Fallback holds the cleaned reply text when it did not parse.
type Fallback struct {
	Text   string
	Reason string
}

func (Fallback) Kind() string  { return KindFallback }
func (Fallback) Label() string { return LabelFallback }
func (Fallback) outcome()      {}

// MarshalJSON renders {"kind":"fallback","text":...,"reason":...}.
func (f Fallback) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind   string `json:"kind"`
		Text   string `json:"text"`
		Reason string `json:"reason"`
	}{KindFallback, f.Text, f.Reason})
}

// Clean strips backtick fences, surrounding whitespace, and a leading
// case-sensitive "json" language tag.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "`")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "json") {
		s = strings.TrimSpace(s[len("json"):])
	}
	return s
}

// Reconcile cleans raw and parses it as a single strict JSON value.
func Reconcile(raw string) Outcome {
	cleaned := Clean(raw)
	v, err := decodeStrict(cleaned)
	if err != nil {
		return Fallback{Text: cleaned, Reason: ReasonNotJSON}
	}
	return Structured{Value: v}
}

var errTrailingData = errors.New("trailing data after JSON value")

func decodeStrict(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}

// Native returns v with every json.Number replaced by an int64, or a float64
// when it has a fraction or overflows int64. Encoders that do not know
// json.Number would otherwise render numbers as strings.
func Native(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Native(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Native(e)
		}
		return out
	default:
		return v
	}
}

// Indent pretty-prints a Structured value for display.
func Indent(s Structured) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Value); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
