// Package consistency scores how structurally uniform a document
// collection is, to gate table rendering.
//
// A collection is worth a table when enough rows share one top-level key
// set. The verdict is computed from raw JSON so that key encounter order
// is preserved for the column headers.
package consistency

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/veldt/lens/projection"
)

// ShowThreshold is the fraction of rows that must share the sample key
// set before the collection renders as a table.
const ShowThreshold = 0.8

// Selector picks which value of a row to score, typically the projection
// or the original document.
type Selector func(projection.Row) json.RawMessage

// SelectProjected scores the projected value of each row.
func SelectProjected(r projection.Row) json.RawMessage { return r.Projected }

// SelectOriginal scores the original document of each row.
func SelectOriginal(r projection.Row) json.RawMessage { return r.Original }

// Result is the showability verdict for one collection.
type Result struct {
	// CanShowColumns reports whether the collection is uniform enough
	// for tabular rendering.
	CanShowColumns bool `json:"can_show_columns"`
	// Columns are the top-level keys of the first structured row, in
	// encounter order.
	Columns []string `json:"columns,omitempty"`
	// Reason explains a negative verdict. Empty when CanShowColumns.
	Reason string `json:"reason,omitempty"`
}

// Analyze scores rows by the key set of their selected values. A row is
// structured when its selected value is a JSON object (not an array) with
// at least one key. The sample key set comes from the first structured
// row; a row counts as consistent when its key set equals the sample's,
// order-independent. The denominator includes non-structured rows.
//
// Analyze is pure: no I/O, no shared state.
func Analyze(rows []projection.Row, sel Selector) Result {
	if len(rows) == 0 {
		return Result{Reason: "No data to analyze"}
	}

	var sample []string
	for _, row := range rows {
		keys, ok := topLevelKeys(sel(row))
		if ok && len(keys) > 0 {
			sample = keys
			break
		}
	}
	if len(sample) == 0 {
		return Result{Reason: "results are not structured objects"}
	}

	sampleSet := make(map[string]struct{}, len(sample))
	for _, k := range sample {
		sampleSet[k] = struct{}{}
	}

	consistent := 0
	for _, row := range rows {
		keys, ok := topLevelKeys(sel(row))
		if !ok || len(keys) != len(sample) {
			continue
		}
		match := true
		for _, k := range keys {
			if _, ok := sampleSet[k]; !ok {
				match = false
				break
			}
		}
		if match {
			consistent++
		}
	}

	ratio := float64(consistent) / float64(len(rows))
	if ratio >= ShowThreshold {
		return Result{CanShowColumns: true, Columns: sample}
	}
	return Result{
		Columns: sample,
		Reason: fmt.Sprintf("only %d%% of rows share the sample columns (need %d%%)",
			int(math.Round(ratio*100)), int(ShowThreshold*100)),
	}
}

// topLevelKeys returns the top-level object keys of raw in encounter
// order. ok is false when raw is not a JSON object (null, scalar, array,
// or malformed input).
func topLevelKeys(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, false
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, false
		}
		keys = append(keys, key)
		if err := skipValue(dec); err != nil {
			return nil, false
		}
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return nil, false
	}
	return keys, true
}

// skipValue consumes exactly one JSON value from the decoder, descending
// through nested objects and arrays.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}
	for dec.More() {
		if delim == '{' {
			if _, err := dec.Token(); err != nil { // key
				return err
			}
		}
		if err := skipValue(dec); err != nil {
			return err
		}
	}
	_, err = dec.Token() // closing delimiter
	return err
}
