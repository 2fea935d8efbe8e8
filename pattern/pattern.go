// Package pattern classifies list-view expressions.
//
// A list-view expression projects fields out of JSON documents. Only a
// small set of shapes is supported; Classify decides which shape (if any)
// an expression fits and extracts the ordered display columns it implies.
// Classification is pure text analysis: no I/O, no evaluation.
package pattern

// Kind identifies which supported list-view shape an expression matched.
// The set is closed; switches over Kind should be exhaustive.
type Kind int

const (
	// KindInvalid means the expression fits no supported shape.
	KindInvalid Kind = iota
	// KindObjectProjection is the [].{key: expression, ...} shape.
	KindObjectProjection
	// KindSimpleProperty is a single dotted property path like status or meta.owner.
	KindSimpleProperty
	// KindPropertyArray is a bracketed list of property paths like [title, status].
	KindPropertyArray
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindObjectProjection:
		return "object-projection"
	case KindSimpleProperty:
		return "simple-property"
	case KindPropertyArray:
		return "property-array"
	default:
		return "invalid"
	}
}

// Column is one display column implied by an expression: the label shown
// in a table header and the sub-expression that produces its cell values.
type Column struct {
	Key        string `json:"key"`
	Expression string `json:"expression"`
}

// Result is the outcome of classifying one expression.
type Result struct {
	// Valid reports whether the expression can drive a list view.
	Valid bool `json:"is_valid_list_view"`
	// Kind is the matched shape, or KindInvalid.
	Kind Kind `json:"pattern"`
	// Columns are the implied display columns in source order.
	Columns []Column `json:"column_details,omitempty"`
	// Reason explains why the expression is invalid. Empty when Valid.
	Reason string `json:"reason,omitempty"`
}

// ColumnKeys returns just the ordered column labels, for table headers.
func (r Result) ColumnKeys() []string {
	if len(r.Columns) == 0 {
		return nil
	}
	keys := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		keys[i] = c.Key
	}
	return keys
}
