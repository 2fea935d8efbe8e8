package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// propertyPathRE matches a dotted property path: one or more identifier
// segments joined by single dots, anchored to the whole string.
var propertyPathRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*$`)

const shapeHint = "expected a shape like [].{name: name, status: status}"

// Classify decides whether text fits one of the supported list-view shapes
// and extracts its display columns. Identical input always yields an
// identical Result; parse faults surface as Reason strings, never panics.
//
// Shapes are tried in order: object projection, simple property path,
// property array.
func Classify(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Kind: KindInvalid, Reason: "Empty query"}
	}

	if body, ok := objectProjectionBody(trimmed); ok {
		cols, err := scanPairs(body)
		if err != nil {
			return Result{
				Kind:   KindInvalid,
				Reason: fmt.Sprintf("could not parse object projection: %v; %s", err, shapeHint),
			}
		}
		if len(cols) == 0 {
			return Result{
				Kind:   KindInvalid,
				Reason: "object projection contains no key: expression pairs; " + shapeHint,
			}
		}
		return Result{Valid: true, Kind: KindObjectProjection, Columns: cols}
	}

	if propertyPathRE.MatchString(trimmed) {
		return Result{
			Valid:   true,
			Kind:    KindSimpleProperty,
			Columns: []Column{{Key: trimmed, Expression: trimmed}},
		}
	}

	if cols, ok := propertyArrayColumns(trimmed); ok {
		return Result{Valid: true, Kind: KindPropertyArray, Columns: cols}
	}

	return Result{
		Kind:   KindInvalid,
		Reason: "query does not match a supported list view shape; " + shapeHint,
	}
}

// objectProjectionBody strips the outer [].{...} or []{...} form and
// returns the brace content. The dot after [] is optional.
func objectProjectionBody(s string) (string, bool) {
	if !strings.HasPrefix(s, "[]") {
		return "", false
	}
	rest := strings.TrimPrefix(s[2:], ".")
	if len(rest) < 2 || rest[0] != '{' || rest[len(rest)-1] != '}' {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

// propertyArrayColumns matches [p1, p2, ...] where every trimmed entry is
// a property path. Any entry failing the grammar rejects the whole match.
func propertyArrayColumns(s string) ([]Column, bool) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, false
	}
	inner := s[1 : len(s)-1]
	if strings.TrimSpace(inner) == "" {
		return nil, false
	}
	parts := strings.Split(inner, ",")
	cols := make([]Column, 0, len(parts))
	for _, part := range parts {
		path := strings.TrimSpace(part)
		if !propertyPathRE.MatchString(path) {
			return nil, false
		}
		cols = append(cols, Column{Key: path, Expression: path})
	}
	return cols, true
}

// pairScanner walks the brace content of an object projection one rune at
// a time. Commas and colons only separate when brace and bracket depth are
// zero and no quote is open; the first such colon in a pair ends its key.
type pairScanner struct {
	braceDepth   int
	bracketDepth int
	quote        rune // active quote character, 0 when none
	escaped      bool // previous rune was a backslash inside a quote
	inKey        bool
	key          strings.Builder
	expr         strings.Builder
	cols         []Column
}

// scanPairs extracts key: expression pairs from the brace content.
// Unbalanced quotes, braces, or brackets yield an error describing the
// proximate cause.
func scanPairs(body string) ([]Column, error) {
	sc := &pairScanner{inKey: true}
	for _, r := range body {
		if err := sc.step(r); err != nil {
			return nil, err
		}
	}
	if sc.quote != 0 {
		return nil, fmt.Errorf("unterminated quote (%c)", sc.quote)
	}
	if sc.braceDepth != 0 {
		return nil, fmt.Errorf("unbalanced braces")
	}
	if sc.bracketDepth != 0 {
		return nil, fmt.Errorf("unbalanced brackets")
	}
	sc.flush()
	return sc.cols, nil
}

func (sc *pairScanner) step(r rune) error {
	if sc.quote != 0 {
		sc.write(r)
		switch {
		case sc.escaped:
			sc.escaped = false
		case r == '\\':
			sc.escaped = true
		case r == sc.quote:
			sc.quote = 0
		}
		return nil
	}

	switch r {
	case '\'', '"':
		sc.quote = r
		sc.write(r)
	case '{':
		sc.braceDepth++
		sc.write(r)
	case '}':
		sc.braceDepth--
		if sc.braceDepth < 0 {
			return fmt.Errorf("unbalanced braces")
		}
		sc.write(r)
	case '[':
		sc.bracketDepth++
		sc.write(r)
	case ']':
		sc.bracketDepth--
		if sc.bracketDepth < 0 {
			return fmt.Errorf("unbalanced brackets")
		}
		sc.write(r)
	case ':':
		if sc.atTopLevel() && sc.inKey {
			sc.inKey = false
			return nil
		}
		sc.write(r)
	case ',':
		if sc.atTopLevel() {
			sc.flush()
			return nil
		}
		sc.write(r)
	default:
		sc.write(r)
	}
	return nil
}

func (sc *pairScanner) atTopLevel() bool {
	return sc.braceDepth == 0 && sc.bracketDepth == 0
}

func (sc *pairScanner) write(r rune) {
	if sc.inKey {
		sc.key.WriteRune(r)
	} else {
		sc.expr.WriteRune(r)
	}
}

// flush emits the current pair when both trimmed sides are non-empty and
// resets the scanner for the next pair.
func (sc *pairScanner) flush() {
	key := strings.TrimSpace(sc.key.String())
	expr := strings.TrimSpace(sc.expr.String())
	if key != "" && expr != "" {
		sc.cols = append(sc.cols, Column{Key: key, Expression: expr})
	}
	sc.key.Reset()
	sc.expr.Reset()
	sc.inKey = true
}
