// span.go: source spans shared by the lexer, parser, both backends, and the
// diagnostics renderer. Offsets are byte offsets into the original source;
// Line/Col are 1-based and derived once at lex time.
package ruchy

// Span marks a half-open [Start, End) byte range in the source.
type Span struct {
	Start int
	End   int
	Line  int
	Col   int
}

// Merge produces the smallest span covering both a and b. Position metadata
// comes from the earlier of the two.
func (a Span) Merge(b Span) Span {
	out := a
	if b.Start < a.Start || a.End == 0 {
		out.Start, out.Line, out.Col = b.Start, b.Line, b.Col
	}
	if b.End > out.End {
		out.End = b.End
	}
	return out
}

// offsetToLineCol recomputes a 1-based position from a byte offset. Used when
// a span was synthesized without position metadata.
func offsetToLineCol(src string, off int) (int, int) {
	if off < 0 {
		return 1, 1
	}
	line, col := 1, 1
	for i := 0; i < len(src) && i < off; i++ {
		if src[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
