// lexer.go: hand-written scanner producing spanned tokens.
package ruchy

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOF TokenType = iota
	ILLEGAL

	// Punctuation
	LPAREN   // "("
	RPAREN   // ")"
	LBRACKET // "["
	RBRACKET // "]"
	LBRACE   // "{"
	RBRACE   // "}"
	COLON    // ":"
	PATHSEP  // "::"
	COMMA    // ","
	DOT      // "."
	DOTDOT   // ".."
	DOTDOTEQ // "..="
	SEMI     // ";"
	QUESTION // "?"

	// Operators
	PLUS     // "+"
	MINUS    // "-"
	STAR     // "*"
	STARSTAR // "**"
	SLASH    // "/"
	PERCENT  // "%"
	TILDE    // "~"
	ASSIGN  // "="
	PLUSEQ
	MINUSEQ
	STAREQ
	SLASHEQ
	EQ  // "=="
	NEQ // "!="
	LT
	LE
	GT
	GE
	BANG     // "!"
	ANDAND   // "&&"
	OROR     // "||"
	PIPE     // "|"
	ARROW    // "->"
	FATARROW // "=>"
	SEND     // "<-"
	QUERY    // "<?"

	// Literals & identifiers
	IDENT
	INT
	FLOAT
	STRING
	CHAR

	// Keywords
	KWLET
	KWMUT
	KWFUN
	KWIF
	KWELSE
	KWMATCH
	KWFOR
	KWIN
	KWWHILE
	KWBREAK
	KWCONTINUE
	KWRETURN
	KWTRUE
	KWFALSE
	KWNIL
	KWSTRUCT
	KWENUM
	KWCLASS
	KWACTOR
	KWRECEIVE
	KWPUB
	KWNEW
)

// Token is a lexical token with optional literal value.
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal interface{} // parsed value for INT/FLOAT/STRING/CHAR
	Span    Span
}

var keywords = map[string]TokenType{
	"let":      KWLET,
	"mut":      KWMUT,
	"fun":      KWFUN,
	"fn":       KWFUN,
	"if":       KWIF,
	"else":     KWELSE,
	"match":    KWMATCH,
	"for":      KWFOR,
	"in":       KWIN,
	"while":    KWWHILE,
	"break":    KWBREAK,
	"continue": KWCONTINUE,
	"return":   KWRETURN,
	"true":     KWTRUE,
	"false":    KWFALSE,
	"nil":      KWNIL,
	"null":     KWNIL,
	"struct":   KWSTRUCT,
	"enum":     KWENUM,
	"class":    KWCLASS,
	"actor":    KWACTOR,
	"receive":  KWRECEIVE,
	"pub":      KWPUB,
	"new":      KWNEW,
}

// Lexer scans a source string into tokens.
type Lexer struct {
	src    string
	start  int // start index of current token
	cur    int // current index
	line   int // 1-based
	col    int // 0-based column within line
	tokens []Token

	// precise token start position
	tokStartLine int
	tokStartCol  int
}

// NewLexer creates a new lexer for the given source.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 0}
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	return l.src[l.cur], true
}

func (l *Lexer) peekN(n int) (byte, bool) {
	idx := l.cur + n
	if idx >= len(l.src) {
		return 0, false
	}
	return l.src[idx], true
}

func (l *Lexer) advance() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, true
}

func (l *Lexer) match(expected byte) bool {
	if b, ok := l.peek(); ok && b == expected {
		l.advance()
		return true
	}
	return false
}

func (l *Lexer) tokenSpan() Span {
	return Span{Start: l.start, End: l.cur, Line: l.tokStartLine, Col: l.tokStartCol + 1}
}

func (l *Lexer) addToken(tt TokenType, lit interface{}) Token {
	tok := Token{
		Type:    tt,
		Lexeme:  l.src[l.start:l.cur],
		Literal: lit,
		Span:    l.tokenSpan(),
	}
	l.tokens = append(l.tokens, tok)
	l.start = l.cur
	return tok
}

func (l *Lexer) err(msg string) error {
	return errAt(ErrParse, l.tokenSpan(), "%s", msg)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isDigit(b)
}
func isHex(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for !l.isAtEnd() {
		ch, _ := l.peek()
		switch ch {
		case ' ', '\r', '\n', '\t':
			l.advance()
			l.start = l.cur
		case '/':
			next, ok := l.peekN(1)
			if !ok {
				return nil
			}
			if next == '/' {
				for {
					b, ok := l.peek()
					if !ok || b == '\n' {
						break
					}
					l.advance()
				}
				l.start = l.cur
			} else if next == '*' {
				l.advance()
				l.advance()
				depth := 1
				for depth > 0 {
					b, ok := l.peek()
					if !ok {
						return l.err("block comment was not terminated")
					}
					if b == '*' {
						if b2, ok2 := l.peekN(1); ok2 && b2 == '/' {
							l.advance()
							l.advance()
							depth--
							continue
						}
					}
					if b == '/' {
						if b2, ok2 := l.peekN(1); ok2 && b2 == '*' {
							l.advance()
							l.advance()
							depth++
							continue
						}
					}
					l.advance()
				}
				l.start = l.cur
			} else {
				return nil
			}
		default:
			return nil
		}
	}
	return nil
}

// scanEscape decodes one escape sequence after a consumed backslash.
func (l *Lexer) scanEscape() (rune, error) {
	esc, ok := l.advance()
	if !ok {
		return 0, l.err("unfinished escape sequence")
	}
	switch esc {
	case '"':
		return '"', nil
	case '\'':
		return '\'', nil
	case '\\':
		return '\\', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case '0':
		return 0, nil
	case 'u':
		if !l.match('{') {
			return 0, l.err("expected '{' after \\u")
		}
		var hex string
		for {
			b, ok := l.peek()
			if !ok {
				return 0, l.err("unicode escape was not terminated")
			}
			if b == '}' {
				l.advance()
				break
			}
			if !isHex(b) {
				return 0, l.err("invalid unicode escape")
			}
			hex += string(b)
			l.advance()
		}
		if hex == "" || len(hex) > 6 {
			return 0, l.err("invalid unicode escape")
		}
		v, convErr := strconv.ParseInt(hex, 16, 32)
		if convErr != nil || !utf8.ValidRune(rune(v)) {
			return 0, l.err("invalid unicode escape")
		}
		return rune(v), nil
	default:
		return 0, l.err(fmt.Sprintf("invalid escape sequence: \\%c", esc))
	}
}

// scanString parses a double-quoted string; the opening quote is consumed.
func (l *Lexer) scanString() (string, error) {
	var out []rune
	for {
		if l.isAtEnd() {
			return "", l.err("string was not terminated")
		}
		ch, _ := l.advance()
		if ch == '"' {
			return string(out), nil
		}
		if ch == '\\' {
			r, err := l.scanEscape()
			if err != nil {
				return "", err
			}
			out = append(out, r)
			continue
		}
		if ch < utf8.RuneSelf {
			out = append(out, rune(ch))
			continue
		}
		l.cur--
		r, size := utf8.DecodeRuneInString(l.src[l.cur:])
		if r == utf8.RuneError && size == 1 {
			return "", l.err("invalid UTF-8 in source")
		}
		out = append(out, r)
		l.cur += size
		l.col += size - 1
	}
}

// scanChar parses a single-quoted char; the opening quote is consumed.
func (l *Lexer) scanChar() (rune, error) {
	if l.isAtEnd() {
		return 0, l.err("char literal was not terminated")
	}
	var r rune
	ch, _ := l.advance()
	switch {
	case ch == '\\':
		var err error
		r, err = l.scanEscape()
		if err != nil {
			return 0, err
		}
	case ch == '\'':
		return 0, l.err("empty char literal")
	case ch < utf8.RuneSelf:
		r = rune(ch)
	default:
		l.cur--
		var size int
		r, size = utf8.DecodeRuneInString(l.src[l.cur:])
		if r == utf8.RuneError && size == 1 {
			return 0, l.err("invalid UTF-8 in source")
		}
		l.cur += size
		l.col += size - 1
	}
	if !l.match('\'') {
		return 0, l.err("char literal was not terminated")
	}
	return r, nil
}

// scanNumber parses an integer or float. A '.' is consumed only when a digit
// follows, so "1..5" lexes as INT DOTDOT INT and "3.sqrt()" as INT DOT IDENT.
func (l *Lexer) scanNumber() (TokenType, interface{}, error) {
	for {
		b, ok := l.peek()
		if !ok || (!isDigit(b) && b != '_') {
			break
		}
		l.advance()
	}

	sawDot := false
	if b, ok := l.peek(); ok && b == '.' {
		if b2, ok2 := l.peekN(1); ok2 && isDigit(b2) {
			l.advance()
			sawDot = true
			for {
				b, ok := l.peek()
				if !ok || (!isDigit(b) && b != '_') {
					break
				}
				l.advance()
			}
		}
	}

	sawExp := false
	if b, ok := l.peek(); ok && (b == 'e' || b == 'E') {
		save := l.cur
		l.advance()
		if b2, ok := l.peek(); ok && (b2 == '+' || b2 == '-') {
			l.advance()
		}
		if b3, ok := l.peek(); ok && isDigit(b3) {
			sawExp = true
			for {
				b4, ok := l.peek()
				if !ok || !isDigit(b4) {
					break
				}
				l.advance()
			}
		} else {
			l.cur = save
		}
	}

	lex := stripUnderscores(l.src[l.start:l.cur])
	if !sawDot && !sawExp {
		v, convErr := strconv.ParseInt(lex, 10, 64)
		if convErr != nil {
			// magnitudes past the int64 maximum wrap; the minimum
			// integer's literal lexes before unary minus applies
			u, uerr := strconv.ParseUint(lex, 10, 64)
			if uerr != nil {
				return ILLEGAL, nil, l.err("invalid integer literal")
			}
			v = int64(u)
		}
		return INT, v, nil
	}
	vf, convErr := strconv.ParseFloat(lex, 64)
	if convErr != nil {
		return ILLEGAL, nil, l.err("invalid float literal")
	}
	return FLOAT, vf, nil
}

func stripUnderscores(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func (l *Lexer) scanIdentifier() string {
	for {
		b, ok := l.peek()
		if !ok || !isAlphaNum(b) {
			break
		}
		l.advance()
	}
	return l.src[l.start:l.cur]
}

func (l *Lexer) scanToken() (Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}
	l.tokStartLine = l.line
	l.tokStartCol = l.col
	l.start = l.cur

	if l.isAtEnd() {
		return l.addToken(EOF, nil), nil
	}

	ch, _ := l.advance()

	switch ch {
	case '(':
		return l.addToken(LPAREN, nil), nil
	case ')':
		return l.addToken(RPAREN, nil), nil
	case '[':
		return l.addToken(LBRACKET, nil), nil
	case ']':
		return l.addToken(RBRACKET, nil), nil
	case '{':
		return l.addToken(LBRACE, nil), nil
	case '}':
		return l.addToken(RBRACE, nil), nil
	case ',':
		return l.addToken(COMMA, nil), nil
	case ';':
		return l.addToken(SEMI, nil), nil
	case '?':
		return l.addToken(QUESTION, nil), nil
	case '~':
		return l.addToken(TILDE, nil), nil
	case '%':
		return l.addToken(PERCENT, nil), nil
	case ':':
		if l.match(':') {
			return l.addToken(PATHSEP, nil), nil
		}
		return l.addToken(COLON, nil), nil
	case '.':
		if l.match('.') {
			if l.match('=') {
				return l.addToken(DOTDOTEQ, nil), nil
			}
			return l.addToken(DOTDOT, nil), nil
		}
		return l.addToken(DOT, nil), nil
	case '+':
		if l.match('=') {
			return l.addToken(PLUSEQ, nil), nil
		}
		return l.addToken(PLUS, nil), nil
	case '-':
		if l.match('>') {
			return l.addToken(ARROW, nil), nil
		}
		if l.match('=') {
			return l.addToken(MINUSEQ, nil), nil
		}
		return l.addToken(MINUS, nil), nil
	case '*':
		if l.match('*') {
			return l.addToken(STARSTAR, nil), nil
		}
		if l.match('=') {
			return l.addToken(STAREQ, nil), nil
		}
		return l.addToken(STAR, nil), nil
	case '/':
		if l.match('=') {
			return l.addToken(SLASHEQ, nil), nil
		}
		return l.addToken(SLASH, nil), nil
	case '=':
		if l.match('=') {
			return l.addToken(EQ, nil), nil
		}
		if l.match('>') {
			return l.addToken(FATARROW, nil), nil
		}
		return l.addToken(ASSIGN, nil), nil
	case '!':
		if l.match('=') {
			return l.addToken(NEQ, nil), nil
		}
		return l.addToken(BANG, nil), nil
	case '<':
		if l.match('=') {
			return l.addToken(LE, nil), nil
		}
		if l.match('-') {
			return l.addToken(SEND, nil), nil
		}
		if l.match('?') {
			return l.addToken(QUERY, nil), nil
		}
		return l.addToken(LT, nil), nil
	case '>':
		if l.match('=') {
			return l.addToken(GE, nil), nil
		}
		return l.addToken(GT, nil), nil
	case '&':
		if l.match('&') {
			return l.addToken(ANDAND, nil), nil
		}
		return Token{}, l.err("unexpected character: '&'")
	case '|':
		if l.match('|') {
			return l.addToken(OROR, nil), nil
		}
		return l.addToken(PIPE, nil), nil
	case '"':
		text, err := l.scanString()
		if err != nil {
			return Token{}, err
		}
		return l.addToken(STRING, text), nil
	case '\'':
		r, err := l.scanChar()
		if err != nil {
			return Token{}, err
		}
		return l.addToken(CHAR, r), nil
	}

	if isDigit(ch) {
		l.cur = l.start
		l.col = l.tokStartCol
		l.line = l.tokStartLine
		tt, lit, err := l.scanNumber()
		if err != nil {
			return Token{}, err
		}
		return l.addToken(tt, lit), nil
	}

	if isAlpha(ch) {
		lex := l.scanIdentifier()
		if tt, ok := keywords[lex]; ok {
			switch tt {
			case KWTRUE:
				return l.addToken(KWTRUE, true), nil
			case KWFALSE:
				return l.addToken(KWFALSE, false), nil
			default:
				return l.addToken(tt, nil), nil
			}
		}
		return l.addToken(IDENT, lex), nil
	}

	return Token{}, l.err(fmt.Sprintf("unexpected character: %q", ch))
}

// Scan tokenizes the entire source and returns tokens (EOF included).
func (l *Lexer) Scan() ([]Token, error) {
	for {
		tok, err := l.scanToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == EOF {
			return l.tokens, nil
		}
	}
}
