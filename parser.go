// parser.go: Pratt parser from tokens to the AST in ast.go.
//
// Binding powers live in lbp; prefix forms in nud; call/index/field/try/path
// run in a postfix loop between the two. Interactive mode marks errors caused
// by running out of input with Incomplete so the REPL can keep reading
// continuation lines.
package ruchy

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Parse scans and parses a whole program into a Block.
func Parse(src string) (*Block, error) {
	return parseSource(src, false)
}

// ParseInteractive is Parse with incomplete-input detection for the REPL.
func ParseInteractive(src string) (*Block, error) {
	return parseSource(src, true)
}

func parseSource(src string, interactive bool) (*Block, error) {
	toks, err := NewLexer(src).Scan()
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks, interactive: interactive}
	return p.program()
}

type parser struct {
	src         string
	toks        []Token
	i           int
	interactive bool

	// noStruct suppresses `Ident { ... }` struct literals while parsing a
	// header position (if/while condition, match scrutinee, for iterable)
	// where the brace belongs to the following block.
	noStruct bool
}

func (p *parser) atEnd() bool { return p.peek().Type == EOF }

func (p *parser) peek() Token {
	if p.i >= len(p.toks) {
		return Token{Type: EOF, Span: Span{Start: len(p.src), End: len(p.src), Line: 1, Col: 1}}
	}
	return p.toks[p.i]
}

func (p *parser) peekN(n int) Token {
	if p.i+n >= len(p.toks) {
		return Token{Type: EOF}
	}
	return p.toks[p.i+n]
}

func (p *parser) prev() Token { return p.toks[p.i-1] }

func (p *parser) advance() Token {
	t := p.peek()
	if p.i < len(p.toks) {
		p.i++
	}
	return t
}

func (p *parser) check(tt TokenType) bool { return p.peek().Type == tt }

func (p *parser) match(tts ...TokenType) bool {
	for _, tt := range tts {
		if p.check(tt) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *parser) errAtTok(t Token, format string, args ...any) *Error {
	e := errAt(ErrParse, t.Span, format, args...)
	if p.interactive && t.Type == EOF {
		e.Incomplete = true
	}
	return e
}

func (p *parser) need(tt TokenType, msg string) (Token, error) {
	if p.check(tt) {
		return p.advance(), nil
	}
	return Token{}, p.errAtTok(p.peek(), "%s", msg)
}

// canStartExpr reports whether tt can begin an expression; break/return use
// it to decide whether a value follows.
func canStartExpr(tt TokenType) bool {
	switch tt {
	case INT, FLOAT, STRING, CHAR, IDENT,
		KWTRUE, KWFALSE, KWNIL,
		LPAREN, LBRACKET, LBRACE,
		MINUS, BANG, TILDE, PIPE, OROR,
		KWIF, KWMATCH, KWFOR, KWWHILE, KWFUN, KWLET,
		KWBREAK, KWCONTINUE, KWRETURN:
		return true
	}
	return false
}

func isUpperName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// ----- binding powers -----

const (
	bpAssign  = 10
	bpSend    = 15
	bpRange   = 20
	bpOr      = 30
	bpAnd     = 35
	bpEq      = 40
	bpCmp     = 45
	bpAdd     = 50
	bpMul     = 55
	bpPow     = 57
	bpUnary   = 60
	bpPostfix = 70
)

func lbp(tt TokenType) (int, bool) {
	switch tt {
	case ASSIGN, PLUSEQ, MINUSEQ, STAREQ, SLASHEQ:
		return bpAssign, true
	case SEND, QUERY:
		return bpSend, true
	case DOTDOT, DOTDOTEQ:
		return bpRange, true
	case OROR:
		return bpOr, true
	case ANDAND:
		return bpAnd, true
	case EQ, NEQ:
		return bpEq, true
	case LT, LE, GT, GE:
		return bpCmp, true
	case PLUS, MINUS:
		return bpAdd, true
	case STAR, SLASH, PERCENT:
		return bpMul, true
	case STARSTAR:
		return bpPow, true
	}
	return 0, false
}

func binOpLexeme(tt TokenType) string {
	switch tt {
	case PLUS, PLUSEQ:
		return "+"
	case MINUS, MINUSEQ:
		return "-"
	case STAR, STAREQ:
		return "*"
	case STARSTAR:
		return "**"
	case SLASH, SLASHEQ:
		return "/"
	case PERCENT:
		return "%"
	case EQ:
		return "=="
	case NEQ:
		return "!="
	case LT:
		return "<"
	case LE:
		return "<="
	case GT:
		return ">"
	case GE:
		return ">="
	case ANDAND:
		return "&&"
	case OROR:
		return "||"
	}
	return "?"
}

// ----- program and blocks -----

func (p *parser) program() (*Block, error) {
	sp := p.peek().Span
	var exprs []Expr
	for !p.atEnd() {
		if p.match(SEMI) {
			continue
		}
		e, err := p.statement()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	if len(exprs) > 0 {
		sp = exprs[0].Pos().Merge(exprs[len(exprs)-1].Pos())
	}
	return &Block{Span: sp, Exprs: exprs}, nil
}

// statement parses declarations; anything else is an expression.
func (p *parser) statement() (Expr, error) {
	switch p.peek().Type {
	case KWLET:
		return p.letStmt()
	case KWFUN:
		if p.peekN(1).Type == IDENT {
			return p.funDecl()
		}
	case KWSTRUCT:
		return p.structDecl()
	case KWENUM:
		return p.enumDecl()
	case KWCLASS:
		return p.classDecl()
	case KWACTOR:
		return p.actorDecl()
	}
	return p.expr(0)
}

// blockExpr parses `{ stmts }` with the brace required.
func (p *parser) blockExpr() (*Block, error) {
	open, err := p.need(LBRACE, "expected '{'")
	if err != nil {
		return nil, err
	}
	return p.blockBody(open)
}

func (p *parser) blockBody(open Token) (*Block, error) {
	var exprs []Expr
	for !p.check(RBRACE) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected '}' to close block")
		}
		if p.match(SEMI) {
			continue
		}
		e, err := p.statement()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	close := p.advance()
	return &Block{Span: open.Span.Merge(close.Span), Exprs: exprs}, nil
}

// ----- expressions -----

func (p *parser) expr(minBP int) (Expr, error) {
	left, err := p.nud()
	if err != nil {
		return nil, err
	}
	left, err = p.postfix(left)
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek().Type
		bp, ok := lbp(op)
		if !ok || bp < minBP {
			return left, nil
		}
		// a `||` opening a new line starts a lambda statement, not a
		// continuation of this expression
		if op == OROR && p.peek().Span.Line != p.prev().Span.Line {
			return left, nil
		}
		opTok := p.advance()

		switch op {
		case ASSIGN, PLUSEQ, MINUSEQ, STAREQ, SLASHEQ:
			if err := checkAssignTarget(left); err != nil {
				return nil, p.errAtTok(opTok, "invalid assignment target")
			}
			rhs, err := p.expr(bp) // right associative
			if err != nil {
				return nil, err
			}
			if op != ASSIGN {
				rhs = &Binary{
					Span:  binSpan(left, opTok, rhs),
					Op:    binOpLexeme(op),
					Left:  left,
					Right: rhs,
				}
			}
			left = &Assign{Span: left.Pos().Merge(rhs.Pos()), Target: left, Value: rhs}
		case SEND, QUERY:
			rhs, err := p.expr(bp + 1)
			if err != nil {
				return nil, err
			}
			sp := left.Pos().Merge(rhs.Pos())
			if op == SEND {
				left = &ActorSend{Span: sp, Actor: left, Msg: rhs}
			} else {
				left = &ActorQuery{Span: sp, Actor: left, Msg: rhs}
			}
		case DOTDOT, DOTDOTEQ:
			rhs, err := p.expr(bp + 1)
			if err != nil {
				return nil, err
			}
			left = &RangeLit{
				Span:      left.Pos().Merge(rhs.Pos()),
				Start:     left,
				End:       rhs,
				Inclusive: op == DOTDOTEQ,
			}
		default:
			nextBP := bp + 1
			if op == STARSTAR {
				nextBP = bp // right associative
			}
			rhs, err := p.expr(nextBP)
			if err != nil {
				return nil, err
			}
			left = &Binary{
				Span:  binSpan(left, opTok, rhs),
				Op:    binOpLexeme(op),
				Left:  left,
				Right: rhs,
			}
		}
	}
}

// binSpan covers both operands but points at the operator token, so a runtime
// failure carets the operation rather than its left operand.
func binSpan(left Expr, opTok Token, rhs Expr) Span {
	sp := left.Pos().Merge(rhs.Pos())
	sp.Line = opTok.Span.Line
	sp.Col = opTok.Span.Col
	return sp
}

func checkAssignTarget(e Expr) error {
	switch e.(type) {
	case *Ident, *FieldAccess, *Index:
		return nil
	}
	return errAt(ErrParse, e.Pos(), "invalid assignment target")
}

// exprNoStruct parses a header-position expression where a following '{'
// opens a block, not a struct literal.
func (p *parser) exprNoStruct() (Expr, error) {
	save := p.noStruct
	p.noStruct = true
	e, err := p.expr(0)
	p.noStruct = save
	return e, err
}

func (p *parser) nud() (Expr, error) {
	t := p.peek()
	switch t.Type {
	case INT:
		p.advance()
		return &IntLit{Span: t.Span, Value: t.Literal.(int64)}, nil
	case FLOAT:
		p.advance()
		return &FloatLit{Span: t.Span, Value: t.Literal.(float64)}, nil
	case STRING:
		p.advance()
		return &StringLit{Span: t.Span, Value: t.Literal.(string)}, nil
	case CHAR:
		p.advance()
		return &CharLit{Span: t.Span, Value: t.Literal.(rune)}, nil
	case KWTRUE, KWFALSE:
		p.advance()
		return &BoolLit{Span: t.Span, Value: t.Type == KWTRUE}, nil
	case KWNIL:
		p.advance()
		return &NilLit{Span: t.Span}, nil
	case IDENT:
		p.advance()
		name := t.Literal.(string)
		if name == "_" {
			return &Ident{Span: t.Span, Name: "_"}, nil
		}
		if !p.noStruct && isUpperName(name) && p.check(LBRACE) && p.structLitAhead() {
			return p.structLit(t)
		}
		return &Ident{Span: t.Span, Name: name}, nil
	case LPAREN:
		return p.parenExpr()
	case LBRACKET:
		return p.listLit()
	case LBRACE:
		open := p.advance()
		if p.objectLitAhead() {
			return p.objectLit(open)
		}
		save := p.noStruct
		p.noStruct = false
		b, err := p.blockBody(open)
		p.noStruct = save
		return b, err
	case PIPE, OROR:
		return p.lambda()
	case MINUS, BANG, TILDE:
		p.advance()
		operand, err := p.expr(bpUnary)
		if err != nil {
			return nil, err
		}
		op := "-"
		switch t.Type {
		case BANG:
			op = "!"
		case TILDE:
			op = "~"
		}
		return &Unary{Span: t.Span.Merge(operand.Pos()), Op: op, Operand: operand}, nil
	case KWIF:
		return p.ifExpr()
	case KWMATCH:
		return p.matchExpr()
	case KWFOR:
		return p.forExpr()
	case KWWHILE:
		return p.whileExpr()
	case KWFUN:
		// anonymous: fun(x) { ... }
		p.advance()
		return p.lambdaTail(t)
	case KWLET:
		return p.letStmt()
	case KWBREAK:
		p.advance()
		n := &Break{Span: t.Span}
		if canStartExpr(p.peek().Type) {
			v, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			n.Value = v
			n.Span = t.Span.Merge(v.Pos())
		}
		return n, nil
	case KWCONTINUE:
		p.advance()
		return &Continue{Span: t.Span}, nil
	case KWRETURN:
		p.advance()
		n := &Return{Span: t.Span}
		if canStartExpr(p.peek().Type) {
			v, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			n.Value = v
			n.Span = t.Span.Merge(v.Pos())
		}
		return n, nil
	}
	return nil, p.errAtTok(t, "unexpected token %q", tokText(t))
}

func tokText(t Token) string {
	if t.Type == EOF {
		return "end of input"
	}
	if t.Lexeme != "" {
		return t.Lexeme
	}
	return "?"
}

func (p *parser) postfix(left Expr) (Expr, error) {
	for {
		switch p.peek().Type {
		case LPAREN:
			// `(` on a fresh line opens a new statement, not a call on the
			// value the previous line produced
			if p.peek().Span.Line != p.prev().Span.Line {
				return left, nil
			}
			p.advance()
			args, close, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			left = &Call{Span: left.Pos().Merge(close.Span), Callee: left, Args: args}
		case LBRACKET:
			if p.peek().Span.Line != p.prev().Span.Line {
				return left, nil
			}
			p.advance()
			save := p.noStruct
			p.noStruct = false
			idx, err := p.expr(0)
			p.noStruct = save
			if err != nil {
				return nil, err
			}
			close, err := p.need(RBRACKET, "expected ']' after index")
			if err != nil {
				return nil, err
			}
			left = &Index{Span: left.Pos().Merge(close.Span), Recv: left, Idx: idx}
		case DOT:
			p.advance()
			nt := p.peek()
			switch nt.Type {
			case IDENT, KWNEW:
				p.advance()
				name := nt.Lexeme
				if nt.Type == IDENT {
					name = nt.Literal.(string)
				}
				if p.check(LPAREN) {
					p.advance()
					args, close, err := p.callArgs()
					if err != nil {
						return nil, err
					}
					left = &MethodCall{Span: left.Pos().Merge(close.Span), Recv: left, Name: name, Args: args}
				} else {
					left = &FieldAccess{Span: left.Pos().Merge(nt.Span), Recv: left, Name: name}
				}
			case INT:
				// tuple element access: t.0
				p.advance()
				left = &Index{
					Span: left.Pos().Merge(nt.Span),
					Recv: left,
					Idx:  &IntLit{Span: nt.Span, Value: nt.Literal.(int64)},
				}
			default:
				return nil, p.errAtTok(nt, "expected field or method name after '.'")
			}
		case QUESTION:
			q := p.advance()
			left = &Try{Span: left.Pos().Merge(q.Span), Operand: left}
		case PATHSEP:
			id, ok := left.(*Ident)
			if !ok {
				return nil, p.errAtTok(p.peek(), "'::' requires a type name on the left")
			}
			p.advance()
			nt := p.peek()
			if nt.Type != IDENT && nt.Type != KWNEW {
				return nil, p.errAtTok(nt, "expected name after '::'")
			}
			p.advance()
			name := nt.Lexeme
			if nt.Type == IDENT {
				name = nt.Literal.(string)
			}
			left = &Path{Span: id.Span.Merge(nt.Span), TypeName: id.Name, Name: name}
		default:
			return left, nil
		}
	}
}

func (p *parser) callArgs() ([]Expr, Token, error) {
	save := p.noStruct
	p.noStruct = false
	defer func() { p.noStruct = save }()

	var args []Expr
	for !p.check(RPAREN) {
		if p.atEnd() {
			return nil, Token{}, p.errAtTok(p.peek(), "expected ')' after arguments")
		}
		a, err := p.expr(0)
		if err != nil {
			return nil, Token{}, err
		}
		args = append(args, a)
		if !p.match(COMMA) {
			break
		}
	}
	close, err := p.need(RPAREN, "expected ')' after arguments")
	if err != nil {
		return nil, Token{}, err
	}
	return args, close, nil
}

// parenExpr handles (), (e), and (a, b[,]).
func (p *parser) parenExpr() (Expr, error) {
	open := p.advance()
	save := p.noStruct
	p.noStruct = false
	defer func() { p.noStruct = save }()

	if p.check(RPAREN) {
		close := p.advance()
		return &UnitLit{Span: open.Span.Merge(close.Span)}, nil
	}
	first, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if p.check(RPAREN) {
		p.advance()
		return first, nil
	}
	elems := []Expr{first}
	for p.match(COMMA) {
		if p.check(RPAREN) {
			break // trailing comma: (a,) is a 1-tuple
		}
		e, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	close, err := p.need(RPAREN, "expected ')' after tuple")
	if err != nil {
		return nil, err
	}
	return &TupleLit{Span: open.Span.Merge(close.Span), Elems: elems}, nil
}

func (p *parser) listLit() (Expr, error) {
	open := p.advance()
	save := p.noStruct
	p.noStruct = false
	defer func() { p.noStruct = save }()

	var elems []Expr
	for !p.check(RBRACKET) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected ']' after list")
		}
		e, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if !p.match(COMMA) {
			break
		}
	}
	close, err := p.need(RBRACKET, "expected ']' after list")
	if err != nil {
		return nil, err
	}
	return &List{Span: open.Span.Merge(close.Span), Elems: elems}, nil
}

// structLitAhead peeks past the current '{' to see a struct-literal body:
// '}' or IDENT ':' or IDENT ',' (shorthand).
func (p *parser) structLitAhead() bool {
	if p.peekN(1).Type == RBRACE {
		return true
	}
	if p.peekN(1).Type == IDENT {
		switch p.peekN(2).Type {
		case COLON, COMMA, RBRACE:
			return true
		}
	}
	return false
}

func (p *parser) structLit(nameTok Token) (Expr, error) {
	p.advance() // '{'
	save := p.noStruct
	p.noStruct = false
	defer func() { p.noStruct = save }()

	var fields []ObjectField
	for !p.check(RBRACE) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected '}' after struct literal")
		}
		ft, err := p.need(IDENT, "expected field name")
		if err != nil {
			return nil, err
		}
		fname := ft.Literal.(string)
		var val Expr
		if p.match(COLON) {
			val, err = p.expr(0)
			if err != nil {
				return nil, err
			}
		} else {
			val = &Ident{Span: ft.Span, Name: fname}
		}
		fields = append(fields, ObjectField{Key: fname, Value: val})
		if !p.match(COMMA) {
			break
		}
	}
	close, err := p.need(RBRACE, "expected '}' after struct literal")
	if err != nil {
		return nil, err
	}
	return &StructLit{
		Span:   nameTok.Span.Merge(close.Span),
		Name:   nameTok.Literal.(string),
		Fields: fields,
	}, nil
}

// objectLitAhead peeks past a consumed '{' for (IDENT|STRING) ':'.
func (p *parser) objectLitAhead() bool {
	t0 := p.peek()
	if t0.Type != IDENT && t0.Type != STRING {
		return false
	}
	return p.peekN(1).Type == COLON
}

func (p *parser) objectLit(open Token) (Expr, error) {
	save := p.noStruct
	p.noStruct = false
	defer func() { p.noStruct = save }()

	var fields []ObjectField
	for !p.check(RBRACE) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected '}' after object literal")
		}
		kt := p.peek()
		var key string
		switch kt.Type {
		case IDENT, STRING:
			p.advance()
			key = kt.Literal.(string)
		default:
			return nil, p.errAtTok(kt, "expected key in object literal")
		}
		if _, err := p.need(COLON, "expected ':' after key"); err != nil {
			return nil, err
		}
		val, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		fields = append(fields, ObjectField{Key: key, Value: val})
		if !p.match(COMMA) {
			break
		}
	}
	close, err := p.need(RBRACE, "expected '}' after object literal")
	if err != nil {
		return nil, err
	}
	return &ObjectLit{Span: open.Span.Merge(close.Span), Fields: fields}, nil
}

// lambda parses |params| body and the empty-param form || body.
func (p *parser) lambda() (Expr, error) {
	open := p.advance()
	var params []Param
	if open.Type == PIPE {
		var err error
		params, err = p.paramList(PIPE)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(PIPE, "expected '|' after lambda parameters"); err != nil {
			return nil, err
		}
	}
	save := p.noStruct
	p.noStruct = false
	body, err := p.expr(0)
	p.noStruct = save
	if err != nil {
		return nil, err
	}
	return &Lambda{Span: open.Span.Merge(body.Pos()), Params: params, Body: body}, nil
}

// lambdaTail parses the remainder of `fun (params) { body }`.
func (p *parser) lambdaTail(funTok Token) (Expr, error) {
	if _, err := p.need(LPAREN, "expected '(' after fun"); err != nil {
		return nil, err
	}
	params, err := p.paramList(RPAREN)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(RPAREN, "expected ')' after parameters"); err != nil {
		return nil, err
	}
	if p.check(ARROW) {
		p.advance()
		if _, err := p.typeString(); err != nil {
			return nil, err
		}
	}
	body, err := p.blockExpr()
	if err != nil {
		return nil, err
	}
	return &Lambda{Span: funTok.Span.Merge(body.Pos()), Params: params, Body: body}, nil
}

// paramList parses comma-separated params up to (not including) stop.
func (p *parser) paramList(stop TokenType) ([]Param, error) {
	var params []Param
	for !p.check(stop) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected parameter list terminator")
		}
		nt, err := p.need(IDENT, "expected parameter name")
		if err != nil {
			return nil, err
		}
		param := Param{Name: nt.Literal.(string), Span: nt.Span}
		if p.match(COLON) {
			ty, err := p.typeString()
			if err != nil {
				return nil, err
			}
			param.Type = ty
		}
		if p.match(ASSIGN) {
			d, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			param.Default = d
		}
		params = append(params, param)
		if !p.match(COMMA) {
			break
		}
	}
	return params, nil
}

// typeString consumes a type annotation and returns its surface text.
// Grammar: Name ['<' type {',' type} '>'] | '[' type ']' | '(' [type {',' type}] ')' ['->' type].
func (p *parser) typeString() (string, error) {
	var b strings.Builder
	if err := p.typeInto(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (p *parser) typeInto(b *strings.Builder) error {
	t := p.peek()
	switch t.Type {
	case IDENT:
		p.advance()
		b.WriteString(t.Literal.(string))
		if p.check(LT) {
			p.advance()
			b.WriteByte('<')
			for {
				if err := p.typeInto(b); err != nil {
					return err
				}
				if p.match(COMMA) {
					b.WriteString(", ")
					continue
				}
				break
			}
			if _, err := p.need(GT, "expected '>' in type"); err != nil {
				return err
			}
			b.WriteByte('>')
		}
	case LBRACKET:
		p.advance()
		b.WriteByte('[')
		if err := p.typeInto(b); err != nil {
			return err
		}
		if _, err := p.need(RBRACKET, "expected ']' in type"); err != nil {
			return err
		}
		b.WriteByte(']')
	case LPAREN:
		p.advance()
		b.WriteByte('(')
		for !p.check(RPAREN) {
			if err := p.typeInto(b); err != nil {
				return err
			}
			if p.match(COMMA) {
				b.WriteString(", ")
				continue
			}
			break
		}
		if _, err := p.need(RPAREN, "expected ')' in type"); err != nil {
			return err
		}
		b.WriteByte(')')
	default:
		return p.errAtTok(t, "expected type")
	}
	if p.check(ARROW) {
		p.advance()
		b.WriteString(" -> ")
		return p.typeInto(b)
	}
	return nil
}

// ----- control flow -----

func (p *parser) ifExpr() (Expr, error) {
	ifTok := p.advance()
	cond, err := p.exprNoStruct()
	if err != nil {
		return nil, err
	}
	then, err := p.blockExpr()
	if err != nil {
		return nil, err
	}
	n := &If{Span: ifTok.Span.Merge(then.Pos()), Cond: cond, Then: then}
	if p.match(KWELSE) {
		var els Expr
		if p.check(KWIF) {
			els, err = p.ifExpr()
		} else {
			els, err = p.blockExpr()
		}
		if err != nil {
			return nil, err
		}
		n.Else = els
		n.Span = n.Span.Merge(els.Pos())
	}
	return n, nil
}

func (p *parser) matchExpr() (Expr, error) {
	matchTok := p.advance()
	scrut, err := p.exprNoStruct()
	if err != nil {
		return nil, err
	}
	if _, err := p.need(LBRACE, "expected '{' after match scrutinee"); err != nil {
		return nil, err
	}
	var arms []MatchArm
	for !p.check(RBRACE) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected '}' after match arms")
		}
		pat, err := p.pattern()
		if err != nil {
			return nil, err
		}
		arm := MatchArm{Span: pat.Pos(), Pattern: pat}
		if p.match(KWIF) {
			g, err := p.exprNoStruct()
			if err != nil {
				return nil, err
			}
			arm.Guard = g
		}
		if _, err := p.need(FATARROW, "expected '=>' after pattern"); err != nil {
			return nil, err
		}
		body, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		arm.Body = body
		arm.Span = arm.Span.Merge(body.Pos())
		arms = append(arms, arm)
		p.match(COMMA)
	}
	close := p.advance()
	return &Match{Span: matchTok.Span.Merge(close.Span), Scrutinee: scrut, Arms: arms}, nil
}

func (p *parser) forExpr() (Expr, error) {
	forTok := p.advance()
	pat, err := p.pattern()
	if err != nil {
		return nil, err
	}
	if _, err := p.need(KWIN, "expected 'in' after for pattern"); err != nil {
		return nil, err
	}
	iter, err := p.exprNoStruct()
	if err != nil {
		return nil, err
	}
	body, err := p.blockExpr()
	if err != nil {
		return nil, err
	}
	return &For{Span: forTok.Span.Merge(body.Pos()), Pattern: pat, Iterable: iter, Body: body}, nil
}

func (p *parser) whileExpr() (Expr, error) {
	whileTok := p.advance()
	cond, err := p.exprNoStruct()
	if err != nil {
		return nil, err
	}
	body, err := p.blockExpr()
	if err != nil {
		return nil, err
	}
	return &While{Span: whileTok.Span.Merge(body.Pos()), Cond: cond, Body: body}, nil
}

// ----- declarations -----

func (p *parser) letStmt() (Expr, error) {
	letTok := p.advance()
	mutable := p.match(KWMUT)

	n := &Let{Span: letTok.Span, Mutable: mutable}
	switch p.peek().Type {
	case IDENT:
		nt := p.advance()
		n.Name = nt.Literal.(string)
		if p.match(COLON) {
			if _, err := p.typeString(); err != nil {
				return nil, err
			}
		}
	case LPAREN, LBRACKET:
		pat, err := p.pattern()
		if err != nil {
			return nil, err
		}
		n.Pattern = pat
	default:
		return nil, p.errAtTok(p.peek(), "expected name or pattern after let")
	}
	if _, err := p.need(ASSIGN, "expected '=' in let binding"); err != nil {
		return nil, err
	}
	v, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	n.Value = v
	n.Span = letTok.Span.Merge(v.Pos())
	return n, nil
}

func (p *parser) funDecl() (Expr, error) {
	funTok := p.advance()
	nt, err := p.need(IDENT, "expected function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(LPAREN, "expected '(' after function name"); err != nil {
		return nil, err
	}
	params, err := p.paramList(RPAREN)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(RPAREN, "expected ')' after parameters"); err != nil {
		return nil, err
	}
	ret := ""
	if p.match(ARROW) {
		ret, err = p.typeString()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.blockExpr()
	if err != nil {
		return nil, err
	}
	return &FunDecl{
		Span:    funTok.Span.Merge(body.Pos()),
		Name:    nt.Literal.(string),
		Params:  params,
		RetType: ret,
		Body:    body,
	}, nil
}

// fieldDef parses `name: Type [= default]`. Pub is supplied by the caller.
func (p *parser) fieldDef(pub bool) (FieldDef, error) {
	nt, err := p.need(IDENT, "expected field name")
	if err != nil {
		return FieldDef{}, err
	}
	f := FieldDef{Name: nt.Literal.(string), Pub: pub, Span: nt.Span}
	if p.match(COLON) {
		ty, err := p.typeString()
		if err != nil {
			return FieldDef{}, err
		}
		f.Type = ty
	}
	if p.match(ASSIGN) {
		d, err := p.expr(0)
		if err != nil {
			return FieldDef{}, err
		}
		f.Default = d
	}
	return f, nil
}

func (p *parser) structDecl() (Expr, error) {
	structTok := p.advance()
	nt, err := p.need(IDENT, "expected struct name")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(LBRACE, "expected '{' after struct name"); err != nil {
		return nil, err
	}
	var fields []FieldDef
	for !p.check(RBRACE) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected '}' after struct fields")
		}
		if p.match(COMMA, SEMI) {
			continue
		}
		pub := p.match(KWPUB)
		f, err := p.fieldDef(pub)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	close := p.advance()
	return &StructDecl{Span: structTok.Span.Merge(close.Span), Name: nt.Literal.(string), Fields: fields}, nil
}

func (p *parser) enumDecl() (Expr, error) {
	enumTok := p.advance()
	nt, err := p.need(IDENT, "expected enum name")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(LBRACE, "expected '{' after enum name"); err != nil {
		return nil, err
	}
	var variants []EnumVariantDef
	for !p.check(RBRACE) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected '}' after enum variants")
		}
		if p.match(COMMA, SEMI) {
			continue
		}
		vt, err := p.need(IDENT, "expected variant name")
		if err != nil {
			return nil, err
		}
		v := EnumVariantDef{Name: vt.Literal.(string), Span: vt.Span}
		if p.match(LPAREN) {
			for !p.check(RPAREN) {
				if _, err := p.typeString(); err != nil {
					return nil, err
				}
				v.Arity++
				if !p.match(COMMA) {
					break
				}
			}
			if _, err := p.need(RPAREN, "expected ')' after variant payload"); err != nil {
				return nil, err
			}
		}
		variants = append(variants, v)
	}
	close := p.advance()
	return &EnumDecl{Span: enumTok.Span.Merge(close.Span), Name: nt.Literal.(string), Variants: variants}, nil
}

func (p *parser) classDecl() (Expr, error) {
	classTok := p.advance()
	nt, err := p.need(IDENT, "expected class name")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(LBRACE, "expected '{' after class name"); err != nil {
		return nil, err
	}
	n := &ClassDecl{Name: nt.Literal.(string)}
	for !p.check(RBRACE) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected '}' after class body")
		}
		if p.match(COMMA, SEMI) {
			continue
		}
		pub := p.match(KWPUB)
		switch p.peek().Type {
		case KWNEW:
			ctor, err := p.ctorDef(pub)
			if err != nil {
				return nil, err
			}
			n.Ctors = append(n.Ctors, ctor)
		case KWFUN:
			m, err := p.methodDef(pub)
			if err != nil {
				return nil, err
			}
			n.Methods = append(n.Methods, m)
		case IDENT:
			f, err := p.fieldDef(pub)
			if err != nil {
				return nil, err
			}
			n.Fields = append(n.Fields, f)
		default:
			return nil, p.errAtTok(p.peek(), "expected field, constructor, or method in class body")
		}
	}
	close := p.advance()
	n.Span = classTok.Span.Merge(close.Span)
	return n, nil
}

// ctorDef parses `new [name](params) { body }`.
func (p *parser) ctorDef(pub bool) (CtorDef, error) {
	newTok := p.advance()
	name := "new"
	if p.check(IDENT) {
		name = p.advance().Literal.(string)
	}
	if _, err := p.need(LPAREN, "expected '(' after constructor name"); err != nil {
		return CtorDef{}, err
	}
	params, err := p.paramList(RPAREN)
	if err != nil {
		return CtorDef{}, err
	}
	if _, err := p.need(RPAREN, "expected ')' after parameters"); err != nil {
		return CtorDef{}, err
	}
	body, err := p.blockExpr()
	if err != nil {
		return CtorDef{}, err
	}
	return CtorDef{
		Name:   name,
		Params: params,
		Body:   body,
		Pub:    pub,
		Span:   newTok.Span.Merge(body.Pos()),
	}, nil
}

// methodDef parses `fun name(params) [-> Type] { body }`. A leading `self`
// parameter marks an instance method and is stripped from Params.
func (p *parser) methodDef(pub bool) (MethodDef, error) {
	funTok := p.advance()
	nt, err := p.need(IDENT, "expected method name")
	if err != nil {
		return MethodDef{}, err
	}
	if _, err := p.need(LPAREN, "expected '(' after method name"); err != nil {
		return MethodDef{}, err
	}
	params, err := p.paramList(RPAREN)
	if err != nil {
		return MethodDef{}, err
	}
	if _, err := p.need(RPAREN, "expected ')' after parameters"); err != nil {
		return MethodDef{}, err
	}
	if p.match(ARROW) {
		if _, err := p.typeString(); err != nil {
			return MethodDef{}, err
		}
	}
	body, err := p.blockExpr()
	if err != nil {
		return MethodDef{}, err
	}
	static := true
	if len(params) > 0 && params[0].Name == "self" {
		static = false
		params = params[1:]
	}
	return MethodDef{
		Name:   nt.Literal.(string),
		Params: params,
		Body:   body,
		Static: static,
		Pub:    pub,
		Span:   funTok.Span.Merge(body.Pos()),
	}, nil
}

func (p *parser) actorDecl() (Expr, error) {
	actorTok := p.advance()
	nt, err := p.need(IDENT, "expected actor name")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(LBRACE, "expected '{' after actor name"); err != nil {
		return nil, err
	}
	n := &ActorDecl{Name: nt.Literal.(string)}
	for !p.check(RBRACE) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected '}' after actor body")
		}
		if p.match(COMMA, SEMI) {
			continue
		}
		switch p.peek().Type {
		case KWRECEIVE:
			hs, err := p.receiveHandlers()
			if err != nil {
				return nil, err
			}
			n.Handlers = append(n.Handlers, hs...)
		case IDENT, KWPUB:
			pub := p.match(KWPUB)
			f, err := p.fieldDef(pub)
			if err != nil {
				return nil, err
			}
			n.Fields = append(n.Fields, f)
		default:
			return nil, p.errAtTok(p.peek(), "expected field or receive in actor body")
		}
	}
	close := p.advance()
	n.Span = actorTok.Span.Merge(close.Span)
	return n, nil
}

// receiveHandlers parses either a single `receive Msg(params) => body` or a
// grouped `receive { Msg => body, ... }` block.
func (p *parser) receiveHandlers() ([]ActorHandler, error) {
	p.advance() // receive
	if p.match(LBRACE) {
		var out []ActorHandler
		for !p.check(RBRACE) {
			if p.atEnd() {
				return nil, p.errAtTok(p.peek(), "expected '}' after receive arms")
			}
			if p.match(COMMA, SEMI) {
				continue
			}
			h, err := p.receiveArm()
			if err != nil {
				return nil, err
			}
			out = append(out, h)
		}
		p.advance()
		return out, nil
	}
	h, err := p.receiveArm()
	if err != nil {
		return nil, err
	}
	return []ActorHandler{h}, nil
}

func (p *parser) receiveArm() (ActorHandler, error) {
	nt, err := p.need(IDENT, "expected message name")
	if err != nil {
		return ActorHandler{}, err
	}
	h := ActorHandler{Message: nt.Literal.(string), Span: nt.Span}
	if p.match(LPAREN) {
		params, err := p.paramList(RPAREN)
		if err != nil {
			return ActorHandler{}, err
		}
		if _, err := p.need(RPAREN, "expected ')' after handler parameters"); err != nil {
			return ActorHandler{}, err
		}
		h.Params = params
	}
	if _, err := p.need(FATARROW, "expected '=>' after message"); err != nil {
		return ActorHandler{}, err
	}
	body, err := p.expr(0)
	if err != nil {
		return ActorHandler{}, err
	}
	h.Body = body
	h.Span = h.Span.Merge(body.Pos())
	return h, nil
}

// ----- patterns -----

func (p *parser) pattern() (Pattern, error) {
	first, err := p.primaryPattern()
	if err != nil {
		return nil, err
	}
	if !p.check(PIPE) {
		return first, nil
	}
	alts := []Pattern{first}
	for p.match(PIPE) {
		alt, err := p.primaryPattern()
		if err != nil {
			return nil, err
		}
		alts = append(alts, alt)
	}
	return &PatOr{Span: first.Pos().Merge(alts[len(alts)-1].Pos()), Alts: alts}, nil
}

func (p *parser) primaryPattern() (Pattern, error) {
	t := p.peek()
	switch t.Type {
	case INT:
		p.advance()
		return &PatLiteral{Span: t.Span, Lit: IntV(t.Literal.(int64))}, nil
	case FLOAT:
		p.advance()
		return &PatLiteral{Span: t.Span, Lit: FloatV(t.Literal.(float64))}, nil
	case MINUS:
		p.advance()
		nt := p.peek()
		switch nt.Type {
		case INT:
			p.advance()
			return &PatLiteral{Span: t.Span.Merge(nt.Span), Lit: IntV(-nt.Literal.(int64))}, nil
		case FLOAT:
			p.advance()
			return &PatLiteral{Span: t.Span.Merge(nt.Span), Lit: FloatV(-nt.Literal.(float64))}, nil
		}
		return nil, p.errAtTok(nt, "expected number after '-' in pattern")
	case STRING:
		p.advance()
		return &PatLiteral{Span: t.Span, Lit: StrV(t.Literal.(string))}, nil
	case CHAR:
		p.advance()
		return &PatLiteral{Span: t.Span, Lit: CharV(t.Literal.(rune))}, nil
	case KWTRUE, KWFALSE:
		p.advance()
		return &PatLiteral{Span: t.Span, Lit: BoolV(t.Type == KWTRUE)}, nil
	case KWNIL:
		p.advance()
		return &PatLiteral{Span: t.Span, Lit: Nil}, nil
	case IDENT:
		p.advance()
		name := t.Literal.(string)
		if name == "_" {
			return &PatWildcard{Span: t.Span}, nil
		}
		if p.check(PATHSEP) {
			p.advance()
			vt, err := p.need(IDENT, "expected variant name after '::'")
			if err != nil {
				return nil, err
			}
			return p.ctorPatternTail(t.Span, name, vt.Literal.(string), vt.Span)
		}
		if p.check(LPAREN) {
			return p.ctorPatternTail(t.Span, "", name, t.Span)
		}
		if p.check(LBRACE) && isUpperName(name) {
			return p.structPattern(t)
		}
		if isUpperName(name) {
			return &PatCtor{Span: t.Span, Name: name}, nil
		}
		return &PatIdent{Span: t.Span, Name: name}, nil
	case LPAREN:
		return p.tuplePattern()
	case LBRACKET:
		return p.listPattern()
	}
	return nil, p.errAtTok(t, "expected pattern")
}

// ctorPatternTail parses the optional payload of a constructor pattern.
func (p *parser) ctorPatternTail(start Span, typeName, name string, nameSp Span) (Pattern, error) {
	n := &PatCtor{Span: start.Merge(nameSp), TypeName: typeName, Name: name}
	if !p.match(LPAREN) {
		return n, nil
	}
	for !p.check(RPAREN) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected ')' after constructor pattern")
		}
		a, err := p.pattern()
		if err != nil {
			return nil, err
		}
		n.Args = append(n.Args, a)
		if !p.match(COMMA) {
			break
		}
	}
	close, err := p.need(RPAREN, "expected ')' after constructor pattern")
	if err != nil {
		return nil, err
	}
	n.Span = n.Span.Merge(close.Span)
	return n, nil
}

func (p *parser) structPattern(nameTok Token) (Pattern, error) {
	p.advance() // '{'
	n := &PatStruct{Span: nameTok.Span, TypeName: nameTok.Literal.(string)}
	for !p.check(RBRACE) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected '}' after struct pattern")
		}
		if p.match(DOTDOT) {
			break // open pattern: remaining fields ignored
		}
		ft, err := p.need(IDENT, "expected field name in struct pattern")
		if err != nil {
			return nil, err
		}
		fname := ft.Literal.(string)
		var fp Pattern
		if p.match(COLON) {
			fp, err = p.pattern()
			if err != nil {
				return nil, err
			}
		} else {
			fp = &PatIdent{Span: ft.Span, Name: fname}
		}
		n.Fields = append(n.Fields, PatField{Name: fname, Pat: fp})
		if !p.match(COMMA) {
			break
		}
	}
	close, err := p.need(RBRACE, "expected '}' after struct pattern")
	if err != nil {
		return nil, err
	}
	n.Span = n.Span.Merge(close.Span)
	return n, nil
}

func (p *parser) tuplePattern() (Pattern, error) {
	open := p.advance()
	var elems []Pattern
	single := false
	for !p.check(RPAREN) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected ')' after tuple pattern")
		}
		e, err := p.pattern()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if !p.match(COMMA) {
			single = len(elems) == 1
			break
		}
	}
	close, err := p.need(RPAREN, "expected ')' after tuple pattern")
	if err != nil {
		return nil, err
	}
	if single {
		return elems[0], nil // grouping, not a 1-tuple
	}
	return &PatTuple{Span: open.Span.Merge(close.Span), Elems: elems}, nil
}

func (p *parser) listPattern() (Pattern, error) {
	open := p.advance()
	n := &PatList{Span: open.Span}
	for !p.check(RBRACKET) {
		if p.atEnd() {
			return nil, p.errAtTok(p.peek(), "expected ']' after list pattern")
		}
		if p.match(DOTDOT) {
			n.HasRest = true
			if p.check(IDENT) {
				n.Rest = p.advance().Literal.(string)
			}
			break
		}
		e, err := p.pattern()
		if err != nil {
			return nil, err
		}
		n.Elems = append(n.Elems, e)
		if !p.match(COMMA) {
			break
		}
	}
	close, err := p.need(RBRACKET, "expected ']' after list pattern")
	if err != nil {
		return nil, err
	}
	n.Span = n.Span.Merge(close.Span)
	return n, nil
}
