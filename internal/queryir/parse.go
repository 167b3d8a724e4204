package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/pushplan/internal/ir"
)

// Env supplies the row types a parsed expression may reference.
type Env struct {
	Input        RowType
	Correlations map[string]RowType
}

// ParseError reports a malformed expression with its byte offset.
type ParseError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q at offset %d: %s", e.Input, e.Offset, e.Msg)
}

// Parse reads an expression in explain form (see String).
func Parse(input string, env Env) (Node, error) {
	p := &parser{lex: newLexer(input), env: env, input: input}
	p.next()
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %q after expression", p.tok.text)
	}
	return n, nil
}

// MustParse is like Parse but panics on error. Use only in tests.
func MustParse(input string, env Env) Node {
	n, err := Parse(input, env)
	if err != nil {
		panic(err)
	}
	return n
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIllegal
	tokLParen
	tokRParen
	tokComma
	tokColon
	tokDot
	tokRef
	tokCorrelation
	tokString
	tokBinary
	tokNumber
	tokOperator
	tokWord
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

// lexer tokenizes the explain form of an expression.
type lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

func newLexer(input string) *lexer {
	l := &lexer{input: input}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *lexer) nextToken() token {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
	start := l.pos
	single := func(k tokenKind) token {
		t := token{kind: k, text: string(l.ch), offset: start}
		l.readChar()
		return t
	}

	switch {
	case l.ch == 0:
		return token{kind: tokEOF, offset: start}
	case l.ch == '(':
		return single(tokLParen)
	case l.ch == ')':
		return single(tokRParen)
	case l.ch == ',':
		return single(tokComma)
	case l.ch == ':':
		return single(tokColon)
	case l.ch == '.':
		return single(tokDot)
	case l.ch == '\'':
		return l.readString(tokString, start)
	case (l.ch == 'X' || l.ch == 'x') && l.peekChar() == '\'':
		l.readChar()
		return l.readString(tokBinary, start)
	case l.ch == '$':
		l.readChar()
		if l.ch == 'c' {
			word := l.readWhile(isWordChar)
			return token{kind: tokCorrelation, text: "$" + word, offset: start}
		}
		return token{kind: tokRef, text: l.readWhile(isDigit), offset: start}
	case l.ch == '-' && isDigit(l.peekChar()):
		l.readChar()
		return token{kind: tokNumber, text: "-" + l.readNumber(), offset: start}
	case isDigit(l.ch):
		return token{kind: tokNumber, text: l.readNumber(), offset: start}
	case strings.IndexByte("=<>+-*/", l.ch) >= 0:
		op := string(l.ch)
		if (l.ch == '<' && (l.peekChar() == '=' || l.peekChar() == '>')) || (l.ch == '>' && l.peekChar() == '=') {
			l.readChar()
			op += string(l.ch)
		}
		l.readChar()
		return token{kind: tokOperator, text: op, offset: start}
	case isWordChar(l.ch):
		return token{kind: tokWord, text: l.readWhile(isWordChar), offset: start}
	}
	return single(tokIllegal)
}

func (l *lexer) readWhile(pred func(byte) bool) string {
	start := l.pos
	for l.ch != 0 && pred(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) || l.ch == '.' {
		l.readChar()
	}
	if l.ch == 'E' || l.ch == 'e' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

// readString reads a single-quoted string where '' escapes a quote.
func (l *lexer) readString(kind tokenKind, start int) token {
	var b strings.Builder
	l.readChar()
	for {
		switch {
		case l.ch == 0:
			return token{kind: tokIllegal, text: "unterminated string", offset: start}
		case l.ch == '\'' && l.peekChar() == '\'':
			b.WriteByte('\'')
			l.readChar()
		case l.ch == '\'':
			l.readChar()
			return token{kind: kind, text: b.String(), offset: start}
		default:
			b.WriteByte(l.ch)
		}
		l.readChar()
	}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isWordChar(ch byte) bool {
	return ch == '_' || isDigit(ch) || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

type parser struct {
	lex   *lexer
	tok   token
	env   Env
	input string
}

func (p *parser) next() { p.tok = p.lex.nextToken() }

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Input: p.input, Offset: p.tok.offset, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.tok.kind != kind {
		return p.errorf("expected %s, got %q", what, p.tok.text)
	}
	p.next()
	return nil
}

func (p *parser) parseExpr() (Node, error) {
	tok := p.tok
	switch tok.kind {
	case tokRef:
		return p.parseRef()
	case tokCorrelation:
		return p.parseFieldAccess()
	case tokString:
		p.next()
		return p.literalSuffix(ir.DVarchar(tok.text))
	case tokBinary:
		p.next()
		return p.parseBinary(tok)
	case tokNumber:
		p.next()
		d, err := parseNumber(tok.text)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return p.literalSuffix(d)
	case tokOperator:
		op, _ := LookupOp(tok.text)
		p.next()
		return p.parseCall(op)
	case tokWord:
		return p.parseWord()
	}
	return nil, p.errorf("unexpected %q", tok.text)
}

func (p *parser) parseRef() (Node, error) {
	idx, err := strconv.Atoi(p.tok.text)
	if err != nil {
		return nil, p.errorf("bad input reference $%s", p.tok.text)
	}
	if idx >= len(p.env.Input) {
		return nil, p.errorf("input reference $%d out of range (input has %d columns)", idx, len(p.env.Input))
	}
	p.next()
	return p.env.Input.Ref(idx), nil
}

func (p *parser) parseFieldAccess() (Node, error) {
	name := p.tok.text
	row, ok := p.env.Correlations[name]
	if !ok {
		return nil, p.errorf("unknown correlation variable %s", name)
	}
	p.next()
	if err := p.expect(tokDot, "'.'"); err != nil {
		return nil, err
	}
	if p.tok.kind != tokRef {
		return nil, p.errorf("expected field reference after %s.", name)
	}
	idx, err := strconv.Atoi(p.tok.text)
	if err != nil || idx >= len(row) {
		return nil, p.errorf("field $%s out of range for %s", p.tok.text, name)
	}
	p.next()
	return &FieldAccess{Correlation: name, Index: idx, DataType: row[idx].Type}, nil
}

func (p *parser) parseBinary(tok token) (Node, error) {
	b := make([]byte, 0, len(tok.text)/2)
	for i := 0; i+1 < len(tok.text); i += 2 {
		v, err := strconv.ParseUint(tok.text[i:i+2], 16, 8)
		if err != nil {
			return nil, p.errorf("bad binary literal X'%s'", tok.text)
		}
		b = append(b, byte(v))
	}
	return p.literalSuffix(ir.DBinary(b))
}

func (p *parser) parseWord() (Node, error) {
	word := strings.ToUpper(p.tok.text)
	switch word {
	case "TRUE", "FALSE":
		p.next()
		return p.literalSuffix(ir.DBool(word == "TRUE"))
	case "NULL":
		p.next()
		return p.literalSuffix(ir.DNull{})
	case "DATE", "TIME", "TIMESTAMP":
		p.next()
		if p.tok.kind != tokString {
			return nil, p.errorf("expected quoted %s literal", word)
		}
		d, err := parseTemporal(word, p.tok.text)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		p.next()
		return p.literalSuffix(d)
	case "IS":
		p.next()
		name := "IS "
		if strings.EqualFold(p.tok.text, "NOT") {
			name += "NOT "
			p.next()
		}
		if !strings.EqualFold(p.tok.text, "NULL") {
			return nil, p.errorf("expected NULL after %s", strings.TrimSpace(name))
		}
		p.next()
		op, _ := LookupOp(name + "NULL")
		return p.parseCall(op)
	}
	op, ok := LookupOp(word)
	if !ok {
		return nil, p.errorf("unknown operator %s", p.tok.text)
	}
	p.next()
	return p.parseCall(op)
}

func (p *parser) parseCall(op Op) (Node, error) {
	if err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var operands []Node
	for p.tok.kind != tokRParen {
		if len(operands) > 0 {
			if err := p.expect(tokComma, "','"); err != nil {
				return nil, err
			}
		}
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
	}
	p.next()

	call := &Call{Op: op, Operands: operands, DataType: InferType(op, operands)}
	t, ok, err := p.typeSuffix()
	if err != nil {
		return nil, err
	}
	if ok {
		call.DataType = t
	} else if op == OpCast {
		return nil, p.errorf("CAST requires a :TYPE suffix")
	}
	return call, nil
}

func (p *parser) literalSuffix(v ir.Datum) (Node, error) {
	lit := NewLiteral(v)
	t, ok, err := p.typeSuffix()
	if err != nil {
		return nil, err
	}
	if ok {
		lit.DataType = t
	}
	return lit, nil
}

func (p *parser) typeSuffix() (ir.DataType, bool, error) {
	if p.tok.kind != tokColon {
		return ir.TypeUnknown, false, nil
	}
	p.next()
	if p.tok.kind != tokWord {
		return ir.TypeUnknown, false, p.errorf("expected type name after ':'")
	}
	t, err := ir.ParseDataType(p.tok.text)
	if err != nil {
		return ir.TypeUnknown, false, p.errorf("%v", err)
	}
	p.next()
	return t, true, nil
}

func parseNumber(text string) (ir.Datum, error) {
	switch {
	case strings.ContainsAny(text, "eE"):
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, err
		}
		return ir.DDouble(f), nil
	case strings.Contains(text, "."):
		return ir.ParseDecimal(text)
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, err
	}
	if n >= -1<<31 && n < 1<<31 {
		return ir.DInteger(n), nil
	}
	return ir.DLong(n), nil
}

func parseTemporal(kind, text string) (ir.Datum, error) {
	switch kind {
	case "DATE":
		return ir.ParseDate(text)
	case "TIME":
		return ir.ParseTime(text)
	}
	return ir.ParseTimestamp(text)
}
