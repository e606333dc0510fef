package rainbow

// This file implements a small SQL tokenizer, just enough to find the @name
// parameters of a statement without touching anything that only looks like
// one. It emits the following tokens:
//
//     Space:             runs of whitespace characters
//     Comment:           '--' comment line
//     BlockComment:      /* */ block comment (nests)
//     Identifier:        any identifier (keywords and @@system variables too)
//     QuotedIdentifier:  "quoted" or `quoted` identifier
//     StringLiteral:     'quoted' string
//     Numeric:           a numeric constant
//     Operator:          parenthesis, comma, :: and friends
//     Parameter:         @name
//
// Lexical rules:
//
//     - An Identifier is a run of characters which matches none of the
//       other tokens. It ends on one of
//       ' " ( ) [ ] , ; $ : + - * / < > = ~ ! @ # % ^ & | ` ?
//       '.' is part of the identifier so qualified names stay whole.
//     - A Parameter is '@' followed by letters, digits or underscores.
//       '@@' starts a system variable, which is an Identifier.
//     - Quoted tokens end at the first closing quote which is not doubled.
//     - A Comment runs to the first newline (inclusive). Block comments
//       may nest.
//
// The lexer ranges over bytes, not runes: every special character is ASCII
// and UTF-8 never reuses ASCII byte values inside multi-byte sequences.

import "strings"

type item struct {
	typ itemType // type of this item
	pos int      // starting position, in bytes, of this item
	val string   // value of this item
}

func (i item) String() string {
	switch i.typ {
	case itemEOF:
		return "<EOF>"
	case itemIdentifier:
		return "<Identifier>   " + i.val
	case itemQuotedIdentifier:
		return `<"Identifier"> ` + i.val
	case itemStringLiteral:
		return "<String>       " + i.val
	case itemSpace:
		return "<Space>"
	case itemOperator:
		return "<Operator>     " + i.val
	case itemNumeric:
		return "<Numeric>      " + i.val
	case itemComment:
		return "<Comment>      " + i.val
	case itemBlockComment:
		return "<BlockComment> " + i.val
	case itemParameter:
		return "<Parameter>    " + i.val
	default:
		return "<unknown>      " + i.val
	}
}

type itemType int

const (
	itemEOF itemType = iota
	itemSpace
	itemComment
	itemBlockComment
	itemIdentifier
	itemQuotedIdentifier
	itemStringLiteral
	itemNumeric
	itemOperator
	itemParameter
)

type stateFn func(*lexer) stateFn

type lexer struct {
	input string    // input string to be tokenized
	pos   int       // current position in the input, in bytes
	start int       // start position of the current item, in bytes
	items chan item // channel of scanned items
}

var (
	spaceChars    = " \t\r\n"
	operatorStart = "?()<=>|:.![],;+-^*/%"
	delimiters    = spaceChars + "'\"()[],;$:+-*/<>=~!@#%^&|`?"
	oneCharOps    = "()[],;.+-^*/%<>=:?!|"
)

// lexSQL starts tokenizing input. The caller must drain l.items until it is
// closed.
//
//	lex := lexSQL(query)
//	for tok := range lex.items {
//	        if tok.typ == itemParameter {
//	                println(tok.val[1:])
//	        }
//	}
func lexSQL(input string) *lexer {
	l := &lexer{
		input: input,
		items: make(chan item),
	}
	go l.run()
	return l
}

const eof = -1

// next returns the next byte cast to a rune, using -1 for EOF.
func (l *lexer) next() rune {
	r := rune(eof)
	if l.pos < len(l.input) {
		r = rune(l.input[l.pos])
	}
	l.pos++
	return r
}

func (l *lexer) backup() {
	l.pos--
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.input) {
		return eof
	}
	return rune(l.input[l.pos])
}

func (l *lexer) emit(t itemType) {
	if l.pos > len(l.input) {
		l.pos = len(l.input)
	}
	l.items <- item{t, l.start, l.input[l.start:l.pos]}
	l.start = l.pos
}

func (l *lexer) run() {
	for state := lexAny; state != nil; {
		state = state(l)
	}
	close(l.items)
}

func isParamChar(c rune) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func lexAny(l *lexer) stateFn {
	c := l.next()
	switch c {
	case eof:
		l.emit(itemEOF)
		return nil
	case '\'':
		return lexQuoted('\'', itemStringLiteral)
	case '"':
		return lexQuoted('"', itemQuotedIdentifier)
	case '`':
		return lexQuoted('`', itemQuotedIdentifier)
	case '@':
		return lexAt
	case '-':
		if l.peek() == '-' {
			l.next()
			return lexComment
		}
	case '/':
		if l.peek() == '*' {
			l.next()
			return lexBlockComment
		}
	case '.':
		if n := l.peek(); n >= '0' && n <= '9' {
			return lexNumeric
		}
	}
	if c >= '0' && c <= '9' {
		return lexNumeric
	}
	if strings.IndexRune(spaceChars, c) >= 0 {
		return lexSpace
	}
	if strings.IndexRune(operatorStart, c) >= 0 {
		return lexOperator
	}
	return lexIdentifier
}

func lexSpace(l *lexer) stateFn {
	for strings.IndexRune(spaceChars, l.next()) >= 0 {
	}
	l.backup()
	l.emit(itemSpace)
	return lexAny
}

func lexOperator(l *lexer) stateFn {
	in := l.input[l.start:]
	if len(in) >= 2 {
		switch in[:2] {
		case "<=", "<>", ">=", "||", "::", "..", "->", "!=":
			l.pos++
			l.emit(itemOperator)
			return lexAny
		}
	}
	if strings.IndexByte(oneCharOps, in[0]) >= 0 {
		l.emit(itemOperator)
		return lexAny
	}
	return lexIdentifier
}

// lexAt runs after an '@' has been consumed.
func lexAt(l *lexer) stateFn {
	if l.peek() == '@' {
		l.next()
		return lexIdentifier
	}
	if !isParamChar(l.peek()) {
		l.emit(itemOperator)
		return lexAny
	}
	for isParamChar(l.next()) {
	}
	l.backup()
	l.emit(itemParameter)
	return lexAny
}

func lexIdentifier(l *lexer) stateFn {
	for {
		c := l.next()
		if c == eof || strings.IndexRune(delimiters, c) >= 0 {
			l.backup()
			l.emit(itemIdentifier)
			return lexAny
		}
	}
}

func lexQuoted(q byte, typ itemType) stateFn {
	return func(l *lexer) stateFn {
		for {
			i := strings.IndexByte(l.input[l.pos:], q)
			if i < 0 {
				l.pos = len(l.input)
				break
			}
			l.pos += i + 1
			if l.peek() != rune(q) {
				break
			}
			l.next()
		}
		l.emit(typ)
		return lexAny
	}
}

func lexNumeric(l *lexer) stateFn {
	for {
		c := l.next()
		if (c < '0' || c > '9') && c != '.' {
			l.backup()
			l.emit(itemNumeric)
			return lexAny
		}
	}
}

// lexComment scans to the next newline. The '--' has been consumed.
func lexComment(l *lexer) stateFn {
	if i := strings.IndexByte(l.input[l.pos:], '\n'); i >= 0 {
		l.pos += i + 1
	} else {
		l.pos = len(l.input)
	}
	l.emit(itemComment)
	return lexAny
}

func lexBlockComment(l *lexer) stateFn {
	for depth := 1; depth > 0; {
		switch l.next() {
		case eof:
			l.emit(itemBlockComment)
			l.emit(itemEOF)
			return nil
		case '*':
			if l.peek() == '/' {
				l.next()
				depth--
			}
		case '/':
			if l.peek() == '*' {
				l.next()
				depth++
			}
		}
	}
	l.emit(itemBlockComment)
	return lexAny
}
