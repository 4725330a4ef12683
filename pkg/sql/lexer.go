// Package sql provides the CSQL lexer and parser.
package sql

import (
	"strings"
	"unicode"
)

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TOKEN_EOF TokenType = iota
	TOKEN_ILLEGAL

	// Literals
	TOKEN_IDENT  // identifiers: table names, column names
	TOKEN_INT    // integer literals
	TOKEN_FLOAT  // decimal literals 1.5
	TOKEN_STRING // string literals 'hello' or "hello"

	// Operators and delimiters
	TOKEN_COMMA     // ,
	TOKEN_SEMICOLON // ;
	TOKEN_DOT       // .
	TOKEN_LPAREN    // (
	TOKEN_RPAREN    // )
	TOKEN_STAR      // *
	TOKEN_PLUS      // +
	TOKEN_MINUS     // -
	TOKEN_SLASH     // /
	TOKEN_PERCENT   // %
	TOKEN_CARET     // ^
	TOKEN_BANG      // !
	TOKEN_EQ        // = or ==
	TOKEN_NE        // != or <>
	TOKEN_LT        // <
	TOKEN_LE        // <=
	TOKEN_GT        // >
	TOKEN_GE        // >=

	// Keywords
	TOKEN_SELECT
	TOKEN_FROM
	TOKEN_WHERE
	TOKEN_AND
	TOKEN_OR
	TOKEN_NOT
	TOKEN_NULL
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_AS

	// GROUP BY and HAVING keywords
	TOKEN_GROUP
	TOKEN_HAVING

	// ORDER BY and LIMIT keywords
	TOKEN_ORDER
	TOKEN_BY
	TOKEN_ASC
	TOKEN_DESC
	TOKEN_LIMIT
	TOKEN_OFFSET

	// JOIN keywords
	TOKEN_JOIN
	TOKEN_INNER
	TOKEN_LEFT
	TOKEN_RIGHT
	TOKEN_OUTER
	TOKEN_CROSS
	TOKEN_NATURAL
	TOKEN_ON

	// Record scoped aggregation
	TOKEN_WITHIN
	TOKEN_RECORD

	// Pattern matching
	TOKEN_LIKE
	TOKEN_REGEXP

	// Meta statements
	TOKEN_SHOW
	TOKEN_TABLES
	TOKEN_DESCRIBE
	TOKEN_EXPLAIN
)

var keywords = map[string]TokenType{
	"SELECT":   TOKEN_SELECT,
	"FROM":     TOKEN_FROM,
	"WHERE":    TOKEN_WHERE,
	"AND":      TOKEN_AND,
	"OR":       TOKEN_OR,
	"NOT":      TOKEN_NOT,
	"NULL":     TOKEN_NULL,
	"TRUE":     TOKEN_TRUE,
	"FALSE":    TOKEN_FALSE,
	"AS":       TOKEN_AS,
	"GROUP":    TOKEN_GROUP,
	"HAVING":   TOKEN_HAVING,
	"ORDER":    TOKEN_ORDER,
	"BY":       TOKEN_BY,
	"ASC":      TOKEN_ASC,
	"DESC":     TOKEN_DESC,
	"LIMIT":    TOKEN_LIMIT,
	"OFFSET":   TOKEN_OFFSET,
	"JOIN":     TOKEN_JOIN,
	"INNER":    TOKEN_INNER,
	"LEFT":     TOKEN_LEFT,
	"RIGHT":    TOKEN_RIGHT,
	"OUTER":    TOKEN_OUTER,
	"CROSS":    TOKEN_CROSS,
	"NATURAL":  TOKEN_NATURAL,
	"ON":       TOKEN_ON,
	"WITHIN":   TOKEN_WITHIN,
	"RECORD":   TOKEN_RECORD,
	"LIKE":     TOKEN_LIKE,
	"REGEXP":   TOKEN_REGEXP,
	"REGEX":    TOKEN_REGEXP,
	"SHOW":     TOKEN_SHOW,
	"TABLES":   TOKEN_TABLES,
	"DESCRIBE": TOKEN_DESCRIBE,
	"EXPLAIN":  TOKEN_EXPLAIN,
}

var tokenNames = map[TokenType]string{
	TOKEN_EOF:       "end of input",
	TOKEN_ILLEGAL:   "illegal character",
	TOKEN_IDENT:     "identifier",
	TOKEN_INT:       "integer",
	TOKEN_FLOAT:     "number",
	TOKEN_STRING:    "string",
	TOKEN_COMMA:     "','",
	TOKEN_SEMICOLON: "';'",
	TOKEN_DOT:       "'.'",
	TOKEN_LPAREN:    "'('",
	TOKEN_RPAREN:    "')'",
	TOKEN_STAR:      "'*'",
	TOKEN_PLUS:      "'+'",
	TOKEN_MINUS:     "'-'",
	TOKEN_SLASH:     "'/'",
	TOKEN_PERCENT:   "'%'",
	TOKEN_CARET:     "'^'",
	TOKEN_BANG:      "'!'",
	TOKEN_EQ:        "'='",
	TOKEN_NE:        "'!='",
	TOKEN_LT:        "'<'",
	TOKEN_LE:        "'<='",
	TOKEN_GT:        "'>'",
	TOKEN_GE:        "'>='",
}

// String returns a readable name for error messages.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	for kw, tt := range keywords {
		if tt == t && kw != "REGEX" {
			return kw
		}
	}
	return "unknown token"
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}

// Lexer tokenizes CSQL input.
type Lexer struct {
	input   string
	pos     int  // current position
	readPos int  // next position to read
	ch      byte // current character
}

// NewLexer creates a new Lexer for the input string.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespace() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		// -- line comments
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	var tok Token
	tok.Pos = l.pos

	single := func(t TokenType) Token {
		tok := Token{Type: t, Literal: string(l.ch), Pos: l.pos}
		l.readChar()
		return tok
	}
	double := func(t TokenType) Token {
		tok := Token{Type: t, Literal: l.input[l.pos : l.pos+2], Pos: l.pos}
		l.readChar()
		l.readChar()
		return tok
	}

	switch l.ch {
	case 0:
		tok.Type = TOKEN_EOF
		tok.Literal = ""
	case ',':
		tok = single(TOKEN_COMMA)
	case ';':
		tok = single(TOKEN_SEMICOLON)
	case '(':
		tok = single(TOKEN_LPAREN)
	case ')':
		tok = single(TOKEN_RPAREN)
	case '*':
		tok = single(TOKEN_STAR)
	case '+':
		tok = single(TOKEN_PLUS)
	case '-':
		tok = single(TOKEN_MINUS)
	case '/':
		tok = single(TOKEN_SLASH)
	case '%':
		tok = single(TOKEN_PERCENT)
	case '^':
		tok = single(TOKEN_CARET)
	case '=':
		if l.peekChar() == '=' {
			tok = double(TOKEN_EQ)
		} else {
			tok = single(TOKEN_EQ)
		}
	case '<':
		switch l.peekChar() {
		case '=':
			tok = double(TOKEN_LE)
		case '>':
			tok = double(TOKEN_NE)
		default:
			tok = single(TOKEN_LT)
		}
	case '>':
		if l.peekChar() == '=' {
			tok = double(TOKEN_GE)
		} else {
			tok = single(TOKEN_GT)
		}
	case '!':
		if l.peekChar() == '=' {
			tok = double(TOKEN_NE)
		} else {
			tok = single(TOKEN_BANG)
		}
	case '\'', '"':
		tok.Type = TOKEN_STRING
		lit, ok := l.readString(l.ch)
		if !ok {
			tok.Type = TOKEN_ILLEGAL
		}
		tok.Literal = lit
	case '`':
		tok.Type = TOKEN_IDENT
		lit, ok := l.readQuotedIdentifier()
		if !ok {
			tok.Type = TOKEN_ILLEGAL
		}
		tok.Literal = lit
	case '.':
		if isDigit(l.peekChar()) {
			tok.Literal, tok.Type = l.readNumber()
			return tok
		}
		tok = single(TOKEN_DOT)
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = lookupKeyword(tok.Literal)
			return tok
		} else if isDigit(l.ch) {
			tok.Literal, tok.Type = l.readNumber()
			return tok
		}
		tok = single(TOKEN_ILLEGAL)
	}
	return tok
}

func (l *Lexer) readIdentifier() string {
	pos := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

func (l *Lexer) readNumber() (string, TokenType) {
	pos := l.pos
	typ := TOKEN_INT
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && (isDigit(l.peekChar()) || pos == l.pos) {
		typ = TOKEN_FLOAT
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '-' || l.peekChar() == '+') {
		typ = TOKEN_FLOAT
		l.readChar()
		if l.ch == '-' || l.ch == '+' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[pos:l.pos], typ
}

// readString reads a quoted string. A backslash escapes the next character.
func (l *Lexer) readString(quote byte) (string, bool) {
	l.readChar() // consume opening quote
	var b strings.Builder
	for l.ch != quote {
		if l.ch == 0 {
			return b.String(), false
		}
		if l.ch == '\\' {
			l.readChar() // skip escape
			switch l.ch {
			case 0:
				return b.String(), false
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(l.ch)
			}
			l.readChar()
			continue
		}
		b.WriteByte(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing quote
	return b.String(), true
}

func (l *Lexer) readQuotedIdentifier() (string, bool) {
	l.readChar() // consume opening backtick
	pos := l.pos
	for l.ch != '`' {
		if l.ch == 0 {
			return l.input[pos:l.pos], false
		}
		l.readChar()
	}
	ident := l.input[pos:l.pos]
	l.readChar() // consume closing backtick
	return ident, true
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func lookupKeyword(ident string) TokenType {
	if tok, ok := keywords[strings.ToUpper(ident)]; ok {
		return tok
	}
	return TOKEN_IDENT
}
