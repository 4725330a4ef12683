package sql

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

// Parser parses CSQL statements.
type Parser struct {
	lexer *Lexer
	cur   Token
	peek  Token
}

// NewParser creates a new parser for the input SQL.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to initialize cur and peek
	p.nextToken()
	p.nextToken()
	return p
}

// ParseStatements parses a ';'-separated list of statements.
func ParseStatements(input string) ([]Statement, error) {
	p := NewParser(input)
	var stmts []Statement
	for {
		for p.curTokenIs(TOKEN_SEMICOLON) {
			p.nextToken()
		}
		if p.curTokenIs(TOKEN_EOF) {
			break
		}
		stmt, err := p.Parse()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if !p.curTokenIs(TOKEN_SEMICOLON) && !p.curTokenIs(TOKEN_EOF) {
			return nil, p.unexpected()
		}
	}
	if len(stmts) == 0 {
		return nil, catalog.NewError(catalog.KindParseError, "empty query")
	}
	return stmts, nil
}

// ParseExpression parses a standalone value expression.
func ParseExpression(input string) (Expression, error) {
	p := NewParser(input)
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.curTokenIs(TOKEN_SEMICOLON) {
		p.nextToken()
	}
	if !p.curTokenIs(TOKEN_EOF) {
		return nil, p.unexpected()
	}
	return expr, nil
}

func (p *Parser) nextToken() {
	p.cur = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.cur.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peek.Type == t
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return catalog.NewError(catalog.KindParseError, "%s at position %d",
		fmt.Sprintf(format, args...), p.cur.Pos)
}

func (p *Parser) unexpected() error {
	if p.curTokenIs(TOKEN_EOF) {
		return p.errorf("unexpected end of input")
	}
	return p.errorf("unexpected %v (%q)", p.cur.Type, p.cur.Literal)
}

func (p *Parser) expect(t TokenType) error {
	if p.curTokenIs(t) {
		p.nextToken()
		return nil
	}
	return p.errorf("expected %v, got %v (%q)", t, p.cur.Type, p.cur.Literal)
}

// Parse parses a single statement. A trailing ';' is left in place.
func (p *Parser) Parse() (Statement, error) {
	switch p.cur.Type {
	case TOKEN_SELECT:
		return p.parseSelect()
	case TOKEN_SHOW:
		return p.parseShow()
	case TOKEN_DESCRIBE:
		return p.parseDescribe()
	case TOKEN_EXPLAIN:
		p.nextToken() // consume EXPLAIN
		if !p.curTokenIs(TOKEN_SELECT) {
			return nil, p.errorf("EXPLAIN expects a SELECT statement")
		}
		stmt, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		return &ExplainStmt{Statement: stmt}, nil
	default:
		return nil, p.unexpected()
	}
}

func (p *Parser) parseShow() (Statement, error) {
	p.nextToken() // consume SHOW
	if err := p.expect(TOKEN_TABLES); err != nil {
		return nil, err
	}
	return &ShowTablesStmt{}, nil
}

func (p *Parser) parseDescribe() (Statement, error) {
	p.nextToken() // consume DESCRIBE
	name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	return &DescribeStmt{TableName: name}, nil
}

// parseQualifiedName reads ident{.ident}.
func (p *Parser) parseQualifiedName() (string, error) {
	if !p.curTokenIs(TOKEN_IDENT) {
		return "", p.errorf("expected identifier, got %v (%q)", p.cur.Type, p.cur.Literal)
	}
	parts := []string{p.cur.Literal}
	p.nextToken()
	for p.curTokenIs(TOKEN_DOT) && p.peekTokenIs(TOKEN_IDENT) {
		p.nextToken() // consume '.'
		parts = append(parts, p.cur.Literal)
		p.nextToken()
	}
	return strings.Join(parts, "."), nil
}

func (p *Parser) parseSelect() (*SelectStmt, error) {
	stmt := &SelectStmt{}

	p.nextToken() // consume SELECT

	// Parse column list
	cols, err := p.parseSelectColumns()
	if err != nil {
		return nil, err
	}
	stmt.Columns = cols

	// Optional FROM
	if p.curTokenIs(TOKEN_FROM) {
		p.nextToken()
		from, err := p.parseFrom()
		if err != nil {
			return nil, err
		}
		stmt.From = from
	}

	// Optional WHERE
	if p.curTokenIs(TOKEN_WHERE) {
		p.nextToken()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
	}

	// Optional GROUP BY
	if p.curTokenIs(TOKEN_GROUP) {
		p.nextToken() // consume GROUP
		if err := p.expect(TOKEN_BY); err != nil {
			return nil, err
		}
		exprs, err := p.parseExpressionList()
		if err != nil {
			return nil, err
		}
		stmt.GroupBy = exprs
	}

	// Optional HAVING
	if p.curTokenIs(TOKEN_HAVING) {
		p.nextToken()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Having = expr
	}

	// Optional ORDER BY
	if p.curTokenIs(TOKEN_ORDER) {
		p.nextToken() // consume ORDER
		if err := p.expect(TOKEN_BY); err != nil {
			return nil, err
		}
		for {
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			item := OrderByItem{Expr: expr}
			if p.curTokenIs(TOKEN_DESC) {
				item.Desc = true
				p.nextToken()
			} else if p.curTokenIs(TOKEN_ASC) {
				p.nextToken()
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if !p.curTokenIs(TOKEN_COMMA) {
				break
			}
			p.nextToken() // consume comma
		}
	}

	// Optional LIMIT [OFFSET]
	if p.curTokenIs(TOKEN_LIMIT) {
		p.nextToken()
		n, err := p.parseCount("LIMIT")
		if err != nil {
			return nil, err
		}
		stmt.Limit = &n
		if p.curTokenIs(TOKEN_OFFSET) {
			p.nextToken()
			m, err := p.parseCount("OFFSET")
			if err != nil {
				return nil, err
			}
			stmt.Offset = &m
		}
	}

	return stmt, nil
}

func (p *Parser) parseCount(clause string) (int64, error) {
	if !p.curTokenIs(TOKEN_INT) {
		return 0, p.errorf("expected number after %s, got %v (%q)", clause, p.cur.Type, p.cur.Literal)
	}
	n, err := strconv.ParseInt(p.cur.Literal, 10, 64)
	if err != nil {
		return 0, p.errorf("invalid %s value %q", clause, p.cur.Literal)
	}
	p.nextToken()
	return n, nil
}

func (p *Parser) parseSelectColumns() ([]SelectColumn, error) {
	var cols []SelectColumn
	for {
		col, err := p.parseSelectColumn()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if !p.curTokenIs(TOKEN_COMMA) {
			return cols, nil
		}
		p.nextToken() // consume comma
	}
}

func (p *Parser) parseSelectColumn() (SelectColumn, error) {
	if p.curTokenIs(TOKEN_STAR) {
		p.nextToken()
		return SelectColumn{Star: true}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return SelectColumn{}, err
	}
	if star, ok := expr.(*StarExpr); ok {
		return SelectColumn{Star: true, StarTable: star.Table}, nil
	}

	col := SelectColumn{Expr: expr}
	alias, err := p.parseAlias()
	if err != nil {
		return SelectColumn{}, err
	}
	col.Alias = alias
	return col, nil
}

// parseAlias reads "AS name" or a bare identifier. It returns "" when there
// is no alias.
func (p *Parser) parseAlias() (string, error) {
	if p.curTokenIs(TOKEN_AS) {
		p.nextToken() // consume AS
		if !p.curTokenIs(TOKEN_IDENT) && !p.curTokenIs(TOKEN_STRING) {
			return "", p.errorf("expected alias after AS, got %v (%q)", p.cur.Type, p.cur.Literal)
		}
		alias := p.cur.Literal
		p.nextToken()
		return alias, nil
	}
	if p.curTokenIs(TOKEN_IDENT) {
		alias := p.cur.Literal
		p.nextToken()
		return alias, nil
	}
	return "", nil
}

func (p *Parser) parseFrom() (TableExpr, error) {
	left, err := p.parseTableFactor()
	if err != nil {
		return nil, err
	}

	for {
		switch p.cur.Type {
		case TOKEN_COMMA:
			p.nextToken() // consume comma
			right, err := p.parseTableFactor()
			if err != nil {
				return nil, err
			}
			left = &JoinExpr{Type: JoinCross, Left: left, Right: right}

		case TOKEN_NATURAL, TOKEN_JOIN, TOKEN_INNER, TOKEN_LEFT, TOKEN_RIGHT, TOKEN_CROSS:
			join, err := p.parseJoinClause(left)
			if err != nil {
				return nil, err
			}
			left = join

		default:
			return left, nil
		}
	}
}

// parseJoinClause parses [NATURAL] [INNER|LEFT [OUTER]|RIGHT [OUTER]|CROSS] JOIN item [ON expr].
func (p *Parser) parseJoinClause(left TableExpr) (*JoinExpr, error) {
	join := &JoinExpr{Type: JoinInner, Left: left}

	if p.curTokenIs(TOKEN_NATURAL) {
		join.Natural = true
		p.nextToken()
	}

	switch p.cur.Type {
	case TOKEN_INNER:
		p.nextToken()
	case TOKEN_LEFT:
		join.Type = JoinLeft
		p.nextToken()
		if p.curTokenIs(TOKEN_OUTER) {
			p.nextToken()
		}
	case TOKEN_RIGHT:
		join.Type = JoinRight
		p.nextToken()
		if p.curTokenIs(TOKEN_OUTER) {
			p.nextToken()
		}
	case TOKEN_CROSS:
		join.Type = JoinCross
		p.nextToken()
	}

	if err := p.expect(TOKEN_JOIN); err != nil {
		return nil, err
	}

	right, err := p.parseTableFactor()
	if err != nil {
		return nil, err
	}
	join.Right = right

	if p.curTokenIs(TOKEN_ON) {
		if join.Natural {
			return nil, p.errorf("NATURAL JOIN can't have an ON clause")
		}
		p.nextToken()
		on, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		join.On = on
	}
	return join, nil
}

func (p *Parser) parseTableFactor() (TableExpr, error) {
	if p.curTokenIs(TOKEN_LPAREN) {
		p.nextToken() // consume '('
		if !p.curTokenIs(TOKEN_SELECT) {
			return nil, p.errorf("expected SELECT after '(' in FROM, got %v (%q)", p.cur.Type, p.cur.Literal)
		}
		sub, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TOKEN_RPAREN); err != nil {
			return nil, err
		}
		alias, err := p.parseAlias()
		if err != nil {
			return nil, err
		}
		return &SubqueryTable{Select: sub, Alias: alias}, nil
	}

	name, err := p.parseQualifiedName()
	if err != nil {
		return nil, p.errorf("expected table name, got %v (%q)", p.cur.Type, p.cur.Literal)
	}
	alias, err := p.parseAlias()
	if err != nil {
		return nil, err
	}
	return &TableName{Name: name, Alias: alias}, nil
}

func (p *Parser) parseExpressionList() ([]Expression, error) {
	var exprs []Expression
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		if !p.curTokenIs(TOKEN_COMMA) {
			return exprs, nil
		}
		p.nextToken() // consume comma
	}
}

func (p *Parser) parseExpression() (Expression, error) {
	return p.parseOrExpr()
}

func (p *Parser) parseOrExpr() (Expression, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}

	for p.curTokenIs(TOKEN_OR) {
		op := p.cur.Type
		p.nextToken()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left, nil
}

func (p *Parser) parseAndExpr() (Expression, error) {
	left, err := p.parseNotExpr()
	if err != nil {
		return nil, err
	}

	for p.curTokenIs(TOKEN_AND) {
		op := p.cur.Type
		p.nextToken()
		right, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left, nil
}

func (p *Parser) parseNotExpr() (Expression, error) {
	if p.curTokenIs(TOKEN_NOT) {
		p.nextToken()
		expr, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: TOKEN_NOT, Expr: expr}, nil
	}
	return p.parseComparisonExpr()
}

func (p *Parser) parseComparisonExpr() (Expression, error) {
	left, err := p.parseAddExpr()
	if err != nil {
		return nil, err
	}

	// Handle [NOT] LIKE / REGEXP
	isNot := false
	if p.curTokenIs(TOKEN_NOT) && (p.peekTokenIs(TOKEN_LIKE) || p.peekTokenIs(TOKEN_REGEXP)) {
		p.nextToken()
		isNot = true
	}
	if p.curTokenIs(TOKEN_LIKE) || p.curTokenIs(TOKEN_REGEXP) {
		op := p.cur.Type
		p.nextToken()
		pattern, err := p.parseAddExpr()
		if err != nil {
			return nil, err
		}
		var expr Expression = &BinaryExpr{Left: left, Op: op, Right: pattern}
		if isNot {
			expr = &UnaryExpr{Op: TOKEN_NOT, Expr: expr}
		}
		return expr, nil
	}

	switch p.cur.Type {
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_LE, TOKEN_GT, TOKEN_GE:
		op := p.cur.Type
		p.nextToken()
		right, err := p.parseAddExpr()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Left: left, Op: op, Right: right}, nil
	}

	return left, nil
}

// parseAddExpr parses addition and subtraction expressions.
func (p *Parser) parseAddExpr() (Expression, error) {
	left, err := p.parseMulExpr()
	if err != nil {
		return nil, err
	}

	for p.curTokenIs(TOKEN_PLUS) || p.curTokenIs(TOKEN_MINUS) {
		op := p.cur.Type
		p.nextToken()
		right, err := p.parseMulExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left, nil
}

// parseMulExpr parses multiplication, division and modulo expressions.
func (p *Parser) parseMulExpr() (Expression, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}

	for p.curTokenIs(TOKEN_STAR) || p.curTokenIs(TOKEN_SLASH) || p.curTokenIs(TOKEN_PERCENT) {
		op := p.cur.Type
		p.nextToken()
		right, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}

	return left, nil
}

func (p *Parser) parseUnaryExpr() (Expression, error) {
	switch p.cur.Type {
	case TOKEN_MINUS:
		p.nextToken()
		expr, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: TOKEN_MINUS, Expr: expr}, nil
	case TOKEN_BANG:
		p.nextToken()
		expr, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: TOKEN_NOT, Expr: expr}, nil
	}
	return p.parsePowExpr()
}

func (p *Parser) parsePowExpr() (Expression, error) {
	left, err := p.parsePrimaryExpression()
	if err != nil {
		return nil, err
	}
	if p.curTokenIs(TOKEN_CARET) {
		p.nextToken()
		// right associative
		right, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Left: left, Op: TOKEN_CARET, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parsePrimaryExpression() (Expression, error) {
	switch p.cur.Type {
	case TOKEN_INT:
		lit := p.cur.Literal
		p.nextToken()
		if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return &LiteralExpr{Value: catalog.NewInteger(n), Raw: lit}, nil
		}
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil || math.IsInf(f, 0) {
			return nil, p.errorf("invalid number %q", lit)
		}
		return &LiteralExpr{Value: catalog.NewFloat(f), Raw: lit}, nil

	case TOKEN_FLOAT:
		lit := p.cur.Literal
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", lit)
		}
		p.nextToken()
		return &LiteralExpr{Value: catalog.NewFloat(f), Raw: lit}, nil

	case TOKEN_STRING:
		lit := p.cur.Literal
		p.nextToken()
		return &LiteralExpr{Value: catalog.NewString(lit), Raw: lit}, nil

	case TOKEN_TRUE, TOKEN_FALSE:
		lit := p.cur.Literal
		v := p.curTokenIs(TOKEN_TRUE)
		p.nextToken()
		return &LiteralExpr{Value: catalog.NewBool(v), Raw: lit}, nil

	case TOKEN_NULL:
		lit := p.cur.Literal
		p.nextToken()
		return &LiteralExpr{Value: catalog.Null(), Raw: lit}, nil

	case TOKEN_STAR:
		p.nextToken()
		return &StarExpr{}, nil

	case TOKEN_LPAREN:
		p.nextToken() // consume '('
		if p.curTokenIs(TOKEN_SELECT) {
			return nil, p.errorf("subqueries are only supported in FROM")
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TOKEN_RPAREN); err != nil {
			return nil, err
		}
		return expr, nil

	case TOKEN_IDENT:
		if p.peekTokenIs(TOKEN_LPAREN) {
			return p.parseFunctionCall()
		}
		return p.parseColumnRef()

	case TOKEN_ILLEGAL:
		return nil, p.errorf("illegal token %q", p.cur.Literal)
	}

	return nil, p.unexpected()
}

// parseColumnRef reads a possibly qualified column name. A trailing ".*"
// yields a StarExpr.
func (p *Parser) parseColumnRef() (Expression, error) {
	parts := []string{p.cur.Literal}
	p.nextToken()
	for p.curTokenIs(TOKEN_DOT) {
		p.nextToken() // consume '.'
		switch p.cur.Type {
		case TOKEN_IDENT:
			parts = append(parts, p.cur.Literal)
			p.nextToken()
		case TOKEN_STAR:
			p.nextToken()
			return &StarExpr{Table: strings.Join(parts, ".")}, nil
		default:
			return nil, p.errorf("expected column name after '.', got %v (%q)", p.cur.Type, p.cur.Literal)
		}
	}
	return &ColumnRef{Name: strings.Join(parts, ".")}, nil
}

// parseFunctionCall parses name(args) [WITHIN RECORD].
func (p *Parser) parseFunctionCall() (Expression, error) {
	call := &FunctionCall{Name: p.cur.Literal}
	p.nextToken() // consume name
	p.nextToken() // consume '('

	switch {
	case p.curTokenIs(TOKEN_STAR) && p.peekTokenIs(TOKEN_RPAREN):
		call.Star = true
		p.nextToken()
	case !p.curTokenIs(TOKEN_RPAREN):
		args, err := p.parseExpressionList()
		if err != nil {
			return nil, err
		}
		call.Args = args
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}

	if p.curTokenIs(TOKEN_WITHIN) {
		p.nextToken()
		if err := p.expect(TOKEN_RECORD); err != nil {
			return nil, err
		}
		call.WithinRecord = true
	}
	return call, nil
}
