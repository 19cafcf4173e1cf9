package query

import (
	"fmt"
	"strings"
)

// mNode is the M-language AST produced by mParser. It is intentionally
// small: the compiler only needs to recognize literals, lists, records,
// dotted-identifier function calls, and lambda bodies (captured as raw
// source text and handed to the internal/expr compiler, since the
// spec's minimal M subset and the row-formula language share the same
// [Col]/_ referencing scheme).
type mNode struct {
	kind string // number,string,bool,null,ident,colref,list,call,lambda
	num  float64
	str  string
	list []mNode
	// record fields, in source order
	fieldNames []string
	fieldVals  []mNode
	// call
	funcName string
	args     []mNode
	// lambda
	lambdaSrc string
}

// mBinding is one `Name = Expression` line of a let block.
type mBinding struct {
	Name  string
	Value mNode
}

// mProgram is a parsed M script: its bindings in source order and the
// final `in <name>` reference.
type mProgram struct {
	Bindings []mBinding
	Result   string
}

type mParser struct {
	lex *mLexer
	tok mToken
}

func newMParser(src string) (*mParser, error) {
	p := &mParser{lex: newMLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *mParser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

// ParseMScript parses a minimal M script of the form:
//
//	let
//	    Source = Range.FromValues({...}),
//	    Step1 = Table.SelectColumns(Source, {"A","B"}),
//	    ...
//	in
//	    Step1
func ParseMScript(src string) (*mProgram, error) {
	p, err := newMParser(src)
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("let"); err != nil {
		return nil, err
	}
	var bindings []mBinding
	for !p.isKeyword("in") {
		if p.tok.kind != mTokIdent {
			return nil, fmt.Errorf("m: expected step name, got %q", p.tok.text)
		}
		name := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, mBinding{Name: name, Value: val})
		if p.tok.kind == mTokSymbol && p.tok.text == "," {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.advance(); err != nil { // consume "in"
		return nil, err
	}
	if p.tok.kind != mTokIdent {
		return nil, fmt.Errorf("m: expected result step name")
	}
	result := p.tok.text
	return &mProgram{Bindings: bindings, Result: result}, nil
}

func (p *mParser) isKeyword(word string) bool {
	return p.tok.kind == mTokIdent && p.tok.text == word
}

func (p *mParser) expectKeyword(word string) error {
	if !p.isKeyword(word) {
		return fmt.Errorf("m: expected keyword %q, got %q", word, p.tok.text)
	}
	return p.advance()
}

func (p *mParser) expectSymbol(sym string) error {
	if p.tok.kind != mTokSymbol || p.tok.text != sym {
		return fmt.Errorf("m: expected %q, got %q", sym, p.tok.text)
	}
	return p.advance()
}

// parseValue parses one M expression: a literal, a [Column] reference,
// list, each lambda, dotted-identifier function call, or a bare
// identifier (reference to an earlier step or a zero-arg constant).
// Record literals are not parsed.
func (p *mParser) parseValue() (mNode, error) {
	switch p.tok.kind {
	case mTokNumber:
		v := p.tok.num
		if err := p.advance(); err != nil {
			return mNode{}, err
		}
		return mNode{kind: "number", num: v}, nil
	case mTokString:
		v := p.tok.text
		if err := p.advance(); err != nil {
			return mNode{}, err
		}
		return mNode{kind: "string", str: v}, nil
	case mTokColRef:
		v := p.tok.text
		if err := p.advance(); err != nil {
			return mNode{}, err
		}
		return mNode{kind: "colref", str: v}, nil
	case mTokSymbol:
		switch p.tok.text {
		case "{":
			return p.parseList()
		case "(":
			if err := p.advance(); err != nil {
				return mNode{}, err
			}
			inner, err := p.parseValue()
			if err != nil {
				return mNode{}, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return mNode{}, err
			}
			return inner, nil
		}
	case mTokIdent:
		switch p.tok.text {
		case "true":
			if err := p.advance(); err != nil {
				return mNode{}, err
			}
			return mNode{kind: "bool", num: 1}, nil
		case "false":
			if err := p.advance(); err != nil {
				return mNode{}, err
			}
			return mNode{kind: "bool", num: 0}, nil
		case "null":
			if err := p.advance(); err != nil {
				return mNode{}, err
			}
			return mNode{kind: "null"}, nil
		case "each":
			return p.parseEachLambda()
		}
		// There is no record-literal case: a bracketed name was already
		// lexed as a colref above. Everything else here is the general
		// identifier/call case.
		name := p.tok.text
		if err := p.advance(); err != nil {
			return mNode{}, err
		}
		if p.tok.kind == mTokSymbol && p.tok.text == "(" {
			return p.parseCall(name)
		}
		return mNode{kind: "ident", str: name}, nil
	}
	return mNode{}, fmt.Errorf("m: unexpected token %q", p.tok.text)
}

func (p *mParser) parseCall(name string) (mNode, error) {
	if err := p.advance(); err != nil { // consume "("
		return mNode{}, err
	}
	var args []mNode
	for !(p.tok.kind == mTokSymbol && p.tok.text == ")") {
		a, err := p.parseValue()
		if err != nil {
			return mNode{}, err
		}
		args = append(args, a)
		if p.tok.kind == mTokSymbol && p.tok.text == "," {
			if err := p.advance(); err != nil {
				return mNode{}, err
			}
		}
	}
	if err := p.advance(); err != nil { // consume ")"
		return mNode{}, err
	}
	return mNode{kind: "call", funcName: name, args: args}, nil
}

func (p *mParser) parseList() (mNode, error) {
	if err := p.advance(); err != nil { // consume "{"
		return mNode{}, err
	}
	var items []mNode
	for !(p.tok.kind == mTokSymbol && p.tok.text == "}") {
		v, err := p.parseValue()
		if err != nil {
			return mNode{}, err
		}
		items = append(items, v)
		if p.tok.kind == mTokSymbol && p.tok.text == "," {
			if err := p.advance(); err != nil {
				return mNode{}, err
			}
		}
	}
	if err := p.advance(); err != nil { // consume "}"
		return mNode{}, err
	}
	return mNode{kind: "list", list: items}, nil
}

// parseEachLambda captures the raw source text of an `each <body>`
// clause and hands it to internal/expr unmodified: M's `each` binds the
// current item as `_` and accessing `[Col]` reads from it, which is
// exactly the row-formula grammar internal/expr already implements.
func (p *mParser) parseEachLambda() (mNode, error) {
	start := p.tok.pos + len("each")
	depth := 0
	if err := p.advance(); err != nil { // consume "each"
		return mNode{}, err
	}
	for {
		if p.tok.kind == mTokEOF {
			break
		}
		if p.tok.kind == mTokSymbol {
			switch p.tok.text {
			case "(", "{":
				depth++
			case ")", "}":
				if depth == 0 {
					goto done
				}
				depth--
			case ",":
				if depth == 0 {
					goto done
				}
			}
		}
		end := p.tok.pos
		if err := p.advance(); err != nil {
			return mNode{}, err
		}
		_ = end
	}
done:
	end := p.tok.pos
	raw := string(p.lex.src[start:end])
	return mNode{kind: "lambda", lambdaSrc: strings.TrimSpace(raw)}, nil
}

// stringListValues extracts a flat []string from a parsed list node of
// string literals, the shape Table.SelectColumns/RemoveColumns/etc take
// for their column-name argument.
func stringListValues(n mNode) ([]string, error) {
	if n.kind != "list" {
		return nil, fmt.Errorf("m: expected a list literal")
	}
	out := make([]string, len(n.list))
	for i, it := range n.list {
		if it.kind != "string" {
			return nil, fmt.Errorf("m: expected string literal in list")
		}
		out[i] = it.str
	}
	return out, nil
}
