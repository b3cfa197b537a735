package graphs

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPrecision = 5

	newickPunctuation = "()[]':;,"
)

var ErrNewickSyntax = errors.New("newick syntax error")

type EncodeOptions struct {
	Precision int // digits after the decimal point for branch lengths
}

// Newick string of the tree using the default branch length precision
func (t *Tree) Newick() string {
	return Encode(t, EncodeOptions{Precision: DefaultPrecision})
}

// Encodes tree as a ';' terminated newick string. Internal nodes print their
// support (two decimals) or, lacking one, their name. Non-root nodes with a
// branch length get a ':' suffix.
func Encode(t *Tree, opts EncodeOptions) string {
	if t.Root == NoNode {
		return ";"
	}
	type frame struct {
		node int
		next int // next child to visit
	}
	var sb strings.Builder
	suffix := func(n int) {
		if n != t.Root && t.Nodes[n].HasLength() {
			sb.WriteByte(':')
			sb.WriteString(strconv.FormatFloat(t.Nodes[n].Length, 'f', opts.Precision, 64))
		}
	}
	stack := []frame{{node: t.Root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		node := &t.Nodes[top.node]
		if node.Tip() {
			sb.WriteString(quoteLabel(node.Name))
			suffix(top.node)
			stack = stack[:len(stack)-1]
			continue
		}
		if top.next == 0 {
			sb.WriteByte('(')
		}
		if top.next < len(node.Children) {
			if top.next > 0 {
				sb.WriteByte(',')
			}
			child := node.Children[top.next]
			top.next++
			stack = append(stack, frame{node: child})
			continue
		}
		sb.WriteByte(')')
		if node.HasSupport() {
			sb.WriteString(strconv.FormatFloat(node.Support, 'f', 2, 64))
		} else if node.Name != "" {
			sb.WriteString(quoteLabel(node.Name))
		}
		suffix(top.node)
		stack = stack[:len(stack)-1]
	}
	sb.WriteByte(';')
	return sb.String()
}

func quoteLabel(label string) string {
	if !strings.ContainsAny(label, newickPunctuation+" \t\r\n") {
		return label
	}
	return "'" + strings.ReplaceAll(label, "'", "''") + "'"
}

// Parses exactly one newick tree. Whitespace may follow the ';' but nothing
// else.
func Decode(text string) (*Tree, error) {
	p := &parser{s: text}
	t, err := p.parseTree()
	if err != nil {
		return nil, err
	}
	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if p.pos < len(p.s) {
		return nil, p.errorf("unexpected text after ';'")
	}
	return t, nil
}

// Parses a series of concatenated newick trees (e.g., one per line)
func DecodeAll(text string) ([]*Tree, error) {
	p := &parser{s: text}
	trees := make([]*Tree, 0)
	for {
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.pos >= len(p.s) {
			break
		}
		t, err := p.parseTree()
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", len(trees)+1, err)
		}
		trees = append(trees, t)
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("%w, no trees found", ErrNewickSyntax)
	}
	return trees, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at position %d: %s", ErrNewickSyntax, p.pos, fmt.Sprintf(format, args...))
}

// skips whitespace and [bracketed] comments
func (p *parser) skipSpace() error {
	for p.pos < len(p.s) {
		switch c := p.s[p.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '[':
			end := strings.IndexByte(p.s[p.pos:], ']')
			if end < 0 {
				return p.errorf("unterminated comment")
			}
			p.pos += end + 1
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) parseTree() (*Tree, error) {
	t := NewTree()
	stack := make([]int, 0)
	expectNode := true // at start, or after '(' or ','
	attach := func(n int) error {
		if len(stack) > 0 {
			t.AddChild(stack[len(stack)-1], n, NoLength)
		} else if t.Root == NoNode {
			t.Root = n
		} else {
			return p.errorf("more than one root node")
		}
		return nil
	}
	for {
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.pos >= len(p.s) {
			if len(stack) > 0 {
				return nil, p.errorf("unbalanced parentheses, %d left open", len(stack))
			}
			return nil, p.errorf("missing ';' terminator")
		}
		switch c := p.s[p.pos]; c {
		case '(':
			if !expectNode {
				return nil, p.errorf("unexpected '('")
			}
			n := t.NewNode("")
			if err := attach(n); err != nil {
				return nil, err
			}
			stack = append(stack, n)
			p.pos++
		case ',':
			if len(stack) == 0 {
				return nil, p.errorf("',' outside of parentheses")
			}
			if expectNode {
				return nil, p.errorf("missing leaf label")
			}
			p.pos++
			expectNode = true
		case ')':
			if len(stack) == 0 {
				return nil, p.errorf("unbalanced parentheses, unmatched ')'")
			}
			if expectNode {
				return nil, p.errorf("missing leaf label")
			}
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			p.pos++
			expectNode = false
			label, err := p.parseLabel()
			if err != nil {
				return nil, err
			}
			if support, err := strconv.ParseFloat(label, 64); err == nil && support >= 0 {
				t.Nodes[n].Support = support
			} else {
				t.Nodes[n].Name = label
			}
			if err := p.parseLength(t, n); err != nil {
				return nil, err
			}
		case ';':
			if len(stack) > 0 {
				return nil, p.errorf("unbalanced parentheses, %d left open", len(stack))
			}
			if t.Root == NoNode {
				return nil, p.errorf("empty tree")
			}
			p.pos++
			return t, nil
		case ':':
			return nil, p.errorf("branch length without a node")
		default:
			if !expectNode {
				return nil, p.errorf("unexpected label")
			}
			label, err := p.parseLabel()
			if err != nil {
				return nil, err
			}
			if label == "" {
				return nil, p.errorf("unexpected character %q", c)
			}
			n := t.NewNode(label)
			if err := attach(n); err != nil {
				return nil, err
			}
			if err := p.parseLength(t, n); err != nil {
				return nil, err
			}
			expectNode = false
		}
	}
}

// reads a (possibly quoted, possibly empty) label
func (p *parser) parseLabel() (string, error) {
	if err := p.skipSpace(); err != nil {
		return "", err
	}
	if p.pos < len(p.s) && p.s[p.pos] == '\'' {
		var sb strings.Builder
		for p.pos++; p.pos < len(p.s); p.pos++ {
			if p.s[p.pos] != '\'' {
				sb.WriteByte(p.s[p.pos])
				continue
			}
			if p.pos+1 < len(p.s) && p.s[p.pos+1] == '\'' {
				sb.WriteByte('\'')
				p.pos++
				continue
			}
			p.pos++
			return sb.String(), nil
		}
		return "", p.errorf("unterminated quoted label")
	}
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune(newickPunctuation+" \t\r\n", rune(p.s[p.pos])) {
		p.pos++
	}
	return p.s[start:p.pos], nil
}

// reads an optional ":length" and stores it on node n
func (p *parser) parseLength(t *Tree, n int) error {
	if err := p.skipSpace(); err != nil {
		return err
	}
	if p.pos >= len(p.s) || p.s[p.pos] != ':' {
		return nil
	}
	p.pos++
	if err := p.skipSpace(); err != nil {
		return err
	}
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune(newickPunctuation+" \t\r\n", rune(p.s[p.pos])) {
		p.pos++
	}
	token := p.s[start:p.pos]
	length, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(length) || math.IsInf(length, 0) {
		return p.errorf("invalid branch length %q", token)
	}
	if length < 0 {
		return p.errorf("negative branch length %q", token)
	}
	t.Nodes[n].Length = length
	return nil
}
