package sgf

import (
	"fmt"
	"strings"

	kerrors "github.com/dmmcquay/sgfrender/internal/errors"
)

// Property is one identifier with its decoded values.
type Property struct {
	Ident  string
	Values []string
	Pos    int // byte offset of the identifier
}

// Node is a single ";" node of the record.
type Node struct {
	Properties []Property
}

// Values returns the values of the first property named ident.
func (n *Node) Values(ident string) []string {
	for _, prop := range n.Properties {
		if prop.Ident == ident {
			return prop.Values
		}
	}
	return nil
}

// First returns the first value of the property named ident.
func (n *Node) First(ident string) (string, bool) {
	values := n.Values(ident)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// GameTree is the main line of the first game in a collection: the root
// sequence followed by the first child at every branch point.
type GameTree struct {
	Nodes []*Node
	// SkippedVariations counts sibling trees that were parsed and dropped.
	SkippedVariations int
}

// parser is a byte-index scanner over the raw record text.
type parser struct {
	content string
	index   int
}

func newParser(content string) *parser {
	return &parser{content: content}
}

func malformed(pos int, format string, args ...interface{}) error {
	return &kerrors.ParseError{
		Kind:     kerrors.Malformed,
		Position: pos,
		Msg:      fmt.Sprintf(format, args...),
	}
}

// parseCollection parses the first game tree of the collection. Anything
// after its closing parenthesis is ignored.
func (p *parser) parseCollection() (*GameTree, error) {
	if !p.skipTo('(') {
		return nil, malformed(p.index, "no game tree found")
	}

	tree := &GameTree{}
	if err := p.parseGameTree(tree, true); err != nil {
		return nil, err
	}
	return tree, nil
}

// parseGameTree consumes "(" Sequence GameTree* ")". Nodes are appended to
// tree only when mainLine is set; other subtrees are still fully scanned so
// brackets and escapes inside them cannot desynchronise the parser.
func (p *parser) parseGameTree(tree *GameTree, mainLine bool) error {
	start := p.index
	p.index++ // Skip '('

	sawNode := false
	childTaken := false

	for {
		p.skipWhitespace()
		if p.index >= len(p.content) {
			return malformed(start, "unterminated game tree")
		}

		switch c := p.content[p.index]; c {
		case ';':
			if childTaken {
				return malformed(p.index, "node after variation")
			}
			p.index++
			node, err := p.parseNode()
			if err != nil {
				return err
			}
			if mainLine {
				tree.Nodes = append(tree.Nodes, node)
			}
			sawNode = true

		case '(':
			if !sawNode {
				return malformed(p.index, "variation before first node")
			}
			follow := mainLine && !childTaken
			if mainLine && childTaken {
				tree.SkippedVariations++
			}
			if err := p.parseGameTree(tree, follow); err != nil {
				return err
			}
			childTaken = true

		case ')':
			if !sawNode {
				return malformed(start, "empty game tree")
			}
			p.index++
			return nil

		default:
			return malformed(p.index, "unexpected character %q", c)
		}
	}
}

// parseNode parses the properties of a node up to the next node or tree
// delimiter.
func (p *parser) parseNode() (*Node, error) {
	node := &Node{}
	for {
		p.skipWhitespace()
		if p.index >= len(p.content) {
			return node, nil
		}
		switch p.content[p.index] {
		case ';', '(', ')':
			return node, nil
		}

		prop, err := p.parseProperty()
		if err != nil {
			return nil, err
		}
		node.Properties = append(node.Properties, prop)
	}
}

// parseProperty parses an identifier and its bracketed values. Lowercase
// letters inside identifiers (FF[3] style) are dropped.
func (p *parser) parseProperty() (Property, error) {
	start := p.index
	var ident strings.Builder
	for p.index < len(p.content) && isLetter(p.content[p.index]) {
		if c := p.content[p.index]; c >= 'A' && c <= 'Z' {
			ident.WriteByte(c)
		}
		p.index++
	}

	if p.index == start {
		return Property{}, malformed(start, "expected property identifier, found %q", p.content[start])
	}
	if ident.Len() == 0 {
		return Property{}, malformed(start, "property identifier %q has no uppercase letters", p.content[start:p.index])
	}

	prop := Property{Ident: ident.String(), Pos: start}
	for {
		p.skipWhitespace()
		if p.index >= len(p.content) || p.content[p.index] != '[' {
			break
		}
		value, err := p.parseValue()
		if err != nil {
			return Property{}, err
		}
		prop.Values = append(prop.Values, value)
	}

	if len(prop.Values) == 0 {
		return Property{}, malformed(start, "property %s must have at least one value", prop.Ident)
	}
	return prop, nil
}

// parseValue decodes one bracketed value. Escaped characters are taken
// literally, an escaped line break is removed and any other line break is
// normalised to "\n".
func (p *parser) parseValue() (string, error) {
	open := p.index
	p.index++ // Skip '['

	var sb strings.Builder
	for p.index < len(p.content) {
		c := p.content[p.index]
		switch c {
		case ']':
			p.index++
			return sb.String(), nil

		case '\\':
			p.index++
			if p.index >= len(p.content) {
				return "", malformed(open, "unterminated property value")
			}
			next := p.content[p.index]
			if next == '\n' || next == '\r' {
				p.skipLineBreak()
				continue
			}
			sb.WriteByte(next)
			p.index++

		case '\n', '\r':
			p.skipLineBreak()
			sb.WriteByte('\n')

		default:
			sb.WriteByte(c)
			p.index++
		}
	}

	return "", malformed(open, "unterminated property value")
}

// skipLineBreak consumes one line break: "\n", "\r", "\r\n" or "\n\r".
func (p *parser) skipLineBreak() {
	first := p.content[p.index]
	p.index++
	if p.index < len(p.content) {
		next := p.content[p.index]
		if (next == '\n' || next == '\r') && next != first {
			p.index++
		}
	}
}

// skipWhitespace skips whitespace characters
func (p *parser) skipWhitespace() {
	for p.index < len(p.content) {
		switch p.content[p.index] {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			p.index++
		default:
			return
		}
	}
}

// skipTo skips to the specified character
func (p *parser) skipTo(ch byte) bool {
	for p.index < len(p.content) {
		if p.content[p.index] == ch {
			return true
		}
		p.index++
	}
	return false
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
