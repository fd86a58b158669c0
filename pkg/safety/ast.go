// Package safety parses template print expressions and decides, at compile
// time, whether calls to trusted URL generators can be emitted without
// runtime escaping.
//
// The package only produces verdicts; it does not depend on the runtime
// escaping machinery.
package safety

import (
	"strconv"
	"strings"
)

// Node is an expression node.
type Node interface {
	String() string // String returns a source representation of the node.
	Position() Pos
}

// ParentNode is a Node with sub-expressions.
type ParentNode interface {
	Node
	Children() []Node
}

// Pos is a byte offset into the parsed expression.
type Pos int

// Position returns p. Nodes embed Pos to satisfy Node.
func (p Pos) Position() Pos {
	return p
}

// NullNode is the null (or none) literal.
type NullNode struct {
	Pos
}

func (n *NullNode) String() string { return "null" }

// BoolNode is a boolean literal.
type BoolNode struct {
	Pos
	True bool
}

func (n *BoolNode) String() string { return strconv.FormatBool(n.True) }

// NumberNode is a numeric literal kept in its source form.
type NumberNode struct {
	Pos
	Text string
}

func (n *NumberNode) String() string { return n.Text }

// StringNode is a string literal with escapes resolved.
type StringNode struct {
	Pos
	Value string
}

func (n *StringNode) String() string { return Quote(n.Value) }

// InterpolatedNode is a double-quoted string containing #{...} expressions.
// Parts alternate between StringNode pieces and expressions.
type InterpolatedNode struct {
	Pos
	Parts []Node
}

func (n *InterpolatedNode) String() string {
	var b strings.Builder
	b.WriteByte('"')
	for _, part := range n.Parts {
		if s, ok := part.(*StringNode); ok {
			b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`, "#", `\#`).Replace(s.Value))
			continue
		}
		b.WriteString("#{" + part.String() + "}")
	}
	b.WriteByte('"')
	return b.String()
}

func (n *InterpolatedNode) Children() []Node { return n.Parts }

// NameNode is a variable or function name.
type NameNode struct {
	Pos
	Name string
}

func (n *NameNode) String() string { return n.Name }

// AttrNode is target.name.
type AttrNode struct {
	Pos
	Target Node
	Name   string
}

func (n *AttrNode) String() string   { return n.Target.String() + "." + n.Name }
func (n *AttrNode) Children() []Node { return []Node{n.Target} }

// IndexNode is target[index].
type IndexNode struct {
	Pos
	Target Node
	Index  Node
}

func (n *IndexNode) String() string   { return n.Target.String() + "[" + n.Index.String() + "]" }
func (n *IndexNode) Children() []Node { return []Node{n.Target, n.Index} }

// Arg is a call or filter argument. Name is empty for positional arguments.
type Arg struct {
	Name  string
	Value Node
}

func (a Arg) String() string {
	if a.Name == "" {
		return a.Value.String()
	}
	return a.Name + " = " + a.Value.String()
}

// CallNode is fn(args...). Args keep their source order.
type CallNode struct {
	Pos
	Func Node
	Args []Arg
}

// FuncName returns the called name when Func is a bare name.
func (n *CallNode) FuncName() string {
	if name, ok := n.Func.(*NameNode); ok {
		return name.Name
	}
	return ""
}

func (n *CallNode) String() string {
	return n.Func.String() + "(" + joinArgs(n.Args) + ")"
}

func (n *CallNode) Children() []Node {
	out := []Node{n.Func}
	for _, arg := range n.Args {
		out = append(out, arg.Value)
	}
	return out
}

// FilterNode is target|name(args...).
type FilterNode struct {
	Pos
	Target Node
	Name   string
	Args   []Arg
}

func (n *FilterNode) String() string {
	if len(n.Args) == 0 {
		return n.Target.String() + "|" + n.Name
	}
	return n.Target.String() + "|" + n.Name + "(" + joinArgs(n.Args) + ")"
}

func (n *FilterNode) Children() []Node {
	out := []Node{n.Target}
	for _, arg := range n.Args {
		out = append(out, arg.Value)
	}
	return out
}

// TestNode is target is [not] name(args...).
type TestNode struct {
	Pos
	Target  Node
	Name    string
	Negated bool
	Args    []Arg
}

func (n *TestNode) String() string {
	op := " is "
	if n.Negated {
		op = " is not "
	}
	s := n.Target.String() + op + n.Name
	if len(n.Args) > 0 {
		s += "(" + joinArgs(n.Args) + ")"
	}
	return s
}

func (n *TestNode) Children() []Node {
	out := []Node{n.Target}
	for _, arg := range n.Args {
		out = append(out, arg.Value)
	}
	return out
}

// ListNode is a [a, b] literal.
type ListNode struct {
	Pos
	Items []Node
}

func (n *ListNode) String() string {
	parts := make([]string, len(n.Items))
	for i, item := range n.Items {
		parts[i] = item.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (n *ListNode) Children() []Node { return n.Items }

// HashEntry is one key/value pair of a hash literal. Bare-word keys are
// StringNodes; Computed marks a parenthesised key expression.
type HashEntry struct {
	Key      Node
	Value    Node
	Computed bool
}

// HashNode is a {k: v} literal. Entries keep their source order.
type HashNode struct {
	Pos
	Entries []HashEntry
}

func (n *HashNode) String() string {
	parts := make([]string, len(n.Entries))
	for i, entry := range n.Entries {
		key := entry.Key.String()
		if entry.Computed {
			key = "(" + key + ")"
		}
		parts[i] = key + ": " + entry.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (n *HashNode) Children() []Node {
	out := make([]Node, 0, 2*len(n.Entries))
	for _, entry := range n.Entries {
		out = append(out, entry.Key, entry.Value)
	}
	return out
}

// UnaryNode is op operand for not, - and +.
type UnaryNode struct {
	Pos
	Op      string
	Operand Node
}

func (n *UnaryNode) String() string {
	if n.Op == "not" {
		return "not " + n.Operand.String()
	}
	return n.Op + n.Operand.String()
}

func (n *UnaryNode) Children() []Node { return []Node{n.Operand} }

// BinaryNode is left op right.
type BinaryNode struct {
	Pos
	Op    string
	Left  Node
	Right Node
}

func (n *BinaryNode) String() string {
	return "(" + n.Left.String() + " " + n.Op + " " + n.Right.String() + ")"
}

func (n *BinaryNode) Children() []Node { return []Node{n.Left, n.Right} }

// ConditionalNode is cond ? then : else. Then is nil for the "cond ?: else"
// short form.
type ConditionalNode struct {
	Pos
	Cond Node
	Then Node
	Else Node
}

func (n *ConditionalNode) String() string {
	if n.Then == nil {
		return "(" + n.Cond.String() + " ?: " + n.Else.String() + ")"
	}
	return "(" + n.Cond.String() + " ? " + n.Then.String() + " : " + n.Else.String() + ")"
}

func (n *ConditionalNode) Children() []Node {
	if n.Then == nil {
		return []Node{n.Cond, n.Else}
	}
	return []Node{n.Cond, n.Then, n.Else}
}

// Quote renders s as a single-quoted literal.
func Quote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

func joinArgs(args []Arg) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, ", ")
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of the current node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if parent, ok := n.(ParentNode); ok {
		for _, child := range parent.Children() {
			Walk(child, fn)
		}
	}
}
