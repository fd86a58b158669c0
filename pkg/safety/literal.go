package safety

// Literalness tells whether a value is fully known at compile time.
type Literalness int

const (
	Dynamic Literalness = iota
	Literal
)

func (l Literalness) String() string {
	if l == Literal {
		return "literal"
	}
	return "dynamic"
}

// LiteralnessOf computes the literalness of n structurally. Constants are
// literal; a list or hash is literal when every item, key and value is; any
// other node is dynamic.
func LiteralnessOf(n Node) Literalness {
	if isLiteral(n, 0) {
		return Literal
	}
	return Dynamic
}

func isLiteral(n Node, depth int) bool {
	if depth > maxNesting {
		return false
	}
	switch v := n.(type) {
	case *NullNode, *BoolNode, *NumberNode, *StringNode:
		return true
	case *ListNode:
		for _, item := range v.Items {
			if !isLiteral(item, depth+1) {
				return false
			}
		}
		return true
	case *HashNode:
		for _, entry := range v.Entries {
			if !isLiteral(entry.Key, depth+1) || !isLiteral(entry.Value, depth+1) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
