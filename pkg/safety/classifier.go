package safety

import (
	"sort"
	"strings"
)

// Verdict is the compile-time decision for a trusted call. The zero value is
// Unsafe.
type Verdict int

const (
	Unsafe Verdict = iota
	Safe
)

func (v Verdict) String() string {
	if v == Safe {
		return "safe"
	}
	return "unsafe"
}

const parametersArg = "parameters"

// Signature describes a trusted function: its parameter names in positional
// order. One of them must be "parameters".
type Signature struct {
	Name   string
	Params []string
}

// DefaultSignatures are the URL generator functions trusted out of the box.
func DefaultSignatures() []Signature {
	return []Signature{
		{Name: "path", Params: []string{"name", parametersArg, "options"}},
		{Name: "url", Params: []string{"name", parametersArg, "options"}},
	}
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTrustedFunction trusts name with the given parameter names. Later
// registrations replace earlier ones. Signatures without a "parameters"
// parameter are ignored.
func WithTrustedFunction(name string, params ...string) Option {
	return func(c *Classifier) {
		c.add(Signature{Name: name, Params: params})
	}
}

// WithoutDefaults drops the built-in path and url signatures.
func WithoutDefaults() Option {
	return func(c *Classifier) {
		c.trusted = make(map[string]Signature)
	}
}

// Classifier decides whether calls to trusted URL generators produce output
// that is safe without runtime escaping. A call is safe when its parameters
// argument is absent or a fully literal list or hash; anything ambiguous is
// unsafe. A Classifier is immutable after construction.
type Classifier struct {
	trusted map[string]Signature
}

// NewClassifier builds a classifier trusting path and url plus any extra
// functions supplied as options.
func NewClassifier(options ...Option) *Classifier {
	c := &Classifier{trusted: make(map[string]Signature)}
	for _, sig := range DefaultSignatures() {
		c.add(sig)
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

func (c *Classifier) add(sig Signature) {
	name := strings.TrimSpace(sig.Name)
	if name == "" || indexOf(sig.Params, parametersArg) < 0 {
		return
	}
	c.trusted[name] = Signature{Name: name, Params: append([]string(nil), sig.Params...)}
}

// Trusted returns the names of trusted functions.
func (c *Classifier) Trusted() []string {
	names := make([]string, 0, len(c.trusted))
	for name := range c.trusted {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Signature returns the signature of a trusted function.
func (c *Classifier) Signature(name string) (Signature, bool) {
	sig, ok := c.trusted[name]
	return sig, ok
}

// IsTrusted reports whether call targets a trusted function by bare name.
func (c *Classifier) IsTrusted(call *CallNode) bool {
	if c == nil || call == nil {
		return false
	}
	_, ok := c.trusted[call.FuncName()]
	return ok
}

// Classify returns the verdict for call. It never fails: calls that are not
// trusted or whose arguments are ambiguous are Unsafe.
func (c *Classifier) Classify(call *CallNode) Verdict {
	if !c.IsTrusted(call) {
		return Unsafe
	}
	bound, ok := c.Bind(call)
	if !ok {
		return Unsafe
	}
	params, present := bound[parametersArg]
	if !present {
		return Safe
	}
	switch params.(type) {
	case *ListNode, *HashNode:
		if LiteralnessOf(params) == Literal {
			return Safe
		}
	}
	return Unsafe
}

// Bind maps the arguments of a trusted call onto parameter names. ok is
// false when the binding is ambiguous: an unknown or repeated name, a
// positional argument after a named one, too many positional arguments, or a
// parameter given both positionally and by name.
func (c *Classifier) Bind(call *CallNode) (map[string]Node, bool) {
	if !c.IsTrusted(call) {
		return nil, false
	}
	sig := c.trusted[call.FuncName()]
	bound := make(map[string]Node, len(call.Args))
	seenNamed := false
	for i, arg := range call.Args {
		if arg.Value == nil {
			return nil, false
		}
		if arg.Name == "" {
			if seenNamed || i >= len(sig.Params) {
				return nil, false
			}
			bound[sig.Params[i]] = arg.Value
			continue
		}
		seenNamed = true
		if indexOf(sig.Params, arg.Name) < 0 {
			return nil, false
		}
		if _, dup := bound[arg.Name]; dup {
			return nil, false
		}
		bound[arg.Name] = arg.Value
	}
	return bound, true
}

// CallSite is a trusted call found in an expression.
type CallSite struct {
	Call    *CallNode
	Verdict Verdict
}

// Inspect walks n and classifies every trusted call in it, outermost first.
func (c *Classifier) Inspect(n Node) []CallSite {
	var sites []CallSite
	Walk(n, func(node Node) bool {
		if call, ok := node.(*CallNode); ok && c.IsTrusted(call) {
			sites = append(sites, CallSite{Call: call, Verdict: c.Classify(call)})
		}
		return true
	})
	return sites
}

// ClassifyExpr parses src and classifies it when it is a single trusted call.
// Anything else, including unparsable input, is Unsafe.
func (c *Classifier) ClassifyExpr(src string) Verdict {
	node, err := ParseExpr(src)
	if err != nil {
		return Unsafe
	}
	call, ok := node.(*CallNode)
	if !ok {
		return Unsafe
	}
	return c.Classify(call)
}

func indexOf(list []string, want string) int {
	for i, item := range list {
		if item == want {
			return i
		}
	}
	return -1
}
