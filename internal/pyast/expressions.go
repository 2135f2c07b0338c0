package pyast

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ovo-tools/ovocheck/internal/nodes"
)

func (c *converter) expr(n *sitter.Node) nodes.Expression {
	if n == nil {
		return &nodes.OtherExpr{Kind: "missing"}
	}
	p := pos(n)

	switch n.Type() {
	case "identifier":
		return &nodes.NameExpr{Position: p, Name: c.text(n)}
	case "true":
		return &nodes.NameExpr{Position: p, Name: "True"}
	case "false":
		return &nodes.NameExpr{Position: p, Name: "False"}
	case "none":
		return &nodes.NameExpr{Position: p, Name: "None"}
	case "attribute":
		return &nodes.MemberExpr{
			Position: p,
			Expr:     c.expr(n.ChildByFieldName("object")),
			Name:     c.text(n.ChildByFieldName("attribute")),
		}
	case "string":
		if value, ok := c.stringValue(n); ok {
			return &nodes.StrExpr{Position: p, Value: value}
		}
	case "concatenated_string":
		var b strings.Builder
		for _, part := range namedChildren(n) {
			value, ok := c.stringValue(part)
			if !ok {
				return c.other(n)
			}
			b.WriteString(value)
		}
		return &nodes.StrExpr{Position: p, Value: b.String()}
	case "integer":
		if v, ok := parseInt(c.text(n)); ok {
			return &nodes.IntExpr{Position: p, Value: v}
		}
	case "float":
		if v, ok := parseFloat(c.text(n)); ok {
			return &nodes.FloatExpr{Position: p, Value: v}
		}
	case "unary_operator":
		operand := c.expr(n.ChildByFieldName("argument"))
		if c.text(n.ChildByFieldName("operator")) == "-" {
			switch lit := operand.(type) {
			case *nodes.IntExpr:
				return &nodes.IntExpr{Position: p, Value: -lit.Value}
			case *nodes.FloatExpr:
				return &nodes.FloatExpr{Position: p, Value: -lit.Value}
			}
		}
	case "call":
		return c.call(n)
	case "dictionary":
		return c.dict(n)
	case "list":
		list := &nodes.ListExpr{Position: p}
		for _, item := range namedChildren(n) {
			list.Items = append(list.Items, c.expr(item))
		}
		return list
	case "tuple", "expression_list", "pattern_list":
		tuple := &nodes.TupleExpr{Position: p}
		for _, item := range namedChildren(n) {
			tuple.Items = append(tuple.Items, c.expr(item))
		}
		return tuple
	case "parenthesized_expression", "type":
		if inner := firstNamed(n); inner != nil {
			return c.expr(inner)
		}
	case "subscript":
		return c.subscript(n)
	case "generic_type":
		return c.genericType(n)
	case "member_type":
		// a.b inside an annotation
		children := namedChildren(n)
		if len(children) == 2 {
			return &nodes.MemberExpr{Position: p, Expr: c.expr(children[0]), Name: c.text(children[1])}
		}
	case "union_type":
		children := namedChildren(n)
		if len(children) == 2 {
			return &nodes.OpExpr{Position: p, Op: "|", Left: c.expr(children[0]), Right: c.expr(children[1])}
		}
	case "binary_operator":
		return &nodes.OpExpr{
			Position: p,
			Op:       c.text(n.ChildByFieldName("operator")),
			Left:     c.expr(n.ChildByFieldName("left")),
			Right:    c.expr(n.ChildByFieldName("right")),
		}
	}
	return c.other(n)
}

func (c *converter) other(n *sitter.Node) *nodes.OtherExpr {
	return &nodes.OtherExpr{Position: pos(n), Kind: n.Type(), Text: c.text(n)}
}

func (c *converter) call(n *sitter.Node) nodes.Expression {
	call := &nodes.CallExpr{
		Position: pos(n),
		Callee:   c.expr(n.ChildByFieldName("function")),
	}
	args := n.ChildByFieldName("arguments")
	if args == nil {
		return call
	}
	if args.Type() == "generator_expression" {
		call.Args = append(call.Args, c.other(args))
		call.ArgKinds = append(call.ArgKinds, nodes.ArgPos)
		call.ArgNames = append(call.ArgNames, "")
		return call
	}

	for _, arg := range namedChildren(args) {
		var (
			value nodes.Expression
			kind  = nodes.ArgPos
			name  string
		)
		switch arg.Type() {
		case "keyword_argument":
			kind = nodes.ArgNamed
			name = c.text(arg.ChildByFieldName("name"))
			value = c.expr(arg.ChildByFieldName("value"))
		case "list_splat":
			kind = nodes.ArgStar
			value = c.expr(firstNamed(arg))
		case "dictionary_splat":
			kind = nodes.ArgStar2
			value = c.expr(firstNamed(arg))
		default:
			value = c.expr(arg)
		}
		call.Args = append(call.Args, value)
		call.ArgKinds = append(call.ArgKinds, kind)
		call.ArgNames = append(call.ArgNames, name)
	}
	return call
}

func (c *converter) dict(n *sitter.Node) *nodes.DictExpr {
	dict := &nodes.DictExpr{Position: pos(n)}
	for _, item := range namedChildren(n) {
		switch item.Type() {
		case "pair":
			dict.Items = append(dict.Items, nodes.DictItem{
				Key:   c.expr(item.ChildByFieldName("key")),
				Value: c.expr(item.ChildByFieldName("value")),
			})
		case "dictionary_splat":
			dict.Items = append(dict.Items, nodes.DictItem{Value: c.expr(firstNamed(item))})
		}
	}
	return dict
}

// subscript folds X[a, b] into an index tuple.
func (c *converter) subscript(n *sitter.Node) *nodes.IndexExpr {
	idx := &nodes.IndexExpr{
		Position: pos(n),
		Base:     c.expr(n.ChildByFieldName("value")),
	}
	subs := childrenByField(n, "subscript")
	switch len(subs) {
	case 0:
		idx.Index = &nodes.TupleExpr{Position: pos(n)}
	case 1:
		idx.Index = c.expr(subs[0])
	default:
		tuple := &nodes.TupleExpr{Position: pos(subs[0])}
		for _, s := range subs {
			tuple.Items = append(tuple.Items, c.expr(s))
		}
		idx.Index = tuple
	}
	return idx
}

// genericType converts the annotation form List[int]. The grammar parses
// it as an identifier followed by a type_parameter rather than a subscript.
func (c *converter) genericType(n *sitter.Node) nodes.Expression {
	children := namedChildren(n)
	if len(children) != 2 || children[1].Type() != "type_parameter" {
		return c.other(n)
	}
	idx := &nodes.IndexExpr{Position: pos(n), Base: c.expr(children[0])}
	params := namedChildren(children[1])
	switch len(params) {
	case 0:
		idx.Index = &nodes.TupleExpr{Position: pos(children[1])}
	case 1:
		idx.Index = c.expr(params[0])
	default:
		tuple := &nodes.TupleExpr{Position: pos(params[0])}
		for _, param := range params {
			tuple.Items = append(tuple.Items, c.expr(param))
		}
		idx.Index = tuple
	}
	return idx
}

// stringValue decodes a plain string literal. Formatted strings are not
// literals and report false.
func (c *converter) stringValue(n *sitter.Node) (string, bool) {
	if n.Type() != "string" {
		return "", false
	}
	for _, child := range namedChildren(n) {
		if child.Type() == "interpolation" {
			return "", false
		}
	}
	return decodeString(c.text(n))
}

func decodeString(lit string) (string, bool) {
	quote := strings.IndexAny(lit, `'"`)
	if quote < 0 {
		return "", false
	}
	prefix := strings.ToLower(lit[:quote])
	if strings.ContainsAny(prefix, "fb") {
		return "", false
	}
	body := lit[quote:]

	var delim string
	switch {
	case strings.HasPrefix(body, `"""`), strings.HasPrefix(body, `'''`):
		delim = body[:3]
	default:
		delim = body[:1]
	}
	if len(body) < 2*len(delim) || !strings.HasSuffix(body, delim) {
		return "", false
	}
	inner := body[len(delim) : len(body)-len(delim)]
	if strings.Contains(prefix, "r") {
		return inner, true
	}
	return unescape(inner), true
}

var escapes = map[byte]string{
	'n': "\n", 't': "\t", 'r': "\r", '0': "\x00",
	'\\': `\`, '\'': "'", '"': `"`, '\n': "",
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			if repl, ok := escapes[s[i+1]]; ok {
				b.WriteString(repl)
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func parseInt(text string) (int64, bool) {
	lower := strings.ToLower(text)
	if strings.HasSuffix(lower, "j") {
		return 0, false
	}
	v, err := strconv.ParseInt(lower, 0, 64)
	if err != nil {
		// Values past int64 are still ints.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, true
		}
		return 0, false
	}
	return v, true
}

func parseFloat(text string) (float64, bool) {
	lower := strings.ToLower(text)
	if strings.HasSuffix(lower, "j") {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(lower, "_", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
