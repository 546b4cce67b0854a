package rfmt

import (
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// maxBuildDepth bounds the nesting of the parser document. It is far beyond
// anything a real source file produces.
const maxBuildDepth = 10000

var binaryOperators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "**": true,
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"<=>": true, "===": true, "=~": true, "!~": true,
	"<<": true, ">>": true, "&": true, "|": true, "^": true,
}

var unaryOperators = map[string]string{
	"!":  "!",
	"-@": "-",
	"+@": "+",
	"~":  "~",
}

var keywordLiterals = map[string]string{
	"nil_node":             "nil",
	"true_node":            "true",
	"false_node":           "false",
	"self_node":            "self",
	"source_file_node":     "__FILE__",
	"source_line_node":     "__LINE__",
	"source_encoding_node": "__ENCODING__",
}

// Build translates the parser document into the tree model. Comments and
// blank lines are attached to the nodes they belong to.
func Build(doc *Document) (*Node, error) {
	if doc == nil || doc.AST == nil {
		return nil, &StructuralError{Reason: "document has no syntax tree"}
	}
	if len(doc.Errors) > 0 {
		perr := doc.Errors[0]
		err := &StructuralError{Reason: "parse error: " + perr.Message}
		if perr.Location != nil {
			err.Location = sourceLocation(perr.Location.toLocation())
		}
		return nil, err
	}

	b := &builder{
		source:   doc.Source,
		visiting: map[*ExternalNode]bool{},
	}
	root, err := b.node(doc.AST)
	if err != nil {
		return nil, err
	}
	if root == nil || root.Kind != KindProgram {
		return nil, structuralErrorf(doc.AST, "root node must be a program, got %s", doc.AST.NodeType)
	}

	comments, err := b.comments(doc.Comments)
	if err != nil {
		return nil, err
	}
	attachComments(root, doc.Source, comments)

	if doc.Data != nil {
		root.Flags |= FlagDataSection
		root.Body = strings.TrimRight(*doc.Data, "\n")
	}
	return root, nil
}

type builder struct {
	source   string
	depth    int
	visiting map[*ExternalNode]bool
}

// normalizeType accepts both `class_node` and `ClassNode`.
func normalizeType(typ string) string {
	if strings.ContainsRune(typ, '_') || strings.ToLower(typ) == typ {
		return typ
	}
	return strcase.ToSnake(typ)
}

func (loc *ExternalLocation) toLocation() Location {
	if loc == nil {
		return Location{}
	}
	return Location{
		StartLine:   loc.StartLine,
		StartColumn: loc.StartColumn,
		EndLine:     loc.EndLine,
		EndColumn:   loc.EndColumn,
		StartOffset: loc.StartOffset,
		EndOffset:   loc.EndOffset,
	}
}

func (b *builder) checkLocation(ext *ExternalNode) (Location, error) {
	if ext.Location == nil {
		return Location{}, nil
	}
	loc := ext.Location.toLocation()
	if loc.StartOffset < 0 || loc.EndOffset < loc.StartOffset || loc.EndOffset > len(b.source) {
		return loc, structuralErrorf(ext, "location span [%d, %d) outside source bounds (%d bytes)",
			loc.StartOffset, loc.EndOffset, len(b.source))
	}
	return loc, nil
}

// text recovers the verbatim source text of a node.
func (b *builder) text(ext *ExternalNode) (string, bool) {
	if s, ok := ext.Metadata.Get("slice"); ok {
		return s, true
	}
	if ext.Location != nil && ext.Location.EndOffset > ext.Location.StartOffset {
		return b.source[ext.Location.StartOffset:ext.Location.EndOffset], true
	}
	return "", false
}

// fields groups a node's children by the parent field they fill. Children
// sent without a field name are grouped under "".
type fields map[string][]*ExternalNode

func groupFields(ext *ExternalNode) fields {
	f := fields{}
	for _, c := range ext.Children {
		if c == nil {
			continue
		}
		f[c.Field] = append(f[c.Field], c)
	}
	return f
}

func (f fields) one(names ...string) *ExternalNode {
	for _, name := range names {
		if cs := f[name]; len(cs) > 0 {
			return cs[0]
		}
	}
	return nil
}

// list returns the children of a list field, also accepting unnamed ones.
func (f fields) list(name string) []*ExternalNode {
	if name == "" {
		return f[""]
	}
	return append(append([]*ExternalNode{}, f[name]...), f[""]...)
}

func (b *builder) opt(f fields, names ...string) (*Node, error) {
	ext := f.one(names...)
	if ext == nil {
		return nil, nil
	}
	return b.node(ext)
}

func (b *builder) req(parent *ExternalNode, f fields, name string) (*Node, error) {
	ext := f.one(name)
	if ext == nil {
		return nil, structuralErrorf(parent, "missing required child %q", name)
	}
	n, err := b.node(ext)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, structuralErrorf(ext, "child %q has no content", name)
	}
	return n, nil
}

func (b *builder) nodes(exts []*ExternalNode) ([]*Node, error) {
	out := make([]*Node, 0, len(exts))
	for _, ext := range exts {
		n, err := b.node(ext)
		if err != nil {
			return nil, err
		}
		if n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func reqMeta(ext *ExternalNode, key string) (string, error) {
	v, ok := ext.Metadata.Get(key)
	if !ok {
		return "", structuralErrorf(ext, "missing required field %q", key)
	}
	return v, nil
}

// firstMeta returns the first present value among keys, tolerating field
// renames across parser versions.
func firstMeta(ext *ExternalNode, keys ...string) string {
	for _, k := range keys {
		if v, ok := ext.Metadata.Get(k); ok {
			return v
		}
	}
	return ""
}

func markUnterminated(n *Node, ext *ExternalNode, key string) {
	if ext.Metadata.Missing(key) {
		n.Flags |= FlagUnterminated
	}
}

// node translates one external node. It may return nil for nodes that have
// no textual representation of their own (e.g. implicit block parameters).
func (b *builder) node(ext *ExternalNode) (*Node, error) {
	if b.visiting[ext] {
		return nil, structuralErrorf(ext, "cyclic reference")
	}
	b.visiting[ext] = true
	defer delete(b.visiting, ext)

	b.depth++
	defer func() { b.depth-- }()
	if b.depth > maxBuildDepth {
		return nil, structuralErrorf(ext, "nesting deeper than %d levels", maxBuildDepth)
	}

	if ext.NodeType == "" {
		return nil, structuralErrorf(ext, "missing node_type")
	}
	loc, err := b.checkLocation(ext)
	if err != nil {
		return nil, err
	}

	n, err := b.translate(normalizeType(ext.NodeType), ext, groupFields(ext))
	if err != nil {
		return nil, err
	}
	if n != nil && n.Loc.IsZero() {
		n.Loc = loc
	}
	return n, nil
}

func (b *builder) translate(typ string, ext *ExternalNode, f fields) (*Node, error) {
	switch typ {
	case "program_node":
		body, err := b.opt(f, "statements")
		if err != nil {
			return nil, err
		}
		if body == nil {
			body = &Node{Kind: KindStatements}
		}
		return &Node{Kind: KindProgram, Children: []*Node{body}}, nil

	case "statements_node":
		stmts, err := b.nodes(f.list("body"))
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindStatements, Children: stmts}, nil

	case "class_node":
		return b.classLike(ext, f, KindClassDef, "constant_path", "superclass")
	case "module_node":
		return b.classLike(ext, f, KindModuleDef, "constant_path", "")
	case "singleton_class_node":
		return b.classLike(ext, f, KindSingletonClassDef, "expression", "")

	case "def_node":
		return b.def(ext, f)

	case "parameters_node":
		params, err := b.nodes(ext.Children)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindParameters, Children: params}, nil

	case "required_parameter_node", "optional_parameter_node", "rest_parameter_node",
		"required_keyword_parameter_node", "optional_keyword_parameter_node",
		"keyword_rest_parameter_node", "no_keywords_parameter_node",
		"block_parameter_node", "forwarding_parameter_node":
		return b.parameter(typ, ext, f)

	case "implicit_rest_node":
		return &Node{Kind: KindSplat, Op: ","}, nil

	case "multi_target_node":
		return b.targets(ext, f)

	case "block_parameters_node":
		params, err := b.opt(f, "parameters")
		if err != nil {
			return nil, err
		}
		var locals []string
		for _, l := range f.list("locals") {
			name, err := reqMeta(l, "name")
			if err != nil {
				return nil, err
			}
			locals = append(locals, name)
		}
		n := &Node{Kind: KindBlockParameters, Children: []*Node{params}, Payload: strings.Join(locals, ", ")}
		if ext.Metadata.Str("opening_loc") == "(" {
			n.Flags |= FlagParens
		}
		return n, nil

	case "numbered_parameters_node", "it_parameters_node":
		return nil, nil

	case "block_node":
		params, err := b.opt(f, "parameters")
		if err != nil {
			return nil, err
		}
		body, err := b.opt(f, "body")
		if err != nil {
			return nil, err
		}
		n := &Node{Kind: KindBlock, Children: []*Node{params, body}}
		if ext.Metadata.Str("opening_loc") == "{" {
			n.Flags |= FlagBraces
		}
		markUnterminated(n, ext, "closing_loc")
		return n, nil

	case "lambda_node":
		params, err := b.opt(f, "parameters")
		if err != nil {
			return nil, err
		}
		body, err := b.opt(f, "body")
		if err != nil {
			return nil, err
		}
		n := &Node{Kind: KindLambda, Children: []*Node{params, body}}
		if ext.Metadata.Str("opening_loc") == "{" {
			n.Flags |= FlagBraces
		}
		markUnterminated(n, ext, "closing_loc")
		return n, nil

	case "block_argument_node":
		expr, err := b.opt(f, "expression")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindBlockPass, Children: []*Node{expr}}, nil

	case "call_node":
		return b.call(ext, f)

	case "arguments_node":
		args, err := b.nodes(f.list("arguments"))
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindArguments, Children: args}, nil

	case "forwarding_arguments_node":
		return &Node{Kind: KindSplat, Op: "..."}, nil

	case "if_node", "unless_node":
		return b.conditional(typ, ext, f)

	case "else_node":
		body, err := b.opt(f, "statements")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindElse, Children: []*Node{body}}, nil

	case "case_node", "case_match_node":
		return b.caseExpr(typ, ext, f)

	case "when_node":
		conds, err := b.nodes(f.list("conditions"))
		if err != nil {
			return nil, err
		}
		if len(conds) == 0 {
			return nil, structuralErrorf(ext, "when clause without conditions")
		}
		body, err := b.opt(f, "statements")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindWhen, Children: []*Node{{Kind: KindArguments, Children: conds}, body}}, nil

	case "in_node":
		pat := f.one("pattern")
		if pat == nil {
			return nil, structuralErrorf(ext, "missing required child %q", "pattern")
		}
		pattern, err := b.pattern(pat)
		if err != nil {
			return nil, err
		}
		body, err := b.opt(f, "statements")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindIn, Children: []*Node{pattern, body}}, nil

	case "match_predicate_node", "match_required_node":
		value, err := b.req(ext, f, "value")
		if err != nil {
			return nil, err
		}
		pat := f.one("pattern")
		if pat == nil {
			return nil, structuralErrorf(ext, "missing required child %q", "pattern")
		}
		pattern, err := b.pattern(pat)
		if err != nil {
			return nil, err
		}
		op := "in"
		if typ == "match_required_node" {
			op = "=>"
		}
		return &Node{Kind: KindBinaryOperator, Op: op, Children: []*Node{value, pattern}}, nil

	case "match_write_node":
		return b.req(ext, f, "call")

	case "while_node", "until_node":
		return b.loop(typ, ext, f)

	case "for_node":
		index, err := b.req(ext, f, "index")
		if err != nil {
			return nil, err
		}
		coll, err := b.req(ext, f, "collection")
		if err != nil {
			return nil, err
		}
		body, err := b.opt(f, "statements")
		if err != nil {
			return nil, err
		}
		n := &Node{Kind: KindFor, Children: []*Node{index, coll, body}}
		markUnterminated(n, ext, "end_keyword_loc")
		return n, nil

	case "begin_node":
		return b.begin(ext, f)

	case "rescue_node":
		var exceptions *Node
		if excs := f.list("exceptions"); len(excs) > 0 {
			args, err := b.nodes(excs)
			if err != nil {
				return nil, err
			}
			exceptions = &Node{Kind: KindArguments, Children: args}
		}
		ref, err := b.opt(f, "reference")
		if err != nil {
			return nil, err
		}
		body, err := b.opt(f, "statements")
		if err != nil {
			return nil, err
		}
		next, err := b.opt(f, "subsequent", "consequent")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindRescue, Children: []*Node{exceptions, ref, body, next}}, nil

	case "ensure_node":
		body, err := b.opt(f, "statements")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindEnsure, Children: []*Node{body}}, nil

	case "rescue_modifier_node":
		expr, err := b.req(ext, f, "expression")
		if err != nil {
			return nil, err
		}
		rescue, err := b.req(ext, f, "rescue_expression")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindRescueModifier, Children: []*Node{expr, rescue}}, nil

	case "break_node", "next_node", "return_node":
		args, err := b.opt(f, "arguments")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindJump, Payload: strings.TrimSuffix(typ, "_node"), Children: []*Node{args}}, nil
	case "redo_node", "retry_node":
		return &Node{Kind: KindJump, Payload: strings.TrimSuffix(typ, "_node"), Children: []*Node{nil}}, nil

	case "yield_node":
		args, err := b.opt(f, "arguments")
		if err != nil {
			return nil, err
		}
		n := &Node{Kind: KindYield, Children: []*Node{args}}
		if ext.Metadata.Str("lparen_loc") == "(" {
			n.Flags |= FlagParens
		}
		return n, nil

	case "super_node":
		args, err := b.opt(f, "arguments")
		if err != nil {
			return nil, err
		}
		block, err := b.opt(f, "block")
		if err != nil {
			return nil, err
		}
		n := &Node{Kind: KindSuper, Children: []*Node{args, block}}
		if ext.Metadata.Str("lparen_loc") == "(" {
			n.Flags |= FlagParens
		}
		return n, nil
	case "forwarding_super_node":
		block, err := b.opt(f, "block")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindSuper, Flags: FlagBare, Children: []*Node{nil, block}}, nil

	case "multi_write_node":
		targets, err := b.targets(ext, f)
		if err != nil {
			return nil, err
		}
		value, err := b.req(ext, f, "value")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindMultipleAssignment, Children: []*Node{targets, value}}, nil

	case "splat_node":
		expr, err := b.opt(f, "expression")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindSplat, Op: "*", Children: []*Node{expr}}, nil
	case "assoc_splat_node":
		value, err := b.opt(f, "value")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindSplat, Op: "**", Children: []*Node{value}}, nil

	case "integer_node", "rational_node", "imaginary_node", "float_node":
		kind := KindInteger
		if typ != "integer_node" {
			kind = KindFloat
		}
		return b.literal(ext, kind)

	case "string_node", "x_string_node", "interpolated_string_node", "interpolated_x_string_node":
		if opening := ext.Metadata.Str("opening_loc"); strings.HasPrefix(opening, "<<") {
			body, err := reqMeta(ext, "heredoc_body")
			if err != nil {
				return nil, err
			}
			n := &Node{Kind: KindString, Flags: FlagHeredoc, Payload: opening, Body: body}
			if ext.Location != nil {
				// The body runs past the opening line up to the terminator.
				n.Loc = ext.Location.toLocation()
				n.Loc.EndLine = n.Loc.StartLine + strings.Count(strings.TrimSuffix(body, "\n"), "\n") + 1
			}
			return n, nil
		}
		return b.literal(ext, KindString)

	case "symbol_node", "interpolated_symbol_node":
		return b.literal(ext, KindSymbol)

	case "regular_expression_node", "interpolated_regular_expression_node":
		return b.literal(ext, KindRegex)

	case "array_node":
		elems, err := b.nodes(f.list("elements"))
		if err != nil {
			return nil, err
		}
		n := &Node{Kind: KindArray, Children: elems}
		opening := ext.Metadata.Str("opening_loc")
		switch {
		case opening == "":
			n.Flags |= FlagImplicit
		case strings.HasPrefix(opening, "%"):
			n.Flags |= FlagPercent
			n.Op = opening
			n.Payload = ext.Metadata.Str("closing_loc")
		}
		return n, nil

	case "hash_node", "keyword_hash_node":
		elems, err := b.nodes(f.list("elements"))
		if err != nil {
			return nil, err
		}
		n := &Node{Kind: KindHash, Children: elems}
		if typ == "keyword_hash_node" {
			n.Flags |= FlagImplicit
		}
		return n, nil

	case "assoc_node":
		key, err := b.req(ext, f, "key")
		if err != nil {
			return nil, err
		}
		value, err := b.opt(f, "value")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindHashPair, Op: ext.Metadata.Str("operator_loc"), Children: []*Node{key, value}}, nil

	case "implicit_node":
		// `{ name: }` shorthand; the value is implied by the key.
		return nil, nil

	case "nil_node", "true_node", "false_node", "self_node",
		"source_file_node", "source_line_node", "source_encoding_node":
		return &Node{Kind: KindKeywordLiteral, Payload: keywordLiterals[typ]}, nil

	case "local_variable_read_node", "instance_variable_read_node", "class_variable_read_node",
		"global_variable_read_node", "constant_read_node", "back_reference_read_node",
		"local_variable_target_node", "instance_variable_target_node", "class_variable_target_node",
		"global_variable_target_node", "constant_target_node", "block_local_variable_node":
		name, err := reqMeta(ext, "name")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindVariable, Payload: name}, nil
	case "it_local_variable_read_node":
		return &Node{Kind: KindVariable, Payload: "it"}, nil
	case "numbered_reference_read_node":
		if s, ok := b.text(ext); ok {
			return &Node{Kind: KindVariable, Payload: s}, nil
		}
		if _, err := reqMeta(ext, "number"); err != nil {
			return nil, err
		}
		num, ok := ext.Metadata.Int("number")
		if !ok || num < 1 {
			return nil, structuralErrorf(ext, "invalid reference number %q", ext.Metadata.Str("number"))
		}
		return &Node{Kind: KindVariable, Payload: "$" + strconv.Itoa(num)}, nil

	case "constant_path_node", "constant_path_target_node":
		parent, err := b.opt(f, "parent")
		if err != nil {
			return nil, err
		}
		name := firstMeta(ext, "name")
		if name == "" {
			// older parsers send the final segment as a child
			if child := f.one("child"); child != nil {
				name = child.Metadata.Str("name")
			}
		}
		if name == "" {
			return nil, structuralErrorf(ext, "missing required field %q", "name")
		}
		return &Node{Kind: KindConstantPath, Payload: name, Children: []*Node{parent}}, nil

	case "local_variable_write_node", "instance_variable_write_node", "class_variable_write_node",
		"global_variable_write_node", "constant_write_node":
		return b.variableWrite(ext, f, "=")
	case "local_variable_operator_write_node", "instance_variable_operator_write_node",
		"class_variable_operator_write_node", "global_variable_operator_write_node",
		"constant_operator_write_node":
		return b.variableWrite(ext, f, operatorWrite(ext))
	case "local_variable_or_write_node", "instance_variable_or_write_node", "class_variable_or_write_node",
		"global_variable_or_write_node", "constant_or_write_node":
		return b.variableWrite(ext, f, "||=")
	case "local_variable_and_write_node", "instance_variable_and_write_node", "class_variable_and_write_node",
		"global_variable_and_write_node", "constant_and_write_node":
		return b.variableWrite(ext, f, "&&=")

	case "constant_path_write_node":
		return b.targetWrite(ext, f, "=")
	case "constant_path_operator_write_node":
		return b.targetWrite(ext, f, operatorWrite(ext))
	case "constant_path_or_write_node":
		return b.targetWrite(ext, f, "||=")
	case "constant_path_and_write_node":
		return b.targetWrite(ext, f, "&&=")

	case "call_operator_write_node", "call_or_write_node", "call_and_write_node",
		"index_operator_write_node", "index_or_write_node", "index_and_write_node":
		return b.callWrite(typ, ext, f)

	case "call_target_node":
		recv, err := b.req(ext, f, "receiver")
		if err != nil {
			return nil, err
		}
		name := firstMeta(ext, "message_loc", "name")
		return &Node{Kind: KindCall, Op: ext.Metadata.Str("call_operator_loc"), Payload: strings.TrimSuffix(name, "="), Children: []*Node{recv, nil, nil}}, nil
	case "index_target_node":
		return b.index(ext, f)

	case "and_node", "or_node":
		left, err := b.req(ext, f, "left")
		if err != nil {
			return nil, err
		}
		right, err := b.req(ext, f, "right")
		if err != nil {
			return nil, err
		}
		op := ext.Metadata.Str("operator_loc")
		if op == "" {
			op = map[string]string{"and_node": "&&", "or_node": "||"}[typ]
		}
		return &Node{Kind: KindBinaryOperator, Op: op, Children: []*Node{left, right}}, nil

	case "range_node":
		left, err := b.opt(f, "left")
		if err != nil {
			return nil, err
		}
		right, err := b.opt(f, "right")
		if err != nil {
			return nil, err
		}
		op := ext.Metadata.Str("operator_loc")
		if op == "" {
			op = ".."
			if ext.HasFlag("exclude_end") {
				op = "..."
			}
		}
		return &Node{Kind: KindRange, Op: op, Children: []*Node{left, right}}, nil

	case "parentheses_node":
		body, err := b.opt(f, "body")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindParenthesized, Children: []*Node{body}}, nil

	case "defined_node":
		value, err := b.req(ext, f, "value")
		if err != nil {
			return nil, err
		}
		n := &Node{Kind: KindDefined, Children: []*Node{value}}
		if ext.Metadata.Str("lparen_loc") == "(" {
			n.Flags |= FlagParens
		}
		return n, nil

	case "alias_method_node", "alias_global_variable_node":
		newName, err := b.req(ext, f, "new_name")
		if err != nil {
			return nil, err
		}
		oldName, err := b.req(ext, f, "old_name")
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindAlias, Children: []*Node{newName, oldName}}, nil

	case "undef_node":
		names, err := b.nodes(f.list("names"))
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindUndef, Children: names}, nil

	case "array_pattern_node", "hash_pattern_node", "find_pattern_node",
		"alternation_pattern_node", "capture_pattern_node",
		"pinned_variable_node", "pinned_expression_node":
		return b.pattern(ext)

	default:
		return b.unsupported(ext)
	}
}

func (b *builder) unsupported(ext *ExternalNode) (*Node, error) {
	text, ok := b.text(ext)
	if !ok {
		return nil, structuralErrorf(ext, "cannot recover source text of unsupported node")
	}
	return &Node{Kind: KindUnsupported, Payload: text}, nil
}

func (b *builder) literal(ext *ExternalNode, kind Kind) (*Node, error) {
	if text, ok := b.text(ext); ok {
		return &Node{Kind: kind, Payload: text}, nil
	}
	// Plain literals can be rebuilt from their delimiters.
	content := firstMeta(ext, "content_loc", "value_loc")
	if content != "" || ext.Metadata.Str("opening_loc") != "" {
		text := ext.Metadata.Str("opening_loc") + content + ext.Metadata.Str("closing_loc")
		return &Node{Kind: kind, Payload: text}, nil
	}
	if v, ok := ext.Metadata.Get("value"); ok && (kind == KindInteger || kind == KindFloat) {
		return &Node{Kind: kind, Payload: v}, nil
	}
	return nil, structuralErrorf(ext, "missing literal text")
}

func (b *builder) pattern(ext *ExternalNode) (*Node, error) {
	if _, err := b.checkLocation(ext); err != nil {
		return nil, err
	}
	text, ok := b.text(ext)
	if !ok {
		return nil, structuralErrorf(ext, "cannot recover source text of pattern")
	}
	return &Node{Kind: KindPattern, Payload: text, Loc: ext.Location.toLocation()}, nil
}

func (b *builder) classLike(ext *ExternalNode, f fields, kind Kind, nameField, superField string) (*Node, error) {
	name, err := b.req(ext, f, nameField)
	if err != nil {
		return nil, err
	}
	children := []*Node{name}
	if superField != "" {
		super, err := b.opt(f, superField)
		if err != nil {
			return nil, err
		}
		children = append(children, super)
	}
	body, err := b.opt(f, "body")
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: kind, Children: append(children, body)}
	markUnterminated(n, ext, "end_keyword_loc")
	return n, nil
}

func (b *builder) def(ext *ExternalNode, f fields) (*Node, error) {
	name, err := reqMeta(ext, "name")
	if err != nil {
		return nil, err
	}
	recv, err := b.opt(f, "receiver")
	if err != nil {
		return nil, err
	}
	params, err := b.opt(f, "parameters")
	if err != nil {
		return nil, err
	}
	body, err := b.opt(f, "body")
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: KindMethodDef, Payload: name, Children: []*Node{recv, params, body}}
	if ext.Metadata.Str("lparen_loc") == "(" {
		n.Flags |= FlagParens
	}
	if ext.Metadata.Str("equal_loc") == "=" {
		n.Flags |= FlagEndless
	} else {
		markUnterminated(n, ext, "end_keyword_loc")
	}
	return n, nil
}

func (b *builder) parameter(typ string, ext *ExternalNode, f fields) (*Node, error) {
	n := &Node{Kind: KindParameter, Children: []*Node{nil}}
	name := ext.Metadata.Str("name")
	switch typ {
	case "required_parameter_node", "optional_parameter_node":
		if name == "" {
			return nil, structuralErrorf(ext, "missing required field %q", "name")
		}
	case "required_keyword_parameter_node", "optional_keyword_parameter_node":
		if name == "" {
			return nil, structuralErrorf(ext, "missing required field %q", "name")
		}
		name = strings.TrimSuffix(name, ":")
		n.Flags |= FlagKeyword
	case "rest_parameter_node":
		n.Op = "*"
	case "keyword_rest_parameter_node":
		n.Op = "**"
	case "no_keywords_parameter_node":
		n.Op = "**"
		name = "nil"
	case "block_parameter_node":
		n.Op = "&"
	case "forwarding_parameter_node":
		n.Op = "..."
		name = ""
	}
	n.Payload = name
	if typ == "optional_parameter_node" || typ == "optional_keyword_parameter_node" {
		value, err := b.req(ext, f, "value")
		if err != nil {
			return nil, err
		}
		n.Children[0] = value
	}
	return n, nil
}

func (b *builder) targets(ext *ExternalNode, f fields) (*Node, error) {
	var exts []*ExternalNode
	exts = append(exts, f["lefts"]...)
	exts = append(exts, f["rest"]...)
	exts = append(exts, f["rights"]...)
	exts = append(exts, f[""]...)
	targets, err := b.nodes(exts)
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: KindTargets, Children: targets}
	if ext.Metadata.Str("lparen_loc") == "(" {
		n.Flags |= FlagParens
	}
	return n, nil
}

func (b *builder) call(ext *ExternalNode, f fields) (*Node, error) {
	name, err := reqMeta(ext, "name")
	if err != nil {
		return nil, err
	}
	recv, err := b.opt(f, "receiver")
	if err != nil {
		return nil, err
	}
	argsNode, err := b.opt(f, "arguments")
	if err != nil {
		return nil, err
	}
	block, err := b.opt(f, "block")
	if err != nil {
		return nil, err
	}
	var args []*Node
	if argsNode != nil {
		args = argsNode.Children
	}

	callOp := ext.Metadata.Str("call_operator_loc")
	opening := ext.Metadata.Str("opening_loc")
	message, hasMessage := ext.Metadata.Get("message_loc")
	if !hasMessage {
		message = name
		if ext.Metadata.Missing("message_loc") && name == "call" {
			// foo.(x)
			message = ""
		}
	}

	switch {
	case ext.HasFlag("attribute_write") && name == "[]=" && recv != nil && len(args) > 0:
		target := &Node{Kind: KindIndex, Children: []*Node{recv, argsOrNil(args[:len(args)-1]), nil}}
		return &Node{Kind: KindAssignment, Op: "=", Children: []*Node{target, args[len(args)-1]}}, nil

	case ext.HasFlag("attribute_write") && strings.HasSuffix(name, "=") && recv != nil && len(args) > 0:
		target := &Node{Kind: KindCall, Op: callOp, Payload: strings.TrimSuffix(message, "="), Children: []*Node{recv, nil, nil}}
		return &Node{Kind: KindAssignment, Op: "=", Children: []*Node{target, args[len(args)-1]}}, nil

	case name == "[]" && recv != nil && callOp == "":
		return &Node{Kind: KindIndex, Children: []*Node{recv, argsNode, block}}, nil

	case binaryOperators[name] && recv != nil && callOp == "" && opening == "" && len(args) == 1 && block == nil:
		return &Node{Kind: KindBinaryOperator, Op: name, Children: []*Node{recv, args[0]}}, nil

	case unaryOperators[name] != "" && recv != nil && callOp == "" && len(args) == 0 && block == nil:
		op := message
		if op == "" {
			op = unaryOperators[name]
		}
		return &Node{Kind: KindUnaryOperator, Op: op, Children: []*Node{recv}}, nil
	}

	n := &Node{Kind: KindCall, Op: callOp, Payload: message, Children: []*Node{recv, argsNode, block}}
	if opening == "(" {
		n.Flags |= FlagParens
	}
	return n, nil
}

func argsOrNil(args []*Node) *Node {
	if len(args) == 0 {
		return nil
	}
	return &Node{Kind: KindArguments, Children: args}
}

func (b *builder) index(ext *ExternalNode, f fields) (*Node, error) {
	recv, err := b.req(ext, f, "receiver")
	if err != nil {
		return nil, err
	}
	args, err := b.opt(f, "arguments")
	if err != nil {
		return nil, err
	}
	block, err := b.opt(f, "block")
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindIndex, Children: []*Node{recv, args, block}}, nil
}

// operatorWrite returns the compound operator of an operator-write node,
// e.g. "+=".
func operatorWrite(ext *ExternalNode) string {
	if op := firstMeta(ext, "binary_operator_loc", "operator_loc"); op != "" {
		return op
	}
	if op := firstMeta(ext, "binary_operator", "operator"); op != "" {
		return op + "="
	}
	return "="
}

func (b *builder) variableWrite(ext *ExternalNode, f fields, op string) (*Node, error) {
	name, err := reqMeta(ext, "name")
	if err != nil {
		return nil, err
	}
	value, err := b.req(ext, f, "value")
	if err != nil {
		return nil, err
	}
	target := &Node{Kind: KindVariable, Payload: name}
	return &Node{Kind: KindAssignment, Op: op, Children: []*Node{target, value}}, nil
}

func (b *builder) targetWrite(ext *ExternalNode, f fields, op string) (*Node, error) {
	target, err := b.req(ext, f, "target")
	if err != nil {
		return nil, err
	}
	value, err := b.req(ext, f, "value")
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindAssignment, Op: op, Children: []*Node{target, value}}, nil
}

func (b *builder) callWrite(typ string, ext *ExternalNode, f fields) (*Node, error) {
	var op string
	switch {
	case strings.HasSuffix(typ, "_or_write_node"):
		op = "||="
	case strings.HasSuffix(typ, "_and_write_node"):
		op = "&&="
	default:
		op = operatorWrite(ext)
	}

	var target *Node
	if strings.HasPrefix(typ, "index_") {
		t, err := b.index(ext, f)
		if err != nil {
			return nil, err
		}
		target = t
	} else {
		recv, err := b.opt(f, "receiver")
		if err != nil {
			return nil, err
		}
		message := firstMeta(ext, "message_loc", "read_name")
		if message == "" {
			return nil, structuralErrorf(ext, "missing required field %q", "read_name")
		}
		target = &Node{Kind: KindCall, Op: ext.Metadata.Str("call_operator_loc"), Payload: message, Children: []*Node{recv, nil, nil}}
	}

	value, err := b.req(ext, f, "value")
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindAssignment, Op: op, Children: []*Node{target, value}}, nil
}

func (b *builder) conditional(typ string, ext *ExternalNode, f fields) (*Node, error) {
	pred, err := b.req(ext, f, "predicate")
	if err != nil {
		return nil, err
	}
	then, err := b.opt(f, "statements")
	if err != nil {
		return nil, err
	}
	alt, err := b.opt(f, "subsequent", "consequent", "else_clause")
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: KindIf, Children: []*Node{pred, then, alt}}

	if typ == "unless_node" {
		n.Op = "unless"
	} else {
		n.Op = ext.Metadata.Str("if_keyword_loc")
		if n.Op == "" && ext.Metadata.Str("then_keyword_loc") == "?" {
			n.Op = "if"
			n.Flags |= FlagTernary
			return n, nil
		}
		if n.Op == "" {
			n.Op = "if"
		}
	}

	if ext.HasFlag("modifier") {
		n.Flags |= FlagModifier
	} else if n.Op != "elsif" {
		markUnterminated(n, ext, "end_keyword_loc")
	}
	return n, nil
}

func (b *builder) caseExpr(typ string, ext *ExternalNode, f fields) (*Node, error) {
	subject, err := b.opt(f, "predicate")
	if err != nil {
		return nil, err
	}
	clauses, err := b.nodes(f.list("conditions"))
	if err != nil {
		return nil, err
	}
	if len(clauses) == 0 {
		return nil, structuralErrorf(ext, "case without clauses")
	}
	alt, err := b.opt(f, "else_clause", "consequent")
	if err != nil {
		return nil, err
	}

	kind := KindCaseWhen
	if typ == "case_match_node" {
		kind = KindCaseIn
	}
	children := append([]*Node{subject}, clauses...)
	if alt != nil {
		children = append(children, alt)
	}
	n := &Node{Kind: kind, Children: children}
	markUnterminated(n, ext, "end_keyword_loc")
	return n, nil
}

func (b *builder) loop(typ string, ext *ExternalNode, f fields) (*Node, error) {
	pred, err := b.req(ext, f, "predicate")
	if err != nil {
		return nil, err
	}
	body, err := b.opt(f, "statements")
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: KindWhile, Op: strings.TrimSuffix(typ, "_node"), Children: []*Node{pred, body}}
	if ext.HasFlag("modifier") || ext.HasFlag("begin_modifier") {
		n.Flags |= FlagModifier
	} else {
		markUnterminated(n, ext, "closing_loc")
	}
	return n, nil
}

func (b *builder) begin(ext *ExternalNode, f fields) (*Node, error) {
	body, err := b.opt(f, "statements")
	if err != nil {
		return nil, err
	}
	rescue, err := b.opt(f, "rescue_clause")
	if err != nil {
		return nil, err
	}
	alt, err := b.opt(f, "else_clause")
	if err != nil {
		return nil, err
	}
	ensure, err := b.opt(f, "ensure_clause")
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: KindBegin, Children: []*Node{body, rescue, alt, ensure}}
	if _, ok := ext.Metadata.Get("begin_keyword_loc"); ok {
		markUnterminated(n, ext, "end_keyword_loc")
	} else {
		n.Flags |= FlagImplicit
	}
	return n, nil
}
