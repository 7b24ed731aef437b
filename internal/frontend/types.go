package frontend

import (
	"fmt"
	"math/big"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"cintfix/internal/absint"
	"cintfix/internal/cfa"
)

// symbol 作用域中的名字：变量、枚举常量或函数
type symbol struct {
	qualified  string
	typ        *cfa.Type
	enumerator *big.Int
	global     bool
	function   bool
}

// scope 块作用域，typedef、标签和普通名字分开存放
type scope struct {
	parent   *scope
	names    map[string]*symbol
	typedefs map[string]*cfa.Type
	tags     map[string]*cfa.Type
}

func newScope(parent *scope) *scope {
	return &scope{
		parent:   parent,
		names:    make(map[string]*symbol),
		typedefs: make(map[string]*cfa.Type),
		tags:     make(map[string]*cfa.Type),
	}
}

func (s *scope) lookup(name string) *symbol {
	for cur := s; cur != nil; cur = cur.parent {
		if sym, ok := cur.names[name]; ok {
			return sym
		}
	}
	return nil
}

func (s *scope) typedef(name string) (*cfa.Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.typedefs[name]; ok {
			return t, true
		}
	}
	return nil, false
}

func (s *scope) tag(name string) (*cfa.Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.tags[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// builtinTypes 预处理后仍可能出现的内建类型名
var builtinTypes = map[string]*cfa.Type{
	"bool":      cfa.IntegerType(absint.UChar),
	"_Bool":     cfa.IntegerType(absint.UChar),
	"size_t":    cfa.IntegerType(absint.ULong),
	"ssize_t":   cfa.IntegerType(absint.Long),
	"ptrdiff_t": cfa.IntegerType(absint.Long),
	"intptr_t":  cfa.IntegerType(absint.Long),
	"uintptr_t": cfa.IntegerType(absint.ULong),
	"intmax_t":  cfa.IntegerType(absint.Long),
	"uintmax_t": cfa.IntegerType(absint.ULong),
	"wchar_t":   cfa.IntegerType(absint.Int),
	"int8_t":    cfa.IntegerType(absint.Char),
	"uint8_t":   cfa.IntegerType(absint.UChar),
	"int16_t":   cfa.IntegerType(absint.Short),
	"uint16_t":  cfa.IntegerType(absint.UShort),
	"int32_t":   cfa.IntegerType(absint.Int),
	"uint32_t":  cfa.IntegerType(absint.UInt),
	"int64_t":   cfa.IntegerType(absint.Long),
	"uint64_t":  cfa.IntegerType(absint.ULong),
	"float":     {Kind: cfa.TypeFloat, Name: "float"},
	"double":    cfa.DoubleType,
	"void":      cfa.VoidType,
	"__builtin_va_list": {Kind: cfa.TypePointer, Elem: cfa.VoidType},
}

// integerFromWords 由 unsigned/long/short/char/int 等关键字组合出整数类型
func integerFromWords(words []string) (*cfa.Type, bool) {
	var longs int
	var unsigned, short, char, integer, sawSign bool
	for _, w := range words {
		switch w {
		case "unsigned":
			unsigned, sawSign = true, true
		case "signed", "__signed__", "__signed":
			sawSign = true
		case "long":
			longs++
		case "short":
			short = true
		case "char":
			char = true
		case "int":
			integer = true
		case "double":
			return &cfa.Type{Kind: cfa.TypeFloat, Name: strings.Join(words, " ")}, true
		case "const", "volatile", "__restrict", "restrict":
		default:
			return nil, false
		}
	}
	if !(longs > 0 || short || char || integer || sawSign) {
		return nil, false
	}
	var t absint.IntType
	switch {
	case char:
		t = absint.Char
	case short:
		t = absint.Short
	case longs >= 2:
		t = absint.LongLong
	case longs == 1:
		t = absint.Long
	default:
		t = absint.Int
	}
	if unsigned {
		t = t.AsUnsigned()
	}
	return cfa.IntegerType(t), true
}

// specifier 解析类型说明符节点
func (b *builder) specifier(n *sitter.Node) (*cfa.Type, error) {
	if n == nil {
		return cfa.IntegerType(absint.Int), nil
	}
	text := b.unit.Text(n)
	switch n.Type() {
	case "primitive_type":
		if t, ok := integerFromWords(strings.Fields(text)); ok {
			return t, nil
		}
		if t, ok := builtinTypes[text]; ok {
			return t, nil
		}
		return cfa.UnknownType, nil
	case "sized_type_specifier":
		if t, ok := integerFromWords(strings.Fields(text)); ok {
			return t, nil
		}
		return cfa.UnknownType, nil
	case "type_identifier":
		if t, ok := b.scope.typedef(text); ok {
			return t, nil
		}
		if t, ok := builtinTypes[text]; ok {
			return t, nil
		}
		return cfa.UnknownType, nil
	case "struct_specifier", "union_specifier":
		return b.record(n, n.Type() == "union_specifier")
	case "enum_specifier":
		if err := b.enumeration(n); err != nil {
			return nil, err
		}
		return cfa.IntegerType(absint.Int), nil
	case "ERROR":
		return nil, fmt.Errorf("%w: bad type at %s", ErrMalformedInput, b.unit.Loc(n))
	}
	return cfa.UnknownType, nil
}

func (b *builder) record(n *sitter.Node, union bool) (*cfa.Type, error) {
	name := b.unit.Text(n.ChildByFieldName("name"))
	body := n.ChildByFieldName("body")
	if body == nil {
		if t, ok := b.scope.tag(name); ok && name != "" {
			return t, nil
		}
		t := &cfa.Type{Kind: cfa.TypeStruct, Name: name, Union: union}
		if name != "" {
			b.scope.tags[name] = t
		}
		return t, nil
	}
	t, ok := b.scope.tags[name]
	if !ok || name == "" {
		t = &cfa.Type{Kind: cfa.TypeStruct, Name: name, Union: union}
		if name != "" {
			b.scope.tags[name] = t
		}
	}
	// 先登记再解析成员，自引用的指针成员才能找到自己
	var fields []cfa.Field
	for _, fd := range namedChildren(body) {
		if fd.Type() != "field_declaration" {
			continue
		}
		base, err := b.specifier(fd.ChildByFieldName("type"))
		if err != nil {
			return nil, err
		}
		for _, d := range childrenByField(fd, "declarator") {
			fname, ft, err := b.declarator(base, d)
			if err != nil {
				return nil, err
			}
			fields = append(fields, cfa.Field{Name: fname, Type: ft})
		}
	}
	t.Fields = fields
	return t, nil
}

func (b *builder) enumeration(n *sitter.Node) error {
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	next := big.NewInt(0)
	for _, e := range namedChildren(body) {
		if e.Type() != "enumerator" {
			continue
		}
		name := b.unit.Text(e.ChildByFieldName("name"))
		if v := e.ChildByFieldName("value"); v != nil {
			val, ok := b.constant(v)
			if !ok {
				return fmt.Errorf("%w: enumerator %s is not constant at %s", ErrMalformedInput, name, b.unit.Loc(v))
			}
			next = val
		}
		b.scope.names[name] = &symbol{
			qualified:  name,
			typ:        cfa.IntegerType(absint.Int),
			enumerator: new(big.Int).Set(next),
			global:     true,
		}
		next = new(big.Int).Add(next, big.NewInt(1))
	}
	return nil
}

// declarator 由内向外套上指针、数组、函数，返回声明的名字和完整类型
func (b *builder) declarator(base *cfa.Type, n *sitter.Node) (string, *cfa.Type, error) {
	t := base
	for n != nil {
		switch n.Type() {
		case "identifier", "field_identifier", "type_identifier", "primitive_type":
			return b.unit.Text(n), t, nil
		case "init_declarator", "attributed_declarator":
			n = n.ChildByFieldName("declarator")
			if n == nil {
				return "", t, nil
			}
		case "parenthesized_declarator", "abstract_parenthesized_declarator":
			inner := namedChildren(n)
			if len(inner) == 0 {
				return "", t, nil
			}
			n = inner[len(inner)-1]
		case "pointer_declarator", "abstract_pointer_declarator":
			t = cfa.PointerTo(t)
			n = n.ChildByFieldName("declarator")
		case "array_declarator", "abstract_array_declarator":
			length := int64(-1)
			if size := n.ChildByFieldName("size"); size != nil {
				if v, ok := b.constant(size); ok && v.IsInt64() {
					length = v.Int64()
				}
			}
			t = &cfa.Type{Kind: cfa.TypeArray, Elem: t, ArrayLen: length}
			n = n.ChildByFieldName("declarator")
		case "function_declarator", "abstract_function_declarator":
			params, variadic, err := b.parameterTypes(n.ChildByFieldName("parameters"))
			if err != nil {
				return "", nil, err
			}
			t = &cfa.Type{Kind: cfa.TypeFunction, Return: t, Params: params, Variadic: variadic}
			n = n.ChildByFieldName("declarator")
		case "bitfield_clause":
			return "", t, nil
		case "ERROR":
			return "", nil, fmt.Errorf("%w: bad declarator at %s", ErrMalformedInput, b.unit.Loc(n))
		default:
			return "", t, nil
		}
	}
	return "", t, nil
}

// paramDecl 形参列表中的一项
type paramDecl struct {
	name string
	typ  *cfa.Type
	node *sitter.Node
}

func (b *builder) parameters(list *sitter.Node) ([]paramDecl, bool, error) {
	if list == nil {
		return nil, false, nil
	}
	var out []paramDecl
	variadic := false
	for _, p := range namedChildren(list) {
		switch p.Type() {
		case "variadic_parameter":
			variadic = true
			continue
		case "parameter_declaration":
		default:
			continue
		}
		base, err := b.specifier(p.ChildByFieldName("type"))
		if err != nil {
			return nil, false, err
		}
		name, t, err := b.declarator(base, p.ChildByFieldName("declarator"))
		if err != nil {
			return nil, false, err
		}
		if t.IsVoid() && name == "" {
			continue
		}
		if t.Kind == cfa.TypeFunction {
			t = cfa.PointerTo(t)
		}
		out = append(out, paramDecl{name: name, typ: t.Decay(), node: p})
	}
	// 只有 "..." 的写法在 C 中不合法，但预处理后的代码里偶尔能见到
	if !variadic && strings.Contains(b.unit.Text(list), "...") {
		variadic = true
	}
	return out, variadic, nil
}

func (b *builder) parameterTypes(list *sitter.Node) ([]*cfa.Type, bool, error) {
	params, variadic, err := b.parameters(list)
	if err != nil {
		return nil, false, err
	}
	types := make([]*cfa.Type, len(params))
	for i, p := range params {
		types[i] = p.typ
	}
	return types, variadic, nil
}

// typeDescriptor 类型转换和 sizeof 中的类型名
func (b *builder) typeDescriptor(n *sitter.Node) (*cfa.Type, error) {
	base, err := b.specifier(n.ChildByFieldName("type"))
	if err != nil {
		return nil, err
	}
	_, t, err := b.declarator(base, n.ChildByFieldName("declarator"))
	return t, err
}

func (b *builder) hasStorage(n *sitter.Node, class string) bool {
	for _, child := range namedChildren(n) {
		if child.Type() == "storage_class_specifier" && b.unit.Text(child) == class {
			return true
		}
	}
	return false
}

// constant 整数常量表达式求值，用于枚举值和数组长度
func (b *builder) constant(n *sitter.Node) (*big.Int, bool) {
	n = stripParens(n)
	if n == nil {
		return nil, false
	}
	switch n.Type() {
	case "number_literal":
		v, _, ok := parseIntLiteral(b.unit.Text(n))
		return v, ok
	case "char_literal":
		v, ok := parseCharLiteral(b.unit.Text(n))
		return big.NewInt(v), ok
	case "identifier":
		if sym := b.scope.lookup(b.unit.Text(n)); sym != nil && sym.enumerator != nil {
			return sym.enumerator, true
		}
		return nil, false
	case "cast_expression":
		return b.constant(n.ChildByFieldName("value"))
	case "sizeof_expression":
		if td := n.ChildByFieldName("type"); td != nil {
			t, err := b.typeDescriptor(td)
			if err != nil || t.SizeOf() == 0 {
				return nil, false
			}
			return big.NewInt(t.SizeOf()), true
		}
		return nil, false
	case "unary_expression":
		v, ok := b.constant(n.ChildByFieldName("argument"))
		if !ok {
			return nil, false
		}
		switch b.unit.Text(n.ChildByFieldName("operator")) {
		case "-":
			return new(big.Int).Neg(v), true
		case "+":
			return v, true
		case "~":
			return new(big.Int).Not(v), true
		case "!":
			if v.Sign() == 0 {
				return big.NewInt(1), true
			}
			return big.NewInt(0), true
		}
		return nil, false
	case "binary_expression":
		l, ok := b.constant(n.ChildByFieldName("left"))
		if !ok {
			return nil, false
		}
		r, ok := b.constant(n.ChildByFieldName("right"))
		if !ok {
			return nil, false
		}
		return foldBinary(b.unit.Text(n.ChildByFieldName("operator")), l, r)
	case "conditional_expression":
		c, ok := b.constant(n.ChildByFieldName("condition"))
		if !ok {
			return nil, false
		}
		if c.Sign() != 0 {
			return b.constant(n.ChildByFieldName("consequence"))
		}
		return b.constant(n.ChildByFieldName("alternative"))
	}
	return nil, false
}

func boolInt(v bool) *big.Int {
	if v {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

func foldBinary(op string, l, r *big.Int) (*big.Int, bool) {
	z := new(big.Int)
	switch op {
	case "+":
		return z.Add(l, r), true
	case "-":
		return z.Sub(l, r), true
	case "*":
		return z.Mul(l, r), true
	case "/":
		if r.Sign() == 0 {
			return nil, false
		}
		return z.Quo(l, r), true
	case "%":
		if r.Sign() == 0 {
			return nil, false
		}
		return z.Rem(l, r), true
	case "<<":
		if !r.IsUint64() || r.Uint64() > 127 {
			return nil, false
		}
		return z.Lsh(l, uint(r.Uint64())), true
	case ">>":
		if !r.IsUint64() || r.Uint64() > 127 {
			return nil, false
		}
		return z.Rsh(l, uint(r.Uint64())), true
	case "&":
		return z.And(l, r), true
	case "|":
		return z.Or(l, r), true
	case "^":
		return z.Xor(l, r), true
	case "<":
		return boolInt(l.Cmp(r) < 0), true
	case "<=":
		return boolInt(l.Cmp(r) <= 0), true
	case ">":
		return boolInt(l.Cmp(r) > 0), true
	case ">=":
		return boolInt(l.Cmp(r) >= 0), true
	case "==":
		return boolInt(l.Cmp(r) == 0), true
	case "!=":
		return boolInt(l.Cmp(r) != 0), true
	case "&&":
		return boolInt(l.Sign() != 0 && r.Sign() != 0), true
	case "||":
		return boolInt(l.Sign() != 0 || r.Sign() != 0), true
	}
	return nil, false
}

// isFloatLiteral 十进制带小数点或指数、十六进制带 p 指数、或 f 后缀
func isFloatLiteral(text string) bool {
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "0x") {
		return strings.Contains(lower, "p") || strings.Contains(lower, ".")
	}
	return strings.ContainsAny(lower, ".e") || strings.HasSuffix(lower, "f")
}

// parseIntLiteral 解析整数字面量，按 C 规则确定类型
func parseIntLiteral(text string) (*big.Int, absint.IntType, bool) {
	if isFloatLiteral(text) {
		return nil, absint.Unknown, false
	}
	body := strings.ReplaceAll(text, "'", "")
	lower := strings.ToLower(body)
	end := len(lower)
	for end > 0 && (lower[end-1] == 'u' || lower[end-1] == 'l') {
		end--
	}
	suffix := lower[end:]
	digits := lower[:end]

	base := 10
	switch {
	case strings.HasPrefix(digits, "0x"):
		base, digits = 16, digits[2:]
	case strings.HasPrefix(digits, "0b"):
		base, digits = 2, digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		base, digits = 8, digits[1:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, absint.Unknown, false
	}

	unsigned := strings.Contains(suffix, "u")
	longs := strings.Count(suffix, "l")
	var candidates []absint.IntType
	switch {
	case longs >= 2:
		candidates = []absint.IntType{absint.LongLong, absint.ULongLong}
	case longs == 1:
		candidates = []absint.IntType{absint.Long, absint.ULong, absint.LongLong, absint.ULongLong}
	default:
		candidates = []absint.IntType{absint.Int, absint.UInt, absint.Long, absint.ULong, absint.LongLong, absint.ULongLong}
	}
	point := absint.PointExt(absint.NewExtIntBig(v))
	for _, t := range candidates {
		if unsigned && t.Signed {
			continue
		}
		// 十进制无后缀的字面量只取有符号类型
		if base == 10 && !unsigned && !t.Signed {
			continue
		}
		if t.TypeRange().Contains(point) {
			return v, t, true
		}
	}
	return v, absint.ULongLong, true
}

var simpleEscapes = map[byte]int64{
	'n': '\n', 't': '\t', 'r': '\r', '0': 0, 'a': 7, 'b': 8, 'f': 12, 'v': 11,
	'\\': '\\', '\'': '\'', '"': '"', '?': '?', 'e': 27,
}

// parseCharLiteral 取字符常量的第一个字符，高位字节按有符号 char 解释
func parseCharLiteral(text string) (int64, bool) {
	start := strings.IndexByte(text, '\'')
	end := strings.LastIndexByte(text, '\'')
	if start < 0 || end <= start+1 {
		return 0, false
	}
	body := text[start+1 : end]
	if body[0] != '\\' {
		return int64(int8(body[0])), true
	}
	if len(body) < 2 {
		return 0, false
	}
	switch c := body[1]; {
	case c == 'x':
		v, ok := new(big.Int).SetString(body[2:], 16)
		if !ok || !v.IsInt64() {
			return 0, false
		}
		return int64(int8(v.Int64())), true
	case c >= '0' && c <= '7':
		v, ok := new(big.Int).SetString(body[1:], 8)
		if !ok || !v.IsInt64() {
			return 0, false
		}
		return int64(int8(v.Int64())), true
	default:
		v, ok := simpleEscapes[c]
		return v, ok
	}
}

// arithmetic C 的寻常算术转换
func arithmetic(l, r absint.IntType) absint.IntType {
	l, r = l.PromoteInt(), r.PromoteInt()
	if l == r {
		return l
	}
	if l.Signed == r.Signed {
		if l.Kind >= r.Kind {
			return l
		}
		return r
	}
	s, u := l, r
	if !l.Signed {
		s, u = r, l
	}
	if u.Kind >= s.Kind {
		return u
	}
	if s.TypeRange().Contains(u.TypeRange()) {
		return s
	}
	return s.AsUnsigned()
}

// binaryType 二元运算结果的静态类型
func binaryType(op cfa.BinaryOp, l, r *cfa.Type) *cfa.Type {
	switch {
	case op.IsLogical():
		return cfa.IntegerType(absint.Int)
	case op == cfa.OpShiftLeft || op == cfa.OpShiftRight:
		if l.IsInteger() {
			return cfa.IntegerType(l.Int.PromoteInt())
		}
		return cfa.UnknownType
	case l.IsPointer() && r.IsPointer():
		return cfa.IntegerType(absint.Long)
	case l.IsPointer():
		return l
	case r.IsPointer():
		return r
	case l.IsInteger() && r.IsInteger():
		return cfa.IntegerType(arithmetic(l.Int, r.Int))
	case l.Kind == cfa.TypeFloat || r.Kind == cfa.TypeFloat:
		return cfa.DoubleType
	}
	return cfa.UnknownType
}
