package rewrite

import (
	"fmt"
	"strings"

	"cintfix/internal/absint"
	"cintfix/internal/fixguide"
)

// 运行时支持函数的命名
const (
	CheckPrefix     = "__INTCHECK_"
	LeftShiftFunc   = "__INTLEFTSHIFT"
	RightShiftFunc  = "__INTRIGHTSHIFT"
	RenamePrefix    = "__intfix_repl_"
	signedParamType = "long long signed int"
	unsignedParam   = "long long unsigned int"
)

// checkKind 一种检查函数的目标类型
type checkKind struct {
	Code  string
	CType string
}

// checkKinds 头部声明的顺序固定
var checkKinds = []checkKind{
	{"INT", "int"},
	{"UINT", "unsigned int"},
	{"SHORT", "short"},
	{"USHORT", "unsigned short"},
	{"CHAR", "signed char"},
	{"UCHAR", "unsigned char"},
	{"LINT", "long int"},
	{"ULINT", "long unsigned int"},
	{"LLINT", "long long int"},
	{"ULLINT", "long long unsigned int"},
	{"INDEX", "size_t"},
}

// Header 补丁文件开头的外部声明
var Header = buildHeader()

func buildHeader() string {
	var sb strings.Builder
	sb.WriteString("typedef unsigned long size_t;\n")
	for _, k := range checkKinds {
		fmt.Fprintf(&sb, "extern %s %s(%s x);\n", k.CType, CheckName(k.Code, true), signedParamType)
		fmt.Fprintf(&sb, "extern %s %s(%s x);\n", k.CType, CheckName(k.Code, false), unsignedParam)
	}
	for _, fn := range []string{LeftShiftFunc, RightShiftFunc} {
		fmt.Fprintf(&sb, "extern %s %s(%s op1, %s op2);\n", unsignedParam, fn, unsignedParam, unsignedParam)
	}
	return sb.String()
}

// CheckName 检查函数名，后缀表示被检查表达式的符号性
func CheckName(code string, signed bool) string {
	if signed {
		return CheckPrefix + code + "_S"
	}
	return CheckPrefix + code + "_U"
}

// checkFunc 目标类型 t、被检查表达式类型为 operand 时使用的检查函数
// 非整数的表达式按有符号处理
func checkFunc(t, operand absint.IntType) string {
	return CheckName(t.Code(), operand.Signed)
}

// shiftFunc 位移检查的辅助函数
func shiftFunc(level int) (string, bool) {
	switch level {
	case fixguide.LevelShiftLeft:
		return LeftShiftFunc, true
	case fixguide.LevelShiftRight:
		return RightShiftFunc, true
	}
	return "", false
}

// castText 显式转换的前缀
func castText(spelling string) string {
	return "(" + spelling + ")"
}
