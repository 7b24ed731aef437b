package rewrite

import (
	"io"
	"strings"
	"text/template"
)

// 检查函数体的几种形式
const (
	bodyRoundTrip = iota // 转换后再转回比较
	bodyIdentity         // 直接返回
	bodyUpper            // 只需检查上界
	bodyNonNegative      // 只需检查非负
	bodyIndex            // 下标：0 <= x <= SIZE_MAX
)

type runtimeCheck struct {
	Name  string
	Ret   string
	Param string
	Body  int
	Limit string
}

// bodyOf 个别组合不能用往返比较判断
func bodyOf(code string, signed bool) (int, string) {
	switch code + map[bool]string{true: "_S", false: "_U"}[signed] {
	case "LINT_U":
		return bodyUpper, "LONG_MAX"
	case "LLINT_U":
		return bodyUpper, "LLONG_MAX"
	case "INDEX_U":
		return bodyUpper, "SIZE_MAX"
	case "ULINT_S", "ULLINT_S":
		return bodyNonNegative, ""
	case "LLINT_S", "ULLINT_U":
		return bodyIdentity, ""
	case "INDEX_S":
		return bodyIndex, "SIZE_MAX"
	}
	return bodyRoundTrip, ""
}

func runtimeChecks() []runtimeCheck {
	checks := make([]runtimeCheck, 0, 2*len(checkKinds))
	for _, k := range checkKinds {
		for _, signed := range []bool{true, false} {
			param := unsignedParam
			if signed {
				param = signedParamType
			}
			body, limit := bodyOf(k.Code, signed)
			checks = append(checks, runtimeCheck{
				Name:  CheckName(k.Code, signed),
				Ret:   k.CType,
				Param: param,
				Body:  body,
				Limit: limit,
			})
		}
	}
	return checks
}

var runtimeTemplate = template.Must(template.New("runtime").Parse(`#include <stdio.h>
#include <stdlib.h>
#include <limits.h>
#include <stdint.h>

#define __INTCHECK_INDET_VALUE 0

void __INTCHECK_ERROR(const char *errmsg)
{
	fputs(errmsg, stderr);
	exit(1);
}
{{range .Checks}}
{{.Ret}} {{.Name}}({{.Param}} x)
{
{{- if eq .Body 1}}
	return x;
{{- else}}
{{- if eq .Body 0}}
	{{.Ret}} y = ({{.Ret}})x;
	if (x == ({{.Param}})y)
	{
		return y;
	}
{{- else}}
	if ({{if eq .Body 2}}x <= {{.Limit}}{{else if eq .Body 3}}x >= 0{{else}}x >= 0 && x <= {{.Limit}}{{end}})
	{
		return ({{.Ret}})x;
	}
{{- end}}
	__INTCHECK_ERROR("Error!(Failed in: {{.Name}})\n");
	return __INTCHECK_INDET_VALUE;
{{- end}}
}
{{end}}
size_t __INTCHECK_GETBITLENGTH(long long unsigned int x)
{
	size_t len = sizeof(long long unsigned int) * 8;
	long long unsigned int mask = (long long unsigned int)1 << (len - 1);
	while (len > 0)
	{
		if ((x & mask) != 0)
		{
			break;
		}
		mask |= (mask >> 1);
		len--;
	}
	return len;
}

long long unsigned int {{.Left}}(long long unsigned int op1, long long unsigned int op2)
{
	size_t bitLength = __INTCHECK_GETBITLENGTH(op1);
	if (bitLength == 0)
	{
		return 0;
	}
	if (op2 > (long long unsigned int)(sizeof(long long unsigned int) * 8 - bitLength))
	{
		__INTCHECK_ERROR("Error!(Failed in: {{.Left}})\n");
		return __INTCHECK_INDET_VALUE;
	}
	return op1 << op2;
}

long long unsigned int {{.Right}}(long long unsigned int op1, long long unsigned int op2)
{
	size_t bitLength = __INTCHECK_GETBITLENGTH(op1);
	if (op2 <= (long long unsigned int)bitLength)
	{
		return op1 >> op2;
	}
	return 0;
}
`))

// WriteRuntime 写出运行时支持库的 C 源码，补丁后的文件需要与它一起链接
func WriteRuntime(w io.Writer) error {
	return runtimeTemplate.Execute(w, struct {
		Checks      []runtimeCheck
		Left, Right string
	}{runtimeChecks(), LeftShiftFunc, RightShiftFunc})
}

// Runtime 运行时支持库源码
func Runtime() string {
	var sb strings.Builder
	if err := WriteRuntime(&sb); err != nil {
		panic(err)
	}
	return sb.String()
}
