package expr

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// Describe renders the IR as an indented tree for plan inspection and
// debugging. The output is stable for a given tree.
func Describe(n Node) string {
	var sb strings.Builder
	describe(&sb, n, 0)
	return sb.String()
}

func describe(sb *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)

	switch x := n.(type) {
	case *Const:
		fmt.Fprintf(sb, "%sconst %s = %s\n", indent, typeName(x.Val.Type()), constRepr(x.Val))

	case *Param:
		fmt.Fprintf(sb, "%sparam %s %s\n", indent, x.Slot, typeName(x.T))

	case *Local:
		fmt.Fprintf(sb, "%slocal v%d %s\n", indent, x.Slot, typeName(x.T))

	case *Addr:
		fmt.Fprintf(sb, "%saddr v%d %s\n", indent, x.Of.Slot, typeName(x.Of.T))

	case *Let:
		fmt.Fprintf(sb, "%slet v%d %s =\n", indent, x.Slot, typeName(x.T))
		describe(sb, x.Value, depth+1)
		fmt.Fprintf(sb, "%sin\n", indent)
		describe(sb, x.Body, depth+1)

	case *Store:
		fmt.Fprintf(sb, "%sstore v%d %s =\n", indent, x.Slot, typeName(x.T))
		describe(sb, x.Value, depth+1)

	case *MemberGet:
		fmt.Fprintf(sb, "%sget .%s %s\n", indent, x.M.Name, typeName(x.M.T))
		describe(sb, x.Of, depth+1)

	case *MemberSet:
		fmt.Fprintf(sb, "%sset v%d.%s =\n", indent, x.Of.Slot, x.M.Name)
		describe(sb, x.Value, depth+1)

	case *Convert:
		safe := ""
		if x.Safe {
			safe = " safe"
		}
		method := ""
		if x.Method != "" {
			method = " ." + x.Method
		}
		fmt.Fprintf(sb, "%sconvert[%s%s]%s -> %s\n", indent, x.Op, method, safe, typeName(x.To))
		describe(sb, x.Value, depth+1)

	case *IsNil:
		fmt.Fprintf(sb, "%sis_nil\n", indent)
		describe(sb, x.Value, depth+1)

	case *Coalesce:
		fmt.Fprintf(sb, "%scoalesce\n", indent)
		describe(sb, x.Value, depth+1)
		fmt.Fprintf(sb, "%selse\n", indent)
		describe(sb, x.Fallback, depth+1)

	case *Cond:
		fmt.Fprintf(sb, "%sif\n", indent)
		describe(sb, x.Test, depth+1)
		fmt.Fprintf(sb, "%sthen\n", indent)
		describe(sb, x.Then, depth+1)
		fmt.Fprintf(sb, "%selse\n", indent)
		describe(sb, x.Else, depth+1)

	case *When:
		fmt.Fprintf(sb, "%swhen\n", indent)
		describe(sb, x.Test, depth+1)
		fmt.Fprintf(sb, "%sdo\n", indent)
		for _, stmt := range x.Body {
			describe(sb, stmt, depth+1)
		}

	case *Block:
		fmt.Fprintf(sb, "%sblock\n", indent)
		for _, stmt := range x.Stmts {
			describe(sb, stmt, depth+1)
		}
		fmt.Fprintf(sb, "%syield\n", indent)
		describe(sb, x.Result, depth+1)

	case *Call:
		fmt.Fprintf(sb, "%scall .%s%s\n", indent, x.Name, callSuffix(x.HasErr, x.Out))
		describe(sb, x.Recv, depth+1)
		for _, a := range x.Args {
			describe(sb, a, depth+1)
		}

	case *CallFunc:
		fmt.Fprintf(sb, "%scall %s%s\n", indent, funcName(x.Fn), callSuffix(x.HasErr, x.Out))
		for _, a := range x.Args {
			describe(sb, a, depth+1)
		}

	case *New:
		fmt.Fprintf(sb, "%snew %s\n", indent, typeName(x.T))

	case *MakeSlice:
		fmt.Fprintf(sb, "%smake %s cap\n", indent, typeName(x.T))
		describe(sb, x.Cap, depth+1)

	case *MakeMap:
		fmt.Fprintf(sb, "%smake %s size\n", indent, typeName(x.T))
		describe(sb, x.Cap, depth+1)

	default:
		fmt.Fprintf(sb, "%s<%s>\n", indent, n.Kind())
	}
}

func callSuffix(hasErr bool, out reflect.Type) string {
	var sb strings.Builder
	if out != nil {
		sb.WriteString(" -> ")
		sb.WriteString(typeName(out))
	}
	if hasErr {
		sb.WriteString(" !")
	}
	return sb.String()
}

func constRepr(v reflect.Value) string {
	if !v.IsValid() {
		return "<absent>"
	}
	if !v.CanInterface() {
		return v.String()
	}
	return strings.TrimSpace(spew.Sprintf("%#v", v.Interface()))
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<void>"
	}
	return t.String()
}

// funcName recovers the symbol behind a captured function value. Anonymous
// and method-value closures still get their runtime name.
func funcName(fn reflect.Value) string {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return "<func>"
	}
	pc := runtime.FuncForPC(fn.Pointer())
	if pc == nil {
		return "<func>"
	}
	name := pc.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
