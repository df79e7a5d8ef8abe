package eval

import (
	"path"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/makefile"
)

// supportedFunctions lists the $(fn ...) calls the evaluator understands.
// Anything else becomes an UnknownConstruct in the caller.
var supportedFunctions = map[string]bool{
	"wildcard": true, "patsubst": true, "addprefix": true, "addsuffix": true,
	"notdir": true, "dir": true, "basename": true, "filter": true,
	"filter-out": true, "strip": true, "subst": true, "foreach": true, "if": true,
}

// WildcardFunc resolves $(wildcard ...) against the real filesystem; the
// Evaluator wires this to the filesystem boundary with ignore_paths
// filtering applied.
type WildcardFunc func(pattern string) []string

// UnsupportedFuncHook is invoked whenever expansion meets a $(fn ...) call
// whose fn is not in supportedFunctions, e.g. eval/call/shell/origin.
type UnsupportedFuncHook func(name, rawCall string) string

// Expand performs textual expansion of $(NAME)/${NAME} and recognized
// function calls, iterating until a pass produces no further change. A
// local (not shared) in-progress set detects self-referential cycles.
func (e *Env) Expand(s string) string {
	return e.expandWith(s, map[string]bool{}, nil, nil)
}

// ExpandFull additionally resolves $(wildcard) and reports unsupported
// function calls through the supplied hooks.
func (e *Env) ExpandFull(s string, wc WildcardFunc, onUnsupported UnsupportedFuncHook) string {
	return e.expandWith(s, map[string]bool{}, wc, onUnsupported)
}

func (e *Env) expandWith(s string, inProgress map[string]bool, wc WildcardFunc, onUnsupported UnsupportedFuncHook) string {
	for {
		next, changed := e.expandOnce(s, inProgress, wc, onUnsupported)
		if !changed {
			return next
		}
		s = next
	}
}

func (e *Env) expandOnce(s string, inProgress map[string]bool, wc WildcardFunc, onUnsupported UnsupportedFuncHook) (string, bool) {
	var b strings.Builder
	changed := false
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '$' && i+1 < len(s) {
			n := s[i+1]
			if n == '$' {
				b.WriteByte('$')
				i += 2
				changed = true
				continue
			}
			if n == '(' || n == '{' {
				close := byte(')')
				if n == '{' {
					close = '}'
				}
				end := matchingClose(s, i+2, byte(n), close)
				if end < 0 {
					b.WriteByte(c)
					i++
					continue
				}
				inner := s[i+2 : end]
				val := e.resolveExpansion(inner, inProgress, wc, onUnsupported)
				b.WriteString(val)
				i = end + 1
				changed = true
				continue
			}
			if isNameStart(n) {
				b.WriteString(e.getTracked(string(n), inProgress))
				i += 2
				changed = true
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), changed
}

func isNameStart(c byte) bool {
	return c == '@' || c == '<' || c == '^' || c == '?' || c == '*' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_'
}

// matchingClose finds the index of the balanced closing delimiter.
func matchingClose(s string, start int, open, close byte) int {
	depth := 1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '(':
			if open == '(' {
				depth++
			}
		case '{':
			if open == '{' {
				depth++
			}
		case ')':
			if close == ')' {
				depth--
				if depth == 0 {
					return i
				}
			}
		case '}':
			if close == '}' {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

// resolveExpansion handles the body of a $(...) or ${...}: either a bare
// variable name or a recognized function call.
func (e *Env) resolveExpansion(inner string, inProgress map[string]bool, wc WildcardFunc, onUnsupported UnsupportedFuncHook) string {
	fnName, args, isCall := splitFuncCall(inner)
	if !isCall {
		return e.getTracked(inner, inProgress)
	}
	if !supportedFunctions[fnName] {
		if onUnsupported != nil {
			return onUnsupported(fnName, "$("+inner+")")
		}
		return ""
	}
	if fnName == "foreach" {
		return e.callForeach(args, inProgress, wc, onUnsupported)
	}
	expandedArgs := make([]string, len(args))
	for i, a := range args {
		expandedArgs[i] = e.expandWith(a, inProgress, wc, onUnsupported)
	}
	return callFunction(fnName, expandedArgs, wc)
}

// splitFuncCall recognizes "name arg1,arg2" or "name arg1 arg2" forms used
// by GNU Make builtins (most take space-separated args after the name;
// patsubst/subst/filter take the pattern/replacement then a space-
// separated list). A bare variable reference never contains whitespace, so
// any inner text with a leading name token followed by whitespace is a
// function call — supported or not; the caller decides which.
func splitFuncCall(inner string) (name string, args []string, ok bool) {
	sp := strings.IndexAny(inner, " \t")
	if sp < 0 {
		return "", nil, false
	}
	candidate := inner[:sp]
	rest := strings.TrimSpace(inner[sp+1:])
	return candidate, splitTopLevelComma(rest), true
}

func splitTopLevelComma(s string) []string {
	depth := 0
	start := 0
	var out []string
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func callFunction(name string, args []string, wc WildcardFunc) string {
	switch name {
	case "wildcard":
		if wc == nil || len(args) == 0 {
			return ""
		}
		var all []string
		for _, pattern := range strings.Fields(args[0]) {
			all = append(all, wc(pattern)...)
		}
		return strings.Join(all, " ")
	case "patsubst":
		if len(args) < 3 {
			return ""
		}
		return patsubstJoin(args[0], args[1], args[2])
	case "addprefix":
		if len(args) < 2 {
			return ""
		}
		return mapJoin(args[1], func(s string) string { return args[0] + s })
	case "addsuffix":
		if len(args) < 2 {
			return ""
		}
		return mapJoin(args[1], func(s string) string { return s + args[0] })
	case "notdir":
		if len(args) < 1 {
			return ""
		}
		return mapJoin(args[0], path.Base)
	case "dir":
		if len(args) < 1 {
			return ""
		}
		return mapJoin(args[0], func(s string) string { return path.Dir(s) + "/" })
	case "basename":
		if len(args) < 1 {
			return ""
		}
		return mapJoin(args[0], stripExt)
	case "filter":
		if len(args) < 2 {
			return ""
		}
		return filterJoin(args[0], args[1], true)
	case "filter-out":
		if len(args) < 2 {
			return ""
		}
		return filterJoin(args[0], args[1], false)
	case "strip":
		if len(args) < 1 {
			return ""
		}
		return strings.Join(strings.Fields(args[0]), " ")
	case "subst":
		if len(args) < 3 {
			return ""
		}
		return strings.ReplaceAll(args[2], args[0], args[1])
	case "if":
		if len(args) < 1 {
			return ""
		}
		cond := strings.TrimSpace(args[0])
		if cond != "" {
			if len(args) > 1 {
				return args[1]
			}
			return ""
		}
		if len(args) > 2 {
			return args[2]
		}
		return ""
	}
	return ""
}

// callForeach implements $(foreach var,list,text): list is expanded once,
// then text is re-expanded for each word with var bound to that word in the
// current frame, restoring whatever var held beforehand.
func (e *Env) callForeach(args []string, inProgress map[string]bool, wc WildcardFunc, onUnsupported UnsupportedFuncHook) string {
	if len(args) < 3 {
		return ""
	}
	varName := strings.TrimSpace(args[0])
	list := e.expandWith(args[1], inProgress, wc, onUnsupported)
	top := e.top()
	orig, hadOrig := top.vars[varName]

	var out []string
	for _, w := range strings.Fields(list) {
		top.vars[varName] = binding{value: w, kind: makefile.OpSimple, bound: true}
		out = append(out, e.expandWith(args[2], inProgress, wc, onUnsupported))
	}

	if hadOrig {
		top.vars[varName] = orig
	} else {
		delete(top.vars, varName)
	}
	return strings.Join(out, " ")
}

func mapJoin(list string, f func(string) string) string {
	fields := strings.Fields(list)
	for i, s := range fields {
		fields[i] = f(s)
	}
	return strings.Join(fields, " ")
}

func stripExt(s string) string {
	ext := path.Ext(s)
	return strings.TrimSuffix(s, ext)
}

func patsubstJoin(pattern, repl, list string) string {
	fields := strings.Fields(list)
	for i, s := range fields {
		fields[i] = patsubstOne(pattern, repl, s)
	}
	return strings.Join(fields, " ")
}

func patsubstOne(pattern, repl, s string) string {
	pi := strings.Index(pattern, "%")
	if pi < 0 {
		if s == pattern {
			return repl
		}
		return s
	}
	prefix, suffix := pattern[:pi], pattern[pi+1:]
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
		return s
	}
	stem := s[len(prefix) : len(s)-len(suffix)]
	ri := strings.Index(repl, "%")
	if ri < 0 {
		return repl
	}
	return repl[:ri] + stem + repl[ri+1:]
}

func filterJoin(patterns, list string, keep bool) string {
	pats := strings.Fields(patterns)
	fields := strings.Fields(list)
	var out []string
	for _, s := range fields {
		matched := false
		for _, p := range pats {
			if patternMatch(p, s) {
				matched = true
				break
			}
		}
		if matched == keep {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}

func patternMatch(pattern, s string) bool {
	pi := strings.Index(pattern, "%")
	if pi < 0 {
		return pattern == s
	}
	prefix, suffix := pattern[:pi], pattern[pi+1:]
	return strings.HasPrefix(s, prefix) && strings.HasSuffix(s, suffix) && len(s) >= len(prefix)+len(suffix)
}

// getTracked resolves a variable name with cycle detection local to this
// expansion call.
func (e *Env) getTracked(name string, inProgress map[string]bool) string {
	if inProgress[name] {
		if e.cycleHook != nil {
			e.cycleHook(name)
		}
		return ""
	}
	b, ok := e.lookup(name)
	if !ok {
		return ""
	}
	if b.kind == makefile.OpSimple {
		return b.value
	}
	inProgress[name] = true
	val := e.expandWith(b.value, inProgress, nil, nil)
	delete(inProgress, name)
	return val
}

// Get resolves a variable's current value: simple/bound values return
// immediately, recursive values expand their stored text on every call.
func (e *Env) Get(name string) string {
	b, ok := e.lookup(name)
	if !ok {
		return ""
	}
	if b.kind == makefile.OpSimple {
		return b.value
	}
	return e.Expand(b.value)
}
