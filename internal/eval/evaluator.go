package eval

import (
	"path"
	"strconv"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/config"
	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
	"github.com/vinzenz/gmake2cmake/internal/makefile"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

var compilerPrefixes = map[string]bool{
	"cc": true, "gcc": true, "clang": true, "c++": true, "g++": true,
	"clang++": true, "cl": true, "as": true, "nasm": true,
}

var cppCompilers = map[string]bool{"g++": true, "clang++": true, "c++": true}
var asmCompilers = map[string]bool{"as": true, "nasm": true}

// FileNode is one discovered, parsed file contributed to evaluation.
type FileNode struct {
	Path string
	File *makefile.File
}

// Evaluator consumes the concatenated ordered node list across all
// discovered files and produces BuildFacts.
type Evaluator struct {
	env      *Env
	sink     *diag.Sink
	unknowns *unknown.Registry
	cfg      *config.Model
	fs       fsys.Boundary

	globals       *ProjectGlobals
	seenFirstRule bool
	seenCycles    map[string]bool
}

// New creates an Evaluator reporting through sink/unknowns, filtering
// filesystem-backed expansions (`$(wildcard)`) via fs and cfg.IgnorePaths.
func New(sink *diag.Sink, unknowns *unknown.Registry, cfg *config.Model, fs fsys.Boundary) *Evaluator {
	env := NewEnv()
	ev := &Evaluator{
		env:        env,
		sink:       sink,
		unknowns:   unknowns,
		cfg:        cfg,
		fs:         fs,
		globals:    NewProjectGlobals(),
		seenCycles: map[string]bool{},
	}
	env.SetCycleHook(ev.onRecursiveLoop)
	return ev
}

func (e *Evaluator) onRecursiveLoop(name string) {
	if e.seenCycles[name] {
		return
	}
	e.seenCycles[name] = true
	e.sink.Addf(diag.Error, "EVAL_RECURSIVE_LOOP", "recursive expansion loop on variable "+name, diag.Location{}, "eval")
}

func (e *Evaluator) wildcard(pattern string) []string {
	matches, err := e.fs.ListDir(e.fs.Dir(pattern))
	if err != nil {
		return nil
	}
	base := e.fs.Base(pattern)
	var out []string
	for _, m := range matches {
		ok, _ := path.Match(base, m)
		if !ok {
			continue
		}
		full := e.fs.Join(e.fs.Dir(pattern), m)
		if e.cfg != nil && e.cfg.IsIgnored(full) {
			continue
		}
		out = append(out, full)
	}
	return out
}

func (e *Evaluator) onUnsupportedFunc(file string, line int) UnsupportedFuncHook {
	return func(name, rawCall string) string {
		category := unknown.CategoryMakeFunction
		e.unknowns.Record(unknown.Construct{
			Category:        category,
			Location:        diag.Location{Path: file, Line: line},
			Raw:             rawCall,
			Normalized:      normalizeCall(rawCall),
			Impact:          unknown.Impact{Phase: unknown.PhaseEvaluate, Severity: diag.Warn},
			CMakeStatus:     unknown.StatusNotGenerated,
			SuggestedAction: unknown.ActionManualReview,
		})
		e.sink.Addf(diag.Warn, "EVAL_UNSUPPORTED_FUNC", "unsupported Make function "+name+" expanded to empty: "+rawCall, diag.Location{Path: file, Line: line}, "eval")
		return ""
	}
}

// normalizeCall turns "$(eval $(call DEFINE_RULE,foo))" into
// "eval(call(DEFINE_RULE, foo))", the best-effort structural summary
// required of unknown function-call constructs.
func normalizeCall(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$(")
	s = strings.TrimSuffix(s, ")")
	return normalizeCallInner(s)
}

func normalizeCallInner(s string) string {
	s = strings.TrimSpace(s)
	sp := strings.IndexAny(s, " \t")
	if sp < 0 {
		return s
	}
	name := s[:sp]
	rest := strings.TrimSpace(s[sp+1:])
	parts := splitTopLevelComma(rest)
	for i, p := range parts {
		parts[i] = normalizeArg(p)
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// normalizeArg normalizes one comma-separated argument: a nested function
// call ("$(fn args...)") is unwrapped and recursively normalized, while a
// bare variable reference ("$(t)") keeps its "$(...)" sigil untouched, per
// the "eval(call(DEFINE_RULE, $(t)))" worked example.
func normalizeArg(p string) string {
	p = strings.TrimSpace(p)
	inner, ok := unwrapNestedCall(p)
	if !ok {
		return p
	}
	return normalizeCallInner(inner)
}

// unwrapNestedCall reports whether p is entirely one "$(...)"/"${...}" span
// whose body looks like a function call (a name followed by whitespace),
// returning that body. A plain variable reference like "$(t)" has no
// whitespace in its body and is left wrapped.
func unwrapNestedCall(p string) (string, bool) {
	var inner string
	switch {
	case strings.HasPrefix(p, "$(") && strings.HasSuffix(p, ")"):
		inner = p[2 : len(p)-1]
	case strings.HasPrefix(p, "${") && strings.HasSuffix(p, "}"):
		inner = p[2 : len(p)-1]
	default:
		return "", false
	}
	if !strings.ContainsAny(inner, " \t") {
		return "", false
	}
	return inner, true
}

// Evaluate walks every file's statements in order, accumulating globals,
// evaluated rules, inferred compiles, and custom commands.
func (e *Evaluator) Evaluate(nodes []FileNode) *BuildFacts {
	var rules []EvaluatedRule
	var customs []CustomCommand

	for _, fn := range nodes {
		e.evalStmts(fn.File.Stmts, fn.Path, &rules)
	}

	facts := &BuildFacts{Globals: e.globals}
	for _, r := range rules {
		facts.Rules = append(facts.Rules, r)
		compiles, custom := e.inferFromRule(r)
		facts.InferredCompiles = append(facts.InferredCompiles, compiles...)
		if custom != nil {
			customs = append(customs, *custom)
		}
	}
	facts.CustomCommands = customs
	return facts
}

func (e *Evaluator) evalStmts(stmts []makefile.Node, file string, rules *[]EvaluatedRule) {
	for _, n := range stmts {
		switch node := n.(type) {
		case *makefile.VarAssign:
			e.evalAssign(node, file)
		case *makefile.Rule:
			e.evalRule(node, file, rules)
		case *makefile.Include:
			// Already fully resolved by the Discoverer; nothing to evaluate.
		case *makefile.Conditional:
			e.evalConditional(node, file, rules)
		case *makefile.SubdirRecurse:
			// Surfaced during discovery only.
		}
	}
}

func (e *Evaluator) evalAssign(va *makefile.VarAssign, file string) {
	e.env.Set(va.Name, va.Op, va.Value)
	isGlobal := e.isGlobalConfigFile(file) || !e.seenFirstRule
	if isGlobal {
		e.captureGlobal(va.Name, e.env.Get(va.Name), file)
	}
}

func (e *Evaluator) isGlobalConfigFile(file string) bool {
	base := path.Base(file)
	for _, n := range e.cfg.GlobalConfigFiles {
		if base == n {
			return true
		}
	}
	return false
}

func (e *Evaluator) captureGlobal(name, value, file string) {
	e.globals.Vars[name] = value
	e.globals.Sources = appendUnique(e.globals.Sources, file)

	bucket := flagBucketFor(name)
	for _, tok := range strings.Fields(value) {
		switch {
		case strings.HasPrefix(tok, "-I"):
			inc := strings.TrimPrefix(tok, "-I")
			if inc != "" {
				e.globals.Includes = appendUnique(e.globals.Includes, inc)
			}
		case strings.HasPrefix(tok, "-D"):
			def := strings.TrimPrefix(tok, "-D")
			if def != "" {
				e.globals.Defines = appendUnique(e.globals.Defines, def)
			}
		default:
			if bucket != "" && tok != "" {
				e.globals.addFlag(bucket, tok)
			}
		}
	}
	if looksLikeFeatureToggle(name) {
		e.globals.FeatureToggles[name] = coerceBool(value)
	}
}

func flagBucketFor(name string) FlagBucket {
	switch {
	case strings.HasSuffix(name, "CFLAGS") && !strings.HasSuffix(name, "CXXFLAGS"):
		return BucketC
	case strings.HasSuffix(name, "CXXFLAGS"), strings.HasSuffix(name, "CPPFLAGS"):
		return BucketCPP
	case strings.HasSuffix(name, "ASFLAGS"):
		return BucketASM
	case strings.HasSuffix(name, "LDFLAGS"), strings.HasSuffix(name, "LIBS"):
		return BucketLink
	case strings.HasSuffix(name, "FLAGS"):
		return BucketAll
	}
	return ""
}

func looksLikeFeatureToggle(name string) bool {
	upper := strings.ToUpper(name)
	return strings.HasPrefix(upper, "ENABLE_") || strings.HasPrefix(upper, "WITH_") ||
		strings.HasPrefix(upper, "USE_") || strings.HasSuffix(upper, "_ENABLED")
}

func coerceBool(v string) any {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "1", "yes", "true", "on":
		return true
	case "0", "no", "false", "off", "":
		return false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n != 0
	}
	return v
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func (e *Evaluator) evalRule(r *makefile.Rule, file string, rules *[]EvaluatedRule) {
	e.seenFirstRule = true
	hook := e.onUnsupportedFunc(file, r.Line)
	er := EvaluatedRule{
		IsPattern: r.IsPattern,
		File:      file,
		Line:      r.Line,
	}
	for _, t := range r.Targets {
		er.Targets = append(er.Targets, strings.Fields(e.env.ExpandFull(t, e.wildcard, hook))...)
	}
	for _, p := range r.Prereqs {
		er.Prereqs = append(er.Prereqs, strings.Fields(e.env.ExpandFull(p, e.wildcard, hook))...)
	}
	for _, p := range r.OrderOnlyPrereqs {
		er.OrderOnly = append(er.OrderOnly, strings.Fields(e.env.ExpandFull(p, e.wildcard, hook))...)
	}
	for _, line := range r.Recipe {
		er.Recipe = append(er.Recipe, e.expandRecipeLine(line, er, hook))
	}
	*rules = append(*rules, er)
}

// expandRecipeLine binds the automatic variables for this one line, in a
// dedicated scope so they never leak into the persistent environment.
func (e *Evaluator) expandRecipeLine(line string, r EvaluatedRule, hook UnsupportedFuncHook) string {
	defer e.env.ClearAuto()
	if len(r.Targets) > 0 {
		e.env.SetAuto("@", r.Targets[0])
	}
	if len(r.Prereqs) > 0 {
		e.env.SetAuto("<", r.Prereqs[0])
	}
	e.env.SetAuto("^", strings.Join(dedupOrdered(r.Prereqs), " "))
	e.env.SetAuto("?", strings.Join(dedupOrdered(r.Prereqs), " ")) // no real timestamps; approximate as all prerequisites
	e.env.SetAuto("+", strings.Join(r.Prereqs, " "))
	if r.IsPattern && len(r.Targets) > 0 {
		e.env.SetAuto("*", patternStem(r.Targets[0]))
	}
	return e.env.ExpandFull(line, e.wildcard, hook)
}

func dedupOrdered(list []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range list {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func patternStem(target string) string {
	idx := strings.Index(target, "%")
	if idx < 0 {
		return ""
	}
	return target[:idx]
}

func (e *Evaluator) evalConditional(c *makefile.Conditional, file string, rules *[]EvaluatedRule) {
	for _, branch := range c.Branches {
		taken, indeterminate := e.evalBranch(branch, file)
		if indeterminate {
			e.unknowns.Record(unknown.Construct{
				Category:        unknown.CategoryConditionalLogic,
				Location:        diag.Location{Path: file, Line: c.Line},
				Raw:             conditionalRaw(branch),
				Impact:          unknown.Impact{Phase: unknown.PhaseEvaluate, Severity: diag.Warn},
				CMakeStatus:     unknown.StatusNotGenerated,
				SuggestedAction: unknown.ActionManualReview,
			})
			return
		}
		if taken {
			e.env.Push()
			e.evalStmts(branch.Body, file, rules)
			e.env.Pop()
			return
		}
	}
	if c.ElseBody != nil {
		e.env.Push()
		e.evalStmts(c.ElseBody, file, rules)
		e.env.Pop()
	}
}

func conditionalRaw(b makefile.CondBranch) string {
	return strings.Join(b.Args, ",")
}

// evalBranch returns (taken, indeterminate).
func (e *Evaluator) evalBranch(b makefile.CondBranch, file string) (bool, bool) {
	switch b.Op {
	case makefile.CondIfeq, makefile.CondIfneq:
		if len(b.Args) != 2 {
			return false, true
		}
		left := strings.TrimSpace(e.env.Expand(b.Args[0]))
		right := strings.TrimSpace(e.env.Expand(b.Args[1]))
		eq := left == right
		if b.Op == makefile.CondIfneq {
			return !eq, false
		}
		return eq, false
	case makefile.CondIfdef:
		if len(b.Args) != 1 {
			return false, true
		}
		return e.env.IsDefined(strings.TrimSpace(b.Args[0])), false
	case makefile.CondIfndef:
		if len(b.Args) != 1 {
			return false, true
		}
		return !e.env.IsDefined(strings.TrimSpace(b.Args[0])), false
	}
	return false, true
}

// inferFromRule inspects each recipe line of an evaluated rule, producing
// zero or more InferredCompiles, or a CustomCommand when nothing in the
// recipe resembles a compile.
func (e *Evaluator) inferFromRule(r EvaluatedRule) ([]InferredCompile, *CustomCommand) {
	var compiles []InferredCompile
	anyCompile := false
	for _, line := range r.Recipe {
		if comp, ok := e.inferCompileLine(line, r); ok {
			compiles = append(compiles, comp)
			anyCompile = true
		}
	}
	if anyCompile {
		return compiles, nil
	}
	if len(r.Recipe) == 0 {
		return nil, nil
	}
	return nil, &CustomCommand{Targets: r.Targets, Prereqs: r.Prereqs, Recipe: r.Recipe, File: r.File, Line: r.Line}
}

func (e *Evaluator) inferCompileLine(line string, r EvaluatedRule) (InferredCompile, bool) {
	return InferCompileLine(e.sink, line, r.File, r.Line)
}

// ParseToolInvocation recognizes a recipe line's leading tool-prefix
// invocation (the same compiler set InferCompileLine matches against) and
// returns the tool's basename plus the remaining tokens, with leading
// "@"/"-" recipe markers and "NAME=value" variable assignments stripped.
// The IR Builder reuses this to recognize link-step recipes whose "-o"
// output, unlike a compile line's, takes object/archive inputs rather than
// source files.
func ParseToolInvocation(line string) (tool string, rest []string, ok bool) {
	trimmed := strings.TrimLeft(line, "@-")
	tokens := strings.Fields(trimmed)
	tokens = skipLeadingVarAssignments(tokens)
	if len(tokens) == 0 {
		return "", nil, false
	}
	tool = path.Base(tokens[0])
	if !compilerPrefixes[tool] {
		return "", nil, false
	}
	return tool, tokens[1:], true
}

// InferCompileLine recognizes a single recipe line as a compile step by its
// tool prefix (gcc/clang/...), independent of any Evaluator instance, so the
// IR Builder can reuse it to parse recipe text it has instantiated from a
// symbolic pattern rule.
func InferCompileLine(sink *diag.Sink, line string, file string, lineNo int) (InferredCompile, bool) {
	tool, tokens, ok := ParseToolInvocation(line)
	if !ok {
		return InferredCompile{}, false
	}
	comp := InferredCompile{File: file, Line: lineNo}
	var sources []string
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		switch {
		case tok == "-I" && i+1 < len(tokens):
			comp.IncludeDirs = append(comp.IncludeDirs, tokens[i+1])
			i += 2
		case strings.HasPrefix(tok, "-I"):
			comp.IncludeDirs = append(comp.IncludeDirs, strings.TrimPrefix(tok, "-I"))
			i++
		case tok == "-D" && i+1 < len(tokens):
			comp.Defines = append(comp.Defines, tokens[i+1])
			i += 2
		case strings.HasPrefix(tok, "-D"):
			comp.Defines = append(comp.Defines, strings.TrimPrefix(tok, "-D"))
			i++
		case tok == "-o" && i+1 < len(tokens):
			comp.Output = tokens[i+1]
			i += 2
		case strings.HasPrefix(tok, "-"):
			comp.Flags = append(comp.Flags, tok)
			i++
		case looksLikeSourceFile(tok):
			sources = append(sources, fsys.ToPosix(tok))
			i++
		default:
			comp.Flags = append(comp.Flags, tok)
			i++
		}
	}
	if len(sources) == 0 {
		return InferredCompile{}, false
	}
	comp.Source = sources[0]
	comp.Language = inferLanguage(tool, comp.Source)
	if comp.Output == "" {
		sink.Addf(diag.Warn, "EVAL_NO_SOURCE", "compile recipe has no -o output: "+line, diag.Location{Path: file, Line: lineNo}, "eval")
	}
	return comp, true
}

// skipLeadingVarAssignments drops leading "NAME=value" tokens (e.g. a
// recipe line of the form "CC=gcc gcc -c foo.c -o foo.o").
func skipLeadingVarAssignments(tokens []string) []string {
	i := 0
	for i < len(tokens) && isVarAssignToken(tokens[i]) {
		i++
	}
	return tokens[i:]
}

func isVarAssignToken(t string) bool {
	eq := strings.Index(t, "=")
	if eq <= 0 {
		return false
	}
	name := t[:eq]
	for _, c := range name {
		if !(c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

func looksLikeSourceFile(tok string) bool {
	if strings.HasPrefix(tok, "-") {
		return false
	}
	ext := path.Ext(tok)
	switch ext {
	case ".c", ".cc", ".cpp", ".cxx", ".c++", ".s", ".S", ".asm":
		return true
	}
	return false
}

func inferLanguage(tool, source string) Language {
	if cppCompilers[tool] {
		return LangCPP
	}
	if asmCompilers[tool] {
		return LangASM
	}
	if tool == "cc" || tool == "gcc" || tool == "clang" || tool == "cl" {
		return languageFromExt(source)
	}
	return languageFromExt(source)
}

func languageFromExt(source string) Language {
	switch path.Ext(source) {
	case ".cc", ".cpp", ".cxx", ".c++":
		return LangCPP
	case ".c":
		return LangC
	case ".s", ".S", ".asm":
		return LangASM
	}
	return LangC
}
