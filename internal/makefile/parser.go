package makefile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

// Parser turns a Makefile's text into a File. It does not expand
// variables, resolve include paths, or execute shell commands.
type Parser struct {
	sink     *diag.Sink
	unknowns *unknown.Registry
	origin   string
}

// New creates a Parser that reports problems to sink, records unrecognized
// constructs in unknowns, and tags diagnostics with origin (typically the
// file's path).
func New(sink *diag.Sink, unknowns *unknown.Registry, origin string) *Parser {
	return &Parser{sink: sink, unknowns: unknowns, origin: origin}
}

// Parse reads every line of r upfront, joins backslash continuations, and
// recursive-descends over the result.
func (p *Parser) Parse(r io.Reader, path string) (*File, error) {
	var rawLines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		rawLines = append(rawLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var lines []int // 1-based starting line number of each joined line
	var joined []string
	for i := 0; i < len(rawLines); i++ {
		start := i + 1
		line := rawLines[i]
		for strings.HasSuffix(line, "\\") && i+1 < len(rawLines) {
			line = line[:len(line)-1] + " " + rawLines[i+1]
			i++
		}
		lines = append(lines, start)
		joined = append(joined, line)
	}

	s := &state{lines: joined, lineNums: lines, path: path, sink: p.sink, unknowns: p.unknowns, origin: p.origin}
	stmts := s.parseBlock(false)
	return &File{Path: path, Stmts: stmts}, nil
}

type state struct {
	lines    []string
	lineNums []int
	pos      int
	path     string
	sink     *diag.Sink
	unknowns *unknown.Registry
	origin   string

	inRule  bool
	curRule *Rule
	curIdx  int // index of curRule within the stmts slice being built
}

func (s *state) loc(line int) diag.Location {
	return diag.Location{Path: s.path, Line: line}
}

func (s *state) peekRaw() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}
	return s.lines[s.pos], true
}

func (s *state) advance() (string, int) {
	line := s.lines[s.pos]
	num := s.lineNums[s.pos]
	s.pos++
	return line, num
}

// parseBlock consumes lines until EOF or, if inConditional, until an
// else/elif/endif at the current nesting level (left unconsumed).
func (s *state) parseBlock(inConditional bool) []Node {
	var stmts []Node
	s.inRule = false
	s.curRule = nil
	for {
		raw, ok := s.peekRaw()
		if !ok {
			break
		}
		stripped := stripComment(raw)
		trimmed := strings.TrimSpace(stripped)

		if trimmed == "" {
			s.pos++
			continue
		}

		if s.inRule && len(stripped) > 0 && stripped[0] == '\t' {
			_, _ = s.advance()
			s.curRule.Recipe = append(s.curRule.Recipe, strings.TrimPrefix(stripped, "\t"))
			continue
		}
		s.inRule = false
		s.curRule = nil

		if inConditional && isCondBoundary(trimmed) {
			break
		}

		node := s.parseLine(trimmed)
		if node != nil {
			stmts = append(stmts, node)
			if r, ok := node.(*Rule); ok {
				s.inRule = true
				s.curRule = r
			}
		}
	}
	return stmts
}

func isCondBoundary(trimmed string) bool {
	return trimmed == "else" || trimmed == "endif" ||
		strings.HasPrefix(trimmed, "else ") ||
		strings.HasPrefix(trimmed, "else if") ||
		strings.HasPrefix(trimmed, "endif ")
}

func stripComment(line string) string {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '#' {
			if i > 0 && line[i-1] == '\\' {
				b.WriteByte('#')
				continue
			}
			break
		}
		if c == '\\' && i+1 < len(line) && line[i+1] == '#' {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func (s *state) parseLine(trimmed string) Node {
	_, lineNum := s.advance()

	switch {
	case isCondKeyword(trimmed):
		return s.parseConditional(trimmed, lineNum)
	case strings.HasPrefix(trimmed, "include "):
		return &Include{Paths: splitFields(trimmed[len("include "):]), Optional: false, Line: lineNum}
	case strings.HasPrefix(trimmed, "-include "):
		return &Include{Paths: splitFields(trimmed[len("-include "):]), Optional: true, Line: lineNum}
	case strings.HasPrefix(trimmed, "sinclude "):
		return &Include{Paths: splitFields(trimmed[len("sinclude "):]), Optional: true, Line: lineNum}
	}

	if rule := tryParseRule(trimmed, lineNum); rule != nil {
		return rule
	}
	if va := tryParseAssign(trimmed, lineNum); va != nil {
		return va
	}

	s.unknowns.Record(unknown.Construct{
		Category:        unknown.CategoryMakeSyntax,
		Location:        s.loc(lineNum),
		Raw:             trimmed,
		Impact:          unknown.Impact{Phase: unknown.PhaseParse, Severity: diag.Warn},
		CMakeStatus:     unknown.StatusNotGenerated,
		SuggestedAction: unknown.ActionManualReview,
	})
	return nil
}

func isCondKeyword(trimmed string) bool {
	for _, kw := range []string{"ifeq", "ifneq", "ifdef", "ifndef"} {
		if trimmed == kw || strings.HasPrefix(trimmed, kw+" ") || strings.HasPrefix(trimmed, kw+"(") {
			return true
		}
	}
	return false
}

// parseConditional consumes an entire if/elif/else/endif block starting at
// the already-advanced-past opening line.
func (s *state) parseConditional(openLine string, lineNum int) Node {
	cond := &Conditional{Line: lineNum}
	op, args := parseCondHeader(openLine)
	body := s.parseBlock(true)
	cond.Branches = append(cond.Branches, CondBranch{Op: op, Args: args, Body: body})

	for {
		raw, ok := s.peekRaw()
		if !ok {
			s.sink.Addf(diag.Error, "PARSER_CONDITIONAL", "missing endif for conditional opened", s.loc(lineNum), s.origin)
			return cond
		}
		trimmed := strings.TrimSpace(stripComment(raw))
		if trimmed == "endif" || strings.HasPrefix(trimmed, "endif") {
			s.advance()
			return cond
		}
		if strings.HasPrefix(trimmed, "else if") || isCondKeyword(strings.TrimPrefix(trimmed, "else ")) {
			_, ln := s.advance()
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "else"))
			op, args := parseCondHeader(rest)
			b := s.parseBlock(true)
			cond.Branches = append(cond.Branches, CondBranch{Op: op, Args: args, Body: b})
			_ = ln
			continue
		}
		if trimmed == "else" {
			s.advance()
			cond.ElseBody = s.parseBlock(true)
			continue
		}
		s.sink.Addf(diag.Error, "PARSER_CONDITIONAL", "unmatched endif or malformed conditional frame", s.loc(lineNum), s.origin)
		return cond
	}
}

func parseCondHeader(line string) (CondOp, []string) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "ifeq"):
		return CondIfeq, parseCondArgs(strings.TrimSpace(line[len("ifeq"):]))
	case strings.HasPrefix(line, "ifneq"):
		return CondIfneq, parseCondArgs(strings.TrimSpace(line[len("ifneq"):]))
	case strings.HasPrefix(line, "ifdef"):
		return CondIfdef, []string{strings.TrimSpace(line[len("ifdef"):])}
	case strings.HasPrefix(line, "ifndef"):
		return CondIfndef, []string{strings.TrimSpace(line[len("ifndef"):])}
	}
	return CondIfeq, nil
}

// parseCondArgs handles both "(A,B)" and "A B" forms.
func parseCondArgs(s string) []string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		inner := s[1 : len(s)-1]
		parts := splitTopLevel(inner, ',')
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return splitQuoted(s)
}

func splitTopLevel(s string, sep byte) []string {
	depth := 0
	start := 0
	var out []string
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func splitQuoted(s string) []string {
	s = strings.Trim(s, " \t")
	fields := strings.Fields(s)
	var out []string
	for _, f := range fields {
		out = append(out, strings.Trim(f, `"'`))
	}
	return out
}

func splitFields(s string) []string {
	return strings.Fields(s)
}

// tryParseRule recognizes "targets: prereqs [| order-only-prereqs]". The
// ':' must not be part of a ':=' assignment and must not appear inside an
// unclosed $(...) expansion.
func tryParseRule(trimmed string, lineNum int) *Rule {
	idx := findRuleColon(trimmed)
	if idx < 0 {
		return nil
	}
	targetsPart := strings.TrimSpace(trimmed[:idx])
	rest := trimmed[idx+1:]
	if targetsPart == "" {
		return nil
	}
	targets := strings.Fields(targetsPart)
	if len(targets) == 0 {
		return nil
	}

	prereqPart := rest
	var order []string
	if pipeIdx := strings.Index(rest, "|"); pipeIdx >= 0 {
		prereqPart = rest[:pipeIdx]
		order = strings.Fields(rest[pipeIdx+1:])
	}
	prereqs := strings.Fields(prereqPart)

	isPattern := false
	for _, t := range targets {
		if strings.Contains(t, "%") {
			isPattern = true
			break
		}
	}

	return &Rule{
		Targets:          targets,
		Prereqs:          prereqs,
		OrderOnlyPrereqs: order,
		IsPattern:        isPattern,
		Line:             lineNum,
	}
}

// findRuleColon finds the index of the rule-defining ':' or -1. It must
// not be '::' in the assignment sense ':=' and must not sit inside an
// open $(...) or ${...} span.
func findRuleColon(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			if i > 0 && s[i-1] == '$' {
				depth++
			}
		case ')', '}':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth != 0 {
				continue
			}
			if i+1 < len(s) && s[i+1] == '=' {
				return -1
			}
			return i
		case '=':
			// a bare '=' before any ':' means this is not a rule line
			if depth == 0 {
				return -1
			}
		}
	}
	return -1
}

var assignOps = []struct {
	token string
	op    AssignOp
}{
	{":=", OpSimple},
	{"?=", OpConditional},
	{"+=", OpAppend},
	{"=", OpRecursive},
}

func tryParseAssign(trimmed string, lineNum int) *VarAssign {
	depth := 0
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		switch c {
		case '(', '{':
			depth++
		case ')', '}':
			if depth > 0 {
				depth--
			}
		}
		if depth != 0 {
			continue
		}
		for _, a := range assignOps {
			if strings.HasPrefix(trimmed[i:], a.token) {
				name := strings.TrimSpace(trimmed[:i])
				if name == "" || strings.ContainsAny(name, " \t") {
					return nil
				}
				value := strings.TrimSpace(trimmed[i+len(a.token):])
				return &VarAssign{Name: name, Op: a.op, Value: value, Line: lineNum}
			}
		}
	}
	return nil
}
