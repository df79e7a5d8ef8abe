package ir

import (
	"path"
	"sort"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/config"
	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/eval"
)

// Builder transforms BuildFacts + configuration into a Project.
type Builder struct {
	cfg  *config.Model
	sink *diag.Sink

	warnedUnmapped map[string]bool
}

// New creates a Builder.
func New(cfg *config.Model, sink *diag.Sink) *Builder {
	return &Builder{cfg: cfg, sink: sink, warnedUnmapped: map[string]bool{}}
}

// Build runs the full IR construction: grouping, naming, role
// classification, configuration application, dependency attachment,
// ordering, and validation.
func (b *Builder) Build(facts *eval.BuildFacts) *Project {
	namespace := b.cfg.Namespace
	proj := &Project{
		Name:      b.cfg.ProjectName,
		Version:   b.cfg.Version,
		Namespace: namespace,
	}
	facts.InferredCompiles = append(facts.InferredCompiles, b.instantiatePatternRules(facts)...)
	proj.Languages = b.languages(facts)
	proj.GlobalConfig = b.buildGlobalConfig(facts.Globals)
	proj.Targets = b.buildTargets(facts, namespace)
	proj.PackagingEnabled = b.cfg.PackagingEnabled
	b.validate(proj)
	return proj
}

// instantiatePatternRules implements the deferred pattern-rule instantiation
// the Evaluator leaves symbolic: a pattern rule's single target/prerequisite
// pair ("%.o: %.c") is matched against every concrete target and prerequisite
// named by a non-pattern rule elsewhere in the graph, and one InferredCompile is
// produced per matching concrete source. The recipe text is already
// expanded with $@/$< bound to the literal pattern placeholders, so
// substituting the placeholders with the instantiated stem yields a concrete
// recipe line that InferCompileLine can parse the same way as any other.
func (b *Builder) instantiatePatternRules(facts *eval.BuildFacts) []eval.InferredCompile {
	var patterns []eval.EvaluatedRule
	concrete := map[string]bool{}
	for _, r := range facts.Rules {
		if r.IsPattern && len(r.Targets) == 1 && len(r.Prereqs) >= 1 &&
			strings.Contains(r.Targets[0], "%") && strings.Contains(r.Prereqs[0], "%") {
			patterns = append(patterns, r)
			continue
		}
		for _, t := range r.Targets {
			concrete[t] = true
		}
		for _, p := range r.Prereqs {
			concrete[p] = true
		}
	}

	var out []eval.InferredCompile
	var candidates []string
	for c := range concrete {
		candidates = append(candidates, c)
	}
	sort.Strings(candidates)

	for _, p := range patterns {
		targetPattern := p.Targets[0]
		prereqPattern := p.Prereqs[0]
		matched := false
		for _, candidate := range candidates {
			stem, ok := matchPatternStem(targetPattern, candidate)
			if !ok {
				continue
			}
			source := substitutePattern(prereqPattern, stem)
			for _, line := range p.Recipe {
				concreteLine := strings.ReplaceAll(line, targetPattern, candidate)
				concreteLine = strings.ReplaceAll(concreteLine, prereqPattern, source)
				if comp, ok := eval.InferCompileLine(b.sink, concreteLine, p.File, p.Line); ok {
					out = append(out, comp)
					matched = true
				}
			}
		}
		if !matched {
			b.sink.Addf(diag.Warn, "IR_NO_PATTERN_MATCHES", "pattern rule "+targetPattern+": "+prereqPattern+" matched no concrete prerequisite", diag.Location{Path: p.File, Line: p.Line}, "ir")
		}
	}
	return out
}

// matchPatternStem extracts the stem that makes prefix+stem+suffix equal
// candidate, where pattern is prefix%suffix.
func matchPatternStem(pattern, candidate string) (string, bool) {
	i := strings.Index(pattern, "%")
	if i < 0 {
		return "", false
	}
	prefix, suffix := pattern[:i], pattern[i+1:]
	if !strings.HasPrefix(candidate, prefix) || !strings.HasSuffix(candidate, suffix) {
		return "", false
	}
	if len(candidate) < len(prefix)+len(suffix) {
		return "", false
	}
	return candidate[len(prefix) : len(candidate)-len(suffix)], true
}

func substitutePattern(pattern, stem string) string {
	i := strings.Index(pattern, "%")
	if i < 0 {
		return pattern
	}
	return pattern[:i] + stem + pattern[i+1:]
}

func (b *Builder) languages(facts *eval.BuildFacts) []string {
	if len(b.cfg.Languages) > 0 {
		return b.cfg.Languages
	}
	set := map[string]bool{}
	for _, c := range facts.InferredCompiles {
		set[languageToCMake(string(c.Language))] = true
	}
	if len(set) == 0 {
		return []string{"C"}
	}
	var out []string
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func languageToCMake(l string) string {
	switch l {
	case "cpp":
		return "CXX"
	case "asm":
		return "ASM"
	case "c":
		return "C"
	}
	return "C"
}

func (b *Builder) buildGlobalConfig(g *eval.ProjectGlobals) GlobalConfig {
	gc := GlobalConfig{
		Vars:           map[string]string{},
		Flags:          map[string][]string{},
		FeatureToggles: map[string]any{},
	}
	for k, v := range g.Vars {
		gc.Vars[k] = v
	}
	for bucket, flags := range g.Flags {
		gc.Flags[string(bucket)] = append([]string{}, flags...)
	}
	gc.Defines = append([]string{}, g.Defines...)
	gc.Includes = append([]string{}, g.Includes...)
	for k, v := range g.FeatureToggles {
		gc.FeatureToggles[k] = v
	}
	gc.Sources = append([]string{}, g.Sources...)
	return gc
}

// linkStep is a recognized CustomCommand that links one or more
// already-inferred compile outputs (object files, archives) into a final
// artifact, rather than a genuinely opaque recipe.
type linkStep struct {
	output string
	inputs []string
}

func (b *Builder) buildTargets(facts *eval.BuildFacts, namespace string) []*Target {
	grouped := map[string][]eval.InferredCompile{}
	var order []string
	for _, c := range facts.InferredCompiles {
		key := c.Output
		if key == "" {
			key = c.Source
		}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], c)
	}

	objectOutputs := map[string]bool{}
	for key := range grouped {
		objectOutputs[key] = true
	}

	var linkSteps []linkStep
	consumed := map[string]bool{}
	for _, cc := range facts.CustomCommands {
		output, inputs, ok := recognizeLinkStep(cc, objectOutputs)
		if !ok {
			continue
		}
		linkSteps = append(linkSteps, linkStep{output: output, inputs: inputs})
		for _, in := range inputs {
			consumed[in] = true
		}
	}

	artifactMap := map[string]*Target{}
	var targets []*Target

	for _, artifact := range order {
		if consumed[artifact] {
			continue
		}
		tgt := b.buildTargetFromCompiles(artifact, grouped[artifact], namespace, facts.Globals)
		artifactMap[artifact] = tgt
		targets = append(targets, tgt)
	}

	for _, ls := range linkSteps {
		var compiles []eval.InferredCompile
		for _, in := range ls.inputs {
			compiles = append(compiles, grouped[in]...)
		}
		tgt := b.buildTargetFromCompiles(ls.output, compiles, namespace, facts.Globals)
		artifactMap[ls.output] = tgt
		targets = append(targets, tgt)
	}

	b.attachDependencies(targets, facts.Rules, artifactMap, namespace, consumed)
	b.attachLinkLibraries(targets, facts.Rules, artifactMap, namespace)

	sort.Slice(targets, func(i, j int) bool { return targets[i].PhysicalName < targets[j].PhysicalName })
	return targets
}

// recognizeLinkStep inspects a CustomCommand's recipe for a tool-prefix
// invocation (the same set InferCompileLine matches) whose non-flag tokens
// are object/archive outputs already produced by an InferredCompile rather
// than source files — the canonical "gcc -o app main.o" link line that
// InferCompileLine rejects for lack of a source token. Recognizing it lets
// the two-step compile-then-link Makefile pattern collapse into the single
// executable/library target CMake expects, instead of leaving an orphaned
// object_library target and silently dropping the executable.
func recognizeLinkStep(cc eval.CustomCommand, objectOutputs map[string]bool) (output string, inputs []string, ok bool) {
	for _, line := range cc.Recipe {
		_, tokens, isTool := eval.ParseToolInvocation(line)
		if !isTool {
			continue
		}
		var out string
		var in []string
		i := 0
		for i < len(tokens) {
			tok := tokens[i]
			switch {
			case tok == "-o" && i+1 < len(tokens):
				out = tokens[i+1]
				i += 2
			case strings.HasPrefix(tok, "-"):
				i++
			case objectOutputs[tok]:
				in = append(in, tok)
				i++
			default:
				i++
			}
		}
		if out != "" && len(in) > 0 {
			return out, in, true
		}
	}
	return "", nil, false
}

// buildTargetFromCompiles constructs one Target from the set of compiles
// that produce its artifact — either the compiles grouped by output
// artifact directly, or (for a promoted link step) the union of compiles
// whose object/archive outputs the link recipe consumes.
func (b *Builder) buildTargetFromCompiles(artifact string, compiles []eval.InferredCompile, namespace string, globals *eval.ProjectGlobals) *Target {
	ttype := inferType(artifact)
	stem := stemOf(artifact)
	physicalName := sanitizeTargetName(stem)
	classification := b.classify(stem)
	var alias string
	if classification == LinkInternal && (ttype == TypeStaticLibrary || ttype == TypeSharedLibrary) {
		alias = namespace + "::" + stem
	}

	sources := mergeSourceFiles(compiles)

	var compileOptions []string
	for _, c := range compiles {
		mapped, unmapped := b.cfg.ApplyFlagMapping(c.Flags)
		compileOptions = append(compileOptions, mapped...)
		for _, u := range unmapped {
			if !b.warnedUnmapped[u] {
				b.warnedUnmapped[u] = true
				b.sink.Addf(diag.Warn, "IR_UNMAPPED_FLAG", "unmapped flag: "+u, diag.Location{}, "ir")
			}
		}
	}
	compileOptions = dedupSorted(compileOptions)

	var includeDirs, defines []string
	for _, c := range compiles {
		includeDirs = append(includeDirs, c.IncludeDirs...)
		defines = append(defines, c.Defines...)
	}
	includeDirs = dedupSorted(includeDirs)
	defines = dedupSorted(defines)

	tgt := &Target{
		Artifact:       artifact,
		PhysicalName:   physicalName,
		Alias:          alias,
		Type:           ttype,
		Sources:        sources,
		IncludeDirs:    includeDirs,
		Defines:        defines,
		CompileOptions: compileOptions,
		Visibility:     VisibilityPrivate,
	}

	if tm, ok := b.cfg.TargetMappings[stem]; ok {
		applyTargetMapping(tgt, tm)
	}

	b.removeFlagsDuplicatedInGlobals(tgt, globals)
	return tgt
}

// removeFlagsDuplicatedInGlobals strips a flag already present in a
// project-global bucket from the target's own options and reports it once.
func (b *Builder) removeFlagsDuplicatedInGlobals(tgt *Target, globals *eval.ProjectGlobals) {
	if globals == nil {
		return
	}
	var kept []string
	removedAny := false
	for _, f := range tgt.CompileOptions {
		if globals.HasFlag(f) {
			removedAny = true
			continue
		}
		kept = append(kept, f)
	}
	tgt.CompileOptions = kept
	if removedAny {
		b.sink.Addf(diag.Info, "IR_UNMAPPED_FLAG", "removed project-global flag duplicated on target "+tgt.PhysicalName, diag.Location{}, "ir")
	}
}

func inferType(artifact string) TargetType {
	switch path.Ext(artifact) {
	case ".a", ".lib":
		return TypeStaticLibrary
	case ".so", ".dylib", ".dll":
		return TypeSharedLibrary
	case ".o", ".obj":
		return TypeObjectLibrary
	}
	return TypeExecutable
}

func stemOf(artifact string) string {
	base := path.Base(artifact)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = strings.TrimPrefix(stem, "lib")
	return stem
}

// sanitizeTargetName produces a target's physical name: the sanitized
// artifact stem, with the "lib" prefix already stripped by stemOf. The
// namespace is never part of the physical name — it appears only in the
// alias (<Namespace>::Logical), per the Physical name / Alias distinction.
func sanitizeTargetName(stem string) string {
	return config.SanitizeIdentifier(stem)
}

func (b *Builder) classify(stem string) LinkKind {
	if lo, ok := b.cfg.ClassifyLinkOverride(stem); ok {
		switch lo.Classification {
		case "internal":
			return LinkInternal
		case "external":
			return LinkExternal
		case "imported":
			return LinkImported
		}
	}
	return LinkInternal
}

func mergeSourceFiles(compiles []eval.InferredCompile) []SourceFile {
	seen := map[string]*SourceFile{}
	var order []string
	for _, c := range compiles {
		p := c.Source
		if existing, ok := seen[p]; ok {
			existing.Flags = dedupSorted(append(existing.Flags, c.Flags...))
			continue
		}
		sf := &SourceFile{Path: p, Language: string(c.Language), Flags: dedupSorted(append([]string{}, c.Flags...))}
		seen[p] = sf
		order = append(order, p)
	}
	sort.Strings(order)
	var out []SourceFile
	for _, p := range order {
		out = append(out, *seen[p])
	}
	return out
}

func dedupSorted(list []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range list {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func applyTargetMapping(tgt *Target, tm config.TargetMapping) {
	if tm.DestName != "" {
		tgt.PhysicalName = tm.DestName
	}
	if tm.TypeOverride != "" {
		tgt.Type = TargetType(tm.TypeOverride)
	}
	tgt.IncludeDirs = dedupSorted(append(tgt.IncludeDirs, tm.IncludeDirs...))
	tgt.Defines = dedupSorted(append(tgt.Defines, tm.Defines...))
	tgt.CompileOptions = dedupSorted(append(tgt.CompileOptions, tm.Options...))
	for _, lib := range tm.LinkLibs {
		tgt.LinkLibraries = append(tgt.LinkLibraries, LinkItem{Name: lib, Kind: LinkExternal})
	}
	if tm.Visibility != "" {
		tgt.Visibility = Visibility(tm.Visibility)
	}
}

func (b *Builder) nameLookup(targets []*Target) map[string]*Target {
	lookup := map[string]*Target{}
	for _, t := range targets {
		lookup[t.PhysicalName] = t
		lookup[path.Base(t.Artifact)] = t
		lookup[stemOf(t.Artifact)] = t
		if t.Alias != "" {
			lookup[t.Alias] = t
		}
	}
	return lookup
}

func (b *Builder) attachDependencies(targets []*Target, rules []eval.EvaluatedRule, artifactMap map[string]*Target, namespace string, consumed map[string]bool) {
	lookup := b.nameLookup(targets)
	for _, tgt := range targets {
		var deps []string
		seen := map[string]bool{}
		for _, rule := range rules {
			if !ruleMatchesTarget(rule, tgt) {
				continue
			}
			for _, prereq := range rule.Prereqs {
				if consumed[prereq] || consumed[path.Base(prereq)] {
					// Already folded into this target's Sources by the
					// link-step promotion in buildTargets.
					continue
				}
				depTgt, ok := lookup[path.Base(prereq)]
				if !ok {
					depTgt, ok = lookup[stemOf(prereq)]
				}
				if !ok {
					b.sink.Addf(diag.Warn, "IR_UNKNOWN_DEP", "dependency does not resolve to a known target: "+prereq, diag.Location{}, "ir")
					if !seen[prereq] {
						seen[prereq] = true
						deps = append(deps, prereq)
					}
					continue
				}
				name := depTgt.PhysicalName
				if depTgt.Alias != "" {
					name = depTgt.Alias
				}
				if !seen[name] {
					seen[name] = true
					deps = append(deps, name)
				}
			}
		}
		sort.Strings(deps)
		tgt.Dependencies = deps
	}
}

func ruleMatchesTarget(rule eval.EvaluatedRule, tgt *Target) bool {
	names := map[string]bool{tgt.PhysicalName: true, path.Base(tgt.Artifact): true, stemOf(tgt.Artifact): true}
	for _, t := range rule.Targets {
		if names[t] || names[path.Base(t)] {
			return true
		}
	}
	return false
}

// attachLinkLibraries resolves "-lfoo"/bare-token link references on each
// target's compile recipe into classified LinkItems: internal-alias first,
// external second, imported third, each partition sorted lexicographically.
func (b *Builder) attachLinkLibraries(targets []*Target, rules []eval.EvaluatedRule, artifactMap map[string]*Target, namespace string) {
	lookup := b.nameLookup(targets)
	for _, tgt := range targets {
		refs := b.extractLinkRefs(tgt, rules)
		var internal, external, imported []string
		seen := map[string]bool{}
		for _, ref := range refs {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			if lo, ok := b.cfg.ClassifyLinkOverride(ref); ok {
				switch lo.Classification {
				case "internal":
					if t, ok2 := lookup[ref]; ok2 && t.Alias != "" {
						internal = append(internal, t.Alias)
					} else if lo.Alias != "" {
						internal = append(internal, lo.Alias)
					}
					continue
				case "imported":
					name := lo.ImportedTarget
					if name == "" {
						name = ref
					}
					imported = append(imported, name)
					continue
				default:
					external = append(external, ref)
					continue
				}
			}
			if t, ok := lookup[ref]; ok && t.Alias != "" {
				internal = append(internal, t.Alias)
				continue
			}
			if t, ok := lookup[ref]; ok {
				internal = append(internal, t.PhysicalName)
				continue
			}
			external = append(external, ref)
		}
		sort.Strings(internal)
		sort.Strings(external)
		sort.Strings(imported)
		var items []LinkItem
		for _, n := range internal {
			items = append(items, LinkItem{Name: n, Kind: LinkInternal})
		}
		for _, n := range external {
			items = append(items, LinkItem{Name: n, Kind: LinkExternal})
		}
		for _, n := range imported {
			items = append(items, LinkItem{Name: n, Kind: LinkImported})
		}
		tgt.LinkLibraries = append(tgt.LinkLibraries, items...)
	}
}

// extractLinkRefs scans a target's matching recipe lines for link-library
// references: "-lfoo" tokens, and per spec's link-classification case 3,
// bare identifier tokens following a recognized tool invocation ("m",
// "pthread") that carry no -l prefix at all.
func (b *Builder) extractLinkRefs(tgt *Target, rules []eval.EvaluatedRule) []string {
	var refs []string
	for _, rule := range rules {
		if !ruleMatchesTarget(rule, tgt) {
			continue
		}
		for _, line := range rule.Recipe {
			_, tokens, isTool := eval.ParseToolInvocation(line)
			if !isTool {
				continue
			}
			i := 0
			for i < len(tokens) {
				tok := tokens[i]
				switch {
				case strings.HasPrefix(tok, "-l") && len(tok) > 2:
					refs = append(refs, strings.TrimPrefix(tok, "-l"))
					i++
				case tok == "-o" && i+1 < len(tokens):
					i += 2
				case strings.HasPrefix(tok, "-"):
					i++
				case looksLikeBareLinkRef(tok, tgt):
					refs = append(refs, tok)
					i++
				default:
					i++
				}
			}
		}
	}
	return refs
}

// looksLikeBareLinkRef reports whether tok is a bare library name rather
// than a path or source/object file: no path separator, no extension, and
// not one of the target's own source basenames.
func looksLikeBareLinkRef(tok string, tgt *Target) bool {
	if tok == "" || strings.ContainsAny(tok, "/\\") || strings.Contains(tok, ".") {
		return false
	}
	for _, src := range tgt.Sources {
		if path.Base(src.Path) == tok {
			return false
		}
	}
	return true
}

// validate checks the finished target set for duplicate names and aliases.
func (b *Builder) validate(proj *Project) {
	names := map[string]bool{}
	aliases := map[string]bool{}
	for _, t := range proj.Targets {
		if names[t.PhysicalName] {
			b.sink.Addf(diag.Error, "IR_DUP_TARGET", "duplicate target name: "+t.PhysicalName, diag.Location{}, "ir")
		}
		names[t.PhysicalName] = true
		if t.Alias != "" {
			if aliases[t.Alias] {
				b.sink.Addf(diag.Error, "IR_DUP_ALIAS", "duplicate alias: "+t.Alias, diag.Location{}, "ir")
			}
			aliases[t.Alias] = true
		}
	}
}
