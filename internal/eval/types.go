package eval

// Language identifies the inferred source language of a compile.
type Language string

const (
	LangC     Language = "c"
	LangCPP   Language = "cpp"
	LangASM   Language = "asm"
	LangOther Language = "other"
)

// EvaluatedRule is a Rule with every $(...) expansion resolved.
type EvaluatedRule struct {
	Targets   []string
	Prereqs   []string
	OrderOnly []string
	Recipe    []string
	IsPattern bool
	File      string
	Line      int
}

// InferredCompile is a compile recipe line recognized by its tool prefix.
type InferredCompile struct {
	Source      string
	Output      string
	Language    Language
	Flags       []string
	IncludeDirs []string
	Defines     []string
	File        string
	Line        int
}

// CustomCommand is a rule whose recipe could not be recognized as a
// compile, archive, or link step.
type CustomCommand struct {
	Targets []string
	Prereqs []string
	Recipe  []string
	File    string
	Line    int
}

// FlagBucket identifies which global flag bucket a token belongs to.
type FlagBucket string

const (
	BucketC    FlagBucket = "c"
	BucketCPP  FlagBucket = "cpp"
	BucketASM  FlagBucket = "asm"
	BucketLink FlagBucket = "link"
	BucketAll  FlagBucket = "all"
)

// ProjectGlobals accumulates project-wide configuration captured before
// the first rule, or from files the configuration names explicitly.
type ProjectGlobals struct {
	Vars           map[string]string
	Flags          map[FlagBucket][]string
	Defines        []string
	Includes       []string
	FeatureToggles map[string]any
	Sources        []string // origin files that contributed

	flagSeen map[FlagBucket]map[string]bool
}

// NewProjectGlobals creates an empty globals accumulator.
func NewProjectGlobals() *ProjectGlobals {
	return &ProjectGlobals{
		Vars:           map[string]string{},
		Flags:          map[FlagBucket][]string{},
		FeatureToggles: map[string]any{},
		flagSeen:       map[FlagBucket]map[string]bool{},
	}
}

func (g *ProjectGlobals) addFlag(bucket FlagBucket, flag string) {
	if g.flagSeen[bucket] == nil {
		g.flagSeen[bucket] = map[string]bool{}
	}
	if g.flagSeen[bucket][flag] {
		return
	}
	g.flagSeen[bucket][flag] = true
	g.Flags[bucket] = append(g.Flags[bucket], flag)
}

// HasFlag reports whether a flag is already recorded in any global bucket,
// used by the IR Builder to dedup target-level flags against globals.
func (g *ProjectGlobals) HasFlag(flag string) bool {
	for _, set := range g.flagSeen {
		if set[flag] {
			return true
		}
	}
	return false
}

// BuildFacts is the complete output of the Evaluator.
type BuildFacts struct {
	Rules            []EvaluatedRule
	InferredCompiles []InferredCompile
	CustomCommands   []CustomCommand
	Globals          *ProjectGlobals
}
