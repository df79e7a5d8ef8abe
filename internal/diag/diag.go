// Package diag implements the deduplicated, severity-ordered diagnostic
// sink that threads through every stage of the translation pipeline.
package diag

import "sort"

// Severity classifies how serious a diagnostic is.
type Severity int

const (
	Info Severity = iota
	Warn
	Error
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "ERROR"
	case Warn:
		return "WARN"
	default:
		return "INFO"
	}
}

// Location is a (path, line, column) triple. Column is 1-based; Line 0
// means "no specific line".
type Location struct {
	Path   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.Path == "" {
		return ""
	}
	if l.Line == 0 {
		return l.Path
	}
	if l.Column == 0 {
		return l.Path + ":" + itoa(l.Line)
	}
	return l.Path + ":" + itoa(l.Line) + ":" + itoa(l.Column)
}

func (l Location) IsZero() bool {
	return l.Path == "" && l.Line == 0 && l.Column == 0
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Diagnostic is one reported event. Equality for deduplication purposes is
// the 5-tuple (Severity, Code, Message, Location, Origin).
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
	Location Location
	Origin   string
}

type dedupeKey struct {
	severity Severity
	code     string
	message  string
	location Location
	origin   string
}

func (d Diagnostic) key() dedupeKey {
	return dedupeKey{d.Severity, d.Code, d.Message, d.Location, d.Origin}
}

// Sink is an append-only, deduplicating collector of diagnostics. It
// preserves insertion order and is passed by reference through every
// pipeline stage; it requires no locking because the pipeline runs
// single-threaded except for the explicitly documented parallel-parse
// extension, which scopes each worker to its own local Sink.
type Sink struct {
	items []Diagnostic
	seen  map[dedupeKey]struct{}
}

// NewSink creates an empty diagnostic sink.
func NewSink() *Sink {
	return &Sink{seen: make(map[dedupeKey]struct{})}
}

// Add records a diagnostic, silently dropping an exact duplicate of one
// already present.
func (s *Sink) Add(d Diagnostic) {
	k := d.key()
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = struct{}{}
	s.items = append(s.items, d)
}

// Addf is a convenience wrapper around Add.
func (s *Sink) Addf(severity Severity, code, message string, loc Location, origin string) {
	s.Add(Diagnostic{Severity: severity, Code: code, Message: message, Location: loc, Origin: origin})
}

// AnyError reports whether the sink holds at least one ERROR diagnostic.
func (s *Sink) AnyError() bool {
	for _, d := range s.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// All returns diagnostics in insertion order. The slice must not be mutated.
func (s *Sink) All() []Diagnostic {
	return s.items
}

// Len reports how many distinct diagnostics have been recorded.
func (s *Sink) Len() int {
	return len(s.items)
}

// Sorted returns a presentation-ordered copy: severity descending
// (ERROR, WARN, INFO), then code, then original insertion index.
func (s *Sink) Sorted() []Diagnostic {
	type indexed struct {
		d   Diagnostic
		idx int
	}
	tmp := make([]indexed, len(s.items))
	for i, d := range s.items {
		tmp[i] = indexed{d, i}
	}
	sort.SliceStable(tmp, func(i, j int) bool {
		if tmp[i].d.Severity != tmp[j].d.Severity {
			return tmp[i].d.Severity > tmp[j].d.Severity
		}
		if tmp[i].d.Code != tmp[j].d.Code {
			return tmp[i].d.Code < tmp[j].d.Code
		}
		return tmp[i].idx < tmp[j].idx
	})
	out := make([]Diagnostic, len(tmp))
	for i, t := range tmp {
		out[i] = t.d
	}
	return out
}

// ExitCode is 1 iff the sink contains at least one ERROR, 0 otherwise.
func (s *Sink) ExitCode() int {
	if s.AnyError() {
		return 1
	}
	return 0
}
