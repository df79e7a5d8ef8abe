// Package discover implements the Discoverer: locating the entry
// Makefile, following include/subdirectory edges with a lightweight line
// scan (not the full Parser), and producing a topologically ordered file
// list with cycle detection.
package discover

import (
	"regexp"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
)

var entryNames = []string{"Makefile", "makefile", "GNUmakefile"}

var includeRe = regexp.MustCompile(`^\s*(-?include|sinclude)\s+(.+?)\s*$`)
var subdirRe = regexp.MustCompile(`\$\(MAKE\)\s+.*-C\s+(\S+)`)

// FileNode is one member of the discovered include graph.
type FileNode struct {
	AbsPath      string
	Content      string
	IncludedFrom string // absolute path of the including file, "" for the entry
}

// Discoverer resolves the entry file and walks the include graph.
type Discoverer struct {
	fs   fsys.Boundary
	sink *diag.Sink
}

// New creates a Discoverer that reads through fs and reports through sink.
func New(fs fsys.Boundary, sink *diag.Sink) *Discoverer {
	return &Discoverer{fs: fs, sink: sink}
}

// ResolveEntry finds the entry Makefile: entryArg if non-empty, else the
// first of Makefile/makefile/GNUmakefile present in sourceDir.
func (d *Discoverer) ResolveEntry(sourceDir, entryArg string) (string, bool) {
	if entryArg != "" {
		p := d.fs.Join(sourceDir, entryArg)
		if d.fs.Exists(p) {
			return p, true
		}
		d.sink.Addf(diag.Error, "DISCOVERY_ENTRY_MISSING", "entry file not found: "+entryArg, diag.Location{Path: p}, "discover")
		return "", false
	}
	for _, name := range entryNames {
		p := d.fs.Join(sourceDir, name)
		if d.fs.Exists(p) {
			return p, true
		}
	}
	d.sink.Addf(diag.Error, "DISCOVERY_ENTRY_MISSING", "no Makefile, makefile, or GNUmakefile found in "+sourceDir, diag.Location{Path: sourceDir}, "discover")
	return "", false
}

const color_white, color_gray, color_black = 0, 1, 2

// Discover walks the include/subdirectory graph starting at entry,
// returning files in parent-before-child (topological) order. On any
// cycle it records DISCOVERY_CYCLE and returns without materializing
// content, per the "skip collect_contents entirely on cycle" behavior.
func (d *Discoverer) Discover(entryAbs string) ([]FileNode, bool) {
	color := map[string]int{}
	var stack []string
	var order []string
	ok := d.visit(entryAbs, "", color, &stack, &order)
	if !ok {
		return nil, false
	}
	order = dedupPreserveOrder(order)
	var nodes []FileNode
	included := map[string]string{}
	d.recordEdges(entryAbs, "", included, map[string]bool{})
	for _, p := range order {
		content, err := d.fs.ReadFile(p)
		if err != nil {
			d.sink.Addf(diag.Error, "FS_READ", "failed reading "+p+": "+err.Error(), diag.Location{Path: p}, "discover")
			continue
		}
		nodes = append(nodes, FileNode{AbsPath: p, Content: content, IncludedFrom: included[p]})
	}
	return nodes, true
}

func (d *Discoverer) recordEdges(path, from string, included map[string]string, visited map[string]bool) {
	if visited[path] {
		return
	}
	visited[path] = true
	if from != "" {
		if _, exists := included[path]; !exists {
			included[path] = from
		}
	}
	content, err := d.fs.ReadFile(path)
	if err != nil {
		return
	}
	for _, edge := range d.scanEdges(path, content) {
		d.recordEdges(edge.path, path, included, visited)
	}
}

func dedupPreserveOrder(paths []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

type edge struct {
	path     string
	optional bool
}

// scanEdges performs the lightweight line scan for include and
// "$(MAKE) -C dir" recipe-line recursion, per the Discoverer's contract
// that the full Parser is not used here.
func (d *Discoverer) scanEdges(fromAbs, content string) []edge {
	dir := d.fs.Dir(fromAbs)
	var edges []edge
	for _, line := range strings.Split(content, "\n") {
		if m := includeRe.FindStringSubmatch(line); m != nil {
			optional := m[1] != "include"
			for _, tok := range strings.Fields(m[2]) {
				abs, err := d.fs.AbsPosix(d.fs.Join(dir, tok))
				if err != nil {
					continue
				}
				edges = append(edges, edge{path: abs, optional: optional})
			}
			continue
		}
		if m := subdirRe.FindStringSubmatch(line); m != nil {
			subdir := m[1]
			found := false
			for _, name := range entryNames {
				abs, err := d.fs.AbsPosix(d.fs.Join(dir, subdir, name))
				if err != nil {
					continue
				}
				if d.fs.Exists(abs) {
					edges = append(edges, edge{path: abs, optional: false})
					found = true
					break
				}
			}
			if !found {
				d.sink.Addf(diag.Warn, "DISCOVERY_SUBDIR_MISSING", "$(MAKE) -C "+subdir+" has no recognizable Makefile entry", diag.Location{Path: fromAbs}, "discover")
			}
		}
	}
	return edges
}

// visit is an iterative-in-spirit (recursive implementation, small depth
// expected) DFS with gray/black coloring that records the full back-edge
// path when a cycle closes.
func (d *Discoverer) visit(path, from string, color map[string]int, stack *[]string, order *[]string) bool {
	switch color[path] {
	case color_black:
		return true
	case color_gray:
		cyclePath := append(append([]string{}, *stack...), path)
		d.sink.Addf(diag.Error, "DISCOVERY_CYCLE", "include cycle: "+strings.Join(cyclePath, " -> "), diag.Location{Path: path}, "discover")
		return false
	}
	color[path] = color_gray
	*stack = append(*stack, path)
	*order = append(*order, path) // parents before children

	content, err := d.fs.ReadFile(path)
	if err != nil {
		d.sink.Addf(diag.Error, "FS_READ", "failed reading "+path+": "+err.Error(), diag.Location{Path: path}, "discover")
		*stack = (*stack)[:len(*stack)-1]
		color[path] = color_black
		return true
	}

	allOK := true
	for _, e := range d.scanEdges(path, content) {
		if !d.fs.Exists(e.path) {
			if e.optional {
				d.sink.Addf(diag.Warn, "DISCOVERY_INCLUDE_OPTIONAL_MISSING", "optional include not found: "+e.path, diag.Location{Path: path}, "discover")
			} else {
				d.sink.Addf(diag.Error, "DISCOVERY_ENTRY_MISSING", "include not found: "+e.path, diag.Location{Path: path}, "discover")
				allOK = false
			}
			continue
		}
		if !d.visit(e.path, path, color, stack, order) {
			allOK = false
		}
	}

	*stack = (*stack)[:len(*stack)-1]
	color[path] = color_black
	return allOK
}
