// Package automaton implements a multi-pattern string matcher
// (Aho–Corasick). All patterns are matched against a text in a single
// left-to-right scan, with total cost proportional to the text length
// plus the number of matches, independent of the pattern-set size.
package automaton

import (
	"errors"
	"strings"
)

var (
	ErrEmptyPattern = errors.New("automaton: empty pattern")
	ErrNotBuilt     = errors.New("automaton: search called before build")
)

// Match is one occurrence of a registered pattern.
type Match[T any] struct {
	// Payload is the data registered alongside the pattern.
	Payload T
	// Position is the offset (in runes) of the match start within the
	// scanned text. For ASCII clinical text this equals the byte offset.
	Position int
	// Length is the pattern length in runes.
	Length int
}

type entry[T any] struct {
	runes   []rune
	payload T
}

type node struct {
	children map[rune]*node
	fail     *node
	// outputs holds entry indexes for every pattern ending at this node,
	// including those inherited along failure links.
	outputs []int
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

// Automaton matches a fixed set of case-insensitive literal patterns.
// AddPattern may be called any number of times before Build; adding a
// pattern after Build invalidates the automaton until the next Build.
// A built automaton is read-only and safe for concurrent Search calls.
type Automaton[T any] struct {
	entries []entry[T]
	root    *node
	built   bool
}

func New[T any]() *Automaton[T] {
	return &Automaton[T]{}
}

// AddPattern registers a pattern and its payload. Matching is
// case-insensitive: the pattern is lower-cased on insertion and text is
// lower-cased on search.
func (a *Automaton[T]) AddPattern(text string, payload T) error {
	normalized := strings.ToLower(text)
	if normalized == "" {
		return ErrEmptyPattern
	}
	a.entries = append(a.entries, entry[T]{runes: []rune(normalized), payload: payload})
	a.built = false
	return nil
}

// Len returns the number of registered patterns.
func (a *Automaton[T]) Len() int {
	return len(a.entries)
}

// Built reports whether the automaton is ready for Search.
func (a *Automaton[T]) Built() bool {
	return a.built
}

// Build constructs the trie and computes failure links breadth-first.
// Each node's failure link points to the longest proper suffix of its
// path that is also a trie path; output sets are inherited along
// failure links so a node reports every pattern ending in any suffix of
// its path. Calling Build again is harmless, just redundant work.
func (a *Automaton[T]) Build() {
	root := newNode()

	for i, e := range a.entries {
		cur := root
		for _, r := range e.runes {
			next, ok := cur.children[r]
			if !ok {
				next = newNode()
				cur.children[r] = next
			}
			cur = next
		}
		cur.outputs = append(cur.outputs, i)
	}

	// BFS: children of the root fail back to the root; deeper nodes
	// follow the parent's failure chain. Parents are finalized before
	// their children, so inheriting the fail node's outputs here is
	// transitive.
	queue := make([]*node, 0, len(root.children))
	for _, child := range root.children {
		child.fail = root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for r, child := range cur.children {
			f := cur.fail
			for {
				if next, ok := f.children[r]; ok {
					child.fail = next
					break
				}
				if f == root {
					child.fail = root
					break
				}
				f = f.fail
			}
			child.outputs = append(child.outputs, child.fail.outputs...)
			queue = append(queue, child)
		}
	}

	a.root = root
	a.built = true
}

// Search scans text once and returns every pattern occurrence,
// overlapping and nested matches included. It is an error to call
// Search before Build.
func (a *Automaton[T]) Search(text string) ([]Match[T], error) {
	if !a.built {
		return nil, ErrNotBuilt
	}

	var matches []Match[T]
	state := a.root

	i := 0
	for _, r := range strings.ToLower(text) {
		for {
			if next, ok := state.children[r]; ok {
				state = next
				break
			}
			if state == a.root {
				break
			}
			state = state.fail
		}

		for _, idx := range state.outputs {
			length := len(a.entries[idx].runes)
			matches = append(matches, Match[T]{
				Payload:  a.entries[idx].payload,
				Position: i - length + 1,
				Length:   length,
			})
		}
		i++
	}

	return matches, nil
}
