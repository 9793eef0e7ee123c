// Package ahocorasick finds every keyword of a fixed set in one pass over a
// string.
//
// The automaton is compiled to a complete transition table over bytes, so
// matching is one table lookup per input byte with no failure-link walks.
// ASCII letters are folded to lower case on both sides; all other bytes,
// including UTF-8 continuation bytes, compare exactly.
//
// Used by the rule catalog for keyword rules over URLs and page content.
//
// Thread Safety: a Matcher is immutable after New and safe for concurrent
// use.
package ahocorasick

const alphabet = 256

// Matcher is a compiled keyword automaton.
type Matcher struct {
	delta    [][alphabet]int32 // delta[state][byte] is the next state
	accept   [][]int           // pattern indices ending in each state, suffix matches included
	patterns []string
}

// New compiles patterns. Empty patterns never match.
//
// Complexity:
//   - Construction: O(total pattern length * 256)
//   - Matching: O(text length + matches)
func New(patterns []string) *Matcher {
	m := &Matcher{patterns: patterns}
	m.newState()

	for i, p := range patterns {
		if p == "" {
			continue
		}
		s := int32(0)
		for j := 0; j < len(p); j++ {
			c := fold(p[j])
			next := m.delta[s][c]
			if next < 0 {
				next = m.newState()
				m.delta[s][c] = next
			}
			s = next
		}
		m.accept[s] = append(m.accept[s], i)
	}

	m.compile()
	return m
}

// newState appends a state with no outgoing edges.
func (m *Matcher) newState() int32 {
	var row [alphabet]int32
	for i := range row {
		row[i] = -1
	}
	m.delta = append(m.delta, row)
	m.accept = append(m.accept, nil)
	return int32(len(m.delta) - 1)
}

// compile turns the trie into a complete automaton. States are visited
// breadth first, so the failure state of every state is finished before
// the state itself.
func (m *Matcher) compile() {
	fail := make([]int32, len(m.delta))
	queue := make([]int32, 0, len(m.delta))

	for c := 0; c < alphabet; c++ {
		if next := m.delta[0][c]; next > 0 {
			queue = append(queue, next)
		} else {
			m.delta[0][c] = 0
		}
	}

	for head := 0; head < len(queue); head++ {
		s := queue[head]
		f := fail[s]
		if len(m.accept[f]) > 0 {
			m.accept[s] = append(m.accept[s], m.accept[f]...)
		}
		for c := 0; c < alphabet; c++ {
			next := m.delta[s][c]
			if next < 0 {
				m.delta[s][c] = m.delta[f][c]
				continue
			}
			fail[next] = m.delta[f][c]
			queue = append(queue, next)
		}
	}
}

// Match reports whether any pattern occurs in text.
func (m *Matcher) Match(text string) bool {
	if len(m.delta) == 1 {
		return false
	}
	s := int32(0)
	for i := 0; i < len(text); i++ {
		s = m.delta[s][fold(text[i])]
		if len(m.accept[s]) > 0 {
			return true
		}
	}
	return false
}

// MatchAll returns the indices of the patterns found in text, each once,
// in order of the end position of their first occurrence.
func (m *Matcher) MatchAll(text string) []int {
	if len(m.delta) == 1 {
		return nil
	}

	var found []int
	seen := make([]bool, len(m.patterns))
	s := int32(0)
	for i := 0; i < len(text); i++ {
		s = m.delta[s][fold(text[i])]
		for _, idx := range m.accept[s] {
			if !seen[idx] {
				seen[idx] = true
				found = append(found, idx)
			}
		}
	}
	return found
}

// MatchedPatterns is MatchAll returning the patterns as given to New.
func (m *Matcher) MatchedPatterns(text string) []string {
	indices := m.MatchAll(text)
	if len(indices) == 0 {
		return nil
	}
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = m.patterns[idx]
	}
	return out
}

func (m *Matcher) PatternCount() int {
	return len(m.patterns)
}

// States returns the automaton size, root included.
func (m *Matcher) States() int {
	return len(m.delta)
}

func fold(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
