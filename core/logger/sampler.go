package logger

import (
	"strconv"
	"strings"
	"sync"
)

// keyedSampler admits the first keep events of each run of every, counted per key
// so a chatty key cannot starve the others. keep == 0 admits everything.
type keyedSampler struct {
	mu     sync.Mutex
	keep   int
	every  int
	counts map[string]int
}

// maxSampleKeys caps distinct keys; past it the counters start over.
const maxSampleKeys = 1024

func newKeyedSampler(keep, every int) *keyedSampler {
	s := &keyedSampler{}
	s.configure(keep, every)
	return s
}

func (s *keyedSampler) configure(keep, every int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep <= 0 || every <= 0 {
		keep, every = 0, 0
	}
	s.keep = min(keep, every)
	s.every = every
	s.counts = make(map[string]int)
}

// Allow reports whether the next event under key is logged.
func (s *keyedSampler) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keep == 0 {
		return true
	}
	n, ok := s.counts[key]
	if !ok && len(s.counts) >= maxSampleKeys {
		clear(s.counts)
	}
	n = n%s.every + 1
	s.counts[key] = n
	return n <= s.keep
}

// parseRatio reads "keep/every" or a bare "every" (meaning 1/every).
// Anything unparsable or non-positive disables sampling.
func parseRatio(s string) (keep, every int) {
	s = strings.TrimSpace(s)
	head, tail, hasSlash := strings.Cut(s, "/")
	if !hasSlash {
		head, tail = "1", s
	}
	keep, err1 := strconv.Atoi(strings.TrimSpace(head))
	every, err2 := strconv.Atoi(strings.TrimSpace(tail))
	if err1 != nil || err2 != nil || keep <= 0 || every <= 0 {
		return 0, 0
	}
	return keep, every
}
