package dwarftypes

import (
	"strings"
	"sync"
)

// CountState is the shared type-count aggregator: a unique-
// signature set, a running type-DIE count, and a simplified-producer
// set, mutated under one mutex.
type CountState struct {
	mu        sync.Mutex
	unique    map[uint64]struct{}
	types     uint64
	producers map[string]struct{}
}

// NewCountState builds an empty aggregator.
func NewCountState() *CountState {
	return &CountState{unique: make(map[uint64]struct{}), producers: make(map[string]struct{})}
}

// Observe records one (signature, producer) pair: always increments the
// total type count, increments the unique count only on first sight of
// the signature, and records the simplified producer string.
func (c *CountState) Observe(signature uint64, producer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types++
	if _, ok := c.unique[signature]; !ok {
		c.unique[signature] = struct{}{}
	}
	c.producers[SimplifyProducer(producer)] = struct{}{}
}

// Summary is the final snapshot used for JSON emission.
type Summary struct {
	Total    uint64 `json:"total"`
	Types    uint64 `json:"types"`
	Unique   uint64 `json:"unique"`
	Producer string `json:"producer"`
}

// Finalize snapshots the aggregator into a Summary. total is the phase-1
// total DIE count, supplied by the caller since CountState itself only
// ever sees type DIEs.
func (c *CountState) Finalize(total uint64) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	producers := make([]string, 0, len(c.producers))
	for p := range c.producers {
		producers = append(producers, p)
	}
	joined := "Unknown"
	if len(producers) > 0 {
		joined = strings.Join(sortedCopy(producers), "/")
	}

	return Summary{
		Total:    total,
		Types:    c.types,
		Unique:   uint64(len(c.unique)),
		Producer: joined,
	}
}

func sortedCopy(ss []string) []string {
	out := append([]string(nil), ss...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// SimplifyProducer implements the producer-string simplification used
// for JSON reporting: split on ASCII whitespace, stop at the first token
// beginning with '-', rewrite the word "version" as "v", rejoin with
// single spaces.
//
//	simplify("GNU C 4.8.4 -mtune=generic …") = "GNU C 4.8.4"
//	simplify("clang version 3.9.0 (trunk 269902)") = "clang v 3.9.0 (trunk 269902)"
func SimplifyProducer(producer string) string {
	fields := strings.Fields(producer)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f, "-") {
			break
		}
		if f == "version" {
			f = "v"
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}
