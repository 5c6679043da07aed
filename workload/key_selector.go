package workload

import (
	"fmt"
	"math/rand"
)

// ContentionConfig shapes the key distribution: a draw lands in the hot set
// [0, HotsetSize) with probability HotsetProb and anywhere in [0, TotalKeys)
// otherwise.
type ContentionConfig struct {
	TotalKeys  int
	HotsetSize int
	HotsetProb float64
}

// KeySelector samples account keys against a hot/cold partition. Each worker
// owns one selector seeded with its own rand source; selectors are not safe
// to share across goroutines.
type KeySelector struct {
	conf ContentionConfig
	r    *rand.Rand
}

func NewKeySelector(conf ContentionConfig, r *rand.Rand) *KeySelector {
	return &KeySelector{conf: conf, r: r}
}

// SelectKey draws one key.
func (s *KeySelector) SelectKey() string {
	var idx int
	if s.r.Float64() < s.conf.HotsetProb {
		idx = s.r.Intn(s.conf.HotsetSize)
	} else {
		idx = s.r.Intn(s.conf.TotalKeys)
	}
	return fmt.Sprintf("account_%d", idx)
}

// SelectDistinctKeys draws until n distinct keys are collected. The caller
// must have validated n <= TotalKeys or this loops forever.
func (s *KeySelector) SelectDistinctKeys(n int) []string {
	seen := make(map[string]struct{}, n)
	keys := make([]string, 0, n)
	for len(keys) < n {
		key := s.SelectKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
