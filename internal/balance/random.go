package balance

import (
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/maauso/soundset/internal/audio"
)

// RandSource returns the random generator used while balancing dir.
type RandSource func(dir string) audio.Rand

// SeededSource derives an independent generator per directory from seed and
// the directory path, so a fixed seed reproduces the same transforms no
// matter how directories are scheduled across workers. A zero seed is
// replaced with the current time.
func SeededSource(seed int64) RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return func(dir string) audio.Rand {
		h := fnv.New64a()
		_, _ = h.Write([]byte(dir))
		return rand.New(rand.NewPCG(uint64(seed), h.Sum64()))
	}
}
