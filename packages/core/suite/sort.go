package suite

import (
	"cmp"
	"math/rand/v2"
	"slices"
)

// Shuffle is the default sorter: an unbiased random permutation.
func Shuffle(jobs []*Job) []*Job {
	rand.Shuffle(len(jobs), func(i, j int) {
		jobs[i], jobs[j] = jobs[j], jobs[i]
	})
	return jobs
}

// ShuffleSeed returns a sorter producing the same permutation for the same
// seed and job count, for reproducing a shuffled run.
func ShuffleSeed(seed uint64) Sorter {
	return func(jobs []*Job) []*Job {
		r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		r.Shuffle(len(jobs), func(i, j int) {
			jobs[i], jobs[j] = jobs[j], jobs[i]
		})
		return jobs
	}
}

// Declared keeps the preorder enumeration order.
func Declared(jobs []*Job) []*Job {
	return jobs
}

// ByDescription orders jobs by their fully prefixed description.
func ByDescription(jobs []*Job) []*Job {
	slices.SortStableFunc(jobs, func(a, b *Job) int {
		return cmp.Compare(a.Group.Prefixed(a.Spec.description), b.Group.Prefixed(b.Spec.description))
	})
	return jobs
}
