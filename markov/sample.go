package markov

import (
	"context"
	"errors"
	"math/rand/v2"
)

// ErrNotIndexed reports that the seed word has no recorded successors at all.
var ErrNotIndexed = errors.New("word not indexed")

// SuccessorSource abstracts successor lookup so sampling can be exercised
// without a database.
type SuccessorSource interface {
	Successors(ctx context.Context, channelID int64, word string) ([]string, error)
}

// DefaultSampleRounds is the chain length used when the caller does not ask
// for one.
const DefaultSampleRounds = 7

// Sample walks the adjacency table starting from seed, picking one successor
// row uniformly at random each round (uniform over rows is frequency-weighted
// by construction). count is defaulted to DefaultSampleRounds when <= 0 and
// clamped to [1,100]. A lookup miss consumes a round without advancing the
// seed, so the output may be shorter than count. Returns ErrNotIndexed when
// no round ever advanced past the seed.
func Sample(ctx context.Context, src SuccessorSource, channelID int64, seed string, count int) ([]string, error) {
	if count <= 0 {
		count = DefaultSampleRounds
	}
	if count > 100 {
		count = 100
	}

	out := []string{seed}
	current := seed
	for i := 0; i < count-1; i++ {
		succs, err := src.Successors(ctx, channelID, current)
		if err != nil {
			return nil, err
		}
		if len(succs) == 0 {
			continue
		}
		next := succs[rand.IntN(len(succs))]
		out = append(out, next)
		current = next
	}

	if len(out) == 1 {
		return nil, ErrNotIndexed
	}
	return out, nil
}
