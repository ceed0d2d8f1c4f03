package loadgen

import (
	"context"
	"sort"

	"github.com/okian/vorell/pkg/logger"
)

// verify compares every listing's counters and every actor's favorites
// total with the replay and returns the number of differences.
func verify(
	ctx context.Context,
	log logger.Logger,
	c *Client,
	verbose bool,
	listings map[string]Expected,
	favorites map[string]int64,
) (int, error) {
	mismatches := 0

	for _, id := range sortedKeys(listings) {
		want := listings[id]
		got, err := c.Listing(ctx, id)
		if err != nil {
			return mismatches, err
		}
		if got.Likes != want.Likes || got.Views != want.Views {
			mismatches++
			if verbose {
				log.Warn(ctx, "listing counters differ",
					logger.String("listing", id),
					logger.Int64("likes", got.Likes),
					logger.Int64("wantLikes", want.Likes),
					logger.Int64("views", got.Views),
					logger.Int64("wantViews", want.Views),
				)
			}
		}
	}

	for _, actor := range sortedKeys(favorites) {
		want := favorites[actor]
		got, err := c.FavoritesTotal(ctx, actor)
		if err != nil {
			return mismatches, err
		}
		if got != want {
			mismatches++
			if verbose {
				log.Warn(ctx, "favorites differ",
					logger.String("actor", actor),
					logger.Int64("total", got),
					logger.Int64("want", want),
				)
			}
		}
	}

	log.Info(ctx, "verification completed",
		logger.Int("listings", len(listings)),
		logger.Int("actors", len(favorites)),
		logger.Int("mismatches", mismatches),
	)
	return mismatches, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
