package loadgen

import (
	"math/rand/v2"
)

// Plan draws n actions over users and listings from a seeded source.
func Plan(seed uint64, users, listings []string, n int, likeRatio float64) []Action {
	if len(users) == 0 || len(listings) == 0 || n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	plan := make([]Action, n)
	for i := range plan {
		kind := ActionView
		if rng.Float64() < likeRatio {
			kind = ActionLike
		}
		plan[i] = Action{
			Kind:      kind,
			ActorID:   users[rng.IntN(len(users))],
			ListingID: listings[rng.IntN(len(listings))],
		}
	}
	return plan
}

type pair struct {
	actor   string
	listing string
}

// Expect replays plan in order. It returns the final counters per listing
// and the number of liked listings per actor. The replay is valid for a
// concurrent run as long as each actor's actions keep their order.
func Expect(plan []Action) (map[string]Expected, map[string]int64) {
	liked := make(map[pair]bool)
	viewed := make(map[pair]bool)
	listings := make(map[string]Expected)
	favorites := make(map[string]int64)

	for _, a := range plan {
		p := pair{actor: a.ActorID, listing: a.ListingID}
		e := listings[a.ListingID]
		switch a.Kind {
		case ActionLike:
			if liked[p] {
				delete(liked, p)
				e.Likes--
				favorites[a.ActorID]--
			} else {
				liked[p] = true
				e.Likes++
				favorites[a.ActorID]++
			}
		case ActionView:
			if !viewed[p] {
				viewed[p] = true
				e.Views++
			}
		}
		listings[a.ListingID] = e
	}
	return listings, favorites
}
