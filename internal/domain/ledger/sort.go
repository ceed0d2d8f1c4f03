package ledger

import (
	"slices"

	"github.com/okian/vorell/internal/domain/model"
)

func sortNewestFirst(records []model.Record) {
	slices.SortFunc(records, func(a, b model.Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
