package service

import (
	"context"

	"github.com/okian/vorell/internal/domain/ledger"
	"github.com/okian/vorell/internal/domain/model"
)

// memoryHistory answers favorites and visited from the in-memory ledger
// when the SQL join is unavailable.
type memoryHistory struct {
	ledger *ledger.Memory
	store  Store
}

func (h *memoryHistory) Favorites(ctx context.Context, actorID string, page model.Page) (model.Listings, error) {
	return h.list(ctx, actorID, model.KindLike, page, true)
}

func (h *memoryHistory) Visited(ctx context.Context, actorID string, page model.Page) (model.Listings, error) {
	return h.list(ctx, actorID, model.KindView, page, false)
}

func (h *memoryHistory) list(ctx context.Context, actorID string, kind model.Kind, page model.Page, inStockOnly bool) (model.Listings, error) {
	var ids []string
	for _, r := range h.ledger.Records(actorID, kind) {
		if r.Group == model.GroupWatch {
			ids = append(ids, r.TargetID)
		}
	}
	byID, err := h.store.ListingsByIDs(ctx, ids)
	if err != nil {
		return model.Listings{}, err
	}

	matched := make([]model.Listing, 0, len(ids))
	for _, id := range ids {
		l, ok := byID[id]
		if !ok || (inStockOnly && l.Status != model.ListingInStock) {
			continue
		}
		matched = append(matched, l)
	}

	out := model.Listings{Items: []model.Listing{}, Total: int64(len(matched))}
	from := page.Offset()
	if from < 0 || from >= len(matched) {
		return out, nil
	}
	to := min(from+page.Limit, len(matched))
	out.Items = matched[from:to]
	return out, nil
}
