package dispatch

import "sync"

// offer remembers who was told about a pending order so the offer can be
// retracted once it is taken or cancelled.
type offer struct {
	pool     bool
	accounts []string
}

type offerBook struct {
	mu      sync.Mutex
	byOrder map[string]offer
}

func newOfferBook() *offerBook {
	return &offerBook{byOrder: make(map[string]offer)}
}

func (b *offerBook) record(orderID string, o offer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, ok := b.byOrder[orderID]
	if ok {
		o.pool = o.pool || prev.pool
		o.accounts = merge(prev.accounts, o.accounts)
	}
	b.byOrder[orderID] = o
}

func (b *offerBook) take(orderID string) (offer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.byOrder[orderID]
	delete(b.byOrder, orderID)
	return o, ok
}

func (b *offerBook) decline(orderID, account string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.byOrder[orderID]
	if !ok {
		return
	}
	kept := o.accounts[:0]
	for _, a := range o.accounts {
		if a != account {
			kept = append(kept, a)
		}
	}
	o.accounts = kept
	b.byOrder[orderID] = o
}

func merge(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
