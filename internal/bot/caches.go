package bot

import (
	"github.com/nexoplatform/nexo-bot/internal/gateway"
	"github.com/nexoplatform/nexo-bot/internal/listcache"
)

// Items per page for each result-set kind.
const (
	productsPerPage = 5
	serversPerPage  = 3
	ticketsPerPage  = 5
)

// Caches groups the three per-user result caches. Each kind gets its own
// typed cache so workflows never downcast cached items; the (user, kind)
// addressing of the result-cache contract is the (user, field) pair here.
type Caches struct {
	Products *listcache.Cache[gateway.Product]
	Servers  *listcache.Cache[gateway.Server]
	Tickets  *listcache.Cache[gateway.Ticket]
}

// NewCaches constructs the three caches with their id extractors.
func NewCaches() *Caches {
	return &Caches{
		Products: listcache.New(func(p gateway.Product) string { return p.ID.String() }),
		Servers:  listcache.New(func(s gateway.Server) string { return s.Identifier }),
		Tickets:  listcache.New(func(t gateway.Ticket) string { return t.ID.String() }),
	}
}
