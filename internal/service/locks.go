package service

import "sync"

// CommodityLocks serializes balance-affecting operations per commodity
// across the ledger and trading services. The matcher plans fills from
// balances it reads before committing, so a transfer must not interleave
// with an in-flight match on the same commodity.
type CommodityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCommodityLocks() *CommodityLocks {
	return &CommodityLocks{locks: make(map[string]*sync.Mutex)}
}

func (c *CommodityLocks) get(commodity string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[commodity]
	if !ok {
		l = &sync.Mutex{}
		c.locks[commodity] = l
	}
	return l
}

// Lock acquires the commodity's lock and returns the unlock function.
func (c *CommodityLocks) Lock(commodity string) func() {
	l := c.get(commodity)
	l.Lock()
	return l.Unlock
}
