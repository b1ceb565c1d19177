package cache

import (
	"context"
	"fmt"
	"time"

	"agrogestion/internal/core"
	"agrogestion/internal/ledger"
)

// Summaries caches annual summaries per owner and year.
type Summaries struct {
	lru *LRUCache[core.Annual]
}

func NewSummaries(size int, ttl time.Duration) *Summaries {
	return &Summaries{lru: NewLRUCache[core.Annual](size, ttl)}
}

func summaryKey(ownerID string, year int) string {
	return fmt.Sprintf("%s/%d", ownerID, year)
}

func (s *Summaries) Get(ownerID string, year int) (core.Annual, bool) {
	return s.lru.Get(summaryKey(ownerID, year))
}

func (s *Summaries) Set(ownerID string, year int, a core.Annual) {
	s.lru.Set(summaryKey(ownerID, year), a)
}

// Invalidate drops what a change can affect. An annual summary also shows
// the previous year, so year+1 goes too, for both the new year and the one
// an update moved the expense out of. Without a year every entry of the
// owner is dropped.
func (s *Summaries) Invalidate(c ledger.Change) int {
	if c.Year == 0 {
		return s.lru.DeletePrefix(c.OwnerID + "/")
	}
	years := []int{c.Year, c.Year + 1}
	if c.PrevYear != 0 && c.PrevYear != c.Year {
		years = append(years, c.PrevYear, c.PrevYear+1)
	}
	n := 0
	for _, y := range years {
		key := summaryKey(c.OwnerID, y)
		if _, ok := s.lru.Get(key); ok {
			n++
		}
		s.lru.Delete(key)
	}
	return n
}

// Notify lets Summaries sit directly behind a ledger.List.
func (s *Summaries) Notify(_ context.Context, c ledger.Change) error {
	s.Invalidate(c)
	return nil
}

func (s *Summaries) CleanExpired() int {
	return s.lru.CleanExpired()
}

func (s *Summaries) Size() int {
	return s.lru.Size()
}
