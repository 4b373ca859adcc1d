package prefetch

import (
	"github.com/patrickmn/go-cache"
)

type Kind int

const (
	KindAudio Kind = iota
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "audio"
}

// Media is a loaded asset.
type Media struct {
	URL  string
	Kind Kind
	Size int64
}

// Cache maps a resolved URL to its loaded media. Entries never expire and
// are never replaced: the first successful load of a URL wins.
type Cache struct {
	store *cache.Cache
}

func NewCache() *Cache {
	// no expiration and no janitor goroutine
	return &Cache{store: cache.New(cache.NoExpiration, 0)}
}

// Add stores m under its URL and reports whether it was new.
func (c *Cache) Add(m Media) bool {
	return c.store.Add(m.URL, m, cache.NoExpiration) == nil
}

func (c *Cache) Get(url string) (Media, bool) {
	if x, found := c.store.Get(url); found {
		return x.(Media), true
	}
	return Media{}, false
}

func (c *Cache) Has(url string) bool {
	_, found := c.store.Get(url)
	return found
}

func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// URLs lists cached URLs of one kind, in no particular order.
func (c *Cache) URLs(kind Kind) []string {
	var out []string
	for url, item := range c.store.Items() {
		if item.Object.(Media).Kind == kind {
			out = append(out, url)
		}
	}
	return out
}
