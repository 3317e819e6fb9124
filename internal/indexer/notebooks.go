package indexer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dubuqingfeng/siyuan-openclaw-plugin/internal/siyuan"
)

// notebookCache maps notebook ids to names and resolves the configured
// excluded names to concrete notebook ids.
type notebookCache struct {
	mu            sync.RWMutex
	names         map[string]string // id → name
	excludedIDs   map[string]bool
	excludedNames map[string]bool // lowercased
	closed        map[string]bool
}

func newNotebookCache(excludedNames map[string]bool) *notebookCache {
	if excludedNames == nil {
		excludedNames = map[string]bool{}
	}
	return &notebookCache{
		names:         map[string]string{},
		excludedIDs:   map[string]bool{},
		excludedNames: excludedNames,
		closed:        map[string]bool{},
	}
}

// refresh reloads the notebook list and re-resolves the exclusion set.
func (c *notebookCache) refresh(ctx context.Context, client *siyuan.Client) error {
	notebooks, err := client.ListNotebooks(ctx)
	if err != nil {
		return fmt.Errorf("list notebooks: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.names = make(map[string]string, len(notebooks))
	c.excludedIDs = make(map[string]bool)
	c.closed = make(map[string]bool)
	for _, nb := range notebooks {
		c.names[nb.ID] = nb.Name
		if nb.Closed {
			c.closed[nb.ID] = true
		}
		if c.excludedNames[strings.ToLower(strings.TrimSpace(nb.Name))] {
			c.excludedIDs[nb.ID] = true
		}
	}
	return nil
}

func (c *notebookCache) setExcludedNames(names map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if names == nil {
		names = map[string]bool{}
	}
	c.excludedNames = names
	c.excludedIDs = make(map[string]bool)
	for id, name := range c.names {
		if names[strings.ToLower(strings.TrimSpace(name))] {
			c.excludedIDs[id] = true
		}
	}
}

func (c *notebookCache) nameFor(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names[id]
}

func (c *notebookCache) isExcludedID(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.excludedIDs[id]
}

// includedIDs returns ids of open notebooks outside the exclusion set.
func (c *notebookCache) includedIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.names))
	for id := range c.names {
		if !c.excludedIDs[id] && !c.closed[id] {
			ids = append(ids, id)
		}
	}
	return ids
}
