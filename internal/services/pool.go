package services

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/flacsync/internal/shared"
)

// ServerPool is a fixed set of interchangeable catalog base URLs.
//
// Selection is uniformly random, falling back to a shared rotation cursor when the
// random pick was already tried, so a caller that keeps asking visits every server
// before any repeats.
type ServerPool struct {
	servers []string

	mu     sync.Mutex
	cursor int
	rng    *rand.Rand
}

// NewServerPool validates and deduplicates servers. Trailing slashes are dropped.
func NewServerPool(servers []string) (*ServerPool, error) {
	seen := make(map[string]struct{}, len(servers))
	pool := &ServerPool{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}

	for _, raw := range servers {
		server := strings.TrimRight(strings.TrimSpace(raw), "/")
		if server == "" {
			continue
		}
		u, err := url.Parse(server)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: invalid server %q", shared.ErrInvalidConfig, raw)
		}
		if _, dup := seen[server]; dup {
			continue
		}
		seen[server] = struct{}{}
		pool.servers = append(pool.servers, server)
	}

	if len(pool.servers) == 0 {
		return nil, shared.ErrEmptyPool
	}
	return pool, nil
}

// Size is the number of distinct servers.
func (p *ServerPool) Size() int { return len(p.servers) }

// Servers returns a copy of the server list.
func (p *ServerPool) Servers() []string { return append([]string(nil), p.servers...) }

// next picks a server not yet in tried and marks it. Once every server has been
// tried the set is reset and a new round begins.
func (p *ServerPool) next(tried map[string]struct{}) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(tried) >= len(p.servers) {
		clear(tried)
	}

	server := p.servers[p.rng.IntN(len(p.servers))]
	if _, seen := tried[server]; seen {
		for range p.servers {
			p.cursor = (p.cursor + 1) % len(p.servers)
			if _, seen := tried[p.servers[p.cursor]]; !seen {
				server = p.servers[p.cursor]
				break
			}
		}
	}

	tried[server] = struct{}{}
	return server
}
