package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
)

const connsPerSource = 4

// pooledConn pairs a ProtocolClient with the rendezvous node name it is
// stored under.
type pooledConn struct {
	client ProtocolClient
	node   string
}

// Pool holds a small ring of live ProtocolClient connections per source and
// picks which one serves a given file path via rendezvous (highest random
// weight) hashing: the same path routes to the same connection across calls
// as long as the ring is stable, and only ~1/N of paths move when a
// connection is evicted and the ring shrinks, unlike modulo hashing.
type Pool struct {
	mu      sync.Mutex
	rings   map[int64]*rendezvous.Rendezvous
	conns   map[int64]map[string]ProtocolClient
	factory func(sourceID int64) (ProtocolClient, error)
}

func NewPool(factory func(sourceID int64) (ProtocolClient, error)) *Pool {
	return &Pool{
		rings:   make(map[int64]*rendezvous.Rendezvous),
		conns:   make(map[int64]map[string]ProtocolClient),
		factory: factory,
	}
}

func xxhashString(s string) uint64 { return xxhash.Sum64String(s) }

// Acquire returns the connection assigned to path for this source, dialing
// and ringing in a fresh one lazily up to connsPerSource per source.
func (p *Pool) Acquire(ctx context.Context, sourceID int64, path string) (ProtocolClient, error) {
	p.mu.Lock()
	ring, ok := p.rings[sourceID]
	if !ok {
		ring = rendezvous.New(nil, xxhashString)
		p.rings[sourceID] = ring
		p.conns[sourceID] = make(map[string]ProtocolClient)
	}
	conns := p.conns[sourceID]

	if len(conns) < connsPerSource {
		node := fmt.Sprintf("%d-%d", sourceID, len(conns))
		p.mu.Unlock()

		client, err := p.factory(sourceID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Upstream, "dial source connection", err)
		}
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}

		p.mu.Lock()
		conns[node] = client
		ring.Add(node)
	}

	node := ring.Lookup(path)
	client, ok := conns[node]
	p.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.Internal, "pool ring assigned an unknown node")
	}
	return client, nil
}

// Evict disconnects and removes every pooled connection for a source, e.g.
// after the source's credentials or host change.
func (p *Pool) Evict(sourceID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for node, client := range p.conns[sourceID] {
		client.Disconnect()
		if ring, ok := p.rings[sourceID]; ok {
			ring.Remove(node)
		}
	}
	delete(p.conns, sourceID)
	delete(p.rings, sourceID)
}

// CloseAll disconnects every pooled connection across every source, for
// graceful shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, conns := range p.conns {
		for _, client := range conns {
			client.Disconnect()
		}
	}
	p.conns = make(map[int64]map[string]ProtocolClient)
	p.rings = make(map[int64]*rendezvous.Rendezvous)
}
