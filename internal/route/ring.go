package route

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const vnodeSeparator = "#vnode-"

// Ring places endpoints on a consistent-hash ring with virtual nodes
type Ring struct {
	ring          []uint64            // Sorted hash values
	ringMap       map[uint64]string   // Hash -> VNodeID
	endpointNodes map[string][]uint64 // Endpoint -> VNode hashes
	mu            sync.RWMutex
}

// NewRing creates an empty ring
func NewRing() *Ring {
	return &Ring{
		ring:          make([]uint64, 0),
		ringMap:       make(map[uint64]string),
		endpointNodes: make(map[string][]uint64),
	}
}

// Add places an endpoint on the ring with the given number of virtual nodes
func (r *Ring) Add(endpoint string, virtualNodes int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.endpointNodes[endpoint]; exists {
		return
	}

	hashes := make([]uint64, 0, virtualNodes)
	for i := 0; i < virtualNodes; i++ {
		vnodeID := fmt.Sprintf("%s%s%d", endpoint, vnodeSeparator, i)
		h := hashKey(vnodeID)
		if _, taken := r.ringMap[h]; taken {
			continue
		}

		r.ring = append(r.ring, h)
		r.ringMap[h] = vnodeID
		hashes = append(hashes, h)
	}

	r.endpointNodes[endpoint] = hashes
	sort.Slice(r.ring, func(i, j int) bool { return r.ring[i] < r.ring[j] })
}

// Remove takes an endpoint and its virtual nodes off the ring
func (r *Ring) Remove(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hashes, exists := r.endpointNodes[endpoint]
	if !exists {
		return
	}

	removed := make(map[uint64]bool, len(hashes))
	for _, h := range hashes {
		removed[h] = true
		delete(r.ringMap, h)
	}

	kept := make([]uint64, 0, len(r.ring)-len(hashes))
	for _, h := range r.ring {
		if !removed[h] {
			kept = append(kept, h)
		}
	}
	r.ring = kept

	delete(r.endpointNodes, endpoint)
}

// Locate returns the endpoint owning key, or "" when the ring is empty
func (r *Ring) Locate(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.ring) == 0 {
		return ""
	}

	h := hashKey(key)
	idx := sort.Search(len(r.ring), func(i int) bool {
		return r.ring[i] >= h
	})
	// Wrap around
	if idx >= len(r.ring) {
		idx = 0
	}

	return endpointOf(r.ringMap[r.ring[idx]])
}

// Size returns the number of endpoints on the ring
func (r *Ring) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpointNodes)
}

// hashKey computes SHA-256 and keeps the first 8 bytes
func hashKey(key string) uint64 {
	sum := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint64(sum[:8])
}

func endpointOf(vnodeID string) string {
	if idx := strings.LastIndex(vnodeID, vnodeSeparator); idx >= 0 {
		return vnodeID[:idx]
	}
	return vnodeID
}
