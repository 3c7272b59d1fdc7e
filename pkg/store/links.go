package store

import "sync"

// linkGraph maintains the ownership relations (user -> chats,
// chat -> messages) as ordered multisets of target ids. Each owner has
// its own mutex so link mutations on different owners proceed
// concurrently; mutations on one owner are serialized, which is what
// keeps the multiset semantics well defined.
//
// The graph tracks inbound occurrence counts per target so that record
// deletion can unlink every reference pointing at the deleted record in
// time bounded by the number of direct references.
type linkGraph struct {
	mu  sync.RWMutex
	fwd map[string]*ownerLinks

	revMu sync.Mutex
	rev   map[string]map[string]int // target -> owner -> occurrences
}

type ownerLinks struct {
	mu   sync.Mutex
	refs []string
}

func newLinkGraph() *linkGraph {
	return &linkGraph{
		fwd: make(map[string]*ownerLinks),
		rev: make(map[string]map[string]int),
	}
}

// ensure registers an owner with an empty link set.
func (g *linkGraph) ensure(owner string) {
	g.mu.Lock()
	if _, ok := g.fwd[owner]; !ok {
		g.fwd[owner] = &ownerLinks{}
	}
	g.mu.Unlock()
}

// owner returns the link slot for an owner, or nil if unknown.
func (g *linkGraph) owner(owner string) *ownerLinks {
	g.mu.RLock()
	ol := g.fwd[owner]
	g.mu.RUnlock()
	return ol
}

// linksOf returns a copy of the owner's current reference multiset.
func (g *linkGraph) linksOf(owner string) []string {
	ol := g.owner(owner)
	if ol == nil {
		return nil
	}
	ol.mu.Lock()
	out := append([]string(nil), ol.refs...)
	ol.mu.Unlock()
	return out
}

func (g *linkGraph) incRev(target, owner string) {
	g.revMu.Lock()
	m := g.rev[target]
	if m == nil {
		m = make(map[string]int)
		g.rev[target] = m
	}
	m[owner]++
	g.revMu.Unlock()
}

func (g *linkGraph) decRev(target, owner string) {
	g.revMu.Lock()
	if m := g.rev[target]; m != nil {
		if m[owner] <= 1 {
			delete(m, owner)
		} else {
			m[owner]--
		}
		if len(m) == 0 {
			delete(g.rev, target)
		}
	}
	g.revMu.Unlock()
}

// owners returns the set of owners currently referencing target.
func (g *linkGraph) owners(target string) []string {
	g.revMu.Lock()
	defer g.revMu.Unlock()
	m := g.rev[target]
	out := make([]string, 0, len(m))
	for o := range m {
		out = append(out, o)
	}
	return out
}

// removeOne drops the first occurrence of target from refs, returning
// the shortened slice and whether an occurrence was present.
func removeOne(refs []string, target string) ([]string, bool) {
	for i, r := range refs {
		if r == target {
			out := make([]string, 0, len(refs)-1)
			out = append(out, refs[:i]...)
			out = append(out, refs[i+1:]...)
			return out, true
		}
	}
	return refs, false
}

// withoutAll drops every occurrence of target from refs.
func withoutAll(refs []string, target string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r != target {
			out = append(out, r)
		}
	}
	return out
}

// dropOwner removes an owner and its outbound references. Caller must
// hold the store write lock so no link mutation races the drop.
func (g *linkGraph) dropOwner(owner string) {
	g.mu.Lock()
	ol := g.fwd[owner]
	delete(g.fwd, owner)
	g.mu.Unlock()
	if ol == nil {
		return
	}
	for _, t := range ol.refs {
		g.decRev(t, owner)
	}
}

// detachTarget removes every occurrence of target from every owner.
// Caller must hold the store write lock. Returns the ids of owners
// whose multisets changed.
func (g *linkGraph) detachTarget(target string) []string {
	changed := g.owners(target)
	for _, o := range changed {
		if ol := g.owner(o); ol != nil {
			n := len(ol.refs)
			ol.refs = withoutAll(ol.refs, target)
			for i := 0; i < n-len(ol.refs); i++ {
				g.decRev(target, o)
			}
		}
	}
	return changed
}
