package proxy

import "fmt"

// ReplicaState names a replica set member's role, as reported in the
// "stateStr"/"hosts" fields of isMaster and replSetGetStatus responses.
type ReplicaState string

// The subset of replica set member states the rewriters care about.
const (
	ReplicaStatePrimary   ReplicaState = "PRIMARY"
	ReplicaStateSecondary ReplicaState = "SECONDARY"
	ReplicaStateArbiter   ReplicaState = "ARBITER"
)

// ProxyMapperError reports that a real address has no configured proxy in
// the Topology. Arbiters are expected to hit this -- they carry no client
// traffic, so callers drop them instead of treating it as fatal.
type ProxyMapperError struct {
	Real  string
	State ReplicaState
}

func (e *ProxyMapperError) Error() string {
	return fmt.Sprintf("proxy: no proxy configured for %s (state %s)", e.Real, e.State)
}

// Member is one real mongo address known to a Topology, paired with the
// proxy address clients should be told to use in its place.
type Member struct {
	Real  string
	Proxy string
	State ReplicaState
}

// Topology is a static proxy<->real address map built once from a fixed
// member list. Unlike the replica set it replaces, it never polls, holds
// an election, or restarts on disagreement -- this map is configuration,
// not discovery.
type Topology struct {
	proxyToReal map[string]string
	realToProxy map[string]string
	states      map[string]ReplicaState
}

// NewTopology builds a Topology from members.
func NewTopology(members []Member) *Topology {
	t := &Topology{
		proxyToReal: make(map[string]string, len(members)),
		realToProxy: make(map[string]string, len(members)),
		states:      make(map[string]ReplicaState, len(members)),
	}
	for _, m := range members {
		t.proxyToReal[m.Proxy] = m.Real
		t.realToProxy[m.Real] = m.Proxy
		t.states[m.Real] = m.State
	}
	return t
}

// Proxy maps a real mongo address to the proxy address fronting it. A real
// address with no configured proxy -- typically an arbiter -- returns a
// *ProxyMapperError rather than an empty string.
func (t *Topology) Proxy(real string) (string, error) {
	if p, ok := t.realToProxy[real]; ok {
		return p, nil
	}
	return "", &ProxyMapperError{Real: real, State: t.states[real]}
}

// Real maps a proxy address back to the real mongo address it fronts.
func (t *Topology) Real(proxyAddr string) (string, bool) {
	r, ok := t.proxyToReal[proxyAddr]
	return r, ok
}

// Members returns every real address this Topology knows about.
func (t *Topology) Members() []string {
	out := make([]string, 0, len(t.realToProxy))
	for real := range t.realToProxy {
		out = append(out, real)
	}
	return out
}
