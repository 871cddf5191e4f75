// Package topology holds the static channel graph between chains.
package topology

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"ibctrace/internal/model"
)

// Topology is an immutable directed graph of chains labelled by channel ids.
// channels[a][b] is the channel chain a uses when forwarding a token to b.
type Topology struct {
	chains   []model.ChainID
	index    map[model.ChainID]struct{}
	channels map[model.ChainID]map[model.ChainID]model.ChannelID
}

// New builds a Topology from the declared chain set and channel table.
// Chains referenced only by the channel table are rejected.
func New(chains []model.ChainID, channels map[model.ChainID]map[model.ChainID]model.ChannelID) (*Topology, error) {
	t := &Topology{
		index:    make(map[model.ChainID]struct{}, len(chains)),
		channels: make(map[model.ChainID]map[model.ChainID]model.ChannelID, len(channels)),
	}
	for _, c := range chains {
		if c == "" {
			return nil, fmt.Errorf("empty chain id")
		}
		if _, dup := t.index[c]; dup {
			continue
		}
		t.index[c] = struct{}{}
		t.chains = append(t.chains, c)
	}
	sort.Slice(t.chains, func(i, j int) bool { return t.chains[i] < t.chains[j] })

	for from, peers := range channels {
		if _, ok := t.index[from]; !ok {
			return nil, fmt.Errorf("channel source %q is not a declared chain", from)
		}
		row := make(map[model.ChainID]model.ChannelID, len(peers))
		for to, ch := range peers {
			if _, ok := t.index[to]; !ok {
				return nil, fmt.Errorf("channel %s -> %q: destination is not a declared chain", from, to)
			}
			if to == from {
				return nil, fmt.Errorf("self channel on %q", from)
			}
			if ch == "" {
				return nil, fmt.Errorf("empty channel id for %s -> %s", from, to)
			}
			row[to] = ch
		}
		t.channels[from] = row
	}
	return t, nil
}

// ChannelFor returns the channel used when from forwards a token to to.
// A false result means the pair is not directly connected.
func (t *Topology) ChannelFor(from, to model.ChainID) (model.ChannelID, bool) {
	row, ok := t.channels[from]
	if !ok {
		return "", false
	}
	ch, ok := row[to]
	return ch, ok
}

// NeighborsExcluding returns every declared chain not in exclude, lexically sorted.
func (t *Topology) NeighborsExcluding(exclude ...model.ChainID) []model.ChainID {
	skip := make(map[model.ChainID]struct{}, len(exclude))
	for _, c := range exclude {
		skip[c] = struct{}{}
	}
	out := make([]model.ChainID, 0, len(t.chains))
	for _, c := range t.chains {
		if _, ok := skip[c]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Chains returns all declared chains in lexical order.
func (t *Topology) Chains() []model.ChainID {
	out := make([]model.ChainID, len(t.chains))
	copy(out, t.chains)
	return out
}

// Has reports whether chain is declared.
func (t *Topology) Has(chain model.ChainID) bool {
	_, ok := t.index[chain]
	return ok
}

// Fingerprint identifies the chain set and channel table. Two topologies
// with the same fingerprint encode every trace identically.
func (t *Topology) Fingerprint() string {
	h := sha256.New()
	for _, from := range t.chains {
		fmt.Fprintf(h, "%s\n", from)
		for _, to := range t.chains {
			if ch, ok := t.ChannelFor(from, to); ok {
				fmt.Fprintf(h, "%s>%s=%s\n", from, to, ch)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (t *Topology) Len() int {
	return len(t.chains)
}

// Orientation tells how a channel table is keyed.
type Orientation string

const (
	// Receiver tables are keyed like chain registries: ends[x][y] is the
	// channel end on x that connects to y. A token moving a -> b is
	// stamped with b's end, so the hop label is ends[b][a].
	Receiver Orientation = "receiver"
	// Sender tables already hold the hop label: table[a][b] is used for a -> b.
	Sender Orientation = "sender"
)

// ParseOrientation validates an orientation name. Empty means Receiver.
func ParseOrientation(s string) (Orientation, error) {
	switch Orientation(s) {
	case "", Receiver:
		return Receiver, nil
	case Sender:
		return Sender, nil
	default:
		return "", fmt.Errorf("unknown channel orientation %q", s)
	}
}

// FromTable builds a Topology from a channel table in the given orientation.
func FromTable(chains []model.ChainID, table map[model.ChainID]map[model.ChainID]model.ChannelID, o Orientation) (*Topology, error) {
	switch o {
	case Sender:
		return New(chains, table)
	case Receiver, "":
		hops := make(map[model.ChainID]map[model.ChainID]model.ChannelID)
		for holder, peers := range table {
			for peer, ch := range peers {
				row, ok := hops[peer]
				if !ok {
					row = make(map[model.ChainID]model.ChannelID)
					hops[peer] = row
				}
				row[holder] = ch
			}
		}
		return New(chains, hops)
	default:
		return nil, fmt.Errorf("unknown channel orientation %q", o)
	}
}
