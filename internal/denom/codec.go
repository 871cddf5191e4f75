// Package denom encodes IBC denomination traces into their on-chain hashed form.
package denom

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	tmbytes "github.com/cometbft/cometbft/libs/bytes"

	"ibctrace/internal/model"
)

const (
	// Prefix is the scheme tag of every hashed denomination.
	Prefix = "ibc/"
	// PortID is the transfer port every hop is forwarded through.
	PortID = "transfer"

	hashHexLen = sha256.Size * 2
)

// ChannelLookup resolves the channel used between two directly connected chains.
type ChannelLookup interface {
	ChannelFor(from, to model.ChainID) (model.ChannelID, bool)
}

// DisconnectedHopError reports a consecutive hop pair with no channel.
type DisconnectedHopError struct {
	From model.ChainID
	To   model.ChainID
}

func (e *DisconnectedHopError) Error() string {
	return fmt.Sprintf("no channel from %s to %s", e.From, e.To)
}

// Codec maps denom traces to hashed denominations. It holds no mutable
// state and is safe for concurrent use.
type Codec struct {
	channels ChannelLookup
}

func NewCodec(channels ChannelLookup) *Codec {
	return &Codec{channels: channels}
}

// Segment returns the path segment a receiving chain prepends for channel.
func Segment(channel model.ChannelID) string {
	return PortID + "/" + string(channel) + "/"
}

// Step extends prefix by the hop from -> to. The newest hop goes first.
func (c *Codec) Step(prefix string, from, to model.ChainID) (string, error) {
	ch, ok := c.channels.ChannelFor(from, to)
	if !ok {
		return "", &DisconnectedHopError{From: from, To: to}
	}
	return Segment(ch) + prefix, nil
}

// EncodePrefix builds the path prefix for hops in traversal order.
// For [A, B, C] it yields "transfer/ch(B->C)/transfer/ch(A->B)/".
func (c *Codec) EncodePrefix(hops model.HopSequence) (string, error) {
	if len(hops) == 0 {
		return "", fmt.Errorf("empty hop sequence")
	}
	prefix := ""
	for i := 1; i < len(hops); i++ {
		next, err := c.Step(prefix, hops[i-1], hops[i])
		if err != nil {
			return "", err
		}
		prefix = next
	}
	return prefix, nil
}

// Encode returns the denomination observed on the last chain of the trace.
// A trace without hops is native and returns the base denom unchanged.
func (c *Codec) Encode(trace model.DenomTrace) (string, error) {
	prefix, err := c.EncodePrefix(trace.Hops)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return trace.BaseDenom, nil
	}
	return HashPath(prefix, trace.BaseDenom), nil
}

// Matches reports whether trace encodes to target. Disconnected traces never match.
func (c *Codec) Matches(trace model.DenomTrace, target string) bool {
	got, err := c.Encode(trace)
	if err != nil {
		return false
	}
	return got == target
}

// HashPath hashes a full denom path into its "ibc/<HEX>" form.
func HashPath(prefix, baseDenom string) string {
	sum := sha256.Sum256([]byte(prefix + baseDenom))
	return Prefix + tmbytes.HexBytes(sum[:]).String()
}

// IsOpaque reports whether denom carries the hashed scheme tag.
func IsOpaque(denom string) bool {
	return strings.HasPrefix(denom, Prefix)
}

// ParseOpaque validates a hashed denomination and returns the digest bytes.
func ParseOpaque(denom string) ([]byte, error) {
	if !IsOpaque(denom) {
		return nil, fmt.Errorf("denom %q is missing %q prefix", denom, Prefix)
	}
	h := denom[len(Prefix):]
	if len(h) != hashHexLen {
		return nil, fmt.Errorf("denom %q: hash must be %d hex chars, got %d", denom, hashHexLen, len(h))
	}
	if strings.ToUpper(h) != h {
		return nil, fmt.Errorf("denom %q: hash must be uppercase hex", denom)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("denom %q: %w", denom, err)
	}
	return b, nil
}

// FullPath renders the unhashed denom path, e.g. "transfer/channel-0/uatom".
func (c *Codec) FullPath(trace model.DenomTrace) (string, error) {
	prefix, err := c.EncodePrefix(trace.Hops)
	if err != nil {
		return "", err
	}
	return prefix + trace.BaseDenom, nil
}
