// Package permission brokers capability grants between dapp origins
// and the wallet. Grants are per-origin sets of capabilities, persisted
// across restarts; every new grant goes through an asynchronous user
// approval with a hard timeout.
package permission

import (
	"time"

	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
)

// Capability is one named right an origin can hold.
type Capability string

const (
	// CapConnect lets the origin see the wallet address.
	CapConnect Capability = "connect"
	// CapViewKey lets the origin read the view key.
	CapViewKey Capability = "view_key"
	// CapSign lets the origin request message signatures.
	CapSign Capability = "sign"
	// CapTransaction lets the origin request transaction broadcasts.
	CapTransaction Capability = "transaction"
	// CapRecords lets the origin query owned records.
	CapRecords Capability = "records"
	// CapDecrypt lets the origin request ciphertext decryption.
	CapDecrypt Capability = "decrypt"
)

var knownCapabilities = map[Capability]struct{}{
	CapConnect:     {},
	CapViewKey:     {},
	CapSign:        {},
	CapTransaction: {},
	CapRecords:     {},
	CapDecrypt:     {},
}

// Valid reports whether c names a known capability.
func (c Capability) Valid() bool {
	_, ok := knownCapabilities[c]
	return ok
}

// ParseCapabilities validates a raw capability list from the wire.
func ParseCapabilities(raw []string) ([]Capability, error) {
	if len(raw) == 0 {
		return nil, errs.Validation("at least one capability is required")
	}
	seen := make(map[Capability]struct{}, len(raw))
	caps := make([]Capability, 0, len(raw))
	for _, s := range raw {
		c := Capability(s)
		if !c.Valid() {
			return nil, errs.Validation("unknown capability %q", s)
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		caps = append(caps, c)
	}
	return caps, nil
}

// SitePermission is the persisted grant for one origin. Address is the
// wallet address the origin connected to.
type SitePermission struct {
	Origin         string       `json:"origin"`
	Address        string       `json:"address,omitempty"`
	Capabilities   []Capability `json:"capabilities"`
	ConnectedAt    time.Time    `json:"connected_at"`
	LastAccessedAt time.Time    `json:"last_accessed_at"`
}

// Has reports whether the grant includes c.
func (p *SitePermission) Has(c Capability) bool {
	for _, have := range p.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// hasAll reports whether every requested capability is already granted.
func (p *SitePermission) hasAll(caps []Capability) bool {
	for _, c := range caps {
		if !p.Has(c) {
			return false
		}
	}
	return true
}

// merge unions caps into the grant, preserving order of existing ones.
func (p *SitePermission) merge(caps []Capability) {
	for _, c := range caps {
		if !p.Has(c) {
			p.Capabilities = append(p.Capabilities, c)
		}
	}
	p.LastAccessedAt = time.Now()
}
