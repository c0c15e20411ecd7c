// Package token canonicalises instrument identifiers. Contract addresses are
// rendered in EIP-55 checksum form, anything else is treated as a ticker
// symbol and upper-cased.
package token

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Canonical returns the canonical form of an instrument identifier.
func Canonical(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if common.IsHexAddress(id) {
		return common.HexToAddress(id).Hex()
	}
	return strings.ToUpper(id)
}

// IsAddress reports whether id is an on-chain contract address.
func IsAddress(id string) bool {
	return common.IsHexAddress(strings.TrimSpace(id))
}

// Equal compares two identifiers after canonicalisation.
func Equal(a, b string) bool {
	return Canonical(a) == Canonical(b)
}

// Registry maps symbols to contract addresses and back.
type Registry struct {
	bySymbol  map[string]string
	byAddress map[string]string
}

// NewRegistry builds a registry from symbol -> address pairs. Entries with an
// invalid address are kept as symbol-only instruments.
func NewRegistry(pairs map[string]string) *Registry {
	r := &Registry{bySymbol: map[string]string{}, byAddress: map[string]string{}}
	for sym, addr := range pairs {
		sym = Canonical(sym)
		if sym == "" {
			continue
		}
		if IsAddress(addr) {
			addr = Canonical(addr)
			r.bySymbol[sym] = addr
			r.byAddress[addr] = sym
			continue
		}
		r.bySymbol[sym] = ""
	}
	return r
}

// Address returns the contract address for id, which may itself already be an
// address.
func (r *Registry) Address(id string) (string, bool) {
	c := Canonical(id)
	if IsAddress(c) {
		return c, true
	}
	if r == nil {
		return "", false
	}
	addr, ok := r.bySymbol[c]
	return addr, ok && addr != ""
}

// Symbol returns the ticker for id.
func (r *Registry) Symbol(id string) string {
	c := Canonical(id)
	if r != nil {
		if sym, ok := r.byAddress[c]; ok {
			return sym
		}
	}
	return c
}
