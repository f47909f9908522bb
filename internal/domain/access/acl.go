// Package access provides address-based access control lists.
package access

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// ErrInvalidEntry is returned when an ACL entry cannot be parsed or added.
var ErrInvalidEntry = errors.New("invalid acl entry")

// Permission is the verdict of an ACL entry.
type Permission int

const (
	// Deny rejects matching addresses.
	Deny Permission = iota
	// Allow accepts matching addresses.
	Allow
)

// String returns "allow" or "deny".
func (p Permission) String() string {
	if p == Allow {
		return "allow"
	}
	return "deny"
}

// ParsePermission parses "allow" or "deny".
func ParsePermission(s string) (Permission, error) {
	switch strings.ToLower(s) {
	case "allow":
		return Allow, nil
	case "deny":
		return Deny, nil
	}
	return Deny, fmt.Errorf("%w: permission %q", ErrInvalidEntry, s)
}

// Entry is one address range with its permission.
type Entry struct {
	Prefix     netip.Prefix
	Permission Permission
	// Expires is when the entry is dropped. Zero means never.
	Expires time.Time
}

func (e Entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && now.After(e.Expires)
}

// ACL is an ordered list of entries. An address is checked against every
// live entry in order and the last match decides; with no match it is
// allowed. Safe for concurrent use.
type ACL struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// New creates an empty ACL, which allows everything.
func New() *ACL {
	return &ACL{now: time.Now}
}

// ParsePrefix parses a CIDR prefix or a bare address, which becomes a
// single-host prefix. The prefix is masked.
func ParsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Add appends an entry. A zero expires keeps the entry forever.
func (a *ACL) Add(prefix netip.Prefix, perm Permission, expires time.Time) error {
	if !prefix.IsValid() || (perm != Allow && perm != Deny) {
		return ErrInvalidEntry
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, Entry{Prefix: prefix.Masked(), Permission: perm, Expires: expires})
	return nil
}

// Delete removes every entry for prefix.
func (a *ACL) Delete(prefix netip.Prefix) {
	prefix = prefix.Masked()
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.entries[:0]
	for _, e := range a.entries {
		if e.Prefix != prefix {
			kept = append(kept, e)
		}
	}
	a.entries = kept
}

// Check returns the permission for addr, dropping expired entries on the
// way.
func (a *ACL) Check(addr netip.Addr) Permission {
	addr = addr.Unmap()
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	result := Allow
	kept := a.entries[:0]
	for _, e := range a.entries {
		if e.expired(now) {
			continue
		}
		kept = append(kept, e)
		if e.Prefix.Contains(addr) {
			result = e.Permission
		}
	}
	a.entries = kept
	return result
}

// Entries returns a snapshot of the live entries in order.
func (a *ACL) Entries() []Entry {
	now := a.now()
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Entry, 0, len(a.entries))
	for _, e := range a.entries {
		if !e.expired(now) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of stored entries, expired or not.
func (a *ACL) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
