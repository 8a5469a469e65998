// Package corestate implements the shared core snapshot: a
// read-mostly bundle of configuration swappable atomically for hot reload,
// with named-map lookups that apply a defaulting policy on miss.
package corestate

import (
	"context"
	"log/slog"
	"net/netip"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/coremailer/coremail/internal/directory"
	"github.com/coremailer/coremail/internal/jmap"
)

// LookupStore is an out-of-scope key/value backend (DNSBL, greylist,
// arbitrary expression lookups) the core consults by name.
type LookupStore interface {
	Lookup(ctx context.Context, key string) ([]string, error)
}

// ARCSealer signs outbound ARC seals. Concrete implementation out of scope.
type ARCSealer interface {
	Seal(ctx context.Context, message []byte) ([]byte, error)
}

// DKIMSigner signs outbound DKIM headers. Concrete implementation out of
// scope.
type DKIMSigner interface {
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// RelayHost is an outbound SMTP relay target.
type RelayHost struct {
	Host string
	Port int
}

// NetworkConfig holds the blocked-IP list and URL allow/deny expression
// consulted by the network layer.
type NetworkConfig struct {
	BlockedIPs []netip.Prefix
	URLExpr    string
}

// TLSConfig is a placeholder for the TLS manager handle; TLS listener
// plumbing itself is out of scope.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// ProtocolConfig bundles the per-protocol settings the snapshot carries.
// Only JMAPLimits is consumed directly by in-scope code (internal/jmap);
// SMTP/IMAP are represented for completeness of the snapshot shape.
type ProtocolConfig struct {
	JMAPLimits         jmap.Limits
	SMTPMaxRecipients  int
	IMAPIdleTimeoutSec int
}

// Snapshot is the full immutable configuration bundle. A new Snapshot is
// built and published wholesale on reload; existing readers keep using
// their captured pointer until they next call Load.
type Snapshot struct {
	Directories  map[string]directory.Directory
	LookupStores map[string]LookupStore
	ARCSealers   map[string]ARCSealer
	DKIMSigners  map[string]DKIMSigner
	SieveScripts map[string][]byte
	RelayHosts   map[string]RelayHost

	Network  NetworkConfig
	TLS      TLSConfig
	Protocol ProtocolConfig
}

const defaultKey = "default"

// CoreState holds the atomically swappable Snapshot pointer and the logger
// used by the lookup methods' defaulting/miss policy.
type CoreState struct {
	ptr     atomic.Pointer[Snapshot]
	session atomic.Pointer[string]
	log     *slog.Logger
}

// New constructs a CoreState published with an initial snapshot.
func New(initial *Snapshot, log *slog.Logger) *CoreState {
	if log == nil {
		log = slog.Default()
	}
	cs := &CoreState{log: log}
	cs.Publish(initial)
	return cs
}

// Publish atomically swaps in a new snapshot and mints a fresh JMAP session
// state token, so clients polling Session objects observe that something
// changed (RFC 8620 §2 "sessionState"). Readers already holding a pointer
// from Load keep observing the old snapshot; new Load calls see the new one.
func (c *CoreState) Publish(s *Snapshot) {
	c.ptr.Store(s)
	token := uuid.NewString()
	c.session.Store(&token)
}

// SessionState returns the token that changes every time Publish runs.
func (c *CoreState) SessionState() string {
	if t := c.session.Load(); t != nil {
		return *t
	}
	return ""
}

// Load captures the current snapshot pointer. Callers should call this once
// per request to avoid mid-request drift.
func (c *CoreState) Load() *Snapshot {
	return c.ptr.Load()
}

// GetDirectory resolves a named directory, falling back to the "default"
// entry and logging a debug event on fallback.
func (c *CoreState) GetDirectory(name string) (directory.Directory, bool) {
	snap := c.Load()
	if d, ok := snap.Directories[name]; ok {
		return d, true
	}
	if d, ok := snap.Directories[defaultKey]; ok {
		c.log.Debug("corestate: directory miss, using default", "requested", name)
		return d, true
	}
	return nil, false
}

// GetLookupStore resolves a named lookup store, with the same
// default-with-debug-log policy as GetDirectory.
func (c *CoreState) GetLookupStore(name string) (LookupStore, bool) {
	snap := c.Load()
	if s, ok := snap.LookupStores[name]; ok {
		return s, true
	}
	if s, ok := snap.LookupStores[defaultKey]; ok {
		c.log.Debug("corestate: lookup store miss, using default", "requested", name)
		return s, true
	}
	return nil, false
}

// GetARCSealer resolves a named ARC sealer. A miss returns nothing (no
// default) and logs a warning, so the caller can fail the specific
// operation rather than silently sealing with the wrong key.
func (c *CoreState) GetARCSealer(name string) (ARCSealer, bool) {
	snap := c.Load()
	s, ok := snap.ARCSealers[name]
	if !ok {
		c.log.Warn("corestate: arc sealer not found", "name", name)
	}
	return s, ok
}

// GetDKIMSigner resolves a named DKIM signer; miss-without-default, warn
// logged, matching GetARCSealer.
func (c *CoreState) GetDKIMSigner(name string) (DKIMSigner, bool) {
	snap := c.Load()
	s, ok := snap.DKIMSigners[name]
	if !ok {
		c.log.Warn("corestate: dkim signer not found", "name", name)
	}
	return s, ok
}

// GetSieveScript resolves a named Sieve script; miss-without-default, warn
// logged.
func (c *CoreState) GetSieveScript(name string) ([]byte, bool) {
	snap := c.Load()
	s, ok := snap.SieveScripts[name]
	if !ok {
		c.log.Warn("corestate: sieve script not found", "name", name)
	}
	return s, ok
}

// GetRelayHost resolves a named relay host; miss-without-default, warn
// logged.
func (c *CoreState) GetRelayHost(name string) (RelayHost, bool) {
	snap := c.Load()
	r, ok := snap.RelayHosts[name]
	if !ok {
		c.log.Warn("corestate: relay host not found", "name", name)
	}
	return r, ok
}
