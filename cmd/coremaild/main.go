// Command coremaild is the core mail daemon: it loads the shared
// configuration snapshot, starts the JMAP HTTP listener and the gossip
// failure detector, and wires the directory/fail2ban authentication
// coordinator between them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coremailer/coremail/common/environment"
	"github.com/coremailer/coremail/common/version"
	"github.com/coremailer/coremail/internal/corestate"
	"github.com/coremailer/coremail/internal/directory"
	"github.com/coremailer/coremail/internal/gossip"
	"github.com/coremailer/coremail/internal/httpapi"
	"github.com/coremailer/coremail/internal/jmap"
	"github.com/coremailer/coremail/internal/storage"
)

func main() {
	fmt.Printf("coremaild\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	cfg, err := corestate.LoadConfig(environment.StringOr("CONFIG_PATH", "./coremail.yaml"))
	if err != nil {
		slog.Warn("no usable config file, falling back to defaults", "error", err)
		cfg, err = corestate.ParseConfig([]byte("{}"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to build default config: %v\n", err)
			os.Exit(1)
		}
	}

	var banStore *directory.Fail2Ban
	var store *storage.Store
	if cfg.Fail2Ban.Enabled {
		slog.Info("opening database", "path", cfg.DatabasePath)
		store, err = storage.New(cfg.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		banStore = directory.NewFail2Ban(cfg.Fail2Ban.Threshold, time.Duration(cfg.Fail2Ban.WindowSec)*time.Second, store)
	}

	var fallbackAdmin *directory.FallbackAdminConfig
	if cfg.FallbackAdmin.Name != "" {
		fallbackAdmin = &directory.FallbackAdminConfig{
			Name:         cfg.FallbackAdmin.Name,
			PasswordHash: cfg.FallbackAdmin.PasswordHash,
			Master:       cfg.FallbackAdmin.Master,
		}
	}

	primaryDir := &noopDirectory{}
	coordinator := directory.NewCoordinator(primaryDir, fallbackAdmin, banStore, cfg.Fail2Ban.Enabled, nil)

	snapshot := &corestate.Snapshot{
		Directories: map[string]directory.Directory{"default": primaryDir},
		RelayHosts:  cfg.RelayHosts,
		Network:     buildNetworkConfig(cfg),
		Protocol: corestate.ProtocolConfig{
			JMAPLimits: jmap.Limits{
				MaxSizeRequest:    cfg.JMAP.MaxSizeRequest,
				MaxCallsInRequest: cfg.JMAP.MaxCallsInRequest,
			},
		},
	}
	core := corestate.New(snapshot, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gossiper, err := startGossip(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start gossip: %v\n", err)
		os.Exit(1)
	}
	if gossiper != nil {
		gossiper.OnOffline(func(p *gossip.Peer) {
			slog.Warn("peer went offline", "addr", p.Addr.String())
			if store != nil {
				err := store.RecordPeer(ctx, p.Addr.String(), p.State.String(),
					int64(p.Epoch), int64(p.GenConfig), int64(p.GenLists), p.LastHeartbeat)
				if err != nil {
					slog.Warn("peer ledger write failed", "addr", p.Addr.String(), "error", err)
				}
			}
		})
		gossiper.OnAntiEntropy(func(p *gossip.Peer) {
			slog.Info("peer generation advanced, pull due",
				"addr", p.Addr.String(), "gen_config", p.GenConfig, "gen_lists", p.GenLists)
		})
		go gossiper.Run(ctx)
	}

	httpServer := httpapi.New(cfg.Listen.HTTPAddr, httpapi.Handlers{Core: core, Auth: coordinator}, nil)
	if err := httpServer.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start JMAP server: %v\n", err)
		os.Exit(1)
	}

	slog.Info("coremaild is running; press Ctrl+C to stop")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	cancel()
	httpServer.Stop()
	if gossiper != nil {
		gossiper.Stop()
	}
}

// startGossip binds the gossip UDP socket and seeds the registry. Returns a
// nil Gossiper (not an error) when the gossip listen address is empty;
// corestate.ParseConfig defaults that address and rejects an empty one, so
// a config it accepts always starts gossip.
func startGossip(cfg *corestate.Config) (*gossip.Gossiper, error) {
	if cfg.Listen.GossipUDPAddr == "" {
		return nil, nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.Listen.GossipUDPAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve gossip address %q: %w", cfg.Listen.GossipUDPAddr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %q: %w", cfg.Listen.GossipUDPAddr, err)
	}

	selfAddr := localAddrFromConn(conn)
	registry := gossip.NewRegistry(selfAddr)
	for _, seed := range cfg.Gossip.Seeds {
		addrPort, err := netip.ParseAddrPort(seed)
		if err != nil {
			slog.Warn("gossip: skipping unparseable seed", "seed", seed, "error", err)
			continue
		}
		registry.AddSeed(addrPort.Addr())
	}

	return gossip.NewGossiper(registry, conn, nil), nil
}

// localAddrFromConn extracts the bound IP for the registry's self identity.
// A production deployment sets an explicit advertised address rather than
// relying on the listen socket's (possibly unspecified, e.g. 0.0.0.0) IP.
func localAddrFromConn(conn *net.UDPConn) netip.Addr {
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.IPv4Unspecified()
	}
	ap, ok := netip.AddrFromSlice(addr.IP)
	if !ok {
		return netip.IPv4Unspecified()
	}
	return ap.Unmap()
}

func buildNetworkConfig(cfg *corestate.Config) corestate.NetworkConfig {
	var prefixes []netip.Prefix
	for _, raw := range cfg.Network.BlockedIPs {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			slog.Warn("network: skipping unparseable blocked_ips entry", "value", raw, "error", err)
			continue
		}
		prefixes = append(prefixes, p)
	}
	return corestate.NetworkConfig{BlockedIPs: prefixes, URLExpr: cfg.Network.URLExpr}
}

// noopDirectory is the primary directory backend stub: concrete directory
// backends (LDAP, SQL, IMAP passthrough) are out of scope, so this
// always reports "not found", letting the fallback-admin and fail2ban paths
// in directory.Coordinator run exactly as they would against a real backend
// that simply doesn't recognize the credential.
type noopDirectory struct{}

func (*noopDirectory) QueryByCredentials(ctx context.Context, creds directory.Credentials, returnMemberOf bool) (*directory.Principal, error) {
	return nil, nil
}

func (*noopDirectory) QueryByName(ctx context.Context, name string, returnMemberOf bool) (*directory.Principal, error) {
	return nil, nil
}
