// coremail-gw-authcheck is a minimal line-protocol front-end for the
// directory/fail2ban authentication coordinator. Real mail protocol
// front-ends (SMTP AUTH, IMAP LOGIN, ManageSieve) are out of scope; this
// binary exists as the one concrete ingress point exercising
// directory.Coordinator end to end, and the pattern any such front-end
// would follow to check a credential before accepting a session.
//
// Adapted from the placeholder event-gateway binary's lifecycle: env-var
// config loading, structured logging, and signal.NotifyContext shutdown.
//
// Wire protocol, one request per line on a plain TCP connection:
//
//	AUTH <username> <secret>\n
//
// Response, one line:
//
//	OK <principal-name>\n
//	FAIL\n
//	BANNED\n
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coremailer/coremail/common/environment"
	"github.com/coremailer/coremail/internal/corestate"
	"github.com/coremailer/coremail/internal/directory"
)

type config struct {
	ListenAddr string
	ConfigPath string
}

func loadConfig() config {
	return config{
		ListenAddr: environment.StringOr("GW_LISTEN_ADDR", ":10080"),
		ConfigPath: environment.StringOr("CONFIG_PATH", "./coremail.yaml"),
	}
}

func main() {
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(logHandler))

	cfg := loadConfig()

	coreCfg, err := corestate.LoadConfig(cfg.ConfigPath)
	if err != nil {
		slog.Warn("no usable config file, falling back to defaults", "error", err)
		coreCfg, err = corestate.ParseConfig([]byte("{}"))
		if err != nil {
			slog.Error("failed to build default config", "error", err)
			os.Exit(1)
		}
	}

	var fallbackAdmin *directory.FallbackAdminConfig
	if coreCfg.FallbackAdmin.Name != "" {
		fallbackAdmin = &directory.FallbackAdminConfig{
			Name:         coreCfg.FallbackAdmin.Name,
			PasswordHash: coreCfg.FallbackAdmin.PasswordHash,
			Master:       coreCfg.FallbackAdmin.Master,
		}
	}
	banStore := directory.NewFail2Ban(coreCfg.Fail2Ban.Threshold, time.Duration(coreCfg.Fail2Ban.WindowSec)*time.Second, nil)
	coordinator := directory.NewCoordinator(&noopDirectory{}, fallbackAdmin, banStore, coreCfg.Fail2Ban.Enabled, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		slog.Error("listen failed", "addr", cfg.ListenAddr, "error", err)
		os.Exit(1)
	}
	slog.Info("coremail-gw-authcheck listening", "addr", cfg.ListenAddr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				slog.Info("coremail-gw-authcheck shutting down")
				return
			default:
				slog.Warn("accept error", "error", err)
				continue
			}
		}
		go handleConn(ctx, coordinator, conn)
	}
}

func handleConn(ctx context.Context, coordinator *directory.Coordinator, conn net.Conn) {
	defer conn.Close()
	remoteIP := remoteHost(conn.RemoteAddr().String())

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 || !strings.EqualFold(fields[0], "AUTH") {
			fmt.Fprintf(conn, "FAIL\n")
			continue
		}

		outcome, err := coordinator.Authenticate(ctx, directory.PlainCredentials{Username: fields[1], Secret: fields[2]}, remoteIP, false)
		if err != nil {
			slog.Warn("authenticate error", "remote", remoteIP, "error", err)
			fmt.Fprintf(conn, "FAIL\n")
			continue
		}

		switch outcome.Kind {
		case directory.OutcomeSuccess:
			fmt.Fprintf(conn, "OK %s\n", outcome.Principal.Name)
		case directory.OutcomeBanned:
			fmt.Fprintf(conn, "BANNED\n")
		default:
			fmt.Fprintf(conn, "FAIL\n")
		}
	}
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// noopDirectory mirrors cmd/coremaild's stub: concrete directory backends
// are out of scope, so this gateway only ever resolves via fallback-admin.
type noopDirectory struct{}

func (*noopDirectory) QueryByCredentials(ctx context.Context, creds directory.Credentials, returnMemberOf bool) (*directory.Principal, error) {
	return nil, nil
}

func (*noopDirectory) QueryByName(ctx context.Context, name string, returnMemberOf bool) (*directory.Principal, error) {
	return nil, nil
}
