// Package httpapi exposes the JMAP request envelope over HTTP, built on a
// net.Listen + http.Server + graceful-shutdown-on-context shape.
//
// Endpoints:
//
//	GET  /health  → HealthResponse
//	POST /jmap    → JMAP request envelope → JMAP response envelope
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coremailer/coremail/common/redact"
	"github.com/coremailer/coremail/common/trace"
	"github.com/coremailer/coremail/internal/corestate"
	"github.com/coremailer/coremail/internal/directory"
	"github.com/coremailer/coremail/internal/jmap"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Handlers bundles the callbacks and shared state the server delegates to.
type Handlers struct {
	Core *corestate.CoreState
	Auth *directory.Coordinator
}

// Server is the JMAP-over-HTTP server.
type Server struct {
	addr     string
	handlers Handlers
	log      *slog.Logger
	server   *http.Server
}

// New creates a Server listening on addr once Start is called.
func New(addr string, h Handlers, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{addr: addr, handlers: h, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/jmap", s.handleJMAP)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start begins listening. It returns once the listener is bound so callers
// can immediately start sending requests.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", s.addr, err)
	}
	s.log.Info("jmap server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("jmap server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleJMAP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	traceID := trace.GenerateID()
	ctx := trace.WithTraceID(r.Context(), traceID)
	r = r.WithContext(ctx)

	if s.handlers.Auth != nil {
		outcome, err := s.authenticate(r)
		if err != nil || outcome.Kind != directory.OutcomeSuccess {
			authz := r.Header.Get("Authorization")
			if scheme, cred, ok := strings.Cut(authz, " "); ok {
				authz = scheme + " " + redact.String(cred, cred)
			}
			s.log.Info("jmap: authentication rejected",
				"trace_id", traceID,
				"authorization", authz,
			)
			w.Header().Set("WWW-Authenticate", `Basic realm="coremail"`)
			writeProblem(w, http.StatusUnauthorized, "urn:ietf:params:jmap:error:unknownMethod", "authentication required")
			return
		}
	}

	snap := s.handlers.Core.Load()
	limits := snap.Protocol.JMAPLimits
	if limits.MaxCallsInRequest == 0 && limits.MaxSizeRequest == 0 {
		limits = jmap.DefaultLimits
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, int64(limits.MaxSizeRequest)+1))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "urn:ietf:params:jmap:error:malformed", err.Error())
		return
	}

	req, rerr := jmap.Parse(body, limits)
	if rerr != nil {
		writeProblem(w, statusForRequestError(rerr), string(rerr.Kind), rerr.Error())
		return
	}

	writeJSON(w, http.StatusOK, buildResponse(req, s.handlers.Core.SessionState()))
}

// authenticate extracts HTTP Basic credentials and runs them through the
// directory coordinator; bearer tokens map to OAuthBearerCredentials.
func (s *Server) authenticate(r *http.Request) (directory.AuthOutcome, error) {
	ctx := r.Context()
	remoteIP := remoteHost(r.RemoteAddr)

	if user, pass, ok := r.BasicAuth(); ok {
		return s.handlers.Auth.Authenticate(ctx, directory.PlainCredentials{Username: user, Secret: pass}, remoteIP, false)
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		return s.handlers.Auth.Authenticate(ctx, directory.OAuthBearerCredentials{Token: token}, remoteIP, false)
	}
	return directory.AuthOutcome{Kind: directory.OutcomeFailure}, nil
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// jmapResponse mirrors the RFC 8620 §3.4 Response object. Per-object
// business logic (Email/Mailbox/... semantics) is out of scope; every
// successfully-parsed call other than Core/echo is answered with a
// serverFail method error naming that scope boundary explicitly.
type jmapResponse struct {
	MethodResponses [][3]interface{}  `json:"methodResponses"`
	CreatedIds      map[string]string `json:"createdIds,omitempty"`
	SessionState    string            `json:"sessionState"`
}

func buildResponse(req *jmap.Request, sessionState string) jmapResponse {
	resp := jmapResponse{SessionState: sessionState, CreatedIds: req.CreatedIds}
	for _, call := range req.MethodCalls {
		resp.MethodResponses = append(resp.MethodResponses, methodResult(call))
	}
	return resp
}

func methodResult(call jmap.Call) [3]interface{} {
	switch m := call.Method.(type) {
	case *jmap.EchoMethod:
		var args interface{}
		_ = json.Unmarshal(m.Arguments, &args)
		return [3]interface{}{"Core/echo", args, call.ID}
	case *jmap.ErrorMethod:
		return [3]interface{}{"error", map[string]string{
			"type":        string(m.CallError.Kind),
			"description": m.CallError.Error(),
		}, call.ID}
	default:
		return [3]interface{}{"error", map[string]string{
			"type":        "serverFail",
			"description": "method is not executable on this node",
		}, call.ID}
	}
}

func statusForRequestError(rerr *jmap.RequestError) int {
	switch rerr.Kind {
	case jmap.ErrLimitSize:
		return http.StatusRequestEntityTooLarge
	case jmap.ErrNotRequest, jmap.ErrMalformed:
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeProblem(w http.ResponseWriter, status int, kind, detail string) {
	writeJSON(w, status, map[string]string{"type": kind, "detail": detail})
}
