package directory

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AuthOutcomeKind is the three-way result of Authenticate.
type AuthOutcomeKind uint8

const (
	OutcomeSuccess AuthOutcomeKind = iota
	OutcomeFailure
	OutcomeBanned
)

// AuthOutcome is the result of Authenticate: Principal is set only when
// Kind is OutcomeSuccess.
type AuthOutcome struct {
	Kind      AuthOutcomeKind
	Principal *Principal
}

// Coordinator implements the authentication algorithm:
// directory primary path, fallback-admin/master-user secondary path, and
// an integrated fail2ban decision.
type Coordinator struct {
	primary        Directory
	fallbackAdmin  *FallbackAdminConfig
	banStore       BanStore
	fail2banEnable bool
	log            *slog.Logger
}

// NewCoordinator constructs a Coordinator. fallbackAdmin and banStore may
// be nil; fail2banEnabled gates whether step 5 records attempts and checks
// bans at all.
func NewCoordinator(primary Directory, fallbackAdmin *FallbackAdminConfig, banStore BanStore, fail2banEnabled bool, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		primary:        primary,
		fallbackAdmin:  fallbackAdmin,
		banStore:       banStore,
		fail2banEnable: fail2banEnabled,
		log:            log,
	}
}

// Authenticate runs the six-step algorithm. The step order is semantically
// important and must not be rearranged.
func (c *Coordinator) Authenticate(ctx context.Context, creds Credentials, remoteIP string, returnMemberOf bool) (AuthOutcome, error) {
	// A latched ban dominates everything, including otherwise-correct
	// credentials, until the window elapses.
	if c.fail2banEnable && c.banStore != nil {
		banned, err := c.banStore.IsBanned(ctx, remoteIP)
		if err != nil {
			c.log.Warn("fail2ban: ban lookup failed", "remote_ip", remoteIP, "error", err)
		} else if banned {
			return AuthOutcome{Kind: OutcomeBanned}, nil
		}
	}

	// Step 1: primary directory path. A hit returns Success immediately,
	// with no fail2ban accounting on success.
	principal, primaryErr := c.primary.QueryByCredentials(ctx, creds, returnMemberOf)
	if primaryErr == nil && principal != nil {
		return AuthOutcome{Kind: OutcomeSuccess, Principal: principal}, nil
	}
	// Step 2: remember any error from step 1, but continue (primaryErr is
	// surfaced in step 4 if the fallback path below does not resolve it).

	// Step 3: fallback-admin / master-user secondary path.
	if c.fallbackAdmin != nil {
		if plain, ok := creds.(PlainCredentials); ok {
			if outcome, handled, err := c.tryFallbackAdmin(ctx, plain, returnMemberOf); handled {
				return outcome, err
			}
		}
	}

	// Step 4: surface a primary directory backend error (e.g. transient
	// unreachability) rather than treating it as a plain auth failure.
	if primaryErr != nil {
		return AuthOutcome{Kind: OutcomeFailure}, primaryErr
	}

	// Step 5 / 6: fail2ban integration.
	if !c.fail2banEnable || c.banStore == nil {
		return AuthOutcome{Kind: OutcomeFailure}, nil
	}

	login := creds.loginName()
	if err := c.banStore.RecordAttempt(ctx, remoteIP, login); err != nil {
		// Open Question: a ban-store error is fail-open for the
		// user and fail-closed for ban counting — never surfaced as an
		// internal error to the client.
		c.log.Warn("fail2ban: record attempt failed", "remote_ip", remoteIP, "error", err)
		return AuthOutcome{Kind: OutcomeFailure}, nil
	}

	banned, err := c.banStore.IsBanned(ctx, remoteIP)
	if err != nil {
		c.log.Warn("fail2ban: ban lookup failed", "remote_ip", remoteIP, "error", err)
		return AuthOutcome{Kind: OutcomeFailure}, nil
	}
	if banned {
		return AuthOutcome{Kind: OutcomeBanned}, nil
	}
	return AuthOutcome{Kind: OutcomeFailure}, nil
}

// tryFallbackAdmin is the secondary authentication path. handled is false when the
// fallback path does not apply to this credential at all (caller should
// keep going to steps 4-6); handled is true when the fallback path fully
// decided the outcome (including its own Success/Failure — a master-user
// miss is Failure, not Banned).
func (c *Coordinator) tryFallbackAdmin(ctx context.Context, plain PlainCredentials, returnMemberOf bool) (AuthOutcome, bool, error) {
	var userAccount, adminAccount string
	if c.fallbackAdmin.Master {
		if idx := strings.LastIndex(plain.Username, "%"); idx >= 0 {
			userAccount = plain.Username[:idx]
			adminAccount = plain.Username[idx+1:]
		} else {
			adminAccount = plain.Username
		}
	} else {
		adminAccount = plain.Username
	}

	if adminAccount != c.fallbackAdmin.Name {
		return AuthOutcome{}, false, nil
	}
	if err := verifySecretHash(c.fallbackAdmin.PasswordHash, plain.Secret); err != nil {
		return AuthOutcome{}, false, nil
	}

	if userAccount != "" {
		principal, err := c.primary.QueryByName(ctx, userAccount, returnMemberOf)
		if err != nil {
			return AuthOutcome{Kind: OutcomeFailure}, true, err
		}
		if principal == nil {
			// Master-user miss: explicit Failure, not Banned.
			return AuthOutcome{Kind: OutcomeFailure}, true, nil
		}
		return AuthOutcome{Kind: OutcomeSuccess, Principal: principal}, true, nil
	}

	return AuthOutcome{Kind: OutcomeSuccess, Principal: FallbackAdminPrincipal(c.fallbackAdmin.Name)}, true, nil
}

// verifySecretHash is a constant-time comparison against a password hash.
// The hash scheme is bcrypt; callers never learn which scheme rejected
// the secret.
func verifySecretHash(hash, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}
