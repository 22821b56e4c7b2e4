package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"golang.org/x/oauth2"

	"esign-examples/internal/config"
	"esign-examples/internal/domain"
	"esign-examples/internal/infra/esign"
	"esign-examples/internal/infra/logging"
)

// MustAuthenticatePath is where callers without a usable token are sent.
const MustAuthenticatePath = "/ds/mustAuthenticate"

const (
	keyAccessToken = "access_token"
	keyExpiry      = "token_expiry"
	keyAccountID   = "account_id"
	keyAccountName = "account_name"
	keyBasePath    = "base_path"
	keyUserName    = "user_name"
	keyUserEmail   = "user_email"
	keyEg          = "eg"
	keyState       = "oauth_state"
	keyVerifier    = "oauth_verifier"
	keyFlashPrefix = "flash_"
)

// UserInfoFunc resolves the user and accounts behind an access token.
type UserInfoFunc func(ctx context.Context, accessToken string) (*esign.UserInfo, error)

// Manager runs the authorization code grant and owns the session state.
type Manager struct {
	store           *session.Store
	oauth           oauth2.Config
	targetAccountID string
	defaultTokenTTL time.Duration
	userInfo        UserInfoFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithUserInfo overrides how the userinfo endpoint is queried.
func WithUserInfo(f UserInfoFunc) Option {
	return func(m *Manager) { m.userInfo = f }
}

// NewManager wires a Manager from the application configuration.
func NewManager(store *session.Store, cfg config.Config, opts ...Option) *Manager {
	server := strings.TrimRight(cfg.Auth.OAuthServer, "/")
	m := &Manager{
		store: store,
		oauth: oauth2.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			RedirectURL:  cfg.RedirectURL(),
			Scopes:       cfg.Auth.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  server + "/oauth/auth",
				TokenURL: server + "/oauth/token",
			},
		},
		targetAccountID: cfg.Auth.TargetAccountID,
		defaultTokenTTL: cfg.Auth.DefaultTokenTTL,
	}
	m.userInfo = func(ctx context.Context, accessToken string) (*esign.UserInfo, error) {
		return esign.NewClient(ctx, server, accessToken, esign.WithTimeout(cfg.ESign.Timeout)).UserInfo(ctx)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the session state of the caller. A caller without a session
// gets an empty Session whose CheckToken is always false.
func (m *Manager) Load(c *fiber.Ctx) (*Session, error) {
	sess, err := m.store.Get(c)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	s := &Session{
		AccessToken: getString(sess, keyAccessToken),
		AccountID:   getString(sess, keyAccountID),
		AccountName: getString(sess, keyAccountName),
		BasePath:    getString(sess, keyBasePath),
		UserName:    getString(sess, keyUserName),
		UserEmail:   getString(sess, keyUserEmail),
	}
	if exp, ok := sess.Get(keyExpiry).(int64); ok {
		s.Expiry = time.Unix(exp, 0)
	}
	return s, nil
}

// Locals keys read by the page layout.
const (
	LocalUserName    = "sessionUserName"
	LocalAccountName = "sessionAccountName"
)

// ExposeUser makes the signed-in user and account available to rendered
// views. Requests without a valid token pass through untouched.
func (m *Manager) ExposeUser(c *fiber.Ctx) error {
	s, err := m.Load(c)
	if err != nil {
		return err
	}
	if s.CheckToken(0) {
		c.Locals(LocalUserName, s.UserName)
		c.Locals(LocalAccountName, s.AccountName)
	}
	return c.Next()
}

// SetEg records the example to resume once authentication completes.
func (m *Manager) SetEg(c *fiber.Ctx, eg string) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	sess.Set(keyEg, eg)
	return sess.Save()
}

// Flash queues a message of the given kind for the next page.
func (m *Manager) Flash(c *fiber.Ctx, kind, msg string) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	key := keyFlashPrefix + kind
	if prev := getString(sess, key); prev != "" {
		msg = prev + "\n" + msg
	}
	sess.Set(key, msg)
	return sess.Save()
}

// TakeFlash returns and clears the queued flash messages.
func (m *Manager) TakeFlash(c *fiber.Ctx) ([]Flash, error) {
	sess, err := m.store.Get(c)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var out []Flash
	for _, kind := range flashKinds {
		key := keyFlashPrefix + kind
		raw := getString(sess, key)
		if raw == "" {
			continue
		}
		for _, msg := range strings.Split(raw, "\n") {
			out = append(out, Flash{Kind: kind, Message: msg})
		}
		sess.Delete(key)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, sess.Save()
}

// Login starts the authorization code grant.
func (m *Manager) Login(c *fiber.Ctx) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()
	sess.Set(keyState, state)
	sess.Set(keyVerifier, verifier)
	if err := sess.Save(); err != nil {
		return err
	}
	return c.Redirect(m.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)))
}

// Callback completes the grant, stores the token and account in the session
// and resumes the recorded example.
func (m *Manager) Callback(c *fiber.Ctx) error {
	if reason := c.Query("error"); reason != "" {
		logging.Warn("Authorization denied", "reason", reason, "description", c.Query("error_description"))
		if err := m.Flash(c, "error", "Authentication was not completed: "+reason); err != nil {
			return err
		}
		return c.Redirect(MustAuthenticatePath)
	}

	sess, err := m.store.Get(c)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	state := getString(sess, keyState)
	verifier := getString(sess, keyVerifier)
	sess.Delete(keyState)
	sess.Delete(keyVerifier)
	if state == "" || c.Query("state") != state {
		_ = sess.Save()
		logging.Warn("OAuth state mismatch", "path", c.Path())
		return fiber.NewError(fiber.StatusBadRequest, domain.ErrStateMismatch.Error())
	}

	ctx := c.UserContext()
	tok, err := m.oauth.Exchange(ctx, c.Query("code"), oauth2.VerifierOption(verifier))
	if err != nil {
		logging.Error("Token exchange failed", "error", err)
		return fiber.NewError(fiber.StatusBadGateway, "token exchange failed")
	}
	info, err := m.userInfo(ctx, tok.AccessToken)
	if err != nil {
		logging.Error("Userinfo lookup failed", "error", err)
		return fiber.NewError(fiber.StatusBadGateway, "userinfo lookup failed")
	}
	account, err := m.pickAccount(info)
	if err != nil {
		logging.Warn("No usable account", "user", info.Email, "target_account", m.targetAccountID)
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(m.defaultTokenTTL)
	}

	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("regenerate session: %w", err)
	}
	sess.Set(keyAccessToken, tok.AccessToken)
	sess.Set(keyExpiry, expiry.Unix())
	sess.Set(keyAccountID, account.AccountID)
	sess.Set(keyAccountName, account.AccountName)
	sess.Set(keyBasePath, strings.TrimRight(account.BaseURI, "/")+"/restapi")
	sess.Set(keyUserName, info.Name)
	sess.Set(keyUserEmail, info.Email)

	target := "/"
	if eg := getString(sess, keyEg); eg != "" {
		target = "/" + eg
		sess.Delete(keyEg)
	}
	if err := sess.Save(); err != nil {
		return err
	}
	logging.Info("User authenticated", "account_id", account.AccountID, "resume", target)
	return c.Redirect(target)
}

// Logout drops the session.
func (m *Manager) Logout(c *fiber.Ctx) error {
	sess, err := m.store.Get(c)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if err := sess.Destroy(); err != nil {
		return err
	}
	return c.Redirect("/")
}

func (m *Manager) pickAccount(info *esign.UserInfo) (esign.Account, error) {
	for _, a := range info.Accounts {
		if m.targetAccountID != "" {
			if a.AccountID == m.targetAccountID {
				return a, nil
			}
			continue
		}
		if a.IsDefault {
			return a, nil
		}
	}
	if m.targetAccountID != "" {
		return esign.Account{}, fmt.Errorf("%w: account %s not granted", domain.ErrNoAccount, m.targetAccountID)
	}
	return esign.Account{}, errors.Join(domain.ErrNoAccount, errors.New("no default account"))
}

func getString(sess *session.Session, key string) string {
	v, _ := sess.Get(key).(string)
	return v
}
