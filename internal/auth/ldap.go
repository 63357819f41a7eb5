// Package auth guards the HTTP API with LDAP logins and cookie sessions.
package auth

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/hootmeow/openvas-strix/internal/config"
)

// ErrInvalidCredentials is returned for unknown users and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User represents an authenticated user
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	DN          string `json:"-"`
}

// Authenticator checks a username and password.
type Authenticator interface {
	Authenticate(username, password string) (*User, error)
}

// LDAPAuthenticator handles LDAP/Active Directory authentication
type LDAPAuthenticator struct {
	server       string
	port         int
	useTLS       bool
	baseDN       string
	bindUser     string
	bindPassword string
	userFilter   string
}

var _ Authenticator = (*LDAPAuthenticator)(nil)

// NewLDAPAuthenticator builds an authenticator from the auth section.
func NewLDAPAuthenticator(cfg config.AuthConfig) *LDAPAuthenticator {
	filter := cfg.UserFilter
	if filter == "" {
		filter = "(sAMAccountName=%s)"
	}
	port := cfg.LDAPPort
	if port == 0 {
		if cfg.UseTLS {
			port = 636
		} else {
			port = 389
		}
	}
	return &LDAPAuthenticator{
		server:       cfg.LDAPServer,
		port:         port,
		useTLS:       cfg.UseTLS,
		baseDN:       cfg.BaseDN,
		bindUser:     cfg.BindUser,
		bindPassword: cfg.BindPassword,
		userFilter:   filter,
	}
}

// Authenticate validates user credentials against LDAP
func (a *LDAPAuthenticator) Authenticate(username, password string) (*User, error) {
	// An empty password would turn the user bind into an unauthenticated bind.
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	conn, err := a.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if err := conn.Bind(a.bindUser, a.bindPassword); err != nil {
		return nil, fmt.Errorf("service account bind failed: %w", err)
	}

	result, err := conn.Search(a.userSearch(username))
	if err != nil {
		return nil, fmt.Errorf("user search failed: %w", err)
	}
	if len(result.Entries) != 1 {
		return nil, ErrInvalidCredentials
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return userFromEntry(username, entry), nil
}

func (a *LDAPAuthenticator) userSearch(username string) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		a.baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, // Size limit; two results is already ambiguous
		0, // Time limit
		false,
		fmt.Sprintf(a.userFilter, ldap.EscapeFilter(username)),
		[]string{"dn", "cn", "displayName", "mail", "sAMAccountName"},
		nil,
	)
}

func userFromEntry(username string, entry *ldap.Entry) *User {
	user := &User{
		Username:    username,
		DisplayName: entry.GetAttributeValue("displayName"),
		Email:       entry.GetAttributeValue("mail"),
		DN:          entry.DN,
	}
	if user.DisplayName == "" {
		user.DisplayName = entry.GetAttributeValue("cn")
	}
	if user.DisplayName == "" {
		user.DisplayName = username
	}
	return user
}

// connect establishes a connection to the LDAP server
func (a *LDAPAuthenticator) connect() (*ldap.Conn, error) {
	address := fmt.Sprintf("%s:%d", a.server, a.port)

	if a.useTLS {
		tlsConfig := &tls.Config{
			ServerName: a.server,
			MinVersion: tls.VersionTLS12,
		}
		return ldap.DialTLS("tcp", address, tlsConfig)
	}
	return ldap.Dial("tcp", address)
}

// TestConnection tests the LDAP connection with the service account
func (a *LDAPAuthenticator) TestConnection() error {
	conn, err := a.connect()
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	if err := conn.Bind(a.bindUser, a.bindPassword); err != nil {
		return fmt.Errorf("service account bind failed: %w", err)
	}
	return nil
}
