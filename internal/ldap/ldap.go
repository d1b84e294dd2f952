// Package ldap authenticates users against an external directory and
// maps group membership to application roles.
package ldap

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	ldapv3 "github.com/go-ldap/ldap/v3"

	"udb/internal/domain"
	"udb/internal/security"
)

// Config carries the ldap-* options. An empty URI disables the
// directory entirely.
type Config struct {
	URI               string
	BaseDN            string
	BindDN            string
	BindPassword      string
	UsernameAttribute string
	// FullnameAttributes are tried in order; the first non-empty value
	// wins. Defaults to displayName then cn.
	FullnameAttributes []string
	EmailAttribute     string
	RequiredGroup      string
	AdminGroups        []string
	DnsZoneMgmtGroups  []string
	SubnetMgmtGroups   []string
	UserGroups         []string
	GuestGroups        []string
}

// Client implements security.Directory over go-ldap. Each login opens
// a fresh connection: a service bind locates the entry, then a bind
// with the user's own credentials proves the password.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.UsernameAttribute == "" {
		cfg.UsernameAttribute = "uid"
	}
	if len(cfg.FullnameAttributes) == 0 {
		cfg.FullnameAttributes = []string{"displayName", "cn"}
	}
	if cfg.EmailAttribute == "" {
		cfg.EmailAttribute = "mail"
	}
	return &Client{cfg: cfg}
}

func (c *Client) Enabled() bool { return c.cfg.URI != "" }

func (c *Client) Authenticate(ctx context.Context, username, password string) (*security.Profile, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ldap: directory not configured")
	}
	conn, err := ldapv3.DialURL(c.cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("ldap: dial %s: %w", c.cfg.URI, err)
	}
	defer conn.Close()

	if c.cfg.BindDN != "" {
		if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("ldap: service bind: %w", err)
		}
	}

	entry, err := c.findEntry(conn, username)
	if err != nil {
		return nil, err
	}

	// The user's own bind is the actual credential check.
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, fmt.Errorf("ldap: bind %s: %w", entry.DN, err)
	}

	groups := entry.GetAttributeValues("memberOf")
	if c.cfg.RequiredGroup != "" && !memberOf(groups, c.cfg.RequiredGroup) {
		return nil, fmt.Errorf("ldap: user %s is not a member of %s", username, c.cfg.RequiredGroup)
	}

	profile := &security.Profile{
		Username: entry.GetAttributeValue(c.cfg.UsernameAttribute),
		Email:    entry.GetAttributeValue(c.cfg.EmailAttribute),
		Role:     c.mapRole(groups),
	}
	if profile.Username == "" {
		profile.Username = username
	}
	for _, attr := range c.cfg.FullnameAttributes {
		if v := entry.GetAttributeValue(attr); v != "" {
			profile.Fullname = v
			break
		}
	}
	log.Debug("directory login", "username", profile.Username, "role", profile.Role)
	return profile, nil
}

func (c *Client) findEntry(conn *ldapv3.Conn, username string) (*ldapv3.Entry, error) {
	attrs := append([]string{c.cfg.UsernameAttribute, c.cfg.EmailAttribute, "memberOf"}, c.cfg.FullnameAttributes...)
	req := ldapv3.NewSearchRequest(
		c.cfg.BaseDN,
		ldapv3.ScopeWholeSubtree, ldapv3.NeverDerefAliases, 1, 10, false,
		fmt.Sprintf("(%s=%s)", c.cfg.UsernameAttribute, ldapv3.EscapeFilter(username)),
		attrs,
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("ldap: search %s: %w", username, err)
	}
	if len(res.Entries) == 0 {
		return nil, fmt.Errorf("ldap: user %s not found", username)
	}
	return res.Entries[0], nil
}

// mapRole picks the broadest role whose group list intersects the
// user's membership. No match falls through to guest.
func (c *Client) mapRole(groups []string) string {
	for _, m := range []struct {
		role   string
		lookup []string
	}{
		{domain.RoleAdmin, c.cfg.AdminGroups},
		{domain.RoleDnsZoneMgmt, c.cfg.DnsZoneMgmtGroups},
		{domain.RoleSubnetMgmt, c.cfg.SubnetMgmtGroups},
		{domain.RoleUser, c.cfg.UserGroups},
		{domain.RoleGuest, c.cfg.GuestGroups},
	} {
		for _, g := range m.lookup {
			if memberOf(groups, g) {
				return m.role
			}
		}
	}
	return domain.RoleGuest
}

// memberOf matches either the full DN or just the group's CN, so the
// config may list "cn=udb-admin,ou=groups,dc=example,dc=com" or plain
// "udb-admin".
func memberOf(groups []string, want string) bool {
	for _, g := range groups {
		if strings.EqualFold(g, want) {
			return true
		}
		if cn, ok := firstRDNValue(g); ok && strings.EqualFold(cn, want) {
			return true
		}
	}
	return false
}

func firstRDNValue(dn string) (string, bool) {
	part, _, _ := strings.Cut(dn, ",")
	_, value, found := strings.Cut(part, "=")
	if !found {
		return "", false
	}
	return strings.TrimSpace(value), true
}
