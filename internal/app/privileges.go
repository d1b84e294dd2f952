package app

import (
	"fmt"
	"os/user"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"

	"udb/internal/config"
)

// dropPrivileges applies umask and switches to the configured user and
// group. Called after the listen socket exists so the service can bind
// a privileged port and still run unprivileged.
func dropPrivileges(cfg *config.Config) error {
	if cfg.Umask != "" {
		mask, err := strconv.ParseInt(cfg.Umask, 8, 32)
		if err != nil {
			return fmt.Errorf("invalid umask %q", cfg.Umask)
		}
		syscall.Umask(int(mask))
	}

	// Group first: setgid is refused once the uid is unprivileged.
	if cfg.Group != "" {
		g, err := user.LookupGroup(cfg.Group)
		if err != nil {
			return fmt.Errorf("lookup group %q: %w", cfg.Group, err)
		}
		gid, err := strconv.Atoi(g.Gid)
		if err != nil {
			return err
		}
		if err := syscall.Setgid(gid); err != nil {
			return fmt.Errorf("setgid %d: %w", gid, err)
		}
	}
	if cfg.User != "" {
		u, err := user.Lookup(cfg.User)
		if err != nil {
			return fmt.Errorf("lookup user %q: %w", cfg.User, err)
		}
		uid, err := strconv.Atoi(u.Uid)
		if err != nil {
			return err
		}
		if err := syscall.Setuid(uid); err != nil {
			return fmt.Errorf("setuid %d: %w", uid, err)
		}
		log.Info("dropped privileges", "user", cfg.User, "group", cfg.Group)
	}
	return nil
}
