// Package app wires the application together: configuration, database,
// redis, the hook registry, the rule engine and the HTTP server. The
// container is built once at boot and injected into request handlers;
// there are no package-level singletons.
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"udb/internal/app/server"
	"udb/internal/config"
	"udb/internal/database"
	"udb/internal/domain"
	"udb/internal/importer"
	"udb/internal/ldap"
	"udb/internal/metrics"
	"udb/internal/notify"
	"udb/internal/rules"
	"udb/internal/search"
	"udb/internal/security"
	"udb/internal/store"
)

type App struct {
	cfg     *config.Config
	db      *gorm.DB
	redis   *redis.Client
	store   *store.Store
	engine  *rules.Engine
	server  *server.Server
	metrics *metrics.Metrics
}

// New builds the container. Everything that can fail at startup fails
// here, so Run only supervises.
func New(cfg *config.Config) (*App, error) {
	setupLogging(cfg)

	db, err := database.Open(cfg.DbURI)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURI)
	if err != nil {
		return nil, fmt.Errorf("parse redis-uri: %w", err)
	}
	redisClient := redis.NewClient(opts)

	registry := store.NewRegistry()
	store.RegisterDefaultHooks(registry)
	registry.RegisterAll(store.AfterFlush, func(f *store.Flush, e domain.Entity) error {
		return search.Refresh(f.Tx(), e)
	})

	st := store.New(db, registry)
	engine := rules.NewEngine(db, 30*time.Second)
	st.SetInlineChecker(engine.InlineChecker())

	if err := rules.SeedBuiltins(db); err != nil {
		return nil, fmt.Errorf("seed builtin rules: %w", err)
	}
	if err := seedAdmin(db, cfg); err != nil {
		return nil, fmt.Errorf("seed admin user: %w", err)
	}

	signingKey, err := sessionSigningKey(redisClient)
	if err != nil {
		return nil, fmt.Errorf("session signing key: %w", err)
	}
	sessions := security.NewSessionStore(redisClient, signingKey, time.Hour, 30*24*time.Hour)
	limiter := security.NewRateLimiter(db, int64(cfg.RateLimit), time.Hour)

	directory := ldap.New(ldap.Config{
		URI:                cfg.LdapURI,
		BaseDN:             cfg.LdapBaseDN,
		BindDN:             cfg.LdapBindDN,
		BindPassword:       cfg.LdapBindPassword,
		UsernameAttribute:  cfg.LdapUsernameAttribute,
		FullnameAttributes: cfg.LdapFullnameAttribute,
		EmailAttribute:     cfg.LdapEmailAttribute,
		RequiredGroup:      cfg.LdapRequiredGroup,
		AdminGroups:        cfg.LdapAdminGroup,
		DnsZoneMgmtGroups:  cfg.LdapDnsZoneMgmtGroup,
		SubnetMgmtGroups:   cfg.LdapSubnetMgmtGroup,
		UserGroups:         cfg.LdapUserGroup,
		GuestGroups:        cfg.LdapGuestGroup,
	})
	authenticator := security.NewAuthenticator(db, directory)

	st.SetNotifier(notify.New(notify.Config{
		Server:        cfg.SmtpServer,
		Username:      cfg.SmtpUsername,
		Password:      cfg.SmtpPassword,
		From:          cfg.SmtpFrom,
		CatchAllEmail: cfg.NotificationCatchAllEmail,
		HeaderName:    cfg.HeaderName,
	}))

	m := metrics.New()
	engine.SetObserver(m.ObserveRuleRun)
	srv := server.New(server.Deps{
		Config:        cfg,
		DB:            db,
		Store:         st,
		Engine:        engine,
		Sessions:      sessions,
		Limiter:       limiter,
		Authenticator: authenticator,
		Importer:      importer.New(st),
		Metrics:       m,
	})

	return &App{
		cfg:     cfg,
		db:      db,
		redis:   redisClient,
		store:   st,
		engine:  engine,
		server:  srv,
		metrics: m,
	}, nil
}

// Run serves HTTP and the rule scheduler until the context is
// cancelled, then shuts down in order.
func (a *App) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Handler:           a.server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind while still privileged, then drop: ports below 1024 stay
	// usable with an unprivileged drop-target user.
	listener, err := net.Listen("tcp", a.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.ListenAddr(), err)
	}
	if err := dropPrivileges(a.cfg); err != nil {
		listener.Close()
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("listening", "addr", listener.Addr())
		err := httpServer.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		// One full pass at boot so violations are fresh, then hourly.
		a.engine.RunAll(ctx)
		err := rules.NewScheduler(a.engine, time.Hour).Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	if closeErr := a.redis.Close(); closeErr != nil {
		log.Warn("error closing redis client", "error", closeErr)
	}
	return err
}

func setupLogging(cfg *config.Config) {
	switch cfg.LogLevel {
	case "ERROR":
		log.SetLevel(log.ErrorLevel)
	case "WARN":
		log.SetLevel(log.WarnLevel)
	case "DEBUG":
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Warn("cannot open log file, logging to stderr", "file", cfg.LogFile, "error", err)
			return
		}
		log.SetOutput(f)
	}
}

// seedAdmin creates the administrator account on an empty user table.
// The default password admin123 is meant to be changed immediately;
// admin-password overrides it with a pre-hashed value.
func seedAdmin(db *gorm.DB, cfg *config.Config) error {
	var n int64
	if err := db.Model(&domain.User{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password := cfg.AdminPassword
	if password == "" {
		var err error
		password, err = security.HashPassword("admin123")
		if err != nil {
			return err
		}
	}
	admin := domain.User{
		Username: cfg.AdminUser,
		Password: password,
		Role:     domain.RoleAdmin,
	}
	admin.Status = domain.StatusEnabled
	admin.Summary = admin.DisplayName()
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.Info("created administrator account", "username", admin.Username)
	return nil
}

const signingKeyName = "session:signing-key"

// sessionSigningKey loads the cookie signing key shared by all workers,
// generating it on first boot.
func sessionSigningKey(client *redis.Client) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	ok, err := client.SetNX(ctx, signingKeyName, key, 0).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return key, nil
	}
	return client.Get(ctx, signingKeyName).Bytes()
}
