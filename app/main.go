package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"infrastatus/app/internal/auth"
	"infrastatus/app/internal/config"
	"infrastatus/app/internal/database"
	"infrastatus/app/internal/engine"
	"infrastatus/app/internal/handlers"
	"infrastatus/app/internal/security"
	"infrastatus/app/internal/stats"
	"infrastatus/app/internal/units"
)

const usage = `usage: infrastatus [-env file] <action>

actions:
  domains       check every HTTP domain once
  servers       check every TCP server once
  gameservers   check every game server once
  proxmox       walk the hypervisor API once
  all           run every check kind once
  cleanup       purge records past retention
  test          check database and hypervisor connectivity
  serve         run the scheduler and HTTP API (default)
`

func main() {
	envFile := flag.String("env", "", "load environment from `file` instead of .env")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	action := "serve"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	if err := run(action, *envFile); err != nil {
		log.Fatalf("%s: %v", action, err)
	}
}

func run(action, envFile string) error {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	log.Printf("Database opened (%s)", store.Driver())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case engine.ValidCycle(action):
		eng := engine.New(cfg, store)
		report, err := eng.RunCycle(ctx, action)
		fmt.Printf("%s cycle: %s\n", action, report.Summary())
		for _, e := range report.Errors {
			fmt.Printf("  error: %s\n", e)
		}
		return err
	case action == "cleanup":
		report, err := engine.New(cfg, store).Cleanup(ctx)
		if err != nil {
			return err
		}
		printPurge(report)
		return nil
	case action == "test":
		ok := true
		for _, res := range engine.New(cfg, store).TestConnections(ctx) {
			mark := "ok"
			if !res.OK {
				mark, ok = "FAIL", false
			}
			fmt.Printf("%-10s %-4s %s (%s)\n", res.Name, mark, res.Detail, res.Took.Round(time.Millisecond))
		}
		if !ok {
			return errors.New("connectivity test failed")
		}
		return nil
	case action == "serve":
		return serve(ctx, cfg, store)
	default:
		flag.Usage()
		return fmt.Errorf("unknown action %q", action)
	}
}

func printPurge(report database.PurgeReport) {
	tables := make([]string, 0, len(report))
	for t := range report {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Printf("%-24s %s deleted\n", t, units.FormatCount(report[t]))
	}
	fmt.Printf("%-24s %s deleted\n", "total", units.FormatCount(report.Total()))
}

func serve(ctx context.Context, cfg *config.Config, store *database.Store) error {
	allow, err := security.ParseAllowlist(cfg.AdminAllowIPs)
	if err != nil {
		return fmt.Errorf("ADMIN_ALLOW_IPS: %w", err)
	}
	proxies, err := security.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	statsSvc := stats.NewService(store, &cfg.Targets, cfg.CacheTTL)
	defer statsSvc.Close()

	eng := engine.New(cfg, store, engine.WithCycleHook(func(engine.CycleReport) {
		statsSvc.Invalidate()
	}))

	authMgr := auth.NewAuth(cfg.AdminUser, cfg.AdminHash, cfg.JWTSecret, cfg.TokenTTL)
	router := handlers.SetupRoutes(handlers.Deps{
		Status:       statsSvc,
		Runner:       eng,
		Store:        store,
		Auth:         authMgr,
		Allow:        allow,
		Proxies:      proxies,
		PushInterval: cfg.LivePushInterval,
	})
	defer router.Close()

	if cfg.EnableScheduler {
		go runScheduler(ctx, eng, cfg.PollInterval)
		go runCleanup(ctx, eng, cfg.CleanupInterval)
		log.Printf("Scheduler started with %v interval", cfg.PollInterval)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CycleTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runScheduler runs a full check cycle at startup and then every interval.
func runScheduler(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := eng.RunCycle(ctx, engine.CycleAll); err != nil && ctx.Err() == nil {
			log.Printf("scheduler: cycle finished with errors: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runCleanup applies retention every interval.
func runCleanup(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := eng.Cleanup(ctx); err != nil {
				log.Printf("cleanup: %v", err)
			}
		}
	}
}
