package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	albnats "github.com/albatross-va/albatross/internal/adapter/nats"
	"github.com/albatross-va/albatross/internal/adapter/postgres"
	"github.com/albatross-va/albatross/internal/config"
	"github.com/albatross-va/albatross/internal/domain/user"
	"github.com/albatross-va/albatross/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "create-tenant":
		return runAdminCreateTenant(args[1:])
	case "create-user":
		return runAdminCreateUser(args[1:])
	case "create-key":
		return runAdminCreateKey(args[1:])
	case "list-tenants":
		return runAdminListTenants(args[1:])
	case "migrate-status":
		return runAdminMigrateStatus(args[1:])
	case "migrate-down":
		return runAdminMigrateDown(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: albatross admin <command> [options]

Commands:
  create-tenant   Create a new tenant
  create-user     Create a new user
  create-key      Mint an API key for a user
  list-tenants    List all tenants
  migrate-status  Show the current database migration version
  migrate-down    Roll back database migrations
  help            Show this help message

Examples:
  albatross admin create-tenant --name "Albatross VA"
  albatross admin create-user --username root --email root@example.com --role PlatformAdmin
  albatross admin create-user --username p1 --email p1@example.com --tenant <tenant-id>
  albatross admin create-key --user <user-id> --name bootstrap
`)
}

type adminDeps struct {
	tenants *service.TenantService
	users   *service.UserService
	cleanup func()
}

func loadAdminDeps(ctx context.Context) (*adminDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	bus, err := albnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	store := postgres.NewEventStore(pool)
	reads := postgres.NewReadModel(pool)

	return &adminDeps{
		tenants: service.NewTenantService(store, bus, reads, nil),
		users:   service.NewUserService(store, bus, reads, &cfg.Auth, nil),
		cleanup: func() {
			bus.Close()
			pool.Close()
		},
	}, nil
}

func runAdminCreateTenant(args []string) error {
	fs := flag.NewFlagSet("create-tenant", flag.ContinueOnError)
	name := fs.String("name", "", "tenant name (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	id, err := deps.tenants.Create(ctx, *name)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Tenant created: %s (id=%s)\n", *name, id)
	return nil
}

func runAdminCreateUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	username := fs.String("username", "", "username (required)")
	email := fs.String("email", "", "email address (required)")
	role := fs.String("role", string(user.RolePilot), "role: PlatformAdmin, TenantAdmin or Pilot")
	tenant := fs.String("tenant", "", "tenant id (required except for PlatformAdmin)")
	password := fs.String("password", "", "password (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("--username is required")
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	pass := *password
	if pass == "" {
		var err error
		pass, err = promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if pass != confirm {
			return fmt.Errorf("passwords do not match")
		}
	}

	var tenantID *string
	if *tenant != "" {
		tenantID = tenant
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	id, err := deps.users.Register(ctx, service.RegisterRequest{
		Username: *username,
		Email:    *email,
		Password: pass,
		Role:     *role,
		TenantID: tenantID,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "User created: %s (id=%s, role=%s)\n", *username, id, *role)
	return nil
}

func runAdminCreateKey(args []string) error {
	fs := flag.NewFlagSet("create-key", flag.ContinueOnError)
	userID := fs.String("user", "", "user id (required)")
	name := fs.String("name", "admin", "key name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return fmt.Errorf("--user is required")
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	key, err := deps.users.GenerateApiKey(ctx, *userID, *name)
	if err != nil {
		return fmt.Errorf("create key: %w", err)
	}

	// The raw key is shown exactly once; only its hash is stored.
	fmt.Fprintf(os.Stderr, "API key created (id=%s)\n", key.KeyID)
	fmt.Println(key.RawKey)
	return nil
}

func runAdminListTenants(args []string) error {
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.cleanup()

	tenants, err := deps.tenants.List(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCREATED")
	for i := range tenants {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
			tenants[i].ID, tenants[i].Name, tenants[i].CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func runAdminMigrateStatus(args []string) error {
	fs := flag.NewFlagSet("migrate-status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	version, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	fmt.Printf("migration version: %d\n", version)
	return nil
}

func runAdminMigrateDown(args []string) error {
	fs := flag.NewFlagSet("migrate-down", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
		return err
	}
	version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s); now at version %d\n", *steps, version)
	return nil
}

// promptPassword reads a password from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
