// meritctl is the operator CLI for the merit engine. It records point
// transactions, reports eligibility, backfills membership numbers, and
// awards membership certificates.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/earth-innovators/merit-engine/config"
	"github.com/earth-innovators/merit-engine/internal/application/command"
	"github.com/earth-innovators/merit-engine/internal/application/eventhandler"
	"github.com/earth-innovators/merit-engine/internal/application/query"
	"github.com/earth-innovators/merit-engine/internal/domain/membership"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
	"github.com/earth-innovators/merit-engine/internal/infrastructure/messaging"
	"github.com/earth-innovators/merit-engine/internal/infrastructure/persistence/postgres"
	"github.com/earth-innovators/merit-engine/internal/infrastructure/persistence/redis"
	"github.com/earth-innovators/merit-engine/pkg/logger"
)

const usage = `meritctl - merit engine operator CLI

Usage:
  meritctl migrate [--down | --status]
  meritctl record-points <email> <type> <points> [--desc TEXT] [--source NAME]
  meritctl balance <email>
  meritctl history <email> [--type TYPE] [--page N] [--size N]
  meritctl eligibility <email>
  meritctl award-certificate <email> [--force]
  meritctl generate-membership-numbers [--role ROLE]

Transaction types: earned, bonus, redeemed, penalty (credits positive, debits negative).
Roles: student, teacher, school.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	// Missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "meritctl: %v\n", err)
		return 1
	}

	log := logger.New(logger.Options{
		Output: os.Stderr,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	app, err := wire(ctx, cfg, log)
	if err != nil {
		log.Error("wiring failed", logger.Err(err))
		return 1
	}
	defer app.close()

	code, err := app.dispatch(ctx, args)
	if err != nil {
		log.Error("command failed", logger.Err(err))
		if code == 0 {
			code = 1
		}
	}
	return code
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

// eventBus is what the CLI needs from either bus implementation.
type eventBus interface {
	shared.EventBus
	Close() error
}

type app struct {
	cfg *config.Config
	log *logger.Logger

	conn  *postgres.Connection
	cache *redis.Cache
	bus   eventBus

	profiles *postgres.ProfileRepository

	recordTx    *command.RecordTransactionHandler
	allocate    *command.AllocateNumberHandler
	backfill    *command.BackfillNumbersHandler
	award       *command.AwardCertificateHandler
	ledgerReads *query.LedgerQueries
	eligibility *query.GetEligibilityHandler
}

func wire(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	ledgerRepo := postgres.NewLedgerRepository(conn)
	numberRepo := postgres.NewNumberRepository(conn)
	certRepo := postgres.NewCertificateRepository(conn)
	profileRepo := postgres.NewProfileRepository(conn)

	a := &app{
		cfg:      cfg,
		log:      log,
		conn:     conn,
		profiles: profileRepo,
	}

	// Standings come straight from the ledger unless Redis fronts them.
	var standings query.StandingsSource = query.NewStandingsBuilder(profileRepo, ledgerRepo)
	var invalidator eventhandler.StandingsInvalidator

	// Commands are synchronous one-shots, so handlers run inline and all
	// side effects land before the process exits.
	localCfg := messaging.InMemoryEventBusConfig{AsyncMode: false, EnableMetrics: true}

	if cfg.Redis.Disabled {
		a.bus = messaging.NewInMemoryEventBus(localCfg)
	} else {
		cache, err := redis.NewCache(redisConfig(cfg))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.cache = cache

		standingsCache := redis.NewStandingsCache(cache, standings)
		standings = standingsCache
		invalidator = standingsCache

		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redis.NewPubSubBridge(cache),
			LocalBusConfig: localCfg,
		})
		if err != nil {
			cache.Close()
			conn.Close()
			return nil, fmt.Errorf("event bus: %w", err)
		}
		a.bus = bus
	}

	if err := eventhandler.Register(a.bus, invalidator, log); err != nil {
		a.close()
		return nil, fmt.Errorf("subscribe handlers: %w", err)
	}

	evaluator := membership.NewEvaluator(cfg.Thresholds.Membership())
	a.eligibility = query.NewGetEligibilityHandler(profileRepo, ledgerRepo, evaluator, standings)
	a.ledgerReads = query.NewLedgerQueries(ledgerRepo)

	a.recordTx = command.NewRecordTransactionHandler(ledgerRepo, a.bus, cfg.Ledger.AllowNegative)
	a.allocate = command.NewAllocateNumberHandler(numberRepo, a.bus, cfg.Allocator.MaxAttempts)
	a.backfill = command.NewBackfillNumbersHandler(profileRepo, a.allocate)
	a.award = command.NewAwardCertificateHandler(profileRepo, certRepo, a.eligibility, a.allocate, a.bus)

	return a, nil
}

func (a *app) close() {
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.conn != nil {
		a.conn.Close()
	}
}

func redisConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return rc
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func (a *app) dispatch(ctx context.Context, args []string) (int, error) {
	switch args[0] {
	case "migrate":
		return a.cmdMigrate(ctx, args[1:])
	case "record-points":
		return a.cmdRecordPoints(ctx, args[1:])
	case "balance":
		return a.cmdBalance(ctx, args[1:])
	case "history":
		return a.cmdHistory(ctx, args[1:])
	case "eligibility":
		return a.cmdEligibility(ctx, args[1:])
	case "award-certificate":
		return a.cmdAwardCertificate(ctx, args[1:])
	case "generate-membership-numbers":
		return a.cmdGenerateNumbers(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return 0, nil
	}
	fmt.Fprint(os.Stderr, usage)
	return 2, fmt.Errorf("unknown command %q", args[0])
}

func (a *app) cmdMigrate(ctx context.Context, args []string) (int, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	down := fs.Bool("down", false, "roll back the last applied migration")
	status := fs.Bool("status", false, "print migration status")
	if err := fs.Parse(args); err != nil {
		return 2, err
	}

	migrator := postgres.NewMigrator(a.conn)

	switch {
	case *status:
		migrations, err := migrator.Status(ctx)
		if err != nil {
			return 1, err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
		for _, m := range migrations {
			applied := "-"
			if m.IsApplied {
				applied = m.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
		}
		return 0, w.Flush()

	case *down:
		if err := migrator.Rollback(ctx); err != nil {
			return 1, err
		}
		fmt.Println("rolled back last migration")
		return 0, nil

	default:
		if err := migrator.Migrate(ctx); err != nil {
			return 1, err
		}
		fmt.Println("migrations applied")
		return 0, nil
	}
}

func (a *app) cmdRecordPoints(ctx context.Context, args []string) (int, error) {
	fs := flag.NewFlagSet("record-points", flag.ContinueOnError)
	desc := fs.String("desc", "", "human-readable reason")
	source := fs.String("source", "meritctl", "originating system")
	if err := parsePositional(fs, args, 3, "record-points <email> <type> <points>"); err != nil {
		return 2, err
	}

	profile, err := a.profileByEmail(ctx, fs.Arg(0))
	if err != nil {
		return 1, err
	}

	points, err := strconv.ParseInt(fs.Arg(2), 10, 64)
	if err != nil {
		return 2, fmt.Errorf("points must be an integer: %w", err)
	}

	res, err := a.recordTx.Handle(ctx, command.RecordTransactionCommand{
		UserID:      profile.UserID.String(),
		Type:        fs.Arg(1),
		Points:      points,
		Description: *desc,
		Source:      *source,
	})
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientPoints) {
			fmt.Printf("rejected: balance would go negative\n")
			return 1, nil
		}
		return 1, err
	}

	fmt.Printf("recorded %s %+d for %s (balance: %d)\n", fs.Arg(1), points, profile.Email, res.NewBalance.Int64())
	return 0, nil
}

func (a *app) cmdBalance(ctx context.Context, args []string) (int, error) {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	if err := parsePositional(fs, args, 1, "balance <email>"); err != nil {
		return 2, err
	}

	profile, err := a.profileByEmail(ctx, fs.Arg(0))
	if err != nil {
		return 1, err
	}

	summary, err := a.ledgerReads.GetSummary(ctx, query.GetSummaryQuery{UserID: profile.UserID.String()})
	if err != nil {
		return 1, err
	}

	fmt.Printf("%s (%s)\n", profile.Email, profile.Role)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "balance\t%d\n", summary.Balance.Int64())
	fmt.Fprintf(w, "earned\t%d\n", summary.TotalEarned.Int64())
	fmt.Fprintf(w, "bonus\t%d\n", summary.TotalBonus.Int64())
	fmt.Fprintf(w, "spent\t%d\n", summary.TotalSpent.Int64())
	fmt.Fprintf(w, "penalty\t%d\n", summary.TotalPenalty.Int64())
	fmt.Fprintf(w, "transactions\t%d\n", summary.Count)
	return 0, w.Flush()
}

func (a *app) cmdHistory(ctx context.Context, args []string) (int, error) {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	txType := fs.String("type", "", "filter to one transaction type")
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", 20, "page size")
	if err := parsePositional(fs, args, 1, "history <email>"); err != nil {
		return 2, err
	}

	profile, err := a.profileByEmail(ctx, fs.Arg(0))
	if err != nil {
		return 1, err
	}

	res, err := a.ledgerReads.ListTransactions(ctx, query.ListTransactionsQuery{
		UserID:   profile.UserID.String(),
		Type:     *txType,
		Page:     *page,
		PageSize: *size,
	})
	if err != nil {
		return 1, err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTYPE\tPOINTS\tSOURCE\tDESCRIPTION")
	for _, tx := range res.Transactions {
		fmt.Fprintf(w, "%s\t%s\t%+d\t%s\t%s\n",
			tx.CreatedAt.Format("2006-01-02 15:04"), tx.Type, tx.Points.Int64(), tx.Source, tx.Description)
	}
	if err := w.Flush(); err != nil {
		return 1, err
	}
	fmt.Printf("page %d (%d total)\n", res.Page, res.TotalCount)
	return 0, nil
}

func (a *app) cmdEligibility(ctx context.Context, args []string) (int, error) {
	fs := flag.NewFlagSet("eligibility", flag.ContinueOnError)
	if err := parsePositional(fs, args, 1, "eligibility <email>"); err != nil {
		return 2, err
	}

	res, err := a.eligibility.Handle(ctx, query.GetEligibilityQuery{Email: fs.Arg(0)})
	if err != nil {
		return 1, err
	}

	fmt.Printf("%s (%s)\n", res.Profile.Email, res.Profile.Role)
	if err := printSnapshot(res.Snapshot); err != nil {
		return 1, err
	}
	return 0, nil
}

func (a *app) cmdAwardCertificate(ctx context.Context, args []string) (int, error) {
	fs := flag.NewFlagSet("award-certificate", flag.ContinueOnError)
	force := fs.Bool("force", false, "issue even if the eligibility gate fails")
	if err := parsePositional(fs, args, 1, "award-certificate <email>"); err != nil {
		return 2, err
	}

	profile, err := a.profileByEmail(ctx, fs.Arg(0))
	if err != nil {
		return 1, err
	}

	res, err := a.award.Handle(ctx, command.AwardCertificateCommand{
		UserID: profile.UserID.String(),
		Force:  *force,
	})
	if err != nil {
		// Failures past the evaluation step still carry the snapshot, so
		// the criteria table stays legible on errors too.
		if res != nil && res.Snapshot != nil {
			_ = printSnapshot(res.Snapshot)
		}
		return 1, err
	}

	// The full criteria table is printed on every outcome so operators
	// always see what the gate saw.
	if err := printSnapshot(res.Snapshot); err != nil {
		return 1, err
	}

	switch res.Outcome {
	case command.OutcomeIssued:
		fmt.Printf("certificate issued: %s", res.Certificate.CertificateNumber)
		if res.Certificate.Forced {
			fmt.Print(" (forced)")
		}
		fmt.Println()
		return 0, nil
	case command.OutcomeAlreadyIssued:
		fmt.Printf("certificate already issued: %s (issued %s)\n",
			res.Certificate.CertificateNumber, res.Certificate.IssueDate.Format("2006-01-02"))
		return 0, nil
	default:
		fmt.Println("not eligible; use --force to override")
		return 1, nil
	}
}

func (a *app) cmdGenerateNumbers(ctx context.Context, args []string) (int, error) {
	fs := flag.NewFlagSet("generate-membership-numbers", flag.ContinueOnError)
	role := fs.String("role", "", "restrict to one role (student, teacher, school)")
	if err := fs.Parse(args); err != nil {
		return 2, err
	}

	cmd := command.BackfillNumbersCommand{}
	if *role != "" {
		cmd.Roles = []string{*role}
	}

	res, err := a.backfill.Handle(ctx, cmd)
	if err != nil {
		return 1, err
	}

	for userID, number := range res.Assigned {
		fmt.Printf("%s\t%s\n", userID, number)
	}
	for userID, failure := range res.Errors {
		fmt.Fprintf(os.Stderr, "failed %s: %v\n", userID, failure)
	}
	fmt.Printf("assigned %d of %d (%d failed)\n", res.SuccessCount, res.TotalCount, res.FailedCount)

	// Per-user failures are reported above but never fail the run.
	return 0, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (a *app) profileByEmail(ctx context.Context, raw string) (*membership.Profile, error) {
	email, err := shared.NewEmail(raw)
	if err != nil {
		return nil, err
	}
	return a.profiles.GetByEmail(ctx, email)
}

func parsePositional(fs *flag.FlagSet, args []string, want int, usage string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < want {
		return fmt.Errorf("usage: meritctl %s", usage)
	}
	return nil
}

func printSnapshot(s *membership.Snapshot) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CRITERION\tCURRENT\tREQUIRED\tMET")
	for _, c := range s.Criteria {
		met := "no"
		if c.Met {
			met = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Current, c.Required, met)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if s.Eligible {
		fmt.Println("eligible: yes")
	} else {
		fmt.Println("eligible: no")
	}
	return nil
}
