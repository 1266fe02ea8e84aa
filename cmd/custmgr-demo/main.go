// Package main is a walkthrough client for the customer state service:
// it creates (or finds) a demo customer, posts a few transactions against
// a sub-account including one rejected overdraft, and lists what the event
// log contains at the end.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	natsadapter "github.com/codewandler/custmgr-go/adapters/nats"
	promadapter "github.com/codewandler/custmgr-go/adapters/prometheus"
	"github.com/codewandler/custmgr-go/adapters/sqlite"
	"github.com/codewandler/custmgr-go/core/cqrs"
	"github.com/codewandler/custmgr-go/core/customer"
	"github.com/codewandler/custmgr-go/core/es"
	"github.com/codewandler/custmgr-go/core/host"
)

// === Config ===

type config struct {
	DBPath         string     `env:"CUSTMGR_DB" envDefault:"custmgr.db"`
	NatsURL        string     `env:"NATS_URL"`
	SnapshotBucket string     `env:"NATS_SNAPSHOT_BUCKET" envDefault:"custmgr_snapshots"`
	MetricsAddr    string     `env:"METRICS_ADDR"`
	LogLevel       slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

const demoCustomerID = "12345678"

func main() {
	if err := run(); err != nil {
		slog.Error("demo failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(log)

	ctx := context.Background()

	store, err := sqlite.Open(cfg.DBPath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		eventStore es.EventStore  = store
		snapshots  es.Snapshotter = store
	)

	// NATS is optional: when configured, snapshots move to a JetStream KV
	// bucket and committed events get relayed onto subjects.
	if cfg.NatsURL != "" {
		connect := natsadapter.ReuseConnection(natsadapter.ConnectURL(cfg.NatsURL))

		snapshots, err = natsadapter.NewSnapshotter(natsadapter.KvConfig{
			Connect: connect,
			Bucket:  cfg.SnapshotBucket,
		})
		if err != nil {
			return fmt.Errorf("nats snapshotter: %w", err)
		}

		relay, err := natsadapter.NewRelay(natsadapter.RelayConfig{
			Connect: connect,
			Log:     log,
			Store:   store,
		})
		if err != nil {
			return fmt.Errorf("nats relay: %w", err)
		}
		defer relay.Close()
		eventStore = relay
	}

	metrics := es.NopMetrics()
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = promadapter.NewESMetrics(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.Info("metrics listening", slog.String("addr", cfg.MetricsAddr))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", slog.Any("error", err))
			}
		}()
	}

	h := host.New(host.Config{
		Log:       log,
		Store:     eventStore,
		Snapshots: snapshots,
		Metrics:   metrics,
	})
	defer h.Close()

	var (
		commands = cqrs.NewCommands(log, h)
		queries  = cqrs.NewQueries(log, h)
	)

	// === Walkthrough ===

	cust, err := findOrCreate(ctx, commands, queries)
	if err != nil {
		return err
	}

	if _, ok := cust.Account("A-100"); !ok {
		res := commands.AddAccount(ctx, demoCustomerID, customer.Account{AccountNumber: "A-100"})
		if !res.Success {
			return fmt.Errorf("add account: %s", res.Message)
		}
		cust = res.Output
		fmt.Println("added account A-100")
	}

	res := commands.PostAccountTransaction(ctx, demoCustomerID, "A-100", 100_00)
	if !res.Success {
		return fmt.Errorf("deposit: %s", res.Message)
	}
	fmt.Println("deposited $100.00")

	// overdraft attempt, rejected without touching the log
	res = commands.PostAccountTransaction(ctx, demoCustomerID, "A-100", -500_00)
	if res.Success {
		return fmt.Errorf("overdraft unexpectedly accepted")
	}
	fmt.Printf("overdraft of $500.00 rejected: %s\n", res.Message)

	res = commands.PostAccountTransaction(ctx, demoCustomerID, "A-100", -50_00)
	if !res.Success {
		return fmt.Errorf("withdraw: %s", res.Message)
	}
	cust = res.Output
	fmt.Println("withdrew $50.00")

	acct, _ := cust.Account("A-100")
	fmt.Printf("final balance on A-100: $%.2f\n", float64(acct.Balance)/100)

	return listCustomers(ctx, queries)
}

func findOrCreate(ctx context.Context, commands *cqrs.Commands, queries *cqrs.Queries) (*customer.Customer, error) {
	exists := queries.CustomerExists(ctx, demoCustomerID)
	if !exists.Success {
		return nil, fmt.Errorf("existence probe: %s", exists.Message)
	}

	if exists.Output {
		found := queries.FindCustomer(ctx, demoCustomerID)
		if !found.Success {
			return nil, fmt.Errorf("find customer: %s", found.Message)
		}
		fmt.Printf("found existing customer %s (%s)\n", demoCustomerID, found.Output.PrimaryAccountHolder.FullName)
		return found.Output, nil
	}

	res := commands.NewCustomer(ctx, demoCustomerID,
		customer.Person{
			FullName:  "John Doe",
			FirstName: "John",
			LastName:  "Doe",
			TaxID:     "987-65-4321",
		},
		customer.Address{
			Street:          "123 Main Street",
			City:            "Springfield",
			StateOrProvince: "OR",
			PostalCode:      "97477",
			Country:         "US",
		},
	)
	if !res.Success {
		return nil, fmt.Errorf("create customer: %s", res.Message)
	}
	fmt.Printf("created customer %s\n", demoCustomerID)
	return res.Output, nil
}

func listCustomers(ctx context.Context, queries *cqrs.Queries) error {
	ids := queries.FindAllCustomerIds(ctx)
	if !ids.Success {
		return fmt.Errorf("list customer ids: %s", ids.Message)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Customer ID", "Name", "Accounts"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, id := range ids.Output {
		found := queries.FindCustomer(ctx, id)
		if !found.Success {
			return fmt.Errorf("find customer %s: %s", id, found.Message)
		}
		table.Append([]string{
			id,
			found.Output.PrimaryAccountHolder.FullName,
			fmt.Sprintf("%d", len(found.Output.Accounts)),
		})
	}

	fmt.Println()
	table.Render()
	return nil
}
