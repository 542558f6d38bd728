package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/SscSPs/payroll_engine/internal/core/services"
	"github.com/SscSPs/payroll_engine/internal/repositories/database/pgsql"
	"github.com/SscSPs/payroll_engine/internal/seed"
	"github.com/SscSPs/payroll_engine/pkg/config"
	"github.com/SscSPs/payroll_engine/pkg/database"
)

func main() {
	path := flag.String("file", "seed/demo.yaml", "seed document to apply")
	withHRIS := flag.Bool("hris", true, "also load the employees section into the HRIS tables")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	f, err := seed.Load(*path)
	if err != nil {
		logger.Error("Failed to read seed file", slog.String("path", *path), slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()
	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, 0, true)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.ClosePgxPool(dbPool)

	repos := pgsql.NewRepositoryProvider(dbPool)
	targets := seed.Targets{
		ExchangeRates: repos.ExchangeRateRepo,
		TaxRuleSets:   repos.TaxRuleSetRepo,
		Allowances:    repos.AllowanceRepo,
		ApprovalRules: repos.ApprovalRuleRepo,
		TemplateStore: repos.TemplateRepo,
		Templates:     services.NewTemplateService(repos.TemplateRepo, repos.WorkerStructureRepo, repos.TaxRuleSetRepo),
	}
	if *withHRIS {
		targets.HRIS = pgsql.NewPgxHRISFixtureWriter(dbPool)
	}

	report, err := seed.NewSeeder(targets, logger).Apply(ctx, f)
	if err != nil {
		logger.Error("Seed failed", slog.String("error", err.Error()),
			slog.Int("created", report.Created), slog.Int("skipped", report.Skipped))
		os.Exit(1)
	}
	logger.Info("Seed complete", slog.String("path", *path),
		slog.Int("created", report.Created), slog.Int("skipped", report.Skipped))
}
