// Package cmd - validate command
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sage/adapters/reader"
	"sage/adapters/storage"
	"sage/core/engine"
	"sage/core/report"
	"sage/core/spec"
	"sage/core/table"
	"sage/core/validate"
	"sage/internal/config"
)

var (
	specFile     string
	inputPairs   []string
	packageID    string
	zipFile      string
	outputFormat string
	casilla      string
	channel      string
	noStore      bool
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate data files against a YAML specification",
	Long: `Run a validation execution: load the specification, read the
input files, and evaluate structure, field, row, catalog, and package
rules. The process exits non-zero when errors are found.

Inputs are bound by catalog ID. For package deliveries, a ZIP file
can supply every catalog at once.

Examples:
  sage validate --spec rules.yaml --input ventas=ventas.csv
  sage validate --spec rules.yaml --input ventas=v.csv --input clientes=c.csv
  sage validate --spec rules.yaml --package paquete_mensual --zip delivery.zip`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&specFile, "spec", "s", "", "YAML specification file (required)")
	validateCmd.Flags().StringArrayVarP(&inputPairs, "input", "i", nil, "catalog input as catalog_id=path (repeatable)")
	validateCmd.Flags().StringVarP(&packageID, "package", "p", "", "package ID to resolve inputs from a ZIP")
	validateCmd.Flags().StringVarP(&zipFile, "zip", "z", "", "ZIP file containing the package delivery")
	validateCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "output format (cli, json)")
	validateCmd.Flags().StringVar(&casilla, "casilla", "", "delivery box identifier for the execution record")
	validateCmd.Flags().StringVar(&channel, "channel", "local", "delivery channel (sftp, email, portal, api, local)")
	validateCmd.Flags().BoolVar(&noStore, "no-store", false, "skip persisting the execution record")
	validateCmd.MarkFlagRequired("spec")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Get()
	startTime := time.Now()

	document, err := os.ReadFile(specFile)
	if err != nil {
		return fmt.Errorf("failed to read specification: %w", err)
	}
	specification, err := spec.Parse(document)
	if err != nil {
		return fmt.Errorf("invalid specification: %w", err)
	}
	logger.Info("specification loaded",
		zap.String("name", specification.Header.Name),
		zap.Int("catalogs", len(specification.Catalogs)),
		zap.Int("packages", len(specification.Packages)))

	inputs, err := collectInputs(specification)
	if err != nil {
		return err
	}

	coercion := validate.Coercion{
		DateLayouts: cfg.Coercion.DateLayouts,
		TrueTokens:  cfg.Coercion.TrueTokens,
		FalseTokens: cfg.Coercion.FalseTokens,
	}
	validator := engine.New(specification,
		engine.WithLogger(logger),
		engine.WithCoercion(coercion))

	result, err := validator.Validate(ctx, inputs)
	if err != nil {
		return fmt.Errorf("validation failed to run: %w", err)
	}

	format := report.Format(outputFormat)
	if format == "" {
		format = report.Format(cfg.Output.DefaultFormat)
	}
	formatter, err := report.NewFormatter(format, cfg.Output.ShowEvents)
	if err != nil {
		return err
	}
	if err := formatter.Render(os.Stdout, result); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if !noStore {
		if err := storeExecution(ctx, cfg, result); err != nil {
			logger.Warn("failed to persist execution record", zap.Error(err))
		}
	}

	logger.Info("validation finished",
		zap.String("execution_id", result.ExecutionID),
		zap.Int("errors", result.ErrorCount()),
		zap.Int("warnings", result.WarningCount()),
		zap.Duration("duration", time.Since(startTime)))

	if result.Status() == report.StatusFailed {
		os.Exit(2)
	}
	return nil
}

// collectInputs binds catalog IDs to row sets from --input pairs and,
// when --package/--zip are set, from the ZIP delivery. Explicit
// --input bindings win over ZIP members.
func collectInputs(specification *spec.Specification) (map[string]*table.RowSet, error) {
	inputs := make(map[string]*table.RowSet)

	if packageID != "" {
		if zipFile == "" {
			return nil, fmt.Errorf("--package requires --zip")
		}
		pkg := findPackage(specification, packageID)
		if pkg == nil {
			return nil, fmt.Errorf("package %q not defined in specification", packageID)
		}
		zipInputs, err := reader.ReadPackage(specification, pkg, zipFile)
		if err != nil {
			return nil, err
		}
		for id, rows := range zipInputs {
			inputs[id] = rows
		}
	}

	for _, pair := range inputPairs {
		id, path, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --input %q, expected catalog_id=path", pair)
		}
		catalog, found := specification.Catalog(id)
		if !found {
			return nil, fmt.Errorf("catalog %q not defined in specification", id)
		}
		rows, err := reader.ReadCatalog(catalog, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		inputs[id] = rows
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs given, use --input or --package with --zip")
	}
	return inputs, nil
}

func findPackage(specification *spec.Specification, id string) *spec.PackageSpec {
	for _, pkg := range specification.Packages {
		if pkg.ID == id {
			return pkg
		}
	}
	return nil
}

func storeExecution(ctx context.Context, cfg *config.Config, result *report.Result) error {
	store, err := storage.Open(storage.Backend(cfg.Storage.Backend), cfg.Storage.Directory)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Save(ctx, storage.NewRecord(result, casilla, channel))
}
