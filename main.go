package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"opresence/admins"
	"opresence/config"
	"opresence/database"
	"opresence/export"
	"opresence/orgs"
	"opresence/pipeline"
	"opresence/reader"
	"opresence/vocab"
)

func main() {
	configPath := flag.String("config", "run.yaml", "path to the YAML run file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	if err := run(*configPath); err != nil {
		slog.Error("Run failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(configPath string) error {
	runConfig, err := config.Load(configPath)
	if err != nil {
		return err
	}

	refDB, err := database.Open(runConfig.Database)
	if err != nil {
		return err
	}
	defer refDB.Close()

	collector := pipeline.NewCollector()

	orgTypes := vocab.NewOrgTypes()
	typeEntries, err := refDB.LoadOrgTypes()
	if err != nil {
		return fmt.Errorf("loading org types: %w", err)
	}
	orgTypes.Populate(typeEntries)

	sectors := vocab.NewSectors()
	sectorEntries, err := refDB.LoadSectors()
	if err != nil {
		return fmt.Errorf("loading sectors: %w", err)
	}
	sectors.Populate(sectorEntries)

	orgResolver := orgs.NewResolver(orgTypes, collector, 0)
	reference, err := refDB.LoadOrgs()
	if err != nil {
		return fmt.Errorf("loading org reference table: %w", err)
	}
	orgResolver.Populate(reference)

	adminResolver := admins.NewResolver(runConfig.MaxAdminLevel)
	if err := refDB.LoadAdminUnits(adminResolver.AddUnit); err != nil {
		return fmt.Errorf("loading admin units: %w", err)
	}

	p := pipeline.New(reader.New(), orgResolver, sectors, adminResolver, collector, runConfig.MaxAdminLevel)
	result := p.Process(runConfig.PipelineConfigs())

	if err := writeOutput(runConfig, result, orgResolver); err != nil {
		return err
	}
	collector.LogAll()
	return nil
}

func writeOutput(runConfig *config.Run, result *pipeline.Result, orgResolver *orgs.Resolver) error {
	directory := runConfig.Output.Directory
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	presence := export.PresenceTable(result.Rows)
	organizations := export.OrgTable(result.Orgs, orgResolver.TypeDescription)
	writer := export.NewWriter()

	for _, format := range runConfig.Output.Formats {
		switch format {
		case "csv":
			if err := writer.WriteCSV(filepath.Join(directory, "operational_presence.csv"), presence); err != nil {
				return err
			}
			if err := writer.WriteCSV(filepath.Join(directory, "organizations.csv"), organizations); err != nil {
				return err
			}
		case "xlsx":
			if err := writer.WriteXLSX(filepath.Join(directory, "operational_presence.xlsx"), presence, organizations); err != nil {
				return err
			}
		}
	}
	return nil
}
