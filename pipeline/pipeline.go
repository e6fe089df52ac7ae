// Package pipeline turns per-country presence tables into two deduplicated
// global datasets: canonical organizations and "who is doing what, where"
// rows. Each country is preprocessed once to warm the resolvers and flag
// broken rows, then walked again to produce output records. A failing
// country is excluded and the run continues.
package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"opresence/admins"
	"opresence/orgs"
	"opresence/vocab"
)

// Collector satisfies the diagnostic interface the org resolver consumes.
var _ orgs.DiagnosticSink = (*Collector)(nil)

// Result is the outcome of a full run.
type Result struct {
	CountryISO3s []string
	Rows         []Row
	Orgs         []orgs.CanonicalOrg
	StartDate    time.Time
	EndDate      time.Time
}

// Pipeline orchestrates preprocessing and row production across countries.
// All resolver state is shared and unlocked; Process runs single-threaded.
type Pipeline struct {
	reader        RowReader
	orgResolver   *orgs.Resolver
	sectors       *vocab.Vocabulary
	admins        *admins.Resolver
	collector     *Collector
	maxAdminLevel int

	records       map[RowKey]Row
	countries     []string
	earliestStart time.Time
	latestEnd     time.Time
	logger        *slog.Logger
}

// New creates a pipeline. maxAdminLevel <= 0 selects the full tree depth.
func New(
	reader RowReader,
	orgResolver *orgs.Resolver,
	sectors *vocab.Vocabulary,
	adminResolver *admins.Resolver,
	collector *Collector,
	maxAdminLevel int,
) *Pipeline {
	if maxAdminLevel <= 0 || maxAdminLevel > admins.MaxLevels {
		maxAdminLevel = admins.MaxLevels
	}
	return &Pipeline{
		reader:        reader,
		orgResolver:   orgResolver,
		sectors:       sectors,
		admins:        adminResolver,
		collector:     collector,
		maxAdminLevel: maxAdminLevel,
		records:       make(map[RowKey]Row),
		logger:        slog.Default().With("component", "pipeline", "run_id", collector.RunID),
	}
}

// resolvedColumns are the configured column identifiers after HXL tag
// translation, ready for direct row lookups.
type resolvedColumns struct {
	admCodes   []string
	admNames   []string
	orgName    string
	orgAcronym string
	orgType    string
	sector     string
	startDate  string
	endDate    string
}

type countryData struct {
	cfg       *CountryConfig
	rows      []map[string]string
	filter    *Filter
	cols      resolvedColumns
	excluded  map[int]bool
	rowErrors map[int]string
	startDate time.Time
	endDate   time.Time
}

// Process runs both passes over every configured country and assembles the
// run result. Nothing here is fatal: countries that fail preprocessing are
// reported and skipped.
func (p *Pipeline) Process(configs []*CountryConfig) *Result {
	start := time.Now()
	p.logger.Info("Starting run", "countries", len(configs))

	var retained []*countryData
	for _, cfg := range configs {
		data, err := p.preprocessCountry(cfg)
		if err != nil {
			p.collector.Error(cfg.DatasetName,
				fmt.Sprintf("country %s excluded: %v", cfg.CountryISO3, err))
			p.logger.Error("Country excluded from run",
				"country", cfg.CountryISO3,
				"dataset", cfg.DatasetName,
				"error", err.Error())
			continue
		}
		retained = append(retained, data)
	}

	for _, data := range retained {
		p.produceCountry(data)
	}

	result := p.buildResult()
	p.logger.Info("Run completed",
		"countries", len(result.CountryISO3s),
		"rows", len(result.Rows),
		"orgs", len(result.Orgs),
		"errors", p.collector.Count(KindError),
		"warnings", p.collector.Count(KindWarning),
		"duration_ms", time.Since(start).Milliseconds())
	return result
}

// preprocessCountry reads a country's rows, warms the sector and org
// resolvers, flags rows missing required fields and collects the date
// range. A panic anywhere inside is converted to an error so one broken
// country never takes down the run.
func (p *Pipeline) preprocessCountry(cfg *CountryConfig) (data *countryData, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic preprocessing %s: %v", cfg.CountryISO3, rec)
		}
	}()

	filter, err := CompileFilter(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("compiling filter: %w", err)
	}
	rows, err := p.reader.ReadRows(cfg)
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	cols, rows, err := resolveColumns(cfg, rows)
	if err != nil {
		return nil, err
	}

	data = &countryData{
		cfg:       cfg,
		rows:      rows,
		filter:    filter,
		cols:      cols,
		excluded:  make(map[int]bool),
		rowErrors: make(map[int]string),
	}

	processed := 0
	for i, row := range rows {
		// The filter runs before any resolution work.
		if !filter.Matches(row) {
			data.excluded[i] = true
			continue
		}
		processed++
		p.trackDates(data, row)

		orgStr := row[cols.orgName]
		acronym := ""
		if cols.orgAcronym != "" {
			acronym = row[cols.orgAcronym]
		}
		if orgStr == "" {
			orgStr = acronym
		}
		sectorOrig := row[cols.sector]
		if sectorOrig == "" {
			msg := fmt.Sprintf("org %s missing sector", orgStr)
			data.rowErrors[i] = msg
			p.collector.Error(cfg.DatasetName, msg)
			continue
		}
		if orgStr == "" {
			msg := fmt.Sprintf("row with sector %s missing organization", sectorOrig)
			data.rowErrors[i] = msg
			p.collector.Error(cfg.DatasetName, msg)
			continue
		}

		if code := p.sectors.GetCode(sectorOrig); code == "" {
			p.collector.MissingValue(cfg.DatasetName, "sector", sectorOrig)
		}

		identity := p.orgResolver.GetIdentity(orgStr, cfg.CountryISO3)
		if !identity.Complete {
			typeLabel := ""
			if cols.orgType != "" {
				typeLabel = row[cols.orgType]
			}
			p.orgResolver.CompleteIdentity(identity, acronym, typeLabel, cfg.DatasetName)
		}
		p.orgResolver.MergeOrRegister(identity, cfg.DatasetName)
	}

	p.applyConfiguredDates(data)
	p.logger.Info("Country preprocessed",
		"country", cfg.CountryISO3,
		"dataset", cfg.DatasetName,
		"rows", processed,
		"flagged", len(data.rowErrors),
		"filtered_out", len(data.excluded))
	return data, nil
}

// resolveColumns translates configured HXL tags through the source's tag
// row and strips that row from the data. A configured tag missing from the
// tag row is a configuration error for the whole country.
func resolveColumns(cfg *CountryConfig, rows []map[string]string) (resolvedColumns, []map[string]string, error) {
	cols := resolvedColumns{
		admCodes:   append([]string(nil), cfg.AdmCodeColumns...),
		admNames:   append([]string(nil), cfg.AdmNameColumns...),
		orgName:    cfg.OrgNameColumn,
		orgAcronym: cfg.OrgAcronymColumn,
		orgType:    cfg.OrgTypeColumn,
		sector:     cfg.SectorColumn,
		startDate:  cfg.StartDateColumn,
		endDate:    cfg.EndDateColumn,
	}
	// Without an acronym column the org name column doubles as one.
	if cols.orgAcronym == "" {
		cols.orgAcronym = cols.orgName
	}
	if !cfg.UsesHXL() {
		return cols, rows, nil
	}
	if len(rows) == 0 {
		return cols, rows, fmt.Errorf("HXL tags configured but source has no tag row")
	}
	tagToHeader := make(map[string]string, len(rows[0]))
	for header, tag := range rows[0] {
		tagToHeader[tag] = header
	}
	translate := func(tag string) (string, error) {
		if tag == "" {
			return "", nil
		}
		header, ok := tagToHeader[tag]
		if !ok {
			return "", fmt.Errorf("HXL tag %s not present in source tag row", tag)
		}
		return header, nil
	}

	var err error
	for i, tag := range cols.admCodes {
		if cols.admCodes[i], err = translate(tag); err != nil {
			return cols, rows, err
		}
	}
	for i, tag := range cols.admNames {
		if cols.admNames[i], err = translate(tag); err != nil {
			return cols, rows, err
		}
	}
	for _, field := range []*string{
		&cols.orgName, &cols.orgAcronym, &cols.orgType,
		&cols.sector, &cols.startDate, &cols.endDate,
	} {
		if *field, err = translate(*field); err != nil {
			return cols, rows, err
		}
	}
	return cols, rows[1:], nil
}

// trackDates folds any parseable date-cell values into the country's
// earliest/latest range. Unparseable or implausibly old values are logged
// and ignored; they are not row errors.
func (p *Pipeline) trackDates(data *countryData, row map[string]string) {
	for _, col := range []string{data.cols.startDate, data.cols.endDate} {
		if col == "" {
			continue
		}
		value := row[col]
		if value == "" {
			continue
		}
		t, err := ParseDate(value)
		if err != nil {
			p.logger.Debug("Ignoring unparseable date cell",
				"country", data.cfg.CountryISO3, "value", value)
			continue
		}
		if t.Before(minValidDate) {
			p.logger.Debug("Ignoring implausibly old date cell",
				"country", data.cfg.CountryISO3, "value", value)
			continue
		}
		if data.startDate.IsZero() || t.Before(data.startDate) {
			data.startDate = t
		}
		if data.endDate.IsZero() || t.After(data.endDate) {
			data.endDate = t
		}
	}
}

// applyConfiguredDates layers filename-derived and explicitly configured
// bounds over whatever the rows provided, in increasing precedence.
func (p *Pipeline) applyConfiguredDates(data *countryData) {
	cfg := data.cfg
	if cfg.FilenameDates {
		start, end, found, err := DatesFromResourceName(cfg.ResourceName)
		switch {
		case err != nil:
			p.collector.Warning(cfg.DatasetName,
				fmt.Sprintf("could not parse dates from resource name %q", cfg.ResourceName))
		case found:
			data.startDate = start
			data.endDate = end
		}
	}
	if cfg.StartDate != "" {
		if t, err := ParseDate(cfg.StartDate); err == nil {
			data.startDate = t
		} else {
			p.collector.Warning(cfg.DatasetName,
				fmt.Sprintf("invalid configured start date %q", cfg.StartDate))
		}
	}
	if cfg.EndDate != "" {
		if t, err := ParseDate(cfg.EndDate); err == nil {
			data.endDate = t
		} else {
			p.collector.Warning(cfg.DatasetName,
				fmt.Sprintf("invalid configured end date %q", cfg.EndDate))
		}
	}
}

// produceCountry re-walks the retained rows and synthesizes deduplicated
// output records. Rows flagged during preprocessing never produce records;
// their errors are already in the collector.
func (p *Pipeline) produceCountry(data *countryData) {
	cfg := data.cfg
	startISO := ISODate(data.startDate)
	endISO := ISODate(data.endDate)

	rowsIn := 0
	rowsOut := 0
	for i, row := range data.rows {
		if data.excluded[i] {
			continue
		}
		rowsIn++
		if _, flagged := data.rowErrors[i]; flagged {
			continue
		}

		sectorOrig := row[data.cols.sector]
		sectorCode := p.sectors.GetCode(sectorOrig)

		orgStr := row[data.cols.orgName]
		if orgStr == "" {
			orgStr = row[data.cols.orgAcronym]
		}
		identity := p.orgResolver.GetIdentity(orgStr, cfg.CountryISO3)
		p.orgResolver.MergeOrRegister(identity, cfg.DatasetName)

		names := make([]string, p.maxAdminLevel)
		codes := make([]string, p.maxAdminLevel)
		for level := 0; level < p.maxAdminLevel; level++ {
			if level < len(data.cols.admNames) && data.cols.admNames[level] != "" {
				names[level] = row[data.cols.admNames[level]]
			}
			if level < len(data.cols.admCodes) && data.cols.admCodes[level] != "" {
				codes[level] = row[data.cols.admCodes[level]]
			}
		}
		resolution := p.admins.Resolve(cfg.CountryISO3, names, codes)

		record := Row{
			CountryISO3:          cfg.CountryISO3,
			ProviderAdmin1Name:   at(names, 0),
			ProviderAdmin2Name:   at(names, 1),
			Admin1Code:           at(resolution.Codes, 0),
			Admin1Name:           at(resolution.Names, 0),
			Admin2Code:           at(resolution.Codes, 1),
			Admin2Name:           at(resolution.Names, 1),
			Admin3Code:           at(resolution.Codes, 2),
			Admin3Name:           at(resolution.Names, 2),
			AdminLevel:           resolution.Depth,
			OrgAcronym:           identity.Acronym,
			OrgName:              identity.CanonicalName,
			OrgTypeCode:          identity.TypeCode,
			OrgTypeDescription:   p.orgResolver.TypeDescription(identity.TypeCode),
			SectorCode:           sectorCode,
			SectorName:           p.sectors.GetName(sectorCode),
			ReferencePeriodStart: startISO,
			ReferencePeriodEnd:   endISO,
			DatasetID:            cfg.DatasetID,
			ResourceID:           cfg.ResourceID,
			Warning:              strings.Join(resolution.Warnings, "; "),
		}
		// Last write wins: rows sharing a key collapse silently.
		p.records[record.Key()] = record
		rowsOut++
	}

	if !data.startDate.IsZero() &&
		(p.earliestStart.IsZero() || data.startDate.Before(p.earliestStart)) {
		p.earliestStart = data.startDate
	}
	if data.endDate.After(p.latestEnd) {
		p.latestEnd = data.endDate
	}
	p.countries = append(p.countries, cfg.CountryISO3)
	p.logger.Info("Country processed",
		"country", cfg.CountryISO3,
		"dataset", cfg.DatasetName,
		"rows_in", rowsIn,
		"rows_out", rowsOut)
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func (p *Pipeline) buildResult() *Result {
	rows := make([]Row, 0, len(p.records))
	for _, row := range p.records {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.CountryISO3 != b.CountryISO3:
			return a.CountryISO3 < b.CountryISO3
		case a.Admin1Code != b.Admin1Code:
			return a.Admin1Code < b.Admin1Code
		case a.Admin2Code != b.Admin2Code:
			return a.Admin2Code < b.Admin2Code
		case a.Admin3Code != b.Admin3Code:
			return a.Admin3Code < b.Admin3Code
		case a.OrgName != b.OrgName:
			return a.OrgName < b.OrgName
		case a.SectorCode != b.SectorCode:
			return a.SectorCode < b.SectorCode
		}
		return a.ProviderAdmin2Name < b.ProviderAdmin2Name
	})
	return &Result{
		CountryISO3s: p.countries,
		Rows:         rows,
		Orgs:         p.orgResolver.CanonicalOrgs(),
		StartDate:    p.earliestStart,
		EndDate:      p.latestEnd,
	}
}
