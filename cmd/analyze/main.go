package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gocorr/adapters/llm"
	"gocorr/adapters/loader"
	"gocorr/internal"
	"gocorr/internal/analysis"
	"gocorr/internal/config"
	"gocorr/internal/derive"
	"gocorr/internal/mapping"
	"gocorr/ports"
)

// analyze runs a single correlation analysis (or a describe report) against a
// data file and prints the markdown result.
func main() {
	var (
		file     = flag.String("file", "", "path to the data file (csv/tsv/xlsx/json/parquet)")
		sqlQuery = flag.String("sql", "", "SQL query to load data from DATABASE_URL instead of a file")
		varsFlag = flag.String("vars", "", "comma-separated correlation variables (2-10)")
		groupBy  = flag.String("group-by", "", "comma-separated grouping terms")
		filters  = flag.String("filter", "", "comma-separated key=value equality filters")
		method   = flag.String("method", "pearson", "correlation method: pearson, spearman, kendall")
		minN     = flag.Int("min-sample", 0, "minimum valid rows per group (0 = configured default)")
		describe = flag.Bool("describe", false, "print per-column descriptive statistics instead of correlating")
	)
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Analyze] invalid configuration: %v", err)
	}
	logger := internal.NewDefaultLogger()

	source, db, err := buildSource(*file, *sqlQuery, cfg)
	if err != nil {
		log.Fatalf("[Analyze] %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	client, err := llm.NewOpenAIClient(cfg.AI)
	if err != nil {
		log.Fatalf("[Analyze] LLM client setup failed: %v", err)
	}
	resolver := mapping.NewResolver(client, cfg.AI.MaxRetries, logger)
	service := analysis.NewService(
		loader.NewLoader(cfg.Analysis.MaxFileSizeMB, db, logger),
		resolver,
		derive.NewEngine(logger),
		cfg.Analysis,
		logger,
	)

	ctx := context.Background()

	if *describe {
		_, report, err := service.Describe(ctx, source)
		if err != nil {
			log.Fatalf("[Analyze] describe failed: %v", err)
		}
		fmt.Println(report)
		return
	}

	req := analysis.Request{
		Source:          source,
		CorrelationVars: splitList(*varsFlag),
		GroupBy:         splitList(*groupBy),
		Filters:         parseFilters(*filters),
		Method:          *method,
		MinSampleSize:   *minN,
	}
	table, err := service.AnalyzeCorrelation(ctx, req)
	if err != nil {
		log.Fatalf("[Analyze] analysis failed: %v", err)
	}
	fmt.Println(table)
}

func buildSource(file, sqlQuery string, cfg *config.Config) (ports.Source, *sqlx.DB, error) {
	switch {
	case file != "" && sqlQuery != "":
		return ports.Source{}, nil, fmt.Errorf("use either -file or -sql, not both")
	case file != "":
		return ports.Source{Method: ports.SourceFile, Query: file}, nil, nil
	case sqlQuery != "":
		if cfg.Database.URL == "" {
			return ports.Source{}, nil, fmt.Errorf("-sql requires DATABASE_URL")
		}
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			return ports.Source{}, nil, fmt.Errorf("database connection failed: %w", err)
		}
		return ports.Source{Method: ports.SourceSQL, Query: sqlQuery}, db, nil
	default:
		flag.Usage()
		os.Exit(2)
		return ports.Source{}, nil, nil
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFilters(s string) map[string]string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			continue
		}
		out[key] = value
	}
	return out
}
