package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/siftql/sift/sift"
	"github.com/siftql/sift/sift/filter"
	"github.com/siftql/sift/sift/planner"
	"github.com/siftql/sift/sift/storage"
	"github.com/siftql/sift/sift/storage/postgres"
	"github.com/siftql/sift/sift/storage/sqlbuilder"
	"github.com/siftql/sift/sift/storage/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	verb := os.Args[1]
	if verb == "help" || verb == "--help" || verb == "-h" {
		printUsage()
		return
	}

	cfg, err := LoadConfig(os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
	switch verb {
	case "schemas":
		handleSchemas(cfg)
	case "compile":
		handleCompile(cfg)
	case "query":
		handleQuery(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", verb)
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println("sift - compile nested JSON filters into SQL predicates")
	fmt.Println("\nUsage:")
	fmt.Println("  sift schemas --schemas <file>")
	fmt.Println("  sift compile --schemas <file> -r <resource> -w <filter-json> [--backend sqlite|postgres] [--explain]")
	fmt.Println("  sift query   --schemas <file> -r <resource> -w <filter-json> --db <dsn> [--backend sqlite|postgres] [--driver sqlite|sqlite3] [--limit N] [--cols a,b] [--count]")
	fmt.Println("\nFilters are nested JSON, e.g.:")
	fmt.Println(`  {"and":[{"name":{"value":"john","operator":"begins"}},{"or":[{"age":{"value":30,"operator":"gte"}},{"active":{"value":true,"operator":"is"}}]}]}`)
	fmt.Println("\nFlags may also come from SIFT_* environment variables or --config <file>.")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func loadRegistry(cfg Config) sift.Registry {
	if cfg.Schemas == "" {
		fatalf("--schemas is required")
	}
	data, err := os.ReadFile(cfg.Schemas)
	if err != nil {
		fatalf("Error reading schemas: %v", err)
	}
	reg, err := sift.RegistryFromJSON(data)
	if err != nil {
		fatalf("Error loading schemas: %v", err)
	}
	return reg
}

// buildAndCompile runs the full pipeline: decode the filter JSON, build the
// validated tree, compile it onto a fresh query handle.
func buildAndCompile(cfg Config, reg sift.Registry, style sqlbuilder.PlaceholderStyle) (*storage.Query, *planner.Output) {
	if cfg.Resource == "" {
		fatalf("-r is required")
	}
	schema, ok := reg.Get(cfg.Resource)
	if !ok {
		fatalf("Unknown resource: %s", cfg.Resource)
	}

	raw := map[string]any{}
	if cfg.Where != "" {
		if err := json.Unmarshal([]byte(cfg.Where), &raw); err != nil {
			fatalf("Error parsing filter JSON: %v", err)
		}
	}

	tree, err := filter.Build(raw, cfg.Resource, reg, cfg.Limits())
	if err != nil {
		fatalf("Error building filter: %v", err)
	}

	q := storage.NewQuery(schema.Table, "t", style)
	out, err := planner.Compile(reg, cfg.Resource, tree, q)
	if err != nil {
		fatalf("Error compiling filter: %v", err)
	}
	return q, out
}

func handleSchemas(cfg Config) {
	reg := loadRegistry(cfg)
	if cfg.Format == "json" {
		enc, _ := json.Marshal(reg)
		fmt.Println(string(enc))
		return
	}
	for name, schema := range reg {
		fmt.Printf("%s (table=%s, key=%s):\n", name, schema.Table, schema.Key)
		for field, spec := range schema.Fields {
			if spec.Type == sift.FieldRelation {
				fmt.Printf("  %s: relation -> %s (fk=%s)\n", field, spec.Relation.Resource, spec.Relation.ForeignKey)
			} else {
				fmt.Printf("  %s: %s (column=%s)\n", field, spec.Type, spec.Column)
			}
		}
	}
}

func handleCompile(cfg Config) {
	reg := loadRegistry(cfg)

	style := sqlbuilder.PlaceholderQuestion
	if cfg.Backend == "postgres" || cfg.Backend == "pg" {
		style = sqlbuilder.PlaceholderDollar
	}
	q, out := buildAndCompile(cfg, reg, style)

	if cfg.Explain {
		fmt.Println("=== Steps ===")
		for _, step := range out.ExplainSteps {
			fmt.Printf("  %s\n", step)
		}
		fmt.Println()
	}
	fmt.Println(q.SelectSQL(cfg.Cols))
	if args := q.Args(); len(args) > 0 {
		enc, _ := json.Marshal(args)
		fmt.Printf("args: %s\n", enc)
	}
}

func handleQuery(ctx context.Context, cfg Config) {
	reg := loadRegistry(cfg)

	adapter := newAdapter(cfg)
	q, out := buildAndCompile(cfg, reg, adapter.PlaceholderStyle())

	db, err := adapter.Connect(ctx)
	if err != nil {
		fatalf("Error connecting: %v", err)
	}
	defer db.Close()
	defer adapter.Close()

	if cfg.Count {
		var n int64
		if err := db.QueryRowContext(ctx, q.CountSQL(), q.Args()...).Scan(&n); err != nil {
			fatalf("Error counting: %v", err)
		}
		fmt.Println(n)
		return
	}

	stmt := fmt.Sprintf("%s LIMIT %d", q.SelectSQL(cfg.Cols), cfg.Limit)
	if cfg.Explain {
		for _, step := range out.ExplainSteps {
			fmt.Fprintf(os.Stderr, "  %s\n", step)
		}
		fmt.Fprintln(os.Stderr, stmt)
	}

	rows, err := db.QueryContext(ctx, stmt, q.Args()...)
	if err != nil {
		fatalf("Error querying: %v", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		fatalf("Error reading columns: %v", err)
	}

	count := 0
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			fatalf("Error scanning row: %v", err)
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		enc, _ := json.Marshal(record)
		fmt.Println(string(enc))
		count++
	}
	if err := rows.Err(); err != nil {
		fatalf("Error reading rows: %v", err)
	}
	fmt.Fprintf(os.Stderr, "--- %d rows ---\n", count)
}

func newAdapter(cfg Config) storage.Adapter {
	if cfg.DB == "" {
		fatalf("--db is required")
	}
	switch cfg.Backend {
	case "postgres", "pg":
		return postgres.New(cfg.DB)
	default:
		return sqlite.NewWithDriver(cfg.DB, cfg.Driver)
	}
}
