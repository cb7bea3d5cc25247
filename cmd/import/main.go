// Command import loads a beneficiary spreadsheet into a formation from the
// command line, using the same pipeline as the HTTP endpoint.
//
//	import -formation <uuid> -file inscrits.xlsx [-dry-run]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ignite/beneficiary-import/internal/bootstrap"
	"github.com/ignite/beneficiary-import/internal/config"
	"github.com/ignite/beneficiary-import/internal/service/importing"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	file := flag.String("file", "", "spreadsheet to import (.xlsx or .csv)")
	formation := flag.String("formation", "", "target formation id")
	dryRun := flag.Bool("dry-run", false, "report what would change without writing")
	flag.Parse()

	if err := run(*configPath, *file, *formation, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "import: %v\n", err)
		if kind := importing.KindOf(err); kind != "" {
			fmt.Fprintf(os.Stderr, "kind: %s\n", kind)
		}
		os.Exit(1)
	}
}

func run(configPath, file, formation string, dryRun bool) error {
	if file == "" || formation == "" {
		flag.Usage()
		return fmt.Errorf("-file and -formation are required")
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	bootstrap.ConfigureLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()
	svc := deps.ImportService(nil)

	req := importing.ImportRequest{FormationID: formation, FileName: filepath.Base(file), Content: content}

	// same bound as an API request; the import lock TTL is sized from it
	ctx, cancel := context.WithTimeout(ctx, cfg.Server.RequestTimeout())
	defer cancel()

	var out interface{}
	if dryRun {
		out, err = svc.Preview(ctx, req)
	} else {
		out, err = svc.Import(ctx, req)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
