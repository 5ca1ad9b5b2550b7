// Command certgen validates templates and generates certificates from the
// command line.
//
//	certgen validate -template t.json
//	certgen generate -template t.json -set name=Ada -out ./out
//	certgen batch -template t.json -recipients roster.xlsx -out ./out -manifest manifest.xlsx
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"certificate-studio/generator-backend/internal/app"
	"certificate-studio/generator-backend/internal/certificates/batch"
	"certificate-studio/generator-backend/internal/config"
	"certificate-studio/generator-backend/internal/templates"
)

const usage = `usage: certgen <command> [flags]

commands:
  validate   check a template file
  generate   render one certificate to PDF
  batch      render one certificate per row of an xlsx or csv sheet
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "validate":
		err = runValidate(os.Args[2:], os.Stdout)
	case "generate":
		err = withApp(ctx, func(a *app.App, logger *zap.Logger) error {
			return runGenerate(ctx, a, os.Args[2:], os.Stdout)
		})
	case "batch":
		err = withApp(ctx, func(a *app.App, logger *zap.Logger) error {
			return runBatch(ctx, a, logger, os.Args[2:], os.Stdout)
		})
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
}

func withApp(ctx context.Context, fn func(*app.App, *zap.Logger) error) error {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a, logger)
}

func runValidate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	templatePath := fs.String("template", "", "template JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tpl, err := loadTemplate(*templatePath)
	if err != nil {
		return err
	}

	result := templates.Validate(tpl)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	return result.Err()
}

func runGenerate(ctx context.Context, a *app.App, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	templatePath := fs.String("template", "", "template JSON file")
	valuesPath := fs.String("values", "", "JSON object of field values keyed by field id")
	outDir := fs.String("out", ".", "output directory")
	code := fs.String("code", "", "certificate code (generated when empty)")
	metadata := fs.Bool("metadata", false, "append the source file page")
	publish := fs.Bool("publish", false, "upload to S3 and print the download URL")
	var sets setFlags
	fs.Var(&sets, "set", "field value as id=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tpl, err := loadTemplate(*templatePath)
	if err != nil {
		return err
	}
	values, err := loadValues(*valuesPath)
	if err != nil {
		return err
	}
	for k, v := range sets {
		values[k] = v
	}

	result, err := a.Service.Generate(ctx, &templates.GenerationRequest{
		Template:        tpl,
		FieldValues:     values,
		IncludeMetadata: *metadata,
		Code:            *code,
	})
	if err != nil {
		return err
	}

	location, err := (&batch.DirSink{Dir: *outDir}).Put(ctx, result)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\t%s\n", result.Code, location)

	for _, f := range result.Failures {
		fmt.Fprintf(stdout, "warning: image %s not drawn: %s\n", f.Source, f.Reason())
	}
	for _, name := range result.Unbound {
		fmt.Fprintf(stdout, "warning: placeholder %s left unbound\n", name)
	}

	if *publish {
		if a.Publisher == nil {
			return errors.New("publishing requires storage.s3.bucket")
		}
		url, err := a.Publisher.Publish(ctx, result)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, url)
	}
	return nil
}

func runBatch(ctx context.Context, a *app.App, logger *zap.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	templatePath := fs.String("template", "", "template JSON file")
	recipientsPath := fs.String("recipients", "", "xlsx or csv sheet, one recipient per row")
	outDir := fs.String("out", ".", "output directory")
	manifestPath := fs.String("manifest", "", "write a manifest (.xlsx or .csv)")
	concurrency := fs.Int("concurrency", batch.DefaultRunnerConfig().MaxConcurrent, "certificates generated at once")
	metadata := fs.Bool("metadata", false, "append the source file page")
	publish := fs.Bool("publish", false, "upload to S3 instead of writing to -out")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tpl, err := loadTemplate(*templatePath)
	if err != nil {
		return err
	}
	if err := templates.Validate(tpl).Err(); err != nil {
		return err
	}

	format, err := batch.FormatFromFilename(*recipientsPath)
	if err != nil {
		return err
	}
	f, err := os.Open(*recipientsPath)
	if err != nil {
		return err
	}
	recipients, err := batch.ReadRecipients(f, format, tpl)
	f.Close()
	if err != nil {
		return err
	}

	var sink batch.Sink = &batch.DirSink{Dir: *outDir}
	if *publish {
		if a.Publisher == nil {
			return errors.New("publishing requires storage.s3.bucket")
		}
		sink = &batch.PublisherSink{Publisher: a.Publisher}
	}

	runner := batch.NewRunner(a.Service, sink, batch.RunnerConfig{
		MaxConcurrent:   *concurrency,
		IncludeMetadata: *metadata,
	}, logger)

	report, runErr := runner.Run(ctx, tpl, recipients)
	if report != nil {
		fmt.Fprintf(stdout, "%d generated, %d failed in %s\n", report.Succeeded, report.Failed, report.Elapsed)
		if *manifestPath != "" {
			if err := writeManifest(*manifestPath, report); err != nil {
				return err
			}
		}
	}
	return runErr
}

func writeManifest(path string, report *batch.Report) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		err = batch.WriteManifestCSV(out, report)
	} else {
		err = batch.WriteManifestXLSX(out, report, batch.DefaultManifestOptions())
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

func loadTemplate(path string) (*templates.Template, error) {
	if path == "" {
		return nil, errors.New("-template is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tpl templates.Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}
	return &tpl, nil
}

func loadValues(path string) (map[string]string, error) {
	values := make(map[string]string)
	if path == "" {
		return values, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse values %s: %w", path, err)
	}
	return values, nil
}

// setFlags collects repeated -set id=value flags.
type setFlags map[string]string

func (s *setFlags) String() string {
	pairs := make([]string, 0, len(*s))
	for k, v := range *s {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (s *setFlags) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected id=value, got %q", v)
	}
	if *s == nil {
		*s = make(setFlags)
	}
	(*s)[key] = value
	return nil
}
