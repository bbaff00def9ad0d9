package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/yellowcircle/outreach-engine/internal/app"
	"github.com/yellowcircle/outreach-engine/internal/brand"
	"github.com/yellowcircle/outreach-engine/internal/canvas"
	"github.com/yellowcircle/outreach-engine/internal/config"
	"github.com/yellowcircle/outreach-engine/internal/contacts"
	"github.com/yellowcircle/outreach-engine/internal/esp/resend"
	"github.com/yellowcircle/outreach-engine/internal/llm"
	"github.com/yellowcircle/outreach-engine/internal/pipeline"
	"github.com/yellowcircle/outreach-engine/internal/quota"
	"github.com/yellowcircle/outreach-engine/internal/util"
	"github.com/yellowcircle/outreach-engine/internal/version"
	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "version":
		fmt.Println(version.Current)
		return
	case "generate":
		os.Exit(runGenerate(ctx, os.Args[2:]))
	case "batch":
		os.Exit(runBatch(ctx, os.Args[2:]))
	case "send":
		os.Exit(runSend(ctx, os.Args[2:]))
	case "deploy":
		os.Exit(runDeploy(ctx, os.Args[2:]))
	case "quota":
		os.Exit(runQuota(ctx, os.Args[2:]))
	case "brand":
		os.Exit(runBrand(os.Args[2:]))
	case "health":
		os.Exit(runHealth(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

// buildEngine wires the engine from environment config. Every
// subcommand that touches quota or generation goes through here so
// they all share the same ledger and stores.
func buildEngine(cfg config.Config) (*app.Engine, error) {
	brandCfg, err := brand.Load(cfg.BrandPath())
	if err != nil {
		return nil, err
	}

	sender, err := resend.New(resend.Config{
		APIKey: cfg.ResendAPIKey,
		From:   cfg.FromAddress,
	})
	if err != nil {
		return nil, err
	}

	canvasStore, err := canvas.OpenSQLite(cfg.CanvasPath(), canvas.DefaultGraphKey)
	if err != nil {
		return nil, err
	}

	contactStore, err := contacts.Open(cfg.ContactsPath())
	if err != nil {
		return nil, err
	}

	return app.New(app.Options{
		Ledger: quota.NewLedger(quota.NewFileStore(cfg.QuotaPath()), cfg.IsClient),
		Factory: llm.NewFactory(llm.Config{
			Provider:     llm.Provider(cfg.Provider),
			ProxyURL:     cfg.ProxyURL,
			GeminiAPIKey: cfg.GeminiAPIKey,
			GroqAPIKey:   cfg.GroqAPIKey,
			GeminiModel:  cfg.GeminiModel,
			GroqModel:    cfg.GroqModel,
		}),
		Sender:   sender,
		Contacts: contactStore,
		Canvas:   canvasStore,
		Brand:    brandCfg,
		Logger:   log.New(os.Stderr, "", log.LstdFlags),
		SentLog:  app.NewSentLog(cfg.SentLogPath()),
	})
}

func runGenerate(ctx context.Context, args []string) int {
	cfg, err := config.Load()
	if err != nil {
		return configErr(err)
	}

	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		company        = fs.String("company", "", "Prospect company name (required)")
		firstName      = fs.String("first-name", "", "Prospect first name (required)")
		email          = fs.String("email", "", "Prospect email address (required)")
		lastName       = fs.String("last-name", "", "Prospect last name")
		title          = fs.String("title", "", "Prospect job title")
		industry       = fs.String("industry", "", "Prospect industry")
		trigger        = fs.String("trigger", "", "Outreach trigger: funding, hiring, content, news, none")
		triggerDetails = fs.String("trigger-details", "", "Free-form trigger context")
		pathway        = fs.String("pathway", string(core.PathwayOneOff), "Pathway: one-off, three-email, journey")
		mode           = fs.String("mode", string(core.ModeProspect), "Voice mode: prospect, marcom")
		apiKey         = fs.String("api-key", "", "Caller LLM API key; empty uses the hosted proxy while free credits remain")
		temperature    = fs.Float64("temperature", 0, "Sampling temperature override, 0 uses the default")
		maxTokens      = fs.Int("max-tokens", 0, "Max output tokens override, 0 uses the default")
		output         = fs.String("output", "-", "Output file for the artifact JSON, - for stdout")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *company == "" || *firstName == "" || *email == "" {
		_, _ = fmt.Fprintln(os.Stderr, "generate requires --company, --first-name and --email")
		return 2
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return configErr(err)
	}

	res, err := eng.Run(ctx, app.RunRequest{
		Prospect: core.Prospect{
			Company:        *company,
			FirstName:      *firstName,
			LastName:       *lastName,
			Email:          *email,
			Title:          *title,
			Industry:       *industry,
			Trigger:        core.Trigger(*trigger),
			TriggerDetails: *triggerDetails,
		},
		Pathway:     core.Pathway(*pathway),
		Mode:        core.Mode(*mode),
		APIKey:      *apiKey,
		Temperature: *temperature,
		MaxTokens:   *maxTokens,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "generate failed: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}

	out := os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "create output: %v\n", err)
			return 1
		}
		defer func() {
			_ = f.Close()
		}()
		out = f
	}
	if err := app.ExportJSON(out, res); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runBatch(ctx context.Context, args []string) int {
	cfg, err := config.Load()
	if err != nil {
		return configErr(err)
	}

	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		inputPath      = fs.String("input", "", "Input CSV of prospects (required; columns: company, first_name, email, ...)")
		outputPath     = fs.String("output", "", "Output CSV path (required)")
		pathway        = fs.String("pathway", string(core.PathwayThreeEmail), "Pathway: one-off, three-email, journey")
		mode           = fs.String("mode", string(core.ModeProspect), "Voice mode: prospect, marcom")
		apiKey         = fs.String("api-key", "", "Caller LLM API key (batch requires a key or a client session)")
		workers        = fs.Int("workers", 4, "Number of concurrent generation workers")
		maxRetries     = fs.Int("max-retries", 3, "Max retries per prospect for transient failures")
		requestTimeout = fs.Duration("request-timeout", 60*time.Second, "Per-prospect request timeout")
		rateLimitRPS   = fs.Float64("rate-limit-rps", 0, "Global request rate limit (RPS), 0 disables")
		failFast       = fs.Bool("fail-fast", false, "Stop on the first generation error")
		temperature    = fs.Float64("temperature", 0, "Sampling temperature override, 0 uses the default")
		maxTokens      = fs.Int("max-tokens", 0, "Max output tokens override, 0 uses the default")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" || *outputPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "batch requires --input and --output")
		return 2
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return configErr(err)
	}

	err = eng.RunLocalBatch(ctx, *inputPath, *outputPath, core.Pathway(*pathway), core.Mode(*mode), pipeline.BatchOptions{
		Workers:        *workers,
		MaxRetries:     *maxRetries,
		RequestTimeout: *requestTimeout,
		RateLimitRPS:   *rateLimitRPS,
		FailFast:       *failFast,
		Generation: pipeline.Options{
			APIKey:      *apiKey,
			Temperature: *temperature,
			MaxTokens:   *maxTokens,
		},
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "batch failed: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}
	return 0
}

func runSend(ctx context.Context, args []string) int {
	cfg, err := config.Load()
	if err != nil {
		return configErr(err)
	}

	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		runID     = fs.String("run", "", "Run ID the artifact came from (required)")
		to        = fs.String("to", "", "Recipient email address (required)")
		inputPath = fs.String("input", "", "Artifact JSON from generate (required)")
		stage     = fs.String("stage", string(core.StageSingle), "Stage to send from the artifact file")
		replyTo   = fs.String("reply-to", cfg.ReplyTo, "Reply-To address (env: OUTREACH_REPLY_TO)")
		apiKey    = fs.String("api-key", "", "Caller ESP API key; empty uses the server default")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *runID == "" || *to == "" || *inputPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "send requires --run, --to and --input")
		return 2
	}

	artifact, err := readArtifact(*inputPath, core.Stage(*stage))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read artifact: %v\n", err)
		return 2
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return configErr(err)
	}

	res, err := eng.Send(ctx, app.SendRequest{
		RunID:    *runID,
		Artifact: artifact,
		To:       *to,
		ReplyTo:  *replyTo,
		APIKey:   *apiKey,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "send failed: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}
	fmt.Printf("sent: message=%s status=%s\n", res.ID, res.Status)
	return 0
}

// readArtifacts loads the artifact map from a generate export.
func readArtifacts(path string) (map[core.Stage]core.EmailArtifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var export struct {
		Artifacts map[core.Stage]core.EmailArtifact `json:"artifacts"`
	}
	if err := json.Unmarshal(b, &export); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return export.Artifacts, nil
}

// readArtifact pulls one stage out of a generate export.
func readArtifact(path string, stage core.Stage) (core.EmailArtifact, error) {
	artifacts, err := readArtifacts(path)
	if err != nil {
		return core.EmailArtifact{}, err
	}
	artifact, ok := artifacts[stage]
	if !ok {
		return core.EmailArtifact{}, fmt.Errorf("no %q artifact in %s", stage, path)
	}
	return artifact, nil
}

func runDeploy(ctx context.Context, args []string) int {
	cfg, err := config.Load()
	if err != nil {
		return configErr(err)
	}

	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		inputPath = fs.String("input", "", "Artifact JSON from a three-email or journey generate (required)")
		company   = fs.String("company", "", "Prospect company name (required)")
		firstName = fs.String("first-name", "", "Prospect first name (required)")
		email     = fs.String("email", "", "Prospect email address (required)")
		title     = fs.String("title", "", "Prospect job title")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" || *company == "" || *firstName == "" || *email == "" {
		_, _ = fmt.Fprintln(os.Stderr, "deploy requires --input, --company, --first-name and --email")
		return 2
	}

	artifacts, err := readArtifacts(*inputPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read artifacts: %v\n", err)
		return 2
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return configErr(err)
	}

	campaign, err := eng.DeployCampaign(ctx, core.Prospect{
		Company:   *company,
		FirstName: *firstName,
		Email:     *email,
		Title:     *title,
	}, artifacts)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "deploy failed: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}
	fmt.Printf("deployed: nodes=%d edges=%d\n", len(campaign.Nodes), len(campaign.Edges))
	return 0
}

func runQuota(ctx context.Context, args []string) int {
	cfg, err := config.Load()
	if err != nil {
		return configErr(err)
	}

	fs := flag.NewFlagSet("quota", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	reset := fs.Bool("reset", false, "Reset counters to their full allowances")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ledger := quota.NewLedger(quota.NewFileStore(cfg.QuotaPath()), cfg.IsClient)
	if *reset {
		if err := ledger.Reset(ctx); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "reset quota: %v\n", err)
			return 1
		}
	}
	state, err := ledger.State(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read quota: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(struct {
		quota.State
		Client bool `json:"client"`
	}{State: state, Client: cfg.IsClient})
	return 0
}

func runBrand(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		return configErr(err)
	}

	fs := flag.NewFlagSet("brand", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	initialize := fs.Bool("init", false, "Write the default brand config if none exists")
	reset := fs.Bool("reset", false, "Overwrite the brand config with the defaults")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *initialize || *reset {
		if *initialize && !*reset {
			if _, err := os.Stat(cfg.BrandPath()); err == nil {
				_, _ = fmt.Fprintf(os.Stderr, "brand config already exists at %s (use --reset to overwrite)\n", cfg.BrandPath())
				return 1
			}
		}
		if err := brand.Save(cfg.BrandPath(), brand.Default()); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "write brand config: %v\n", err)
			return 1
		}
		fmt.Printf("wrote %s\n", cfg.BrandPath())
		return 0
	}

	brandCfg, err := brand.Load(cfg.BrandPath())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read brand config: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(brandCfg)
	return 0
}

func runHealth(ctx context.Context, args []string) int {
	cfg, err := config.Load()
	if err != nil {
		return configErr(err)
	}

	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	factory := llm.NewFactory(llm.Config{Provider: llm.Provider(cfg.Provider), ProxyURL: cfg.ProxyURL})
	proxyClient, err := factory.Proxy()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "proxy config error: %v\n", err)
		return 2
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := proxyClient.Health(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "proxy unhealthy: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}
	fmt.Println("proxy ok")
	return 0
}

func configErr(err error) int {
	_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
	return 2
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `outreach: tiered outreach email generation engine

Usage:
  outreach <command> [flags]

Commands:
  generate  Generate one outreach sequence for a single prospect
  batch     Generate sequences for a CSV of prospects (key or client session required)
  send      Send a generated artifact through the ESP
  deploy    Merge a generated sequence into the campaign canvas
  quota     Show or reset the session quota ledger
  brand     Show or initialize the brand config
  health    Check the hosted proxy
  version   Print the engine version

Examples:
  outreach generate --company "Acme" --first-name Jane --email jane@acme.com --pathway three-email
  outreach batch --input prospects.csv --output sequences.csv --api-key "$GROQ_API_KEY"
  outreach send --run <run-id> --to jane@acme.com --input artifact.json --stage initial

Environment:
  OUTREACH_DATA_DIR        State directory (default .outreach)
  OUTREACH_PROVIDER        Direct provider: groq or gemini (default groq)
  OUTREACH_PROXY_URL       Hosted proxy base URL (keyless free lane)
  OUTREACH_CLIENT_SESSION  If true, the session is an unlimited client session
  GROQ_API_KEY             Operator Groq key for direct generation
  GEMINI_API_KEY           Operator Gemini key for direct generation
  RESEND_API_KEY           Server-side ESP key
  OUTREACH_FROM            From address for sends
  OUTREACH_REPLY_TO        Reply-To address for sends

`)
}
