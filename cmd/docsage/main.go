package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/anvik/docsage/internal/models"
	"github.com/anvik/docsage/pkg/config"
	"github.com/anvik/docsage/pkg/loader"
	"github.com/anvik/docsage/pkg/orchestrator"
	"github.com/anvik/docsage/server"
)

type flags struct {
	configPath string
	filePath   string
	sessionID  string
	serve      bool
	addr       string
	verbose    bool

	model     string
	ollamaURL string
}

func main() {
	f := parseFlags()

	if err := run(f); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() flags {
	var f flags

	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.StringVar(&f.filePath, "file", "", "Document to ingest (txt, md or html)")
	flag.StringVar(&f.sessionID, "session", "", "Resume an existing session by id")
	flag.BoolVar(&f.serve, "serve", false, "Run the websocket server instead of the chat loop")
	flag.StringVar(&f.addr, "addr", ":8080", "Listen address for -serve")
	flag.BoolVar(&f.verbose, "verbose", false, "Enable debug logging")
	flag.StringVar(&f.model, "model", "", "Override the generation model")
	flag.StringVar(&f.ollamaURL, "ollama-url", "", "Override the Ollama server URL")
	flag.Parse()

	return f
}

func run(f flags) error {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return err
	}
	if f.model != "" {
		cfg.Generation.Model = f.model
	}
	if f.ollamaURL != "" {
		cfg.Embedding.BaseURL = f.ollamaURL
		cfg.Generation.BaseURL = f.ollamaURL
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	logger := zap.NewNop()
	if f.verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	if f.serve {
		srv, err := server.NewWSServer(cfg, logger)
		if err != nil {
			return err
		}
		defer srv.Close()
		return srv.ListenAndServe(f.addr)
	}

	orch, st, err := server.BuildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	sessionID := f.sessionID
	if f.filePath != "" {
		sessionID, err = ingestFile(ctx, orch, f.filePath)
		if err != nil {
			return err
		}
	}

	if sessionID == "" {
		sessions, err := orch.ListSessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			return fmt.Errorf("no sessions found, ingest a document with -file")
		}
		color.Cyan("Available sessions:")
		for _, s := range sessions {
			fmt.Printf("  %s\n", s)
		}
		return fmt.Errorf("pick one with -session")
	}

	if err := orch.OpenSession(ctx, sessionID); err != nil {
		return err
	}

	return chatLoop(ctx, orch, cfg, sessionID)
}

func ingestFile(ctx context.Context, orch *orchestrator.Orchestrator, path string) (string, error) {
	doc, err := loader.Load(path)
	if err != nil {
		return "", err
	}

	spinner := getSpinner(fmt.Sprintf("Indexing %s...", doc.Name))
	count, err := orch.Ingest(ctx, doc.SessionID, doc.Text)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return "", fmt.Errorf("failed to ingest %s: %w", path, err)
	}

	color.Green("\n✓ Indexed %s into %d chunks (session %s)\n", doc.Name, count, doc.SessionID)
	return doc.SessionID, nil
}

func chatLoop(ctx context.Context, orch *orchestrator.Orchestrator, cfg *config.Config, sessionID string) error {
	color.Cyan("\nAsk about your document. Commands: /summarize, /challenge [n], /sessions, exit")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch {
		case query == "":
			continue
		case strings.EqualFold(query, "exit"):
			return nil
		case query == "/summarize":
			spinner := getSpinner("Summarizing...")
			summary, err := orch.Summarize(ctx, sessionID)
			spinner.Finish()
			fmt.Print("\r")
			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			assistantPrompt("\nSummary: %s\n", summary)
		case strings.HasPrefix(query, "/challenge"):
			n := cfg.Challenge.Questions
			if arg := strings.TrimSpace(strings.TrimPrefix(query, "/challenge")); arg != "" {
				if parsed, err := strconv.Atoi(arg); err == nil {
					n = parsed
				}
			}
			if err := runChallenge(ctx, orch, scanner, sessionID, n); err != nil {
				color.Red("Error: %v\n", err)
			}
		case query == "/sessions":
			sessions, err := orch.ListSessions(ctx)
			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			for _, s := range sessions {
				fmt.Printf("  %s\n", s)
			}
		default:
			spinner := getSpinner("Searching document...")
			answer, err := orch.Ask(ctx, sessionID, query)
			spinner.Finish()
			fmt.Print("\r")
			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			printAnswer(assistantPrompt, answer)
		}
	}

	return scanner.Err()
}

func printAnswer(assistantPrompt func(format string, a ...interface{}), answer models.Answer) {
	if !answer.Grounded {
		color.Yellow("\n%s\n", answer.Text)
		return
	}

	assistantPrompt("\nAssistant: %s\n", answer.Text)
	if answer.Justification != "" {
		color.HiBlack("%s\n", answer.Justification)
	}
}

func runChallenge(ctx context.Context, orch *orchestrator.Orchestrator, scanner *bufio.Scanner, sessionID string, n int) error {
	spinner := getSpinner("Preparing questions...")
	items, err := orch.GenerateQuestions(ctx, sessionID, n)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}

	total := 0
	for i, item := range items {
		color.Cyan("\nQuestion %d/%d: %s", i+1, len(items), item.Question)
		color.New(color.FgGreen).Printf("Your answer: ")
		if !scanner.Scan() {
			break
		}

		graded, err := orch.Evaluate(ctx, item, scanner.Text())
		if err != nil {
			return err
		}

		if graded.Correct {
			color.Green("✓ Correct (%d/10)", graded.Score)
		} else {
			color.Red("✗ Incorrect (%d/10)", graded.Score)
		}
		fmt.Println(graded.Justification)
		total += graded.Score
	}

	color.Cyan("\nFinal score: %d/%d\n", total, len(items)*10)
	return nil
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
