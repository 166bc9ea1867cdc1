package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parley/internal/deepdive"
	"parley/internal/insight"
	"parley/internal/oracle"
	"parley/internal/research"
	"parley/internal/responder"
	"parley/internal/store"
	"parley/internal/transcript"
)

var (
	transcriptPath string
	noResearch     bool
)

// runCmd starts the live pipeline against a transcript file or stdin.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live response/research/insight pipeline",
	Long: `Starts the orchestrator loop. With --transcript, parley tails the
given file for appended conversation text; without it, lines read from
stdin are appended to an in-memory transcript.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "", "transcript file to tail (stdin when empty)")
	runCmd.Flags().BoolVar(&noResearch, "no-research", false, "disable the research phase")
}

// pipeline bundles everything runPipeline constructs.
type pipeline struct {
	tracker   *research.Tracker
	extractor *insight.Extractor
	responder *responder.Responder
	archive   *store.SessionStore
}

func buildPipeline(ctx context.Context) (*pipeline, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if noResearch {
		cfg.EnableResearch = false
	}

	client, err := oracle.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		return nil, nil, err
	}
	orc := oracle.WithTimeout(client, cfg.OracleTimeout())

	var src transcript.Source
	var stopSource func()
	if transcriptPath != "" {
		fileSrc, err := transcript.NewFileSource(transcriptPath, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := fileSrc.Start(); err != nil {
			return nil, nil, err
		}
		src = fileSrc
		stopSource = fileSrc.Stop
	} else {
		buf := transcript.NewBuffer()
		go feedFromStdin(ctx, buf)
		src = buf
		stopSource = func() {}
	}

	tracker := research.NewTracker(orc, logger)
	extractor := insight.NewExtractor(orc, logger)
	resp := responder.New(orc, src, tracker, extractor, responder.Config{
		ResponseInterval: cfg.ResponseInterval(),
		EnableResearch:   cfg.EnableResearch,
		Temperature:      cfg.Temperature,
		MaxTokens:        cfg.MaxTokens,
	}, logger)

	p := &pipeline{
		tracker:   tracker,
		extractor: extractor,
		responder: resp,
	}

	cleanup := stopSource
	if cfg.DBPath != "" {
		archive, err := store.NewSessionStore(cfg.DBPath)
		if err != nil {
			stopSource()
			return nil, nil, err
		}
		p.archive = archive
		cleanup = func() {
			stopSource()
			archive.Close()
		}
	}

	return p, cleanup, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, cleanup, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if p.archive != nil {
		go archiveLoop(ctx, p)
	}

	go p.responder.Run(ctx)

	printLoop(ctx, p.responder)
	return nil
}

// feedFromStdin appends each stdin line to the transcript buffer.
func feedFromStdin(ctx context.Context, buf *transcript.Buffer) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if line := scanner.Text(); line != "" {
			buf.Append(line)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stdin read failed", zap.Error(err))
	}
}

// archiveLoop persists completed searches and action items. The research
// observer only signals; reads happen outside the tracker's callback to
// stay off its lock.
func archiveLoop(ctx context.Context, p *pipeline) {
	changed := make(chan struct{}, 1)
	p.tracker.RegisterObserver(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	saved := 0
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
		case <-ticker.C:
		}

		history := p.tracker.History()
		for _, entry := range history[min(saved, len(history)):] {
			if err := p.archive.SaveSearch(entry); err != nil {
				logger.Warn("failed to archive search", zap.Error(err))
			}
		}
		saved = len(history)

		if items := p.extractor.Current().ActionItems; len(items) > 0 {
			if err := p.archive.SaveActionItems(items); err != nil {
				logger.Warn("failed to archive action items", zap.Error(err))
			}
		}
	}
}

// printLoop renders the published state whenever it changes.
func printLoop(ctx context.Context, r *responder.Responder) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var last *responder.PublishedState
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state := r.State()
		if state == last {
			continue
		}
		last = state

		fmt.Printf("\n>>> %s\n", state.Response)
		for _, src := range state.Sources {
			fmt.Printf("    [%s] %s\n", src.SourceType, src.Title)
		}
		printInsights(state.Insights)

		if act := r.ResearchActivity(); len(act.ActiveSearches) > 0 {
			fmt.Printf("    researching: %v\n", act.ActiveSearches)
		}
	}
}

// printInsights shows at most five topics plus any open items.
func printInsights(ins insight.Insights) {
	topics := ins.KeyTopics
	if len(topics) > 5 {
		topics = topics[:5]
	}
	if len(topics) > 0 {
		fmt.Printf("    topics: %v\n", topics)
	}
	for _, item := range ins.ActionItems {
		fmt.Printf("    todo [%s] %s (%s)\n", item.Priority, item.Text, item.AssignedTo)
	}
}

// diveCmd runs one-shot deep research on a topic.
var diveCmd = &cobra.Command{
	Use:   "dive [topic]",
	Short: "Run deep-dive research on a single topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		client, err := oracle.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return err
		}
		orc := oracle.WithTimeout(client, cfg.OracleTimeout())

		topic := strings.Join(args, " ")

		tracker := research.NewTracker(orc, logger)
		diver := deepdive.NewDiver(orc, tracker, logger)
		report, err := diver.Dive(ctx, topic)
		if err != nil {
			return err
		}
		fmt.Print(report.Render())
		return nil
	},
}
