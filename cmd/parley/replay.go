package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"parley/internal/insight"
	"parley/internal/oracle"
	"parley/internal/research"
	"parley/internal/responder"
	"parley/internal/transcript"
)

var replayTail time.Duration

// scenario is a scripted conversation for offline pipeline runs.
type scenario struct {
	Name       string      `yaml:"name"`
	Utterances []utterance `yaml:"utterances"`
}

type utterance struct {
	Text    string `yaml:"text"`
	DelayMs int    `yaml:"delay_ms"`
}

// replayCmd feeds a scripted conversation through the pipeline and
// prints the final published state. Useful for tuning prompts and
// intervals without a live microphone.
var replayCmd = &cobra.Command{
	Use:   "replay [scenario.yaml]",
	Short: "Replay a scripted conversation through the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sc, err := loadScenario(args[0])
		if err != nil {
			return err
		}
		if len(sc.Utterances) == 0 {
			return fmt.Errorf("scenario %s has no utterances", args[0])
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		client, err := oracle.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return err
		}
		orc := oracle.WithTimeout(client, cfg.OracleTimeout())

		buf := transcript.NewBuffer()
		tracker := research.NewTracker(orc, logger)
		extractor := insight.NewExtractor(orc, logger)
		resp := responder.New(orc, buf, tracker, extractor, responder.Config{
			ResponseInterval: cfg.ResponseInterval(),
			EnableResearch:   cfg.EnableResearch,
			Temperature:      cfg.Temperature,
			MaxTokens:        cfg.MaxTokens,
		}, logger)

		done := make(chan struct{})
		go func() {
			resp.Run(ctx)
			close(done)
		}()

		if sc.Name != "" {
			fmt.Printf("replaying %q (%d utterances)\n", sc.Name, len(sc.Utterances))
		}
		for _, u := range sc.Utterances {
			if u.DelayMs > 0 {
				time.Sleep(time.Duration(u.DelayMs) * time.Millisecond)
			}
			buf.Append(u.Text)
			fmt.Printf("  + %s\n", u.Text)
		}

		// Let the responder catch up with the final utterance.
		time.Sleep(replayTail)
		cancel()
		<-done

		printReplayReport(resp)
		return nil
	},
}

func init() {
	replayCmd.Flags().DurationVar(&replayTail, "tail", 5*time.Second, "how long to keep the pipeline running after the last utterance")
}

func loadScenario(path string) (scenario, error) {
	var sc scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("failed to read scenario: %w", err)
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	return sc, nil
}

func printReplayReport(r *responder.Responder) {
	state := r.State()

	fmt.Printf("\n=== final response ===\n%s\n", state.Response)

	if len(state.Sources) > 0 {
		fmt.Println("\n=== sources ===")
		for _, src := range state.Sources {
			fmt.Printf("  [%s] %s\n      %s\n", src.SourceType, src.Title, src.Snippet)
		}
	}

	ins := state.Insights
	if len(ins.KeyTopics)+len(ins.DecisionsMade)+len(ins.QuestionsRaised)+len(ins.ActionItems) > 0 {
		fmt.Println("\n=== insights ===")
		for _, topic := range ins.KeyTopics {
			fmt.Printf("  topic: %s\n", topic)
		}
		for _, d := range ins.DecisionsMade {
			fmt.Printf("  decision: %s\n", d)
		}
		for _, q := range ins.QuestionsRaised {
			fmt.Printf("  question: %s\n", q)
		}
		for _, item := range ins.ActionItems {
			fmt.Printf("  todo [%s] %s (%s)\n", item.Priority, item.Text, item.AssignedTo)
		}
	}

	if len(state.Context) > 0 {
		fmt.Printf("\n%d context entries retained\n", len(state.Context))
	}
}
