package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/kirillkom/legal-doc-agent/internal/bootstrap"
	"github.com/kirillkom/legal-doc-agent/internal/config"
	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:      "ask",
		Usage:     "Answer a legal question from the indexed documents",
		ArgsUsage: "<question>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env", Usage: "dotenv file", Value: ".env"},
			&cli.BoolFlag{Name: "evaluate", Usage: "grade the answer with the evaluator prompt"},
		},
		Action: run,
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("ask_failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	_ = godotenv.Load(cmd.String("env"))
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	bootstrap.InitObservability(os.Stderr, "legal-ask", cfg.LogLevel)

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	answer, err := app.Answerer.Answer(ctx, question)
	if err != nil {
		return err
	}
	printAnswer(os.Stdout, answer)

	if !cmd.Bool("evaluate") {
		return nil
	}
	evaluation, err := evaluateAnswer(ctx, app.Evaluator, answer)
	if err != nil {
		return err
	}
	printEvaluation(os.Stdout, evaluation)
	return nil
}

// evaluateAnswer grades answer against the same context it was synthesized from.
func evaluateAnswer(ctx context.Context, evaluator ports.AnswerEvaluator, answer *domain.Answer) (*domain.Evaluation, error) {
	return evaluator.Evaluate(ctx, answer.Record(uuid.NewString(), time.Now().UTC()))
}

func printAnswer(w io.Writer, answer *domain.Answer) {
	fmt.Fprintln(w, "Sub-questions / Reasoning Steps:")
	for i, step := range answer.SubQuestions {
		fmt.Fprintf(w, "%d. %s\n", i+1, step)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Answer:")
	fmt.Fprintln(w, answer.Text)
	if answer.ContextTruncated {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "(context was truncated to fit the token budget)")
	}
}

func printEvaluation(w io.Writer, evaluation *domain.Evaluation) {
	fmt.Fprintln(w)
	if evaluation.Score > 0 {
		fmt.Fprintf(w, "Evaluation (score %d/%d):\n", evaluation.Score, domain.MaxEvaluationScore)
	} else {
		fmt.Fprintln(w, "Evaluation (no score):")
	}
	fmt.Fprintln(w, evaluation.Summary)
}
