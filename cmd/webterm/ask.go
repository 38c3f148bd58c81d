package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/webterm/internal/agent"
	"github.com/nao1215/webterm/internal/config"
	"github.com/nao1215/webterm/internal/service"
)

// askPrompt is printed before each question in interactive mode.
const askPrompt = "> "

// NewAskCmd creates the ask command.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask questions about a mapped website",
		Long: `Ask answers questions about a website from its site tree alone; no pages
are fetched. The tree comes from a JSON file written by scan --save, or from
the database.

Without a question, ask reads questions from standard input one line at a
time and keeps the conversation until "exit" or end of input.

Examples:
  # One question about a saved tree
  webterm ask -f example.json "Where can I download the SDK?"

  # Chat about the latest stored tree of a site
  webterm ask --root https://example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runAskCmd,
	}

	cmd.Flags().StringP("file", "f", "",
		"Site tree JSON file written by scan --save")
	addTreeSourceFlags(cmd)
	addModelFlags(cmd)

	return cmd
}

// runAskCmd executes the ask command.
func runAskCmd(cmd *cobra.Command, args []string) error {
	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	src, err := readTreeSource(cmd, file)
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	if err := readModelFlags(cmd, cfg, os.Getenv); err != nil {
		return err
	}
	if err := cfg.ValidateModel(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(getVerboseFlag(cmd))
	ctx, stop := withSignals(cmd.Context(), logger)
	defer stop()

	m, err := agent.NewModel(agent.ProviderConfig{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return err
	}

	svc := service.New(m, nil,
		service.WithRequestTimeout(cfg.RequestTimeout),
		service.WithLogger(logger),
	)
	if err := loadTree(ctx, svc, src); err != nil {
		return err
	}

	return runAsk(ctx, svc, strings.Join(args, " "), cmd.InOrStdin(), cmd.OutOrStdout())
}

// runAsk answers question, or every line of in when question is empty.
func runAsk(ctx context.Context, svc *service.Service, question string, in io.Reader, out io.Writer) error {
	if strings.TrimSpace(question) != "" {
		reply, err := svc.Ask(ctx, question)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, reply)
		return err
	}

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, askPrompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(out, askPrompt)
			continue
		case "exit", "quit":
			return nil
		}

		reply, err := svc.Ask(ctx, line)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n%s", reply, askPrompt)
	}
	return scanner.Err()
}
