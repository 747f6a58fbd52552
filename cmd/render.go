package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/frontpage/internal/config"
	"github.com/conneroisu/frontpage/internal/frontend"
	"github.com/conneroisu/frontpage/internal/logging"
	"github.com/conneroisu/frontpage/internal/nonce"
)

var (
	renderType  int
	renderHost  string
	renderTwice bool
	renderQuiet bool
)

var renderCmd = &cobra.Command{
	Use:     "render [path]",
	Aliases: []string{"r"},
	Short:   "Render one page to stdout",
	Long: `Render the page at path (default "/") with an in-memory page cache and
print the finished document. Redis backends from the configuration are
ignored.

Examples:
  frontpage render                   # Render the root page
  frontpage render /about --type 98  # Render page type 98
  frontpage render --twice           # Render, then replay from the cache`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().IntVarP(&renderType, "type", "t", 0, "Page type number")
	renderCmd.Flags().StringVar(&renderHost, "host", "localhost", "Host the page is rendered for")
	renderCmd.Flags().BoolVar(&renderTwice, "twice", false, "Render a second time from the page cache")
	renderCmd.Flags().BoolVarP(&renderQuiet, "quiet", "q", false, "Only print the render summary")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	return renderPage(cmd, cfg, logger, args)
}

func renderPage(cmd *cobra.Command, cfg *config.Config, logger logging.Logger, args []string) error {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	a, err := newApp(cfg, logger, appOptions{memoryOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	runs := 1
	if renderTwice {
		runs = 2
	}
	var resp *frontend.Response
	for i := 0; i < runs; i++ {
		n, err := nonce.New()
		if err != nil {
			return err
		}
		resp, err = a.handler.Handle(cmd.Context(), &frontend.Request{
			Host:    renderHost,
			Path:    path,
			TypeNum: renderType,
			Nonce:   n,
		})
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", path, err)
		}
		source := "generated"
		if resp.FromCache {
			source = "cache"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s type=%d status=%d bytes=%d source=%s\n",
			path, renderType, resp.Status, len(resp.Body), source)
	}

	if renderQuiet {
		return nil
	}
	_, err = io.WriteString(cmd.OutOrStdout(), resp.Body)
	return err
}
