package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/frontpage/internal/scaffolding"
)

var (
	initTemplate  string
	initTitle     string
	initLocale    string
	initPublicDir string
	initPort      int
	initForce     bool
	initList      bool
)

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Create a starter site",
	Long: `Create a starter site with a configuration file, a setup tree and
public assets.

Examples:
  frontpage init                          # Basic site in the current directory
  frontpage init mysite --title "My Site" # Basic site in ./mysite
  frontpage init --template minimal       # Single page, no assets
  frontpage init --list                   # Show available templates`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initTemplate, "template", "t", "basic", "Site template to use")
	initCmd.Flags().StringVar(&initTitle, "title", "frontpage", "Site title")
	initCmd.Flags().StringVar(&initLocale, "locale", "en-US", "Site locale")
	initCmd.Flags().StringVar(&initPublicDir, "public-dir", "public", "Public directory, relative to the site")
	initCmd.Flags().IntVar(&initPort, "port", 8080, "Server port written to the configuration")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	initCmd.Flags().BoolVar(&initList, "list", false, "List available templates")
}

func runInit(cmd *cobra.Command, args []string) error {
	generator := scaffolding.NewSiteGenerator()
	out := cmd.OutOrStdout()

	if initList {
		for _, info := range generator.ListTemplates() {
			fmt.Fprintf(out, "%-10s %d files  %s\n", info.Name, info.Files, info.Description)
		}
		return nil
	}

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	paths, err := generator.Generate(scaffolding.GenerateOptions{
		Template:  initTemplate,
		OutputDir: dir,
		SiteTitle: initTitle,
		Locale:    initLocale,
		PublicDir: initPublicDir,
		Port:      initPort,
		Force:     initForce,
	})
	if err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}

	for _, path := range paths {
		fmt.Fprintf(out, "created %s\n", path)
	}
	fmt.Fprintf(out, "\nRun 'frontpage serve' in %s to start the site.\n", dir)
	return nil
}
