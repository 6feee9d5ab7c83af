package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/madmti/release-kit/internal/config"
	"github.com/madmti/release-kit/internal/engine"
)

var rootCmd = &cobra.Command{
	Use:   "relkit",
	Short: "Commit-driven semantic release automation",
	Long: `relkit inspects the commits since your last version tag, decides the
semantic version bump from their conventional-commit prefixes, updates
version strings and the changelog, then tags, pushes and optionally
publishes a hosted release.

Breaking changes (a "!" before the colon or a BREAKING CHANGE footer)
always force a major bump. Rules, file targets, floating tags and
hosting are configured in release-kit.yml; run 'relkit init' to start.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("RELEASEKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("repo", "r", ".", "repository path")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	_ = viper.BindPFlag("repo", rootCmd.PersistentFlags().Lookup("repo"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(releaseCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(initCmd())
}

func logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func newEngine() (engine.Engine, error) {
	repo := viper.GetString("repo")
	cfg, err := config.LoadOptional(repo)
	if err != nil {
		return engine.Engine{}, err
	}
	return engine.New(repo, cfg, logger()), nil
}

func releaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release",
		Short: "Run the release: classify commits, bump, tag, push, publish",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			out, err := eng.Release()
			if err != nil {
				return err
			}
			if !out.Released {
				// benign early exit, still a success
				fmt.Println("nothing to do:", out.Reason)
				return nil
			}
			fmt.Println("released", out.Decision.Next.Tag())
			return nil
		},
	}
}

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Dry run: show the commits and the version the release would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			d, err := eng.Plan()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(d)
			}
			printPlanTable(d)
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default release-kit.yml to the repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("repo"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPlanTable(d *engine.Decision) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Type", "Breaking", "Subject"})
	for _, c := range d.Commits {
		typ := c.Type
		if typ == "" {
			typ = "-"
		}
		breaking := ""
		if c.Breaking {
			breaking = "!"
		}
		t.AppendRow(table.Row{typ, breaking, c.Subject})
	}
	t.Render()
	fmt.Printf("\nprevious: %s  bump: %s  next: v%s\n", d.PreviousTag, d.BumpName, d.NextVersion)
	if d.BumpName == "none" && len(d.Commits) > 0 {
		fmt.Println("no release-worthy commits; a release run would be a no-op")
	}
}
