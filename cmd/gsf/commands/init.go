package commands

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-sharp-flow/internal/config"
	"github.com/l3aro/go-sharp-flow/pkg/rules"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gsf configuration interactively",
	Long: `Guides you through setting up gsf configuration step by step.
Creates a config file with the rules to run, exploration budgets, caching
and the optional external helper.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd)
	},
}

func init() {
	RootCmd.AddCommand(initCmd)
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func runInit(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	registry := rules.NewRegistry()

	// === SECTION 1: Rules ===
	selected := registry.IDs()
	ruleOptions := make([]huh.Option[string], 0, len(selected))
	for _, id := range selected {
		ruleOptions = append(ruleOptions, huh.NewOption(fmt.Sprintf("%s  %s", id, ruleTitle(id)), id).Selected(true))
	}

	// === SECTION 2: Budgets ===
	maxSteps := strconv.Itoa(cfg.MaxSteps)
	maxVisits := strconv.Itoa(cfg.MaxPointVisits)
	workers := strconv.Itoa(cfg.Workers)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Rules").
				Description("Select the rules to run (all by default)").
				Options(ruleOptions...).
				Value(&selected),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Exploration steps per method").
				Description("Walks stop after this many steps").
				Placeholder(maxSteps).
				Validate(positiveInt).
				Value(&maxSteps),
			huh.NewInput().
				Title("States kept per program point").
				Placeholder(maxVisits).
				Validate(positiveInt).
				Value(&maxVisits),
			huh.NewInput().
				Title("Files analyzed in parallel").
				Placeholder(workers).
				Validate(positiveInt).
				Value(&workers),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Cache and helper ===
	cacheEnabled := cfg.CacheEnabled
	helperPath := ""
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Result cache").
				Description("Reuse results of unchanged files between runs?").
				Affirmative("Yes").
				Negative("No").
				Value(&cacheEnabled),
			huh.NewInput().
				Title("External analysis helper (optional, press Enter to skip)").
				Placeholder("path to helper binary").
				Value(&helperPath),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 4: Save location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Options(
					huh.NewOption("Project (./.gsf/config.yaml)", "project"),
					huh.NewOption("Global (~/.gsf/config.yaml)", "global"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	if len(selected) < len(registry.IDs()) {
		cfg.Rules = selected
	}
	cfg.MaxSteps, _ = strconv.Atoi(maxSteps)
	cfg.MaxPointVisits, _ = strconv.Atoi(maxVisits)
	cfg.Workers, _ = strconv.Atoi(workers)
	cfg.CacheEnabled = cacheEnabled
	cfg.HelperPath = helperPath
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n=== Configuration Preview ===")
	fmt.Fprintf(out, "Config path: %s\n", configPath)
	if len(cfg.Rules) == 0 {
		fmt.Fprintln(out, "Rules: all")
	} else {
		fmt.Fprintf(out, "Rules: %v\n", cfg.Rules)
	}
	fmt.Fprintf(out, "Max steps: %d\n", cfg.MaxSteps)
	fmt.Fprintf(out, "Max point visits: %d\n", cfg.MaxPointVisits)
	fmt.Fprintf(out, "Workers: %d\n", cfg.Workers)
	fmt.Fprintf(out, "Cache: %v\n", cfg.CacheEnabled)
	if cfg.HelperPath != "" {
		fmt.Fprintf(out, "Helper: %s\n", cfg.HelperPath)
	}
	fmt.Fprintln(out, "================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}
	fmt.Fprintf(out, "Configuration saved to: %s\n", configPath)
	return nil
}
