package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/webterm/internal/config"
)

// addCrawlFlags registers the flags that shape how pages are fetched.
// withLimits adds the depth, page cap and subpath flags; scan leaves those
// to the model.
func addCrawlFlags(cmd *cobra.Command, withLimits bool) {
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page fetch")
	if withLimits {
		cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
			"Maximum crawl depth (1 fetches only the start page and records its links)")
		cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
			"Maximum number of pages added to a tree by one crawl")
		cmd.Flags().Bool("no-restrict", false,
			"Follow links outside the start path (same host only)")
	}
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Delay between requests")
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().StringP("list", "l", "",
		"File with one site URL per line (# starts a comment)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webterm in current or home directory)")
}

// addReportFlags registers the report format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// addDatabaseFlags registers the flags that locate the tree database.
func addDatabaseFlags(cmd *cobra.Command, withNoDB bool) {
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	if withNoDB {
		cmd.Flags().Bool("no-db", false,
			"Do not store pages and trees in the database")
	}
}

// addModelFlags registers the LLM flags. They override the environment.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("provider", config.DefaultProvider,
		"LLM provider: openai or anthropic (env: "+config.EnvProvider+")")
	cmd.Flags().String("model", "",
		"Model name (env: "+config.EnvModel+", default: provider default)")
	cmd.Flags().Int("max-tool-calls", config.DefaultMaxToolCalls,
		"Tool-call budget of one scan (env: "+config.EnvMaxToolCalls+")")
	cmd.Flags().Duration("request-timeout", config.DefaultRequestTimeout,
		"Timeout for one model request")
	cmd.Flags().String("base-url", "",
		"Override the provider API endpoint")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// readCrawlFlags copies the crawl flags and the target list into cfg and
// loads the site configuration file.
func readCrawlFlags(cmd *cobra.Command, cfg *config.Config, args []string) error {
	var err error
	flags := cmd.Flags()

	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	if flags.Lookup("depth") != nil {
		if err := readLimitFlags(cmd, cfg); err != nil {
			return err
		}
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return err
	}
	if err := loadSiteConfigs(cfg); err != nil {
		return err
	}

	listFile, err := flags.GetString("list")
	if err != nil {
		return err
	}
	cfg.Targets = append(cfg.Targets, args...)
	if listFile != "" {
		listed, err := readTargetList(listFile)
		if err != nil {
			return err
		}
		cfg.Targets = append(cfg.Targets, listed...)
	}
	return nil
}

// readLimitFlags copies the depth, page cap and subpath flags into cfg.
func readLimitFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.CrawlDepth, err = cmd.Flags().GetInt("depth"); err != nil {
		return err
	}
	if cfg.MaxPages, err = cmd.Flags().GetInt("max-pages"); err != nil {
		return err
	}
	noRestrict, err := cmd.Flags().GetBool("no-restrict")
	if err != nil {
		return err
	}
	cfg.RestrictToSubpath = !noRestrict
	return nil
}

// loadSiteConfigs loads the site configuration file into cfg.
// A file named with --config must exist; otherwise a missing file means an
// empty configuration.
func loadSiteConfigs(cfg *config.Config) error {
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		siteConfigs, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs = siteConfigs
	case explicitConfigPath:
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}
	return nil
}

// readTargetList reads site URLs from path, one per line.
// Blank lines and lines starting with # are skipped.
func readTargetList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open target list: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}
	return targets, nil
}

// readReportFlags copies the report flags into cfg.
func readReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	return nil
}

// readDatabaseFlags copies the database flags into cfg. The database is used
// unless --no-db is set and lives in the XDG data directory unless --db-dir
// names another one.
func readDatabaseFlags(cmd *cobra.Command, cfg *config.Config) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	cfg.DBDir = dbDir
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.SaveToDB = true
	if cmd.Flags().Lookup("no-db") != nil {
		noDB, err := cmd.Flags().GetBool("no-db")
		if err != nil {
			return err
		}
		cfg.SaveToDB = !noDB
	}
	return nil
}

// readModelFlags applies the environment and then the LLM flags the user
// set explicitly, so a flag always wins over the environment.
func readModelFlags(cmd *cobra.Command, cfg *config.Config, getenv func(string) string) error {
	if err := cfg.ApplyEnv(getenv); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		provider, err := flags.GetString("provider")
		if err != nil {
			return err
		}
		cfg.Provider = strings.ToLower(strings.TrimSpace(provider))
		// The key variable depends on the provider.
		cfg.APIKey = strings.TrimSpace(getenv(cfg.APIKeyEnv()))
	}
	if flags.Changed("model") {
		model, err := flags.GetString("model")
		if err != nil {
			return err
		}
		cfg.Model = model
	}
	if flags.Changed("max-tool-calls") {
		n, err := flags.GetInt("max-tool-calls")
		if err != nil {
			return err
		}
		cfg.MaxToolCalls = n
	}

	var err error
	if cfg.RequestTimeout, err = flags.GetDuration("request-timeout"); err != nil {
		return err
	}
	if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
		return err
	}
	return nil
}
