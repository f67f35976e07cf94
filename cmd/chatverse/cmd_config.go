package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/chatverse/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configCheckCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage server settings",
	Long: `Manage the chatverse settings file.

Keys are dot-separated: openai.api_key, openai.base_url, openai.model,
catalog.path, catalog.base_dir, catalog.watch, group.price_per_1k_tokens,
group.rounds, http.listen, data_dir, log_level and max_concurrent.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List settings and the paths they resolve to, secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		values, err := config.ListValues(cfg, true)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
		for _, k := range config.Keys() {
			fmt.Fprintf(w, "%s\t%v\t%s\n", k, values[k], settingSource(k))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout)
		return printPaths(os.Stdout, cfg)
	},
}

var configGetCmd = &cobra.Command{
	Use:       "get <key>",
	Short:     "Print one setting",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, val)
		if env := config.EnvVar(args[0]); env != "" && os.Getenv(env) != "" {
			fmt.Fprintf(os.Stderr, "Note: %s is set and overrides this value.\n", env)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Change one setting",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(cfgPath); err != nil {
			return err
		}
		if err := config.SetValue(cfgPath, args[0], args[1]); err != nil {
			return err
		}
		display := args[1]
		if config.IsSecretKey(args[0]) {
			display = "***"
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", args[0], display)
		if args[0] == "catalog.path" || args[0] == "catalog.base_dir" || args[0] == "http.listen" {
			fmt.Fprintln(os.Stdout, "Restart the server to apply.")
		}
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate settings and make sure the catalog and assets exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if err := checkConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Config OK: %s\n", cfgPath)
		return nil
	},
}

func settingSource(key string) string {
	if env := config.EnvVar(key); env != "" && os.Getenv(env) != "" {
		return "env " + env
	}
	return "file"
}

// resolvedPaths lists the files and directories the server reads and writes
// for cfg.
func resolvedPaths(cfg *config.Config) ([][2]string, error) {
	catalogPath, baseDir, err := catalogPaths(cfg)
	if err != nil {
		return nil, err
	}
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	return [][2]string{
		{"catalog", catalogPath},
		{"base dir", baseDir},
		{"assets", filepath.Join(baseDir, "assets")},
		{"data dir", dataDir},
		{"workspace", filepath.Join(dataDir, "workspace")},
		{"artifacts", filepath.Join(dataDir, "artifacts")},
	}, nil
}

func printPaths(out io.Writer, cfg *config.Config) error {
	paths, err := resolvedPaths(cfg)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "config\t%s\n", cfgPath)
	for _, p := range paths {
		fmt.Fprintf(w, "%s\t%s\n", p[0], p[1])
	}
	return w.Flush()
}

func checkConfig(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}
	catalogPath, baseDir, err := catalogPaths(cfg)
	if err != nil {
		return err
	}
	if info, err := os.Stat(catalogPath); err != nil || info.IsDir() {
		return fmt.Errorf("catalog %s is not a readable file", catalogPath)
	}
	if info, err := os.Stat(filepath.Join(baseDir, "assets")); err != nil || !info.IsDir() {
		return fmt.Errorf("assets directory %s does not exist", filepath.Join(baseDir, "assets"))
	}
	return nil
}
