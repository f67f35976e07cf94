package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/chatverse/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("AI ChatVerse Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Catalog.Path = prompt(scanner, "Catalog file (config.yaml)", cfg.Catalog.Path)
		cfg.HTTP.Listen = prompt(scanner, "Listen address", cfg.HTTP.Listen)
		cfg.OpenAI.BaseURL = prompt(scanner, "OpenAI base URL", cfg.OpenAI.BaseURL)
		cfg.OpenAI.APIKey = prompt(scanner, "OpenAI API key (optional, users can enter their own)", cfg.OpenAI.APIKey)
		cfg.OpenAI.Model = prompt(scanner, "Group agent model", cfg.OpenAI.Model)

		rounds := prompt(scanner, "Group rounds", strconv.Itoa(cfg.Group.Rounds))
		if n, err := strconv.Atoi(rounds); err == nil && n > 0 {
			cfg.Group.Rounds = n
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt shows label with its default and returns the trimmed answer, or
// the default when the answer is empty.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		if input := strings.TrimSpace(scanner.Text()); input != "" {
			return input
		}
	}
	return defaultVal
}
