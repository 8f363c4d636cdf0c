package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psantana5/botkeeper/pkg/auth"
)

// keygenCmd represents the keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an API key for the status API",
	Long: `Generate a random API key and its bcrypt hash. The hash goes into the
daemon config (server.api_key_hash); the key itself goes into the CLI
environment (BOTKEEPER_API_KEY). The key is shown once and not stored.`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	key, err := auth.GenerateAPIKey()
	if err != nil {
		return err
	}

	hash, err := auth.HashAPIKey(key)
	if err != nil {
		return err
	}

	fmt.Println("API key (give to clients, shown once):")
	fmt.Printf("  %s\n\n", key)
	fmt.Println("Hash (put in config under server.api_key_hash):")
	fmt.Printf("  %s\n", hash)
	return nil
}
