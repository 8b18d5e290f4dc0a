package cmd

import (
	"agentplane/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage organizations",
}

var orgCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision a new organization",
	Long: `Provision a new organization and mint its API key.

The raw key is printed exactly once; only its hash is stored server-side.

Example:
  agentctl org create --name "Acme Inc"`,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")

		url := viper.GetString("url")
		token := viper.GetString("token")

		if name == "" {
			cmd.Println("Error: --name is required")
			return
		}

		client := NewAgentClient(url, token)
		result, err := client.CreateOrg(api.CreateOrgRequest{Name: name})
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Create failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Create failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Organization created!\nOrg ID: %s\nName: %s\n\nAPI Key (store it now, it will not be shown again):\n%s\n",
			result.ID, result.Name, result.ApiKey)
	},
}

func init() {
	orgCreateCmd.Flags().StringP("name", "n", "", "Name of the organization (required)")

	orgCmd.AddCommand(orgCreateCmd)
	rootCmd.AddCommand(orgCmd)
}
