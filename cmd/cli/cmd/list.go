package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent executions",
	Long: `List the organization's recent executions, most recent first.

Example:
  agentctl list
  agentctl list --module lead-scoring --limit 20`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		module, _ := flags.GetString("module")
		limit, _ := flags.GetInt("limit")

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the AGENTPLANE_TOKEN environment variable")
			return
		}

		client := NewAgentClient(url, token)
		executions, err := client.ListExecutions(module, limit)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Request failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Request failed: %v\n", err)
			}
			return
		}

		if len(executions) == 0 {
			cmd.Println("No executions found")
			return
		}

		cmd.Printf("%-36s  %-20s  %-10s  %s\n", "ID", "MODULE", "STATUS", "STARTED")
		for _, e := range executions {
			cmd.Printf("%-36s  %-20s  %-10s  %s\n",
				e.ID, e.ModuleID, e.Status, e.StartedAt.Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	flags := listCmd.Flags()
	flags.StringP("module", "m", "", "Only executions of this module")
	flags.Int("limit", 20, "Maximum number of executions to list")

	rootCmd.AddCommand(listCmd)
}
