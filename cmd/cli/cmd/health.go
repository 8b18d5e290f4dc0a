package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the agent backend through the controller",
	Long: `Probe the agent execution backend via the controller's health endpoint.

Example:
  agentctl health`,
	Run: func(cmd *cobra.Command, args []string) {
		url := viper.GetString("url")
		token := viper.GetString("token")

		client := NewAgentClient(url, token)
		health, err := client.BackendHealth()
		if err != nil {
			cmd.Printf("Health check failed: %v\n", err)
			return
		}

		if health.Status == "healthy" {
			cmd.Printf("%s✓%s Backend healthy", colorGreen, colorReset)
			if health.Service != "" {
				cmd.Printf(" (%s)", health.Service)
			}
			cmd.Println()
			return
		}

		cmd.Printf("%s✗%s Backend unhealthy", colorRed, colorReset)
		if health.Error != "" {
			cmd.Printf(": %s", health.Error)
		}
		cmd.Println()
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
