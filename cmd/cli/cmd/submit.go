package cmd

import (
	"encoding/json"

	"agentplane/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Dispatch a module execution",
	Long: `Dispatch a CRM module execution to the agent backend.

The execution is accepted immediately and runs asynchronously; use
'agentctl status <execution-id>' to follow it.

Example:
  agentctl submit --module lead-scoring --input '{"lead_id": 42}'
  agentctl submit --module email-draft --task 7f2c... --input '{"tone": "formal"}'`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		module, _ := flags.GetString("module")
		task, _ := flags.GetString("task")
		input, _ := flags.GetString("input")

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the AGENTPLANE_TOKEN environment variable")
			return
		}

		if module == "" {
			cmd.Println("Error: --module is required")
			return
		}

		req := api.SubmitExecutionRequest{ModuleID: module}
		if task != "" {
			req.TaskID = &task
		}
		if input != "" {
			if !json.Valid([]byte(input)) {
				cmd.Println("Error: --input must be valid JSON")
				return
			}
			req.InputData = json.RawMessage(input)
		}

		client := NewAgentClient(url, token)
		result, err := client.SubmitExecution(req)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Submit failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Submit failed: %v\n", err)
			}
			return
		}

		cmd.Printf("✓ Execution submitted!\nExecution ID: %s\nStatus: %s\n", result.ExecutionID, result.Status)
	},
}

func init() {
	flags := submitCmd.Flags()
	flags.StringP("module", "m", "", "Module to execute (required)")
	flags.String("task", "", "Task ID to associate with the execution (optional)")
	flags.StringP("input", "i", "", "Module input as JSON (optional)")

	rootCmd.AddCommand(submitCmd)
}
