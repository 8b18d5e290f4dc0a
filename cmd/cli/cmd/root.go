package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "Agentctl is a command line tool for interacting with the agentplane platform",
	Long: `agentctl is the command-line interface for the AgentPlane agent execution platform.

AgentPlane dispatches CRM module executions to a remote agent backend. The
controller accepts execution requests over HTTP, records them, and queues them
for asynchronous dispatch; workers pull from the queue and call the backend
with bounded concurrency and retries.

Common workflows:

  Provision an organization (returns the API key once):
    agentctl org create --name "Acme Inc"

  Dispatch a module execution:
    agentctl submit --module lead-scoring --input '{"lead_id": 42}'

  Check an execution:
    agentctl status <execution-id>

  List recent executions:
    agentctl list --module lead-scoring

  Check the controller and its backend:
    agentctl health

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    AGENTPLANE_URL      API endpoint (default: http://localhost:6161)
    AGENTPLANE_TOKEN    Org API key for authentication`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".agentctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".agentctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "AGENTPLANE_VARNAME"
	viper.SetEnvPrefix("AGENTPLANE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.agentctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6161", "AgentPlane Controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "Org API key for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
