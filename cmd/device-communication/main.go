package main

import (
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {

	var listenAddr string
	var tenantId string

	// rootCmd represents the base command when called without any subcommands
	var rootCmd = &cobra.Command{
		Use: "device-communication",
	}

	var communicationServiceCmd = &cobra.Command{
		Use:   "communication_service",
		Short: "Device Communication Service",
		Run: func(cmd *cobra.Command, args []string) {
			startCommunicationService(listenAddr)
		},
	}

	var topologyReconcilerCmd = &cobra.Command{
		Use:   "topology_reconciler",
		Short: "Reconcile the tenant topic and subscription topology",
		Run: func(cmd *cobra.Command, args []string) {
			startTopologyReconciler(tenantId)
		},
	}

	rootCmd.AddCommand(communicationServiceCmd)
	communicationServiceCmd.Flags().StringVarP(&listenAddr, "listen-addr", "l", ":8080", "Hostname:port")

	rootCmd.AddCommand(topologyReconcilerCmd)
	topologyReconcilerCmd.Flags().StringVarP(&tenantId, "tenant", "t", "", "Reconcile a single tenant instead of all known tenants")

	return rootCmd
}

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
