package main

import (
	"errors"
	"fmt"

	"github.com/jarvis-tasks/jarvis/internal/client"
	"github.com/jarvis-tasks/jarvis/internal/server"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check that the server and its store are up",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		grpcAddr, _ := cmd.Flags().GetString("grpc")
		if !cmd.Flags().Changed("grpc") {
			grpcAddr = activeRemoteGRPC()
		}

		status, err := tasksClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("HTTP health: %w", err)
		}
		result := map[string]string{"http": status}

		if grpcAddr != "" {
			hc, err := client.NewHealthClient(grpcAddr, authToken)
			if err != nil {
				return err
			}
			defer hc.Close()
			gs, err := hc.Check(ctx, server.ServiceName)
			if err != nil {
				return fmt.Errorf("gRPC health: %w", err)
			}
			result["grpc"] = gs
		}

		if jsonOutput {
			if err := printJSON(result); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(stdout, "http: %s\n", result["http"])
			if g, ok := result["grpc"]; ok {
				fmt.Fprintf(stdout, "grpc: %s\n", g)
			}
		}

		if result["http"] != "ok" || (grpcAddr != "" && result["grpc"] != "serving") {
			return errors.New("server is unhealthy")
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("grpc", "", "also check the gRPC health service at this address")
}
