package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/torchcat/go-constraints/internal/pruner"
)

var serveAddr string

// #region command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the channel pruner over gRPC",
	Long: `serve runs a pruning service that remote feasibility checkers can
point at with pruner.kind: remote (or FEASIBLE_PRUNER_ADDR).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lis, err := net.Listen("tcp", serveAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", serveAddr, err)
		}

		srv := grpc.NewServer()
		p := pruner.NewChannelPruner()
		pruner.RegisterServer(srv, p, logger.Named("pruner"))

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sig
			logger.Info("shutting down")
			srv.GracefulStop()
		}()

		logger.Info("pruner listening", zap.String("addr", serveAddr), zap.String("pruner", p.ID()))
		if err := srv.Serve(lis); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", envOr("FEASIBLE_LISTEN_ADDR", ":50052"), "listen address")
}

// #endregion command

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
