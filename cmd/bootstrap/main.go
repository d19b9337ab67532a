// Command bootstrap runs a Harbor bootstrap node: DHT, identify, and
// ping only, no messaging/board sub-protocols and no relay (spec
// §4.9/§6). Peers dial it purely to join the Harbor-scoped DHT and
// discover each other.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bakobiibizo/harbor/internal/harborlog"
	"github.com/bakobiibizo/harbor/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load(".env")
	viper.AutomaticEnv()

	root := &cobra.Command{
		Use:           "bootstrap",
		Short:         "Run a Harbor bootstrap node (DHT + identify + ping only)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().Int("port", 9000, "TCP listen port")
	root.Flags().String("external-ip", "", "externally reachable IP to advertise (optional)")
	root.Flags().Bool("verbose", false, "enable debug logging")
	root.Flags().String("identity-key-path", "./bootstrap_identity.key", "path to the protobuf-encoded libp2p identity key")

	if err := root.Execute(); err != nil {
		harborlog.With("bootstrap").Errorf("exiting: %v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	externalIP, _ := cmd.Flags().GetString("external-ip")
	verbose, _ := cmd.Flags().GetBool("verbose")
	keyPath, _ := cmd.Flags().GetString("identity-key-path")

	if verbose {
		_ = harborlog.SetLevel("debug")
	}

	priv, err := transport.LoadOrCreateIdentity(keyPath)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	listenAddrs := []string{fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", port)}
	if externalIP != "" {
		listenAddrs = append(listenAddrs, fmt.Sprintf("/ip4/%s/tcp/%d", externalIP, port))
	}

	host, err := transport.New(transport.Config{
		ListenAddrs:             listenAddrs,
		PrivateKey:              priv,
		IdentifyProtocolVersion: "/harbor/bootstrap/1.0.0",
	})
	if err != nil {
		return fmt.Errorf("bootstrap: listen on port %d: %w", port, err)
	}

	harborlog.With("bootstrap").Infof("bootstrap node %s listening on port %d", host.ID(), port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	harborlog.With("bootstrap").Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return host.Shutdown(shutdownCtx)
}
