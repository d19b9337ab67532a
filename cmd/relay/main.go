// Command relay runs a Harbor relay node that, in community mode, hosts
// member boards and mirrors wall posts (spec §4.9/§4.10/§6). The libp2p
// host it starts runs no circuit relay v2 service: --max-reservations,
// --max-circuits-per-peer and --max-circuits are only logged and copied
// into relayserver.Config.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bakobiibizo/harbor/internal/harborlog"
	"github.com/bakobiibizo/harbor/internal/relayserver"
	"github.com/bakobiibizo/harbor/internal/store"
	"github.com/bakobiibizo/harbor/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load(".env")
	viper.AutomaticEnv()

	root := &cobra.Command{
		Use:           "relay",
		Short:         "Run a Harbor relay node",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().Int("port", 4001, "TCP listen port")
	root.Flags().String("announce-ip", "", "externally reachable IPv4 to advertise")
	root.Flags().Int("max-reservations", 128, "maximum concurrent relay reservations")
	root.Flags().Int("max-circuits-per-peer", 8, "maximum concurrent circuits per peer")
	root.Flags().Int("max-circuits", 1024, "maximum total concurrent circuits")
	root.Flags().String("identity-key-path", "./relay_identity.key", "path to the protobuf-encoded libp2p identity key")
	root.Flags().Bool("community", false, "enable community mode: host boards and mirror wall posts")
	root.Flags().String("data-dir", "./relay-data", "directory for the relay's sqlite database")
	root.Flags().String("community-name", "", "community display name (community mode only)")
	root.Flags().Uint64("rate-limit-max-requests", 60, "requests allowed per peer per window")
	root.Flags().Uint64("rate-limit-window-secs", 60, "rate limit window, in seconds")

	if err := root.Execute(); err != nil {
		harborlog.With("relay").Errorf("exiting: %v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	announceIP, _ := cmd.Flags().GetString("announce-ip")
	maxReservations, _ := cmd.Flags().GetInt("max-reservations")
	maxCircuitsPerPeer, _ := cmd.Flags().GetInt("max-circuits-per-peer")
	maxCircuits, _ := cmd.Flags().GetInt("max-circuits")
	keyPath, _ := cmd.Flags().GetString("identity-key-path")
	community, _ := cmd.Flags().GetBool("community")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	communityName, _ := cmd.Flags().GetString("community-name")
	rateMax, _ := cmd.Flags().GetUint64("rate-limit-max-requests")
	rateWindowSecs, _ := cmd.Flags().GetUint64("rate-limit-window-secs")

	warnIfCommunityFlagMisused(cmd, community, "community-name")
	warnIfCommunityFlagMisused(cmd, community, "rate-limit-max-requests")
	warnIfCommunityFlagMisused(cmd, community, "rate-limit-window-secs")

	priv, err := transport.LoadOrCreateIdentity(keyPath)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	listenAddrs := []string{fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", port)}
	if announceIP != "" {
		listenAddrs = append(listenAddrs, fmt.Sprintf("/ip4/%s/tcp/%d", announceIP, port))
	}

	host, err := transport.New(transport.Config{
		ListenAddrs:             listenAddrs,
		PrivateKey:              priv,
		IdentifyProtocolVersion: "/harbor-relay/1.0.0",
	})
	if err != nil {
		return fmt.Errorf("relay: listen on port %d: %w", port, err)
	}
	harborlog.With("relay").Infof("relay node %s listening on port %d (max reservations %d, max circuits %d, max per peer %d)",
		host.ID(), port, maxReservations, maxCircuits, maxCircuitsPerPeer)

	if community {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("relay: create data dir: %w", err)
		}
		db, err := store.Open(filepath.Join(dataDir, "relay.sqlite"))
		if err != nil {
			return fmt.Errorf("relay: open store: %w", err)
		}
		defer db.Close()

		srv := relayserver.New(db, relayserver.Config{
			CommunityName:        communityName,
			MaxReservations:      maxReservations,
			MaxCircuitsPerPeer:   maxCircuitsPerPeer,
			MaxCircuits:          maxCircuits,
			RateLimitMaxRequests: int(rateMax),
			RateLimitWindow:      time.Duration(rateWindowSecs) * time.Second,
		})
		host.Handle(transport.ProtocolBoard, relayserver.Handler(srv, func() int64 { return time.Now().Unix() }))
		harborlog.With("relay").Infof("community mode enabled: %s", communityName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	harborlog.With("relay").Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return host.Shutdown(shutdownCtx)
}

// warnIfCommunityFlagMisused logs a warning when a community-only flag
// was explicitly set without --community (spec §6: "Community-only
// options warn if supplied without --community").
func warnIfCommunityFlagMisused(cmd *cobra.Command, community bool, flagName string) {
	if !community && cmd.Flags().Changed(flagName) {
		harborlog.With("relay").Warnf("--%s has no effect without --community", flagName)
	}
}
