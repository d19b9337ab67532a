// Command relaysmoke reserves a circuit through a running relay and
// prints the resulting dialable circuit address, for manually
// verifying a relay deployment end to end (spec §6).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bakobiibizo/harbor/internal/harborlog"
	"github.com/bakobiibizo/harbor/internal/transport"
)

const reserveTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load(".env")
	viper.AutomaticEnv()

	root := &cobra.Command{
		Use:           "relaysmoke",
		Short:         "Reserve a circuit through a relay and print its address",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().String("relay-addr", "", "multiaddr of the relay to reserve through (required)")
	root.Flags().String("dial", "", "optional multiaddr to dial through the reserved circuit")
	root.Flags().Int("listen-port", 0, "local TCP listen port (0 picks any free port)")
	root.Flags().String("identity-key-path", "./relaysmoke_identity.key", "path to the protobuf-encoded libp2p identity key")
	_ = root.MarkFlagRequired("relay-addr")

	if err := root.Execute(); err != nil {
		harborlog.With("relaysmoke").Errorf("exiting: %v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	relayAddr, _ := cmd.Flags().GetString("relay-addr")
	dialAddr, _ := cmd.Flags().GetString("dial")
	listenPort, _ := cmd.Flags().GetInt("listen-port")
	keyPath, _ := cmd.Flags().GetString("identity-key-path")

	priv, err := transport.LoadOrCreateIdentity(keyPath)
	if err != nil {
		return fmt.Errorf("relaysmoke: %w", err)
	}

	relayInfo, err := peer.AddrInfoFromString(relayAddr)
	if err != nil {
		return fmt.Errorf("relaysmoke: parse relay-addr: %w", err)
	}

	host, err := transport.New(transport.Config{
		ListenAddrs: []string{fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", listenPort)},
		PrivateKey:  priv,
		EnableRelay: true,
	})
	if err != nil {
		return fmt.Errorf("relaysmoke: create host: %w", err)
	}
	defer host.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), reserveTimeout)
	defer cancel()
	if err := host.ReserveRelay(ctx, *relayInfo); err != nil {
		return fmt.Errorf("relaysmoke: reserve circuit: %w", err)
	}

	relayAddrs := relayInfo.Addrs
	if len(relayAddrs) == 0 {
		return fmt.Errorf("relaysmoke: relay-addr carried no transport address")
	}
	circuit, err := ma.NewMultiaddr(fmt.Sprintf("%s/p2p/%s/p2p-circuit/p2p/%s",
		relayAddrs[0].String(), relayInfo.ID.String(), host.ID().String()))
	if err != nil {
		return fmt.Errorf("relaysmoke: build circuit address: %w", err)
	}
	fmt.Printf("CIRCUIT_ADDRESS %s\n", circuit.String())

	if dialAddr != "" {
		target, err := peer.AddrInfoFromString(dialAddr)
		if err != nil {
			return fmt.Errorf("relaysmoke: parse dial: %w", err)
		}
		dialCtx, dialCancel := context.WithTimeout(context.Background(), reserveTimeout)
		defer dialCancel()
		if err := host.Connect(dialCtx, *target); err != nil {
			return fmt.Errorf("relaysmoke: dial %s: %w", dialAddr, err)
		}
		harborlog.With("relaysmoke").Infof("dialed %s through the circuit", dialAddr)
	}
	return nil
}
