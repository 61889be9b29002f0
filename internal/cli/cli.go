// Package cli builds the quorumkit command line interface on top of
// Cobra, the same framework and command-tree shape the teacher's
// internal/cli/cli.go uses for its own run/enqueue/status commands,
// retargeted from a job queue's submit/status verbs to a raft node's
// run/propose/status verbs.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quorumkit/raft/internal/config"
	"github.com/quorumkit/raft/internal/raft"
	"github.com/quorumkit/raft/internal/transport"
)

var configFile string

// BuildCLI assembles the root command and its subcommands, the entry
// point cmd/raftnode's main calls into.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "raftnode",
		Short: "quorumkit: a replicated log built on a pure, deterministic raft core",
		Long: `raftnode runs one member of a quorumkit raft cluster:
- WAL-based durability
- Snapshot-based recovery
- Prometheus metrics
- A single-writer dispatch loop around a pure core`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildProposeCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start this node and join the cluster",
		Long:  "Load config, replay the WAL, and serve gRPC until an interrupt is received",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode()
		},
	}
	return cmd
}

func runNode() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.Printf("starting node %d\n", cfg.Cluster.Self)

	node, err := NewNode(cfg)
	if err != nil {
		return fmt.Errorf("failed to build node: %w", err)
	}

	if err := node.Start(); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}

	log.Println("node started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("received shutdown signal, stopping gracefully...")

	node.Stop()

	log.Println("node stopped")
	return nil
}

func buildProposeCommand() *cobra.Command {
	var target int64
	var item string

	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Submit an item to a running node's log",
		Long:  "Submit an item to the node's leader; if the target isn't leader, reports the leader hint it last observed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if item == "" {
				return fmt.Errorf("item is required (use --item)")
			}
			return proposeItem(raft.NodeID(target), []byte(item))
		},
	}

	cmd.Flags().Int64Var(&target, "target", 0, "node id to submit to")
	cmd.Flags().StringVar(&item, "item", "", "item to append to the log")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("item")

	return cmd
}

func proposeItem(target raft.NodeID, item []byte) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dialer := transport.NewDialer(cfg.PeerAddresses())
	defer dialer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := dialer.SendPropose(ctx, target, item)
	if err != nil {
		return fmt.Errorf("failed to submit to node %d: %w", target, err)
	}

	if resp.Success {
		log.Printf("accepted by node %d\n", target)
		return nil
	}

	if resp.HasHint {
		log.Printf("node %d is not leader; last known leader is node %d\n", target, resp.LeaderHint)
	} else {
		log.Printf("node %d is not leader; no leader currently known\n", target)
	}
	return nil
}

func buildStatusCommand() *cobra.Command {
	var target int64

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a running node's status",
		Long:  "Query a node over gRPC and print its role, term, and log position",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(raft.NodeID(target))
		},
	}

	cmd.Flags().Int64Var(&target, "target", 0, "node id to query")
	cmd.MarkFlagRequired("target")

	return cmd
}

func showStatus(target raft.NodeID) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dialer := transport.NewDialer(cfg.PeerAddresses())
	defer dialer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := dialer.SendStatus(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to query node %d: %w", target, err)
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format status: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
