package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/chromedir/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect or prune the persisted session registry",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsRmCmd = &cobra.Command{
	Use:   "rm <sessionId>",
	Short: "Remove a session entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsRm,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsRmCmd)
}

func sessionsPath() string {
	return filepath.Join(storeDir, "sessions.json")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	mgr, err := session.New(sessionsPath())
	if err != nil {
		return fmt.Errorf("open session registry: %w", err)
	}
	defer mgr.Close()

	entries, err := mgr.List(context.Background())
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e := entries[id]
		fmt.Printf("%s\ttarget=%s\tlastUsed=%s\n", id, e.TargetID, e.LastUsed.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}

func runSessionsRm(cmd *cobra.Command, args []string) error {
	mgr, err := session.New(sessionsPath())
	if err != nil {
		return fmt.Errorf("open session registry: %w", err)
	}
	defer mgr.Close()

	return mgr.Delete(context.Background(), args[0])
}
