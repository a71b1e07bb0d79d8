// Command wamcpctl inspects wamcpd sessions.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/matheus3301/wamcp/internal/api"
	"github.com/matheus3301/wamcp/internal/lock"
	"github.com/matheus3301/wamcp/internal/session"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var sessionFlag string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:          "wamcpctl",
		Short:        "Inspect wamcpd sessions",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&sessionFlag, "session", os.Getenv("WAMCP_SESSION"), "session name (overrides config default)")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the connection state of a running session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := session.Resolve(sessionFlag)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			return cmdStatus(ctx, cmd.OutOrStdout(), name, jsonOut)
		},
	})

	sessions := &cobra.Command{Use: "sessions", Short: "Manage sessions"}
	sessions.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdSessionsList(cmd.OutOrStdout(), jsonOut)
		},
	})
	cmd.AddCommand(sessions)
	return cmd
}

type statusReport struct {
	Session string          `json:"session"`
	State   string          `json:"state"`
	Health  json.RawMessage `json:"health"`
}

func cmdStatus(ctx context.Context, w io.Writer, name string, jsonOut bool) error {
	conn, err := grpc.NewClient(
		"unix://"+session.SocketPath(name),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
	}
	defer func() { _ = conn.Close() }()

	st, overall, err := api.ProbeState(ctx, healthpb.NewHealthClient(conn))
	if err != nil {
		return fmt.Errorf("session %q: %w", name, err)
	}
	if jsonOut {
		health, err := protojson.Marshal(&healthpb.HealthCheckResponse{Status: overall})
		if err != nil {
			return err
		}
		return outputJSON(w, statusReport{Session: name, State: string(st), Health: health})
	}
	_, _ = fmt.Fprintf(w, "Session: %s\n", name)
	_, _ = fmt.Fprintf(w, "State:   %s\n", st)
	_, _ = fmt.Fprintf(w, "Serving: %v\n", overall == healthpb.HealthCheckResponse_SERVING)
	return nil
}

type sessionInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
	PID  int    `json:"pid,omitempty"`
}

func listSessions() ([]sessionInfo, error) {
	root := filepath.Join(session.BaseDir(), "sessions")
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return []sessionInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := []sessionInfo{}
	for _, e := range entries {
		if !e.IsDir() || session.ValidateName(e.Name()) != nil {
			continue
		}
		dir := session.Dir(e.Name())
		out = append(out, sessionInfo{Name: e.Name(), Path: dir, PID: lock.Holder(dir)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cmdSessionsList(w io.Writer, jsonOut bool) error {
	sessions, err := listSessions()
	if err != nil {
		return err
	}
	if jsonOut {
		return outputJSON(w, sessions)
	}
	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(w, "No sessions found.")
		return nil
	}
	for _, s := range sessions {
		running := "stopped"
		if s.PID != 0 {
			running = fmt.Sprintf("running, pid %d", s.PID)
		}
		_, _ = fmt.Fprintf(w, "%-20s %s (%s)\n", s.Name, s.Path, running)
	}
	return nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
