package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkspider/internal/config"
	"github.com/nao1215/linkspider/internal/database"
	"github.com/nao1215/linkspider/internal/model"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show crawls stored in the history database",
		Long: `History lists crawl sessions recorded with 'linkspider crawl --record'.

Without arguments it lists every session, most recent first. With a session
ID it prints that session's counters and every fetch with its links.

History is read-only; a recorded crawl cannot be resumed.

Examples:
  # List recorded sessions
  linkspider history

  # Show one session
  linkspider history 0b7e7c2a-4f1e-4d3a-9a43-1c2b3d4e5f60

  # Show one session as JSON
  linkspider history --json 0b7e7c2a-4f1e-4d3a-9a43-1c2b3d4e5f60`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.Options{})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		sessions, err := db.ListSessions(ctx)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		if jsonOutput {
			return writeJSON(out, sessions)
		}
		printSessions(out, sessions)
		return nil
	}

	session, err := db.GetSession(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get session %s: %w", args[0], err)
	}
	fetches, err := db.ListFetches(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to list fetches: %w", err)
	}

	if jsonOutput {
		return writeJSON(out, sessionDetail{Session: *session, Fetches: fetches})
	}
	printSession(out, session, fetches)
	return nil
}

// sessionDetail is the JSON form of one recorded session.
type sessionDetail struct {
	Session database.SessionInfo `json:"session"`
	Fetches []model.FetchRecord  `json:"fetches"`
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printSessions(w io.Writer, sessions []database.SessionInfo) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No crawl sessions found in the database.")
		fmt.Fprintln(w, "\nUse 'linkspider crawl --record <url>' to record a crawl.")
		return
	}

	fmt.Fprintf(w, "Crawl sessions (%d):\n\n", len(sessions))
	fmt.Fprintf(w, "  %-36s  %-19s  %7s  %7s  %6s  %s\n", "ID", "Started", "Visited", "Fetched", "Failed", "Status")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 96))

	for _, s := range sessions {
		fmt.Fprintf(w, "  %-36s  %-19s  %7d  %7d  %6d  %s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Visited,
			s.Fetched,
			s.Failed,
			sessionStatus(s),
		)
	}

	fmt.Fprintln(w, "\nUse 'linkspider history <id>' to show the fetches of a session.")
}

// sessionStatus describes how a recorded session ended.
func sessionStatus(s database.SessionInfo) string {
	switch {
	case !s.Finished():
		return "unfinished"
	case s.Interrupted:
		return "interrupted"
	default:
		return "complete"
	}
}

func printSession(w io.Writer, s *database.SessionInfo, fetches []model.FetchRecord) {
	fmt.Fprintf(w, "Session:      %s\n", s.ID)
	fmt.Fprintf(w, "Seeds:        %s\n", strings.Join(s.Seeds, ", "))
	fmt.Fprintf(w, "Started:      %s\n", s.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if s.Finished() {
		fmt.Fprintf(w, "Elapsed:      %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Concurrency:  %d (peak %d)\n", s.Concurrency, s.PeakInFlight)
	fmt.Fprintf(w, "Status:       %s\n", sessionStatus(*s))
	fmt.Fprintf(w, "Fetched:      %d\n", s.Fetched)
	fmt.Fprintf(w, "Failed:       %d\n", s.Failed)
	fmt.Fprintf(w, "Links:        %d\n\n", s.LinksFound)

	if len(fetches) == 0 {
		fmt.Fprintln(w, "No fetches recorded.")
		return
	}

	for _, f := range fetches {
		if !f.Succeeded() {
			fmt.Fprintf(w, "  [!] %s\n      %s\n", f.URL, f.Error)
			continue
		}
		fmt.Fprintf(w, "  [+] %s (%d links, %s)\n", f.URL, f.LinkCount(), f.Duration.Round(time.Millisecond))
		for _, link := range f.Links {
			fmt.Fprintf(w, "      -> %s\n", link)
		}
	}
}
