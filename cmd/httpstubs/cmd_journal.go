package main

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/httpstubs/internal/errx"
	"github.com/jingkaihe/httpstubs/pkg/logging"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Print events recorded in a SQLite journal",
	Long: `journal reads the database written by --journal and prints its events,
oldest first. Use --run-id to show a single run.`,
	Args: cobra.NoArgs,
	RunE: runJournal,
}

func init() {
	journalCmd.Flags().Bool("json", false, "Print events as JSON lines")

	rootCmd.AddCommand(journalCmd)
}

func runJournal(cmd *cobra.Command, args []string) error {
	path := viper.GetString("journal")
	if path == "" {
		return ErrNoJournal
	}
	j, err := logging.OpenSQLiteJournal(path)
	if err != nil {
		return errx.Wrap(ErrOpenEvents, err)
	}
	defer j.Close()

	events, err := j.Events(viper.GetString("run_id"))
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		w := logging.NewJSONLStream(cmd.OutOrStdout())
		for i := range events {
			if err := w.Write(&events[i]); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tRUN\tEVENT\tSTUB\tSUMMARY")
	for _, e := range events {
		stub := e.StubName
		if stub == "" {
			stub = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("15:04:05.000"),
			shortRunID(e.RunID),
			strings.TrimPrefix(e.EventType, "stub_"),
			stub,
			e.Summary,
		)
	}
	return w.Flush()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// eventEmitter returns nil when neither an event file nor a journal is
// configured.
func eventEmitter(logger *slog.Logger) (*logging.Emitter, error) {
	var sinks []logging.Sink
	if path := viper.GetString("events"); path != "" {
		w, err := logging.NewJSONLWriter(path)
		if err != nil {
			return nil, errx.Wrap(ErrOpenEvents, err)
		}
		sinks = append(sinks, w)
	}
	if path := viper.GetString("journal"); path != "" {
		j, err := logging.OpenSQLiteJournal(path)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return nil, errx.Wrap(ErrOpenEvents, err)
		}
		sinks = append(sinks, j)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	sinks = append(sinks, logging.NewSlogSink(logger, slog.LevelDebug))

	runID := viper.GetString("run_id")
	if runID == "" {
		runID = uuid.NewString()
	}
	return logging.NewEmitter(logging.EmitterConfig{RunID: runID}, sinks...), nil
}
