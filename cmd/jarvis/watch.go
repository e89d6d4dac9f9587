package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/jarvis-tasks/jarvis/internal/client"
	"github.com/jarvis-tasks/jarvis/internal/events"
	"github.com/jarvis-tasks/jarvis/internal/model"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Keep the ready (or blocked) list on screen as the board changes",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		once, _ := cmd.Flags().GetBool("once")
		blocked, _ := cmd.Flags().GetBool("blocked")
		project, _ := cmd.Flags().GetString("project")
		natsURL, _ := cmd.Flags().GetString("nats")
		showEvents, _ := cmd.Flags().GetBool("events")

		query := func(ctx context.Context) (*client.ListTasksResponse, error) {
			if blocked {
				return tasksClient.Blocked(ctx, project, 0)
			}
			return tasksClient.Ready(ctx, project, 0)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		seen := make(map[string]time.Time)
		if err := queryAndPrint(ctx, query, seen); err != nil {
			return err
		}
		if once {
			return nil
		}

		if natsURL == "" {
			natsURL = os.Getenv("JARVIS_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}
		if natsURL != "" {
			return watchNATS(ctx, natsURL, query, seen, showEvents)
		}
		return watchPoll(ctx, interval, query, seen)
	},
}

type watchQuery func(ctx context.Context) (*client.ListTasksResponse, error)

// queryAndPrint prints tasks that are new or changed since the last call and
// forgets tasks that dropped out of the list.
func queryAndPrint(ctx context.Context, query watchQuery, seen map[string]time.Time) error {
	resp, err := query(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("listing tasks: %w", err)
	}

	current := make(map[string]bool, len(resp.Tasks))
	for _, t := range resp.Tasks {
		current[t.ID] = true
		if prev, ok := seen[t.ID]; ok && prev.Equal(t.UpdatedAt) {
			continue
		}
		seen[t.ID] = t.UpdatedAt
		if jsonOutput {
			if err := printJSON(t); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(stdout, "%s  %s  %s\n", t.ID, t.Status, t.Title)
	}
	for id := range seen {
		if !current[id] {
			delete(seen, id)
		}
	}
	return nil
}

// watchNATS re-queries shortly after any board event, and immediately after
// a reconnect since events may have been missed while disconnected.
func watchNATS(ctx context.Context, natsURL string, query watchQuery, seen map[string]time.Time, showEvents bool) error {
	reconnectCh := make(chan struct{}, 1)

	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
			select {
			case reconnectCh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	return watchEvents(ctx, sub, reconnectCh, query, seen, showEvents)
}

// watchEvents drives queryAndPrint from sub until ctx is done or the
// subscription closes. With showEvents every message is printed as it
// arrives.
func watchEvents(ctx context.Context, sub events.Subscriber, reconnectCh <-chan struct{}, query watchQuery, seen map[string]time.Time, showEvents bool) error {
	ch, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	debounce := time.NewTimer(0)
	debounce.Stop()
	select {
	case <-debounce.C:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if showEvents {
				printEvent(&model.Event{
					Topic:     msg.Topic,
					TaskID:    msg.TaskID,
					Actor:     msg.Actor,
					Payload:   msg.Data,
					CreatedAt: time.Now(),
				})
			}
			debounce.Reset(200 * time.Millisecond)
		case <-reconnectCh:
			debounce.Reset(0)
		case <-debounce.C:
			if err := queryAndPrint(ctx, query, seen); err != nil {
				return err
			}
		}
	}
}

func watchPoll(ctx context.Context, interval time.Duration, query watchQuery, seen map[string]time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
		if err := queryAndPrint(ctx, query, seen); err != nil {
			return err
		}
	}
}

func init() {
	watchCmd.Flags().Duration("interval", 5*time.Second, "poll interval when NATS is not configured")
	watchCmd.Flags().Bool("once", false, "print the current list and exit")
	watchCmd.Flags().Bool("blocked", false, "watch blocked tasks instead of ready ones")
	watchCmd.Flags().StringP("project", "P", "", "only tasks in this project")
	watchCmd.Flags().Bool("events", false, "also print each board event as it arrives (NATS only)")
	watchCmd.Flags().String("nats", "", "NATS URL (default $JARVIS_NATS_URL or the active remote's)")
}
