package cli

import (
	"context"
	"sync"

	"github.com/spf13/cobra"

	"github.com/adanyl0v/taskdock/internal/models"
	"github.com/adanyl0v/taskdock/internal/syncclient"
)

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow task changes live until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rootOpts)
		},
	}
}

// printingSink echoes every event before merging it into the cache.
type printingSink struct {
	mu     sync.Mutex
	out    *OutputFormatter
	client *syncclient.Client
}

func (s *printingSink) HandleEvent(evt models.TaskEvent) {
	s.mu.Lock()
	_ = s.out.Event(evt)
	s.mu.Unlock()
	s.client.HandleEvent(evt)
}

func (s *printingSink) ScheduleRefresh() {
	s.client.ScheduleRefresh()
}

func runWatch(cmd *cobra.Command, rootOpts *RootOptions) error {
	sess, client, api, err := rootOpts.client(cmd)
	if err != nil {
		return err
	}
	out := rootOpts.formatter(cmd)
	logger := rootOpts.logger(cmd.ErrOrStderr())

	loadCtx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	err = client.Refresh(loadCtx)
	cancel()
	if err != nil {
		return err
	}
	if out.Format == "text" {
		err = out.Tasks(client.Tasks())
		if err != nil {
			return err
		}
	}

	sink := &printingSink{out: out, client: client}
	stream := syncclient.NewStream(logger, api.StreamURL(), sess.UserID, sink,
		syncclient.WithStateHandler(func(joined bool) {
			if out.Format != "text" {
				return
			}
			sink.mu.Lock()
			defer sink.mu.Unlock()
			if joined {
				_ = out.Message("-- live as %s", sess.Name)
			} else {
				_ = out.Message("-- connection lost, reconnecting")
			}
		}),
	)

	err = stream.Run(cmd.Context())
	client.Wait()
	return err
}
