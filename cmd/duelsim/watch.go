package main

import (
    "fmt"
    "os/signal"
    "syscall"

    "github.com/spf13/cobra"

    "github.com/park285/critter-kakao-bot/internal/events"
)

func newWatchCmd() *cobra.Command {
    var url, topic string
    cmd := &cobra.Command{
        Use:   "watch",
        Short: "Print duel lifecycle events published on NATS",
        RunE: func(cmd *cobra.Command, args []string) error {
            sub, err := events.NewNATSSubscriber(url)
            if err != nil {
                return err
            }
            defer sub.Close()
            msgs, cancel, err := sub.Subscribe(topic)
            if err != nil {
                return err
            }
            defer cancel()

            ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
            defer stop()
            out := cmd.OutOrStdout()
            for {
                select {
                case <-ctx.Done():
                    return nil
                case m, ok := <-msgs:
                    if !ok {
                        return nil
                    }
                    fmt.Fprintf(out, "%s %s\n", m.Topic, m.Data)
                }
            }
        },
    }
    cmd.Flags().StringVar(&url, "nats", "nats://127.0.0.1:4222", "NATS server URL")
    cmd.Flags().StringVar(&topic, "topic", events.TopicAll, "subject to watch")
    return cmd
}
