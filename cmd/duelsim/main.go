package main

import (
    "fmt"
    "os"

    "github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
    Use:           "duelsim",
    Short:         "Play duels against the real engine from a terminal",
    SilenceUsage:  true,
    SilenceErrors: true,
}

func main() {
    rootCmd.AddCommand(newPlayCmd(), newWatchCmd())
    if err := rootCmd.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, "Error:", err)
        os.Exit(1)
    }
}
