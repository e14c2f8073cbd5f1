package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "glassbank",
	Short: "Glassbank is a deliberately vulnerable training bank",
	Long: `A banking web application built for security training. Every
vulnerability demo runs at a configurable security level, from wide
open to properly defended.

Never expose this server to a network you care about.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
