package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/xuperchain/xdock/cmd/xdock/cmd"
)

func main() {
	rootCmd, err := NewServiceCommand()
	if err != nil {
		log.Fatalf("start service failed.err:%v", err)
	}

	if err = rootCmd.Execute(); err != nil {
		log.Fatalf("start service failed.err:%v", err)
	}
}

func NewServiceCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:           "xdock <command> [arguments]",
		Short:         "Xdock docks foreign chains to the native chain converter.",
		Long:          "Xdock docks foreign chains to the native chain converter.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       "xdock startup --conf /home/rd/xdock/conf/env.yaml",
	}

	// cmd version
	rootCmd.AddCommand(cmd.GetVersionCmd().GetCmd())
	// cmd service
	rootCmd.AddCommand(cmd.GetStartupCmd().GetCmd())
	return rootCmd, nil
}
