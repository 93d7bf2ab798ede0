package cmd

import (
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/mcpserver"
	"github.com/spf13/cobra"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the operations as MCP tools over stdio",
		Long: `Serve the operations as MCP tools over stdio. The workspace stays locked
until the client disconnects. Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			eng, err := a.open(a.classifier())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()
			a.logger.Info("serving MCP on stdio", "data_dir", a.cfg.DataDir)
			return mcpserver.Serve(eng, Version)
		},
	}
}
