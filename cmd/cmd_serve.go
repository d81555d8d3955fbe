// cmd_serve.go - Server-Start
// Hauptfunktionen: RunServer, newServeCmd
package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"diffused/envconfig"
	"diffused/imagegen/backend"
	"diffused/progress"
	"diffused/server"
)

// RunServer - Laedt das Backend und startet den Diffused-Server
func RunServer(cmd *cobra.Command, _ []string) error {
	backendName, err := cmd.Flags().GetString("backend")
	if err != nil {
		return err
	}
	modelDir, err := cmd.Flags().GetString("model")
	if err != nil {
		return err
	}
	if modelDir == "" {
		modelDir = envconfig.Models()
	}

	p := progress.NewProgress(os.Stderr)
	spinner := progress.NewSpinner(fmt.Sprintf("loading %s", modelDir))
	p.Add("", spinner)

	b, err := backend.Open(cmd.Context(), backendName, modelDir, nil)
	p.StopAndClear()
	if err != nil {
		return err
	}
	defer b.Close()

	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	err = server.Serve(ln, b)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// newServeCmd - Erstellt den serve Command
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start diffused",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}

	serveCmd.Flags().String("backend", "", "Backend to load the model with")
	serveCmd.Flags().String("model", "", "Model directory (default: DIFFUSED_MODELS)")

	return serveCmd
}
