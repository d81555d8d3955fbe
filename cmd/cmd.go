// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs, versionHandler
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"diffused/api"
	"diffused/envconfig"
	"diffused/version"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// versionHandler - Zeigt die Version an
func versionHandler(cmd *cobra.Command, _ []string) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return
	}

	serverVersion, err := client.Version(cmd.Context())
	if err != nil {
		fmt.Println("Warning: could not connect to a running diffused instance")
	}

	if serverVersion != "" {
		fmt.Printf("diffused version is %s\n", serverVersion)
	}

	if serverVersion != version.Version {
		fmt.Printf("Warning: client version is %s\n", version.Version)
	}
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "diffused",
		Short:         "Diffusion image generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	serveCmd := newServeCmd()
	generateCmd := newGenerateCmd()
	schedulersCmd := newSchedulersCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()

	for _, cmd := range []*cobra.Command{
		serveCmd,
		generateCmd,
		schedulersCmd,
	} {
		switch cmd {
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["DIFFUSED_DEBUG"],
				envVars["DIFFUSED_HOST"],
				envVars["DIFFUSED_MODELS"],
				envVars["DIFFUSED_ORIGINS"],
				envVars["DIFFUSED_SCHEDULER"],
			})
		case generateCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["DIFFUSED_HOST"],
				envVars["DIFFUSED_OUTPUTS"],
			})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["DIFFUSED_HOST"]})
		}
	}

	rootCmd.AddCommand(
		serveCmd,
		generateCmd,
		schedulersCmd,
	)

	return rootCmd
}
