package main

import (
	"context"

	"github.com/spf13/cobra"

	"diffused/cmd"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
