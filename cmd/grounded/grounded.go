// Package groundedcmder
package groundedcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/groundedhq/grounded/cmd/grounded/chat"
	configcmder "github.com/groundedhq/grounded/cmd/grounded/config"
	servecmder "github.com/groundedhq/grounded/cmd/grounded/serve"
	versioncmder "github.com/groundedhq/grounded/cmd/grounded/version"
)

const groundedLongDesc string = `Grounded answers questions from the documents you give it.

Upload documents into a conversation and chat against them:
  grounded serve       Run the API server
  grounded chat        Interactive chat against the running server
  grounded config      Manage persistent configuration`

const groundedShortDesc string = "Grounded - document-grounded chat"

func NewGroundedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grounded",
		Short: groundedShortDesc,
		Long:  groundedLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .grounded/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
