// Package configcmder provides the config command for managing persistent
// grounded configuration stored in the .grounded/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent grounded configuration.

Configuration is stored as config.toml in the .grounded/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, client.api_target,
  embedding.provider, embedding.target, embedding.model,
  generation.provider, generation.target, generation.model, generation.language,
  retrieval.chunk_size, retrieval.chunk_overlap, retrieval.top_k, retrieval.history_turns,
  vector_store.provider, vector_store.target,
  events.provider, events.brokers, events.topic,
  archive.enabled, archive.postgres_url,
  watch.enabled, watch.dir

Use subcommands to get, set, or list configuration values:
  grounded config set <key> <value>    Set a configuration value
  grounded config get <key>            Get a configuration value
  grounded config list                 List all configuration values

Examples:
  grounded config set generation.model llama3
  grounded config set embedding.model nomic-embed-text
  grounded config get vector_store.provider
  grounded config list`

const configShortDesc string = "Manage persistent grounded configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
