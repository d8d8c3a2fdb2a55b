package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ocinuke/ocinuke/pkg/stores"
)

// starterConfig is the annotated run configuration init writes out.
const starterConfig = `// ocinuke run configuration.
// Every resource in this compartment will be discovered and deleted.

compartment_id: "ocid1.compartment.oc1..REPLACE_ME"

// Restrict the run to specific regions. Omitted means every subscribed region.
// regions: ["eu-frankfurt-1"]

execution: {
	concurrency:  10
	max_attempts: 3
	// delete_timeout: "5m"
	// wait_timeout:   "15m"
	// delete_compartment: true
}

// Keep resource types out of scope entirely.
// types: exclude: ["Bucket", "BootVolume"]

// Protection is on unless disabled; built-in rules guard resources carrying a
// protected tag, matching a protected name prefix, or younger than a minimum
// age. Add your own Rego rules under paths.
protection: {
	// paths: ["rules/"]
	// disable_builtins: ["minimum-age"]
}

// Starlark filters decide per record; a script sees a resource dict and must
// assign a boolean keep.
// filters: [{
// 	name:   "spare-running-instances"
// 	script: "keep = resource[\"lifecycle_state\"] != \"RUNNING\""
// }]

store: {
	path:      "ocinuke.db"
	keep_runs: 50
}
`

func newInitCommand() *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize an ocinuke workspace",
		Long: `Initialize a workspace with a starter run configuration and the local
run history database.

The generated configuration is annotated; set compartment_id and uncomment
what you need.`,
		Example: `  # Initialize in the current directory
  ocinuke init

  # Initialize elsewhere, overwriting an existing config
  ocinuke init --dir ./teardown --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("dir", dir).
				Msg("Initializing workspace")

			ctx := context.Background()

			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}

			// Step 1: write the starter configuration
			cfgPath := filepath.Join(dir, "ocinuke.cue")
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}
			if err := os.WriteFile(cfgPath, []byte(starterConfig), 0644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			fmt.Printf("✓ Created config file: %s\n", cfgPath)

			// Step 2: initialize the run history database
			dbPath := filepath.Join(dir, defaultStorePath)
			store, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
			if err != nil {
				return fmt.Errorf("failed to create store: %w", err)
			}
			defer store.Close()

			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Printf("✓ Initialized run history database: %s\n", dbPath)

			// Done
			fmt.Printf("\n✅ Workspace initialized successfully!\n\n")
			fmt.Printf("Next steps:\n")
			fmt.Printf("  1. Set compartment_id in %s\n\n", cfgPath)
			fmt.Printf("  2. Check the configuration:\n")
			fmt.Printf("     ocinuke validate --config %s\n\n", cfgPath)
			fmt.Printf("  3. See what a teardown would delete:\n")
			fmt.Printf("     ocinuke plan --config %s\n\n", cfgPath)
			fmt.Printf("  4. Tear the compartment down:\n")
			fmt.Printf("     ocinuke nuke --config %s\n\n", cfgPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "workspace directory")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}
