// Command registrycheck validates a system registry file the same way
// cmd/gateway and cmd/systemserver load it at startup, without bringing
// either service up. It is meant for deploy-time smoke checks: "will
// this registry.yaml actually load".
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gclef-cmu/music-arena/internal/registry"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

var registryPath string

var rootCmd = &cobra.Command{
	Use:   "registrycheck",
	Short: "Validate a Music Arena system registry file",
	Long: `registrycheck loads a registry.yaml the same way the gateway and
system server do at startup: it parses every system and variant,
resolves required secrets against the environment, and checks for port
collisions. On success it prints the number of variants and each
system key, then exits 0.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := registryPath
		if path == "" {
			path = getenv("REGISTRY_PATH", "registry.yaml")
		}

		reg, err := registry.Load(path, nil)
		if err != nil {
			code := exitCodeFor(err)
			fmt.Fprintf(os.Stderr, "registrycheck: %v\n", err)
			os.Exit(code)
		}

		keys := reg.All()
		fmt.Printf("registrycheck: ok, %d variant(s)\n", len(keys))
		for _, k := range keys {
			fmt.Printf("  %s\n", k)
		}
		return nil
	},
}

// exitCodeFor maps a registry load failure to a process exit code:
// 2 config error, 3 not found, 4 secret missing.
func exitCodeFor(err error) int {
	var regErr *registry.RegistryError
	if re, ok := err.(*registry.RegistryError); ok {
		regErr = re
	}
	if regErr == nil {
		return 2
	}
	switch regErr.Kind {
	case registry.ErrNotFound:
		return 3
	case registry.ErrSecretMissing:
		return 4
	default:
		return 2
	}
}

func init() {
	rootCmd.Flags().StringVarP(&registryPath, "registry", "r", "", "path to registry.yaml (default $REGISTRY_PATH or ./registry.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
