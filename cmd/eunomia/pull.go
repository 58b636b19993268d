package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
	"github.com/eunomia-sh/eunomia/pkg/registry"
)

var pullFlags struct {
	registryURL string
	out         string
}

var pullCmd = &cobra.Command{
	Use:   "pull <service>:<version>",
	Short: "Pull a signed bundle from the registry",
	Long: `pull fetches a bundle by "<service>:<version>", where <version> is
either an exact tag, "latest", or a Cargo-style SemVer range such as
"^1.2" or "~1.2.3".`,
	Args: cobra.ExactArgs(1),
	RunE: runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)
	pullCmd.Flags().StringVar(&pullFlags.registryURL, "registry", "", "registry base URL (default: registry.url from config)")
	pullCmd.Flags().StringVar(&pullFlags.out, "out", "", "output archive path (default <service>-<resolved-version>.tar.gz)")
}

func runPull(cmd *cobra.Command, args []string) error {
	service, query, err := parseServiceVersion(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := openRegistryClient(cfg, pullFlags.registryURL)
	if err != nil {
		return err
	}
	defer client.Close()

	sb, err := client.Pull(context.Background(), service, query)
	if err != nil {
		return err
	}

	out := pullFlags.out
	if out == "" {
		out = sb.Bundle.FileName()
	}
	if err := sign.WriteArchive(sb, out); err != nil {
		return fmt.Errorf("write bundle archive: %w", err)
	}

	fmt.Printf("pulled %s:%s -> %s (%d policies)\n", sb.Bundle.Name, sb.Bundle.Version, out, sb.Bundle.PolicyCount())
	return nil
}

// parseServiceVersion splits "service:version" and classifies version into
// a registry.VersionQuery: "latest" selects the newest SemVer tag, anything
// containing one of ^ ~ * < > = is treated as a SemVer range, and
// everything else is an exact tag match.
func parseServiceVersion(arg string) (string, registry.VersionQuery, error) {
	idx := strings.LastIndex(arg, ":")
	if idx <= 0 || idx == len(arg)-1 {
		return "", registry.VersionQuery{}, fmt.Errorf("expected <service>:<version>, got %q", arg)
	}
	service, version := arg[:idx], arg[idx+1:]

	switch {
	case version == "latest":
		return service, registry.Latest(), nil
	case strings.ContainsAny(version, "^~*<>="):
		return service, registry.SemverRangeQuery(version), nil
	default:
		return service, registry.Exact(version), nil
	}
}
