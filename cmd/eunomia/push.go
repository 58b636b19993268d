package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
)

var pushFlags struct {
	registryURL string
}

var pushCmd = &cobra.Command{
	Use:   "push <bundle-archive>",
	Short: "Push a signed bundle to the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)
	pushCmd.Flags().StringVar(&pushFlags.registryURL, "registry", "", "registry base URL (default: registry.url from config)")
}

func runPush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sb, err := sign.ReadArchive(args[0])
	if err != nil {
		return fmt.Errorf("read signed bundle: %w", err)
	}

	client, err := openRegistryClient(cfg, pushFlags.registryURL)
	if err != nil {
		return err
	}
	defer client.Close()

	desc, err := client.Push(context.Background(), sb)
	if err != nil {
		return err
	}

	fmt.Printf("pushed %s:%s -> digest %s (%d bytes)\n", sb.Bundle.Name, sb.Bundle.Version, desc.Digest, desc.Size)
	return nil
}
