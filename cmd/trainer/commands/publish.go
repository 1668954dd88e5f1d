package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/HatiCode/gradecast/pkg/artifacts"
	"github.com/HatiCode/gradecast/pkg/models"
	"github.com/HatiCode/gradecast/pkg/storage"
)

type publishOptions struct {
	name          string
	redisAddr     string
	redisPassword string
	redisDB       int
	ttl           time.Duration
}

func newPublishCmd(root *rootOptions) *cobra.Command {
	opts := &publishOptions{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Copy a bundle into redis",
		Long: `Copy <dir>/<name>.json into redis under gradecast:bundle:<name> so
predictor replicas started with -storage=redis load the same artifacts.
The bundle is validated before it is written.

Example:
  trainer publish --name default --redis-addr localhost:6379`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, root, opts)
		},
	}

	redisDB, _ := strconv.Atoi(envOr("REDIS_DB", "0"))

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", envOr("BUNDLE", "default"), "bundle name")
	f.StringVar(&opts.redisAddr, "redis-addr", envOr("REDIS_ADDR", "localhost:6379"), "redis server address")
	f.StringVar(&opts.redisPassword, "redis-password", envOr("REDIS_PASSWORD", ""), "redis password")
	f.IntVar(&opts.redisDB, "redis-db", redisDB, "redis database number")
	f.DurationVar(&opts.ttl, "ttl", 0, "bundle expiration in redis (0 keeps it until overwritten)")

	return cmd
}

func runPublish(cmd *cobra.Command, root *rootOptions, opts *publishOptions) error {
	ctx := cmd.Context()

	src, err := storage.NewFileStore(root.artifactDir)
	if err != nil {
		return err
	}
	bundle, found, err := src.GetLatest(ctx, opts.name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("bundle %q not found in %s", opts.name, src.Dir())
	}

	if _, err := artifacts.FromBundle(bundle, models.BuildOptions{}); err != nil {
		return fmt.Errorf("refusing to publish: %w", err)
	}

	dst, err := storage.NewRedisStore(opts.redisAddr, opts.redisPassword, opts.redisDB, opts.ttl)
	if err != nil {
		return err
	}
	defer dst.Close()

	if err := dst.Put(ctx, bundle); err != nil {
		return err
	}

	root.logger.Info("bundle published",
		"name", bundle.Name,
		"version", bundle.Version,
		"redis_addr", opts.redisAddr,
		"key", storage.KeyPrefix+bundle.Name,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Published %q (version %s) to redis %s\n", bundle.Name, bundle.Version, opts.redisAddr)
	return nil
}
