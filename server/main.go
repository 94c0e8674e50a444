package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohitkumar/flowup/agent"
	"github.com/mohitkumar/flowup/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("storage-impl", "memory", "implementation of underline storage")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "flowup", "namespace used in storage")
	cmd.Flags().Int("partitions", 7, "number of due queue partitions in redis")
	cmd.Flags().String("sqlite-file", "flowup.db", "sqlite database file")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().Duration("scan-interval", 15*time.Minute, "interval between due enrollment scans")
	cmd.Flags().Duration("trigger-interval", 24*time.Hour, "interval between auto enrollment trigger passes")
	cmd.Flags().Duration("reclaim-interval", 5*time.Minute, "interval between expired claim reclaims")
	cmd.Flags().Duration("claim-ttl", 30*time.Minute, "lease duration of a due enrollment claim")
	cmd.Flags().Int("scan-batch-size", 512, "maximum enrollments claimed per scan pass")
	cmd.Flags().Int("worker-capacity", 512, "step processor queue capacity")
	cmd.Flags().Int("worker-concurrency", 8, "number of concurrent step processors")
	cmd.Flags().String("retry-policy", "FIXED", "retry policy for failed dispatches FIXED|BACKOFF")
	cmd.Flags().Int("retry-delay-seconds", 300, "base delay before a failed dispatch is retried")
	cmd.Flags().Int("max-attempts", 3, "dispatch attempts before an enrollment is parked")
	cmd.Flags().String("interaction-log-file", "", "file receiving dispatch analytics records")
	cmd.Flags().String("trigger-rules-file", "", "json file with auto enrollment trigger rules")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.RedisConfig.Partitions = viper.GetInt("partitions")
	c.cfg.SqliteConfig.File = viper.GetString("sqlite-file")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.ScanInterval = viper.GetDuration("scan-interval")
	c.cfg.TriggerInterval = viper.GetDuration("trigger-interval")
	c.cfg.ReclaimInterval = viper.GetDuration("reclaim-interval")
	c.cfg.ClaimTTL = viper.GetDuration("claim-ttl")
	c.cfg.ScanBatchSize = viper.GetInt("scan-batch-size")
	c.cfg.WorkerCapacity = viper.GetInt("worker-capacity")
	c.cfg.WorkerConcurrency = viper.GetInt("worker-concurrency")
	c.cfg.RetryPolicy = config.RetryPolicy(viper.GetString("retry-policy"))
	c.cfg.RetryDelaySeconds = viper.GetInt("retry-delay-seconds")
	c.cfg.MaxAttempts = viper.GetInt("max-attempts")
	c.cfg.InteractionLogFile = viper.GetString("interaction-log-file")
	c.cfg.TriggerRulesFile = viper.GetString("trigger-rules-file")
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		panic(err)
	}
	err = agent.Start()
	if err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "flowup",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
