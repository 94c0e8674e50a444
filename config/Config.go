package config

import "time"

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_SQLITE StorageType = "sqlite"
const STORAGE_TYPE_INMEM StorageType = "memory"

type RetryPolicy string

const RETRY_POLICY_FIXED RetryPolicy = "FIXED"
const RETRY_POLICY_BACKOFF RetryPolicy = "BACKOFF"

type Config struct {
	RedisConfig        RedisStorageConfig
	SqliteConfig       SqliteStorageConfig
	HttpPort           int
	StorageType        StorageType
	ScanInterval       time.Duration
	TriggerInterval    time.Duration
	ReclaimInterval    time.Duration
	ClaimTTL           time.Duration
	ScanBatchSize      int
	WorkerCapacity     int
	WorkerConcurrency  int
	RetryPolicy        RetryPolicy
	RetryDelaySeconds  int
	MaxAttempts        int
	InteractionLogFile string
	TriggerRulesFile   string
}

type RedisStorageConfig struct {
	Addrs      []string
	Namespace  string
	Partitions int
}

type SqliteStorageConfig struct {
	File string
}
