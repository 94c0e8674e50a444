package redis

import (
	"fmt"
	"strings"

	rd "github.com/go-redis/redis/v9"
	"github.com/spaolacci/murmur3"
)

type Config struct {
	Addrs      []string
	Namespace  string
	Partitions int
}

type baseDao struct {
	redisClient rd.UniversalClient
	namespace   string
	partitions  int
}

func newBaseDao(conf Config) *baseDao {
	redisClient := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs: conf.Addrs,
	})
	partitions := conf.Partitions
	if partitions < 1 {
		partitions = 1
	}
	return &baseDao{
		redisClient: redisClient,
		namespace:   conf.Namespace,
		partitions:  partitions,
	}
}

func (bs *baseDao) getNamespaceKey(args ...string) string {
	return fmt.Sprintf("%s:%s", bs.namespace, strings.Join(args, ":"))
}

// getPartition spreads enrollments over the due and claimed sorted sets so
// a scan pass never pops one unbounded set.
func (bs *baseDao) getPartition(id string) int {
	return int(murmur3.Sum32([]byte(id)) % uint32(bs.partitions))
}

func (bs *baseDao) partitionKey(prefix string, id string) string {
	return bs.getNamespaceKey(prefix, fmt.Sprintf("%d", bs.getPartition(id)))
}
