package global

import "testing"

func TestRedisDBFromEnv(t *testing.T) {
	t.Setenv("REDIS_DB", "")
	if got := Redis().DB; got != 0 {
		t.Fatalf("default DB should be 0, got %d", got)
	}
	t.Setenv("REDIS_DB", "3")
	if got := Redis().DB; got != 3 {
		t.Fatalf("REDIS_DB not honored, got %d", got)
	}
	t.Setenv("REDIS_DB", "junk")
	if got := Redis().DB; got != 0 {
		t.Fatalf("unparsable REDIS_DB should fall back to 0, got %d", got)
	}
}

func TestKafkaBrokersSplit(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	brokers := KafkaBrokers()
	if len(brokers) != 2 || brokers[1] != "k2:9092" {
		t.Fatalf("got %v", brokers)
	}
}
