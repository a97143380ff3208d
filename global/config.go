package global

import (
	"os"
	"strconv"
	"strings"
)

// AppVersion 控制 deep link 的路径段：dev/test 走版本化路径，其余走生产根路径。
func AppVersion() string {
	v := strings.TrimSpace(os.Getenv("APP_VERSION"))
	if v == "" {
		return "production"
	}
	return v
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// MongoConfig 主库（计数器/消息/同步token）。
type MongoConfig struct {
	Uri      string
	Database string
}

func PrimaryMongo() MongoConfig {
	return MongoConfig{
		Uri:      env("MONGO_URI", "mongodb://localhost:27017"),
		Database: env("MONGO_DB", "napchat"),
	}
}

// 两套遗留身份库（token 解析链逐个探测）。未配置 Uri 表示该库不可用。
func LegacyMongoA() MongoConfig {
	return MongoConfig{Uri: os.Getenv("LEGACY_A_MONGO_URI"), Database: env("LEGACY_A_MONGO_DB", "identity_a")}
}

func LegacyMongoB() MongoConfig {
	return MongoConfig{Uri: os.Getenv("LEGACY_B_MONGO_URI"), Database: env("LEGACY_B_MONGO_DB", "identity_b")}
}

// RedisConfig token 解析缓存。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func Redis() RedisConfig {
	return RedisConfig{
		Addr:     env("REDIS_ADDR", "127.0.0.1:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	}
}

// BubbleConfig 外部 workflow API（收件人目录）。
type BubbleConfig struct {
	Endpoint string
	Token    string
}

func Bubble() BubbleConfig {
	return BubbleConfig{
		Endpoint: env("BUBBLE_ENDPOINT", "https://app.example.com/api/1.1/wf/chat_recipients"),
		Token:    os.Getenv("BUBBLE_TOKEN"),
	}
}

// PushAppConfig 单个推送租户（OneSignal 风格：app id + rest key）。
type PushAppConfig struct {
	Name   string
	AppID  string
	APIKey string
}

func PushApps() []PushAppConfig {
	return []PushAppConfig{
		{Name: "appA", AppID: os.Getenv("PUSH_APP_A_ID"), APIKey: os.Getenv("PUSH_APP_A_KEY")},
		{Name: "appB", AppID: os.Getenv("PUSH_APP_B_ID"), APIKey: os.Getenv("PUSH_APP_B_KEY")},
	}
}

func PushEndpoint() string {
	return env("PUSH_ENDPOINT", "https://onesignal.com/api/v1/notifications")
}

// 遗留 FCM server key（诊断单 token 直发用），按 A/B 先配者优先。
func LegacyFCMKeyA() string { return os.Getenv("LEGACY_A_FCM_KEY") }
func LegacyFCMKeyB() string { return os.Getenv("LEGACY_B_FCM_KEY") }

func LegacyFCMEndpoint() string {
	return env("LEGACY_FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send")
}

// PostgresDSN 用户映射表所在的旧系统关系库。
func PostgresDSN() string {
	return env("DATABASE_URL", "postgres://localhost:5432/napchat")
}

func NatsURL() string {
	return env("NATS_URL", "nats://127.0.0.1:4222")
}

func KafkaBrokers() []string {
	return strings.Split(env("KAFKA_BROKERS", "127.0.0.1:9092"), ",")
}

func HTTPAddr() string {
	return env("HTTP_ADDR", ":8080")
}

// DeepLinkBase no-code 应用的站点根。
func DeepLinkBase() string {
	return env("DEEPLINK_BASE", "https://app.example.com")
}
