package main

import (
	"context"
	"net/http"
	"time"

	mongoutil "NapChat/data/database/mgo/mongoutil"
	"NapChat/global"
	"NapChat/logger"
	"NapChat/middleware"
	"NapChat/module/directory"
	"NapChat/module/fanout"
	mappingmod "NapChat/module/mapping"
	mappingsvc "NapChat/module/mapping/service"
	"NapChat/module/push/dispatch"
	pushsvc "NapChat/module/push/service"
	"NapChat/module/push/token"
	"NapChat/module/unread"
	unreadsvc "NapChat/module/unread/service"
	ka "NapChat/service/kafka"
	"NapChat/service/mgo"
	"NapChat/service/natsx"
	redisSrv "NapChat/service/storage/redis"
	"NapChat/tools/ids"
	"NapChat/tools/safe"

	"github.com/Shopify/sarama"
	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids.SetNodeID(100)

	// ===== Mongo 连接表：主库必须就绪，遗留库尽力而为 =====
	registry := mgo.NewRegistry()
	primary := global.PrimaryMongo()
	registry.StartAsync(ctx, mgo.ConnPrimary, &mongoutil.Config{Uri: primary.Uri, Database: primary.Database, MaxPoolSize: 20})

	if cfg := global.LegacyMongoA(); cfg.Uri != "" {
		registry.StartAsync(ctx, mgo.ConnLegacyA, &mongoutil.Config{Uri: cfg.Uri, Database: cfg.Database, MaxPoolSize: 10})
	}
	if cfg := global.LegacyMongoB(); cfg.Uri != "" {
		registry.StartAsync(ctx, mgo.ConnLegacyB, &mongoutil.Config{Uri: cfg.Uri, Database: cfg.Database, MaxPoolSize: 10})
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, 30*time.Second)
	defer waitCancel()
	if err := registry.WaitReady(waitCtx, mgo.ConnPrimary); err != nil {
		logger.Error("primary mongo not ready", zap.Error(err))
		return
	}

	// ===== Redis（token 解析缓存）=====
	rcfg := global.Redis()
	if err := redisSrv.InitRedis(redisSrv.Config{Addr: rcfg.Addr, Password: rcfg.Password, DB: rcfg.DB}); err != nil {
		logger.Warn("redis unavailable, token cache disabled", zap.Error(err))
	}

	// ===== NATS（角标刷新事件，尽力而为）=====
	if err := natsx.Init(natsx.Config{URL: global.NatsURL(), Name: "napchat"}); err != nil {
		logger.Warn("nats unavailable, counter events disabled", zap.Error(err))
	}

	// ===== Postgres（用户映射）=====
	pool, err := pgxpool.New(ctx, global.PostgresDSN())
	if err != nil {
		logger.Error("postgres connect failed", zap.Error(err))
		return
	}
	defer pool.Close()
	mappingStore := mappingmod.NewStore(pool)
	if err := mappingStore.EnsureSchema(ctx); err != nil {
		logger.Error("mapping schema", zap.Error(err))
		return
	}

	// ===== 组装核心管道 =====
	counterStore := unread.NewStore(registry.DB(mgo.ConnPrimary))

	apps := global.PushApps()
	dispatcher := dispatch.NewDispatcher(global.PushEndpoint(),
		dispatch.AppCred{Name: apps[0].Name, AppID: apps[0].AppID, APIKey: apps[0].APIKey},
		dispatch.AppCred{Name: apps[1].Name, AppID: apps[1].AppID, APIKey: apps[1].APIKey},
	)
	dispatcher.LegacyEndpoint = global.LegacyFCMEndpoint()
	dispatcher.LegacyKeyA = global.LegacyFCMKeyA()
	dispatcher.LegacyKeyB = global.LegacyFCMKeyB()

	// 遗留库是异步连上的，探测链每次调用时从注册表取库，就绪即生效
	var probesA, probesB []token.TokenProbe
	if global.LegacyMongoA().Uri != "" {
		probesA = token.StoreProbes(func() *mongo.Database { return registry.DB(mgo.ConnLegacyA) })
	}
	if global.LegacyMongoB().Uri != "" {
		probesB = token.StoreProbes(func() *mongo.Database { return registry.DB(mgo.ConnLegacyB) })
	}
	syncedStore := &token.SyncedStore{DB: registry.DB(mgo.ConnPrimary)}
	resolver := &token.Resolver{
		AppAProbes: probesA,
		AppBProbes: probesB,
		Synced:     syncedStore,
		Cache:      redisSrv.GetRedis(),
	}

	bubble := global.Bubble()
	orchestrator := &fanout.Orchestrator{
		Dir:      directory.NewClient(bubble.Endpoint, bubble.Token),
		Counters: counterStore,
		Pusher:   dispatcher,
		Version:  global.AppVersion(),
		LinkBase: global.DeepLinkBase(),
	}

	// ===== Kafka：消息创建事件的生产（watcher）与消费（管道）=====
	bootKafka(ctx, orchestrator)
	fanout.StartWatcher(ctx, registry.DB(mgo.ConnPrimary))

	// ===== HTTP =====
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Origin())

	unreadServer := unreadsvc.NewServer(counterStore)
	pushServer := &pushsvc.Server{
		Resolver: resolver,
		Synced:   syncedStore,
		Sender:   dispatcher,
		ProbesA:  probesA,
		ProbesB:  probesB,
	}
	mappingServer := mappingsvc.NewServer(mappingStore)

	middleware.POST(r, "/getUnreadCounters", unreadServer.GetUnreadCounters, middleware.RouteOpt{AllowGet: true})
	middleware.POST(r, "/getFamilyUnreadCounters", unreadServer.GetFamilyUnreadCounters, middleware.RouteOpt{AllowGet: true})
	middleware.POST(r, "/markChatAsRead", unreadServer.MarkChatAsRead, middleware.RouteOpt{})
	middleware.POST(r, "/markLogAsRead", unreadServer.MarkLogAsRead, middleware.RouteOpt{})
	middleware.POST(r, "/markAllLogsAsRead", unreadServer.MarkAllLogsAsRead, middleware.RouteOpt{})
	middleware.POST(r, "/testPushNotification", pushServer.TestPushNotification, middleware.RouteOpt{})
	middleware.POST(r, "/syncFCMTokens", pushServer.SyncFCMTokens, middleware.RouteOpt{})
	middleware.POST(r, "/getUserMapping", mappingServer.GetUserMapping, middleware.RouteOpt{AllowGet: true})
	middleware.POST(r, "/createUserMapping", mappingServer.CreateUserMapping, middleware.RouteOpt{})
	middleware.POST(r, "/exploreFCMTokenStorage", pushServer.ExploreFCMTokenStorage, middleware.RouteOpt{AllowGet: true})

	middleware.GET(r, "/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"primary": registry.Ready(mgo.ConnPrimary),
			"legacyA": registry.Ready(mgo.ConnLegacyA),
			"legacyB": registry.Ready(mgo.ConnLegacyB),
		})
	}, middleware.RouteOpt{})

	logger.Info("napchat listening", zap.String("addr", global.HTTPAddr()))
	if err := r.Run(global.HTTPAddr()); err != nil {
		logger.Error("http server exited", zap.Error(err))
	}
}

// bootKafka 在后台启动 Kafka Client / Producer / Consumer。
func bootKafka(ctx context.Context, o *fanout.Orchestrator) {
	ka.Cfg.Brokers = global.KafkaBrokers()
	topics := []string{ka.Cfg.MessageCreatedTopic}

	safe.Go(func() {
		if ka.Cfg.AutoCreateTopicsOnStart {
			admin, err := sarama.NewClusterAdmin(ka.Cfg.Brokers, ka.BuildBaseConfig())
			if err != nil {
				glog.Infof("[Kafka][ERR] create admin: %v", err)
				return
			}
			if err := ka.EnsureTopics(admin, topics); err != nil {
				glog.Infof("[Kafka][ERR] ensure topics: %v", err)
				_ = admin.Close()
				return
			}
			_ = admin.Close()
		}

		if err := ka.InitKafkaClient(); err != nil {
			glog.Infof("[Kafka][ERR] init client: %v", err)
			return
		}
		if err := ka.InitSyncProducerFromClient(); err != nil {
			glog.Infof("[Kafka][ERR] init producer: %v", err)
			return
		}

		ka.RegisterHandler(ka.Cfg.MessageCreatedTopic, fanout.HandlerMessageCreated(o))

		if err := ka.StartConsumerGroup(ctx, ka.Cfg.Brokers, ka.Cfg.GroupID, topics); err != nil {
			glog.Infof("[Kafka][ERR] consumer group: %v", err)
		}
	})
}
