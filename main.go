package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/glog"

	"github.com/OgheneDev/FlowChat/api"
	"github.com/OgheneDev/FlowChat/auth"
	"github.com/OgheneDev/FlowChat/chat"
	"github.com/OgheneDev/FlowChat/config"
	"github.com/OgheneDev/FlowChat/media"
	"github.com/OgheneDev/FlowChat/notify"
	"github.com/OgheneDev/FlowChat/presence"
	"github.com/OgheneDev/FlowChat/server"
	"github.com/OgheneDev/FlowChat/store"
	"github.com/OgheneDev/FlowChat/ws"
)

var (
	flagConfig  = flag.String("config", "", "yaml config file, flags override its values")
	flagEnvFile = flag.String("env-file", ".env", "dotenv file holding secrets, ignored if missing")

	flagAddr           = flag.String("addr", "127.0.0.1:8000", "server address, ip:port")
	flagPidFile        = flag.String("pid-file", "flowchat.pid", "pid file")
	flagPprofDir       = flag.String("pprof-dir", "pprof", "dir to save pprof data files")
	flagDisableMetrics = flag.Bool("disable-metrics", false, "disable prometheus metrics")

	flagStore        = flag.String("store", config.StoreMySQL, "store kind: mysql or memory")
	flagMysqlDsn     = flag.String("mysql-dsn", "", "mysql server dsn, or env "+config.EnvMysqlDSN)
	flagEnsureSchema = flag.Bool("ensure-schema", false, "create missing mysql tables at start")
	flagAuthMode     = flag.String("auth", config.AuthJWT, "auth mode: jwt or mock, mock trusts the x-uid header and is for development only")
	flagKafkaBrokers = flag.String("kafka-brokers", "", "comma separated kafka brokers, notifications are disabled if empty")
	flagS3Bucket     = flag.String("s3-bucket", "", "s3 bucket for images, inline images are rejected if empty")
	flagUnreadPolicy = flag.String("unread-policy", "offline", "when unread counters grow: offline or unseen")
)

func main() {
	flag.Parse()

	// NOTE: os.Exit() does not call defers.
	os.Exit(run())
}

func loadConfig() (*config.Config, error) {
	conf, err := config.Load(*flagConfig)
	if err != nil {
		return nil, err
	}
	if err := conf.LoadEnv(*flagEnvFile); err != nil {
		return nil, err
	}

	// Only explicitly set flags override the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			conf.Addr = *flagAddr
		case "pid-file":
			conf.PidFile = *flagPidFile
		case "pprof-dir":
			conf.PprofDir = *flagPprofDir
		case "disable-metrics":
			conf.DisableMetrics = *flagDisableMetrics
		case "store":
			conf.Store.Kind = *flagStore
		case "mysql-dsn":
			conf.Store.MysqlDSN = *flagMysqlDsn
		case "ensure-schema":
			conf.Store.EnsureSchema = *flagEnsureSchema
		case "auth":
			conf.Auth.Mode = *flagAuthMode
		case "kafka-brokers":
			conf.Notify.KafkaBrokers = config.SplitList(*flagKafkaBrokers)
		case "s3-bucket":
			conf.Media.Bucket = *flagS3Bucket
		case "unread-policy":
			conf.Chat.UnreadPolicy = *flagUnreadPolicy
		}
	})

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := validateAddr(conf.Addr); err != nil {
		return nil, fmt.Errorf("addr: %v", err)
	}
	return conf, nil
}

func run() int {
	defer glog.Flush()

	conf, err := loadConfig()
	if err != nil {
		return errorf("config: %v", err)
	}

	pid := os.Getpid()

	if err := savePid(conf.PidFile, pid); err != nil {
		return errorf("pid file: %v", err)
	}
	defer func() {
		_ = os.Remove(conf.PidFile)
	}()

	pprofDir := filepath.Join(conf.PprofDir, strconv.Itoa(pid))
	if err := os.MkdirAll(pprofDir, 0750); err != nil {
		return errorf("pprof dir: error create dir `%s`: %v", pprofDir, err)
	}
	defer func() {
		_ = os.RemoveAll(pprofDir)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := newStore(ctx, conf)
	if err != nil {
		return errorf("store: %v", err)
	}
	defer st.Close()

	var uploader media.Uploader
	if conf.Media.Bucket != "" {
		client, err := media.NewS3Client(ctx, conf.Media.Region)
		if err != nil {
			return errorf("media: %v", err)
		}
		uploader = media.NewS3Uploader(client, media.S3Config{
			Region:  conf.Media.Region,
			Bucket:  conf.Media.Bucket,
			Prefix:  conf.Media.Prefix,
			BaseURL: conf.Media.BaseURL,
			MaxSize: conf.Media.MaxImageBytes,
		})
		glog.Infof("media: upload images to s3 bucket %s", conf.Media.Bucket)
	}

	var (
		dispatcher notify.Dispatcher
		workers    []server.Worker
	)
	if len(conf.Notify.KafkaBrokers) > 0 {
		kd := notify.NewKafkaDispatcher(notify.NewKafkaWriter(conf.Notify.KafkaBrokers, conf.Notify.Topic), conf.Notify.MaxBytes)
		defer kd.Close()
		dispatcher = kd

		if conf.Notify.SpoolPath != "" {
			spool, err := notify.OpenSpool(kd, notify.SpoolConfig{
				Path:          conf.Notify.SpoolPath,
				RetryInterval: conf.Notify.RetryInterval,
				TTL:           conf.Notify.SpoolTTL,
			})
			if err != nil {
				return errorf("notify: %v", err)
			}
			defer spool.Close()
			dispatcher = spool
			workers = append(workers, spool)
		}
		queue := notify.NewQueue(dispatcher, conf.Notify.QueueSize)
		dispatcher = queue
		workers = append(workers, queue)
		glog.Infof("notify: dispatch to kafka topic %s", conf.Notify.Topic)
	}

	chatConf := chat.Config{
		UnreadPolicy: chat.UnreadPolicy(conf.Chat.UnreadPolicy),
		PreviewLen:   conf.Chat.PreviewLen,
		SearchLimit:  conf.Chat.SearchLimit,
	}
	if err := chatConf.Validate(); err != nil {
		return errorf("chat: %v", err)
	}

	authClient := newAuthClient(conf)
	registry := presence.NewRegistry()
	service := chat.NewService(st, registry, uploader, dispatcher, chatConf)
	hub := ws.NewHub(authClient, service, registry, ws.Conf{
		RateLimit:       conf.WS.RateLimit,
		RateBurst:       conf.WS.RateBurst,
		MaxMessageBytes: conf.WS.MaxMessageBytes,
		SendQueueSize:   conf.WS.SendQueueSize,
		AllowedOrigins:  conf.CORS.AllowedOrigins,
	})

	srv := server.New(server.Conf{
		Addr:    conf.Addr,
		Handler: api.NewRouter(hub, service, authClient, api.Conf{
			DisableMetrics: conf.DisableMetrics,
			AllowedOrigins: conf.CORS.AllowedOrigins,
		}),
		Hub:     hub,
		Workers: workers,
	})

	stopNotifyChan := make(chan error, 1)
	go func() {
		stopNotifyChan <- srv.Run(ctx)
	}()

	glog.Infof("flowchat server is starting")
	glog.Infof("`kill -USR1 %d` to dup goroutines; `kill -USR2 %d` to start/stop profiler; `CTRL+c` or `kill %d` to graceful stop", pid, pid, pid)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var prof *Profiler
	defer func() {
		if prof != nil {
			prof.Stop()
		}
	}()

	for {
		select {
		case err := <-stopNotifyChan:
			if err != nil {
				return errorf("flowchat server exited: %v", err)
			}
			glog.Info("flowchat server exited")
			return 0
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				dumpGoroutines(pprofDir)
			case syscall.SIGUSR2:
				if prof == nil {
					prof = StartProfiler(pprofDir)
				} else {
					prof.Stop()
					prof = nil
				}
			case syscall.SIGTERM, syscall.SIGINT:
				glog.Infof("received signal `%s` stopping", sig.String())
				cancel()
			}
		}
	}
}

func newStore(ctx context.Context, conf *config.Config) (store.IStore, error) {
	if conf.Store.Kind == config.StoreMemory {
		glog.Warningf("store: using memory store, data is lost on exit")
		return store.NewMemoryStore(), nil
	}

	db, err := sql.Open("mysql", conf.Store.MysqlDSN)
	if err != nil {
		return nil, fmt.Errorf("sql.Open error: %v", err)
	}

	db.SetConnMaxLifetime(time.Minute * 3)
	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)

	st := store.NewMysqlStore(db)
	if conf.Store.EnsureSchema {
		if err := st.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %v", err)
		}
	}
	return st, nil
}

func newAuthClient(conf *config.Config) auth.Client {
	if conf.Auth.Mode == config.AuthMock {
		glog.Warningf("auth: mock client trusts the x-uid header, do not use in production")
		return &auth.MockClient{}
	}
	return auth.NewJWTClient(conf.Auth.JWTSecret, conf.Auth.CookieName)
}

// validateAddr requires a loopback or private address, the server runs behind a proxy.
func validateAddr(s string) error {
	ips, _, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("error split host port from `%s`: %v", s, err)
	}
	ip := net.ParseIP(ips)
	if ip == nil {
		return fmt.Errorf("error parse IP from host `%s`", ips)
	}
	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("`%s` is not loopback or private address", ips)
	}
	return nil
}

func errorf(fmt string, args ...interface{}) int {
	glog.Errorf(fmt, args...)
	return 1
}

func savePid(name string, pid int) error {
	if _, err := os.Stat(name); err == nil {
		// Ok, see, if we have a stale lockfile here
		content, err := ioutil.ReadFile(name)
		if err != nil {
			return err
		}
		if len(content) > 0 {
			oldPid, err := strconv.Atoi(string(content))
			if err != nil {
				return err
			}

			proc, err := os.FindProcess(oldPid)
			if err != nil {
				return err
			}
			defer proc.Release()

			if err := proc.Signal(syscall.Signal(0)); err == nil {
				return fmt.Errorf("pid file: exists with pid: %d, the process is running", oldPid)
			} else {
				glog.Infof("pid file exists with pid: %d, but is not running", oldPid)
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("pid file: stat error: %v", err)
	}

	if err := ioutil.WriteFile(name, []byte(strconv.Itoa(pid)), 0600); err != nil {
		return fmt.Errorf("pid file: write error: %v", err)
	}
	glog.Infof("pid file: write pid done")
	return nil
}
