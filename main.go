package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"food-whatsapp/admin"
	"food-whatsapp/bot"
	"food-whatsapp/config"
	"food-whatsapp/conversation"
	"food-whatsapp/db"
	"food-whatsapp/proofs"
	"food-whatsapp/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.LogDev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Check for migrate subcommand
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(ctx, cfg, log); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
		return
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("shutdown with error", zap.Error(err))
	}
	log.Info("stopped")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (services.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return db.NewMemory(), nil
	case config.StoreMongo:
		return db.OpenMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, log)
	default:
		if cfg.AutoMigrate {
			return db.OpenPostgres(ctx, cfg.DB.DSN(), migrationsFS)
		}
		return db.OpenPostgres(ctx, cfg.DB.DSN(), nil)
	}
}

func openSessions(ctx context.Context, cfg *config.Config, log *zap.Logger) (conversation.SessionStore, func(), error) {
	if cfg.Redis.Addr == "" {
		return conversation.NewMemorySessions(), func() {}, nil
	}
	client, err := conversation.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	log.Info("sessions in redis", zap.String("addr", cfg.Redis.Addr))
	return conversation.NewRedisSessions(client, cfg.Redis.SessionTTL), func() { client.Close() }, nil
}

func openProofStore(ctx context.Context, cfg *config.Config) (proofs.Store, error) {
	if cfg.Proofs.Kind == config.ProofStoreS3 {
		return proofs.NewS3Store(ctx, proofs.S3Config{
			Bucket:   cfg.Proofs.S3Bucket,
			Region:   cfg.Proofs.S3Region,
			Endpoint: cfg.Proofs.S3Endpoint,
			Prefix:   cfg.Proofs.S3Prefix,
		})
	}
	return proofs.NewFSStore(cfg.Proofs.Dir)
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer store.Close()

	sessions, closeSessions, err := openSessions(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	defer closeSessions()

	hub := admin.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	pricing := services.NewPricing(store, cfg.Shop.Location())
	seed, err := config.ParseRates(cfg.Shop.DeliveryRates)
	if err != nil {
		return err
	}
	if err := pricing.SeedRates(ctx, seed); err != nil {
		return fmt.Errorf("seed delivery rates: %w", err)
	}

	customers := services.NewCustomerDirectory(store)
	catalog := services.NewMenuCatalog(store)
	orders := services.NewOrderStore(store, store, hub, log, services.OrderOptions{
		Currency:      cfg.Shop.Currency,
		DefaultLang:   cfg.Shop.DefaultLang,
		AdminApproval: cfg.Flow.AdminApproval,
	})

	engine := conversation.NewEngine(conversation.Deps{
		Customers: customers,
		Catalog:   catalog,
		Pricing:   pricing,
		Orders:    orders,
		Sessions:  sessions,
	}, conversation.Flow{
		PaymentProof:  cfg.Flow.PaymentProof,
		AdminApproval: cfg.Flow.AdminApproval,
		ShopName:      cfg.Shop.Name,
		Currency:      cfg.Shop.Currency,
		UPIID:         cfg.Shop.UPIID,
		DefaultLang:   cfg.Shop.DefaultLang,
	}, log)
	orders.OnStatusChange(engine.OnOrderStatus)

	proofStore, err := openProofStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("proof store: %w", err)
	}
	engine.SetProofStore(proofs.NewSaver(proofStore, log))

	var (
		transport bot.Transport
		webhook   admin.Webhook
	)
	switch cfg.Transport.Kind {
	case config.TransportTelegram:
		tg, err := bot.NewTelegram(cfg.Transport.TelegramToken, engine, log)
		if err != nil {
			return err
		}
		transport = tg
	default:
		wa := bot.NewWhatsApp(bot.WhatsAppConfig{
			Token:         cfg.Transport.WhatsAppToken,
			PhoneNumberID: cfg.Transport.WhatsAppPhoneID,
			VerifyToken:   cfg.Transport.WhatsAppVerify,
			APIVersion:    cfg.Transport.WhatsAppAPIVersion,
			BaseURL:       cfg.Transport.WhatsAppBaseURL,
		}, engine, log)
		transport, webhook = wa, wa
	}
	engine.SetMessenger(transport)
	engine.SetMediaSource(transport)
	orders.SetNotifier(transport)

	srv := admin.New(admin.Deps{
		Orders:    orders,
		Catalog:   catalog,
		Customers: customers,
		Pricing:   pricing,
		Hub:       hub,
		Bot:       transport,
		Webhook:   webhook,
	}, admin.Options{
		Addr:           cfg.HTTPAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		ShopName:       cfg.Shop.Name,
		ShopPhone:      cfg.Shop.Phone,
		Currency:       cfg.Shop.Currency,
	}, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return transport.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		watchBotStatus(gctx, transport, hub)
		return nil
	})

	log.Info("bot started",
		zap.String("transport", cfg.Transport.Kind),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("payment_proof", cfg.Flow.PaymentProof),
		zap.Bool("admin_approval", cfg.Flow.AdminApproval),
	)
	return g.Wait()
}

// watchBotStatus pushes a bot_status event to the dashboards whenever the transport's
// readiness changes.
func watchBotStatus(ctx context.Context, t bot.Transport, events services.Broadcaster) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	last := t.Status()
	events.Broadcast(services.EventBotStatus, last)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := t.Status()
			if st != last {
				events.Broadcast(services.EventBotStatus, st)
				last = st
			}
		}
	}
}
