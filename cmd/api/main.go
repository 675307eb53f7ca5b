package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"murmur.dev/internal/auth"
	"murmur.dev/internal/config"
	"murmur.dev/internal/httpapi"
	"murmur.dev/internal/imagestore"
	"murmur.dev/internal/message"
	"murmur.dev/internal/notify"
	"murmur.dev/internal/obs"
	"murmur.dev/internal/store/mongo"
)

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	store, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}

	codec, err := auth.NewCodec(auth.Secrets{
		UserAccess:   cfg.Token.UserAccessSecret,
		UserRefresh:  cfg.Token.UserRefreshSecret,
		AdminAccess:  cfg.Token.AdminAccessSecret,
		AdminRefresh: cfg.Token.AdminRefreshSecret,
	}, cfg.Token.Issuer,
		auth.WithAccessTTL(cfg.Token.AccessTTL),
		auth.WithRefreshTTL(cfg.Token.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	cipher, err := auth.NewCipher(cfg.CryptoSecret)
	if err != nil {
		log.Fatalf("cipher: %v", err)
	}

	var enqueuer notify.Enqueuer = notify.Discard{}
	var dispatcher *notify.Dispatcher
	if cfg.SMTP.Host != "" {
		sender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			TLS:      cfg.SMTP.TLS,
		})
		if err != nil {
			log.Fatalf("smtp: %v", err)
		}
		dispatcher = notify.NewDispatcher(sender, cfg.SMTP.Buffer)
		dispatcher.Start()
		enqueuer = dispatcher
	} else {
		obs.LogEvent("warn", "SMTP not configured, emails will be dropped", nil)
	}

	var serviceOpts []auth.ServiceOption
	if cfg.GoogleAudience != "" {
		verifier, err := auth.NewGoogleVerifier(cfg.GoogleAudience)
		if err != nil {
			log.Fatalf("google verifier: %v", err)
		}
		serviceOpts = append(serviceOpts, auth.WithIdentityVerifier(verifier))
	}

	accounts := store.Accounts()
	revoked := store.Revocations()

	authSvc, err := auth.NewService(accounts, revoked, codec, auth.NewHasher(cfg.BcryptCost), cipher, enqueuer, serviceOpts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	guard := auth.NewGuard(codec, accounts, revoked, cfg.Token.Scheme)
	messages := message.NewService(store.Messages(), accounts)

	var images imagestore.Store = imagestore.Discard{}
	if cfg.MinIO.Endpoint != "" {
		images, err = imagestore.New(ctx, imagestore.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			log.Fatalf("imagestore: %v", err)
		}
	}

	api := httpapi.New(authSvc, guard, accounts, messages, images, store, httpapi.Config{
		Version:        cfg.Version,
		Dev:            cfg.Dev(),
		ShareBaseURL:   cfg.HTTP.ShareBaseURL,
		CORSOrigin:     cfg.HTTP.CORSOrigin,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	log.Printf("Starting murmur-api %s on %s", cfg.Version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if dispatcher != nil {
		dispatcher.Close()
	}
	_ = store.Close(context.Background())
	log.Println("Stopped")
}
