package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/tabletoplab/ratings/internal/api/http"
	"github.com/tabletoplab/ratings/internal/audit"
	"github.com/tabletoplab/ratings/internal/auth"
	"github.com/tabletoplab/ratings/internal/config"
	"github.com/tabletoplab/ratings/internal/db"
	"github.com/tabletoplab/ratings/internal/ingest"
	"github.com/tabletoplab/ratings/internal/metrics"
	"github.com/tabletoplab/ratings/internal/rating"
	"github.com/tabletoplab/ratings/internal/rbac"
	"github.com/tabletoplab/ratings/internal/storage"
)

func main() {
	port := flag.Int("port", 0, "port number to run the server on (overrides HTTP_ADDR)")
	file := flag.String("f", "", "bulk ratings file (overrides RATINGS_FILE)")
	player := flag.String("p", "", "print the rated items for this name (or \"all\") and exit")
	verbose := flag.Bool("v", false, "with -p all, also print the items everyone has rated")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()
	if *port != 0 {
		cfg.HTTPAddr = fmt.Sprintf(":%d", *port)
	}
	if *file != "" {
		cfg.RatingsFile = *file
	}

	vocab, err := rating.Flavor(cfg.Flavor)
	if err != nil {
		log.Fatal(err)
	}

	// Bulk file is validated up front; the server never starts serving
	// with partial data.
	records, err := ingest.ParseFile(cfg.RatingsFile, vocab.ItemsKey)
	if err != nil {
		log.Fatal(err)
	}

	if *player != "" {
		if err := printRatings(records, *player, *verbose, vocab); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, auditLog, closeDB, err := openStore(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer closeDB()

	svc := rating.NewService(store, vocab, auditLog)

	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = svc.Load(loadCtx, records)
	cancel()
	if err != nil {
		log.Fatalf("bulk load failed: %v", err)
	}
	total := 0
	for _, rec := range records {
		total += len(rec.Ratings)
	}
	metrics.RecordLoad(total)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(api.MetricsMiddleware)

	var guard func(http.Handler) http.Handler
	if cfg.EnableAuth {
		authSvc := auth.NewService(cfg.AuthSecret)
		r.Post("/auth/login", auth.LoginHandler(authSvc, cfg.AdminUser, cfg.AdminPassHash))
		guard = func(next http.Handler) http.Handler {
			return auth.JWTMiddleware(authSvc)(rbac.Require("rating:write")(next))
		}
	}

	api.Mount(r, svc, guard)

	bs, err := storage.NewFSStore(cfg.StaticDir)
	if err != nil {
		log.Fatalf("static store: %v", err)
	}
	api.MountStatic(r, bs)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("listening on %s (flavor=%s, db=%s)", cfg.HTTPAddr, cfg.Flavor, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-sigCtx.Done()

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// The rating table is session-scoped: emptied on the way out.
	if err := svc.Clear(shutCtx); err != nil {
		log.Printf("clear ratings: %v", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (rating.Store, *audit.Log, func(), error) {
	if cfg.DBDriver == "memory" {
		return rating.NewInMemoryStore(), nil, func() {}, nil
	}
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	return rating.NewSQLStore(dbh, cfg.DBDriver), audit.NewLog(dbh), func() { _ = dbh.Close() }, nil
}

// printRatings is the CLI mode: list what the named subject (or everyone)
// has rated, without starting the server.
func printRatings(records []ingest.Record, name string, verbose bool, vocab rating.Vocabulary) error {
	order := make([]string, 0, len(records))
	byName := map[string][]string{}
	for _, rec := range records {
		subject := rating.Canonical(rec.Name)
		if _, ok := byName[subject]; !ok {
			order = append(order, subject)
		}
		for _, ir := range rec.Ratings {
			byName[subject] = append(byName[subject], rating.Canonical(ir.Name))
		}
	}

	var show []string
	if name == "all" {
		show = order
	} else {
		subject := rating.Canonical(name)
		if _, ok := byName[subject]; !ok {
			return fmt.Errorf("%s %s not found.", vocab.Subject, subject)
		}
		show = []string{subject}
	}

	fmt.Printf("The following is a list of current %s and the %s they have rated:\n",
		vocab.SubjectsPath, vocab.ItemsPath)
	for _, subject := range show {
		fmt.Printf("%s has rated %s.\n", subject, strings.Join(byName[subject], ", "))
	}

	if verbose && name == "all" {
		shared := sharedItems(order, byName)
		if len(shared) == 0 {
			fmt.Printf("No %s listed that all %s have rated.\n", vocab.ItemsPath, vocab.SubjectsPath)
		} else {
			fmt.Printf("All %s have rated: %s\n", vocab.SubjectsPath, strings.Join(shared, ", "))
		}
	}
	return nil
}

// sharedItems intersects every subject's rated items, keeping the first
// subject's order.
func sharedItems(order []string, byName map[string][]string) []string {
	if len(order) == 0 {
		return nil
	}
	var shared []string
	for _, item := range byName[order[0]] {
		inAll := true
		for _, subject := range order[1:] {
			found := false
			for _, other := range byName[subject] {
				if other == item {
					found = true
					break
				}
			}
			if !found {
				inAll = false
				break
			}
		}
		if inAll {
			shared = append(shared, item)
		}
	}
	return shared
}
