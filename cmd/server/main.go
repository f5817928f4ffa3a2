package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"triage-agent/internal/agent"
	"triage-agent/internal/observability"
	"triage-agent/internal/platform/notify"
	"triage-agent/internal/report"
	"triage-agent/internal/retrieval"
	"triage-agent/internal/triage"
)

func main() {
	logger := observability.NewLogger()

	// 1. Infrastructure
	var db *sql.DB
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL != "" {
		var err error
		for i := 0; i < 10; i++ {
			db, err = sql.Open("postgres", dbURL)
			if err == nil {
				err = db.Ping()
			}
			if err == nil {
				break
			}
			log.Printf("Waiting for DB... (%d/10)", i+1)
			time.Sleep(2 * time.Second)
		}
		if err != nil {
			// Slot state is in-process; the database only backs the
			// knowledge base and turn summaries, so run degraded.
			log.Printf("Could not connect to DB: %v. Continuing without knowledge database.", err)
			db = nil
		} else {
			log.Println("Connected to database.")
			m, err := migrate.New("file://migrations", dbURL)
			if err != nil {
				log.Printf("Migration init failed: %v", err)
			} else if err := m.Up(); err != nil && err != migrate.ErrNoChange {
				log.Printf("Migration up failed: %v", err)
			} else {
				log.Println("Migrations applied.")
			}
		}
	}

	// 2. Collaborators
	extractor := agent.NewRuleExtractor()

	var retriever triage.Retriever
	var recorder triage.TurnRecorder
	if db != nil {
		retriever = retrieval.NewPostgresRetriever(db)
		recorder = triage.NewRepository(db)
	} else {
		retriever = retrieval.NewMemoryRetriever()
	}

	var reviewer triage.Reviewer
	if os.Getenv("SAFETY_LLM") == "1" {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			log.Println("Warning: SAFETY_LLM=1 but OPENAI_API_KEY is not set; running deterministic checks only.")
		} else {
			reviewer = agent.NewLLMReviewer(apiKey, os.Getenv("SAFETY_LLM_MODEL"))
		}
	}
	gateTimeout := 3 * time.Second
	if v := os.Getenv("SAFETY_LLM_TIMEOUT"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			gateTimeout = time.Duration(secs * float64(time.Second))
		}
	}
	gate := triage.NewSafetyGate(reviewer, gateTimeout)

	var reporter triage.EscalationReporter
	if webhookURL := os.Getenv("ESCALATION_WEBHOOK_URL"); webhookURL != "" {
		reporter = report.NewService(notify.NewClient(webhookURL))
	} else {
		log.Println("Warning: ESCALATION_WEBHOOK_URL is not set. Escalation handoffs will not be delivered.")
	}

	// 3. Engine
	store := triage.NewMemoryStore()
	svc := triage.NewService(store, extractor, retriever, gate, recorder, reporter, logger)
	handler := triage.NewHandler(svc)

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS for the patient frontend
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			if r.Method == "OPTIONS" {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		triage.RegisterRoutes(r, handler)
	})
	r.Handle("/metrics", promhttp.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s...", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}
