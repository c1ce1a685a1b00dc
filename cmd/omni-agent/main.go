// Command omni-agent runs the conversational agent gateway. Messaging
// channels connect over WebSocket, send one JSON request per message,
// and receive one JSON reply.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/gorilla/websocket"
	openai "github.com/sashabaranov/go-openai"

	"github.com/easymo/omni-agent-go/audit"
	"github.com/easymo/omni-agent-go/composer"
	"github.com/easymo/omni-agent-go/config"
	"github.com/easymo/omni-agent-go/core"
	"github.com/easymo/omni-agent-go/engine"
	"github.com/easymo/omni-agent-go/intent"
	"github.com/easymo/omni-agent-go/knowledge"
	"github.com/easymo/omni-agent-go/memory"
	memsqlite "github.com/easymo/omni-agent-go/memory/store/sqlite"
	"github.com/easymo/omni-agent-go/tools"
	"github.com/easymo/omni-agent-go/vector"
	"github.com/easymo/omni-agent-go/vector/chromem"
	mockembed "github.com/easymo/omni-agent-go/vector/embedder/mock"
	openaiembed "github.com/easymo/omni-agent-go/vector/embedder/openai"
)

func main() {
	configPath := flag.String("config", "omni-agent.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[MAIN] Config: %v", err)
	}

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		log.Fatalf("[MAIN] Wiring: %v", err)
	}
	defer cleanup()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", serveWS(eng))

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Printf("[MAIN] Listening on %s (mode=%s)", cfg.ListenAddr, cfg.RunMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[MAIN] Server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[MAIN] Shutdown: %v", err)
	}
}

func buildEngine(cfg *config.Config) (*engine.Engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	auditLog, err := audit.NewSQLiteLog(cfg.AuditDBPath)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, func() { auditLog.Close() })

	records, err := memsqlite.New(cfg.MemoryDBPath)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, func() { records.Close() })

	var openaiClient *openai.Client
	if cfg.OpenAIAPIKey != "" {
		openaiClient = openai.NewClient(cfg.OpenAIAPIKey)
	}

	var embedder vector.Embedder
	if openaiClient != nil {
		embedder = openaiembed.New(openaiClient)
	} else {
		log.Printf("[MAIN] No OpenAI key, using deterministic embeddings")
		embedder = mockembed.New()
	}
	cached, err := vector.NewCachedEmbedder(embedder, 1000)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, cached.Close)
	vectors := vector.NewService(chromem.New(), cached)

	var summarizer memory.Summarizer
	if openaiClient != nil {
		summarizer = memory.NewOpenAISummarizer(openaiClient, "")
	}
	memories, err := memory.NewManager(memory.Config{
		Records:      records,
		Vectors:      vectors,
		Summarizer:   summarizer,
		SummaryEvery: cfg.SummaryEvery,
	})
	if err != nil {
		return nil, cleanup, err
	}

	corpus := knowledge.NewCorpus(vectors)
	if err := corpus.Ingest(context.Background(), knowledge.DefaultDocuments()); err != nil {
		log.Printf("[MAIN] Document ingest failed, continuing without corpus: %v", err)
		corpus = nil
	}

	comp, err := composer.New(composer.Config{
		Memories: memories,
		Docs:     corpus,
		CacheTTL: cfg.CacheTTL,
	})
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, comp.Close)

	var classifier intent.Classifier
	if openaiClient != nil {
		classifier = intent.NewOpenAIClassifier(openaiClient, "")
	}
	intents := intent.NewRouter(intent.DefaultRules(), classifier)

	registry := tools.NewRegistry()
	if err := registry.RegisterAll(tools.EasyMODefinitions(cfg.ToolBaseURL)); err != nil {
		return nil, cleanup, err
	}
	primary := tools.NewRouter(registry, tools.NewDispatchInvoker(nil), auditLog)
	secondary := tools.NewRouter(registry, unavailableInvoker{}, auditLog)
	executor := tools.NewFallbackRouter(primary, secondary, cfg.VerifiedTools)

	engineCfg := engine.Config{
		Intents:         intents,
		Composer:        comp,
		Memories:        memories,
		Executor:        executor,
		Registry:        registry,
		Guardrails:      engine.NewGuardrails(cfg.RatePerMinute, cfg.RateBurst),
		Model:           cfg.Model,
		MaxRounds:       cfg.MaxRounds,
		DuplicateWindow: 30 * time.Second,
	}

	switch cfg.RunMode {
	case config.RunModeAssistant:
		if openaiClient == nil {
			return nil, cleanup, errMissingKey("OPENAI_API_KEY", "assistant")
		}
		svc, err := engine.NewOpenAIRunService(openaiClient, cfg.AssistantID)
		if err != nil {
			return nil, cleanup, err
		}
		runner, err := engine.NewAssistantRunner(engine.AssistantConfig{
			Service:      svc,
			Executor:     executor,
			PollInterval: cfg.PollInterval,
			Timeout:      cfg.RunTimeout,
		})
		if err != nil {
			return nil, cleanup, err
		}
		engineCfg.Assistant = runner

	default:
		if cfg.AnthropicAPIKey == "" {
			return nil, cleanup, errMissingKey("ANTHROPIC_API_KEY", "completion")
		}
		client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
		engineCfg.Completer = engine.NewAnthropicCompleter(&client)
	}

	eng, err := engine.New(engineCfg)
	if err != nil {
		return nil, cleanup, err
	}
	return eng, cleanup, nil
}

// unavailableInvoker answers for tools without a confirmed backend.
type unavailableInvoker struct{}

func (unavailableInvoker) Invoke(ctx context.Context, def *tools.Definition, args map[string]interface{}, tctx tools.Context) (interface{}, *tools.Error) {
	return map[string]interface{}{
		"status":  "unavailable",
		"message": def.Name + " is not available yet. A human agent can help with this request.",
	}, nil
}

type missingKeyError struct{ key, mode string }

func (e missingKeyError) Error() string {
	return e.key + " is required for " + e.mode + " mode"
}

func errMissingKey(key, mode string) error {
	return missingKeyError{key: key, mode: mode}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveWS handles one channel connection: a stream of requests, each
// answered in order.
func serveWS(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("[WS] Read: %v", err)
				}
				return
			}

			var req core.Request
			if err := json.Unmarshal(raw, &req); err != nil {
				conn.WriteJSON(map[string]string{"error": "malformed request"})
				continue
			}

			reply := eng.Respond(r.Context(), &req)
			if err := conn.WriteJSON(reply); err != nil {
				log.Printf("[WS] Write: %v", err)
				return
			}
		}
	}
}
