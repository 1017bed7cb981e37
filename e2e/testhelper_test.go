package e2e

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/podcastgen/api/internal/audio"
	"github.com/podcastgen/api/internal/auth"
	"github.com/podcastgen/api/internal/client"
	"github.com/podcastgen/api/internal/config"
	"github.com/podcastgen/api/internal/handler"
	"github.com/podcastgen/api/internal/middleware"
	"github.com/podcastgen/api/internal/model"
	"github.com/podcastgen/api/internal/service"
	"github.com/podcastgen/api/internal/telemetry"
	ws "github.com/podcastgen/api/internal/websocket"
	"github.com/podcastgen/api/internal/worker"
	"github.com/podcastgen/api/pkg/response"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	podcast *service.PodcastService
	worker  *worker.PodcastWorker
}

// stubTTS renders every line as a short constant tone
type stubTTS struct{}

func (stubTTS) Speak(ctx context.Context, text, voiceID string, settings client.VoiceSettings) ([]byte, error) {
	frames := 2400
	pcm := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(4000)))
	}
	return pcm, nil
}

func (stubTTS) SampleRate() int    { return 24000 }
func (stubTTS) IsConfigured() bool { return true }

// stubResearch avoids network access
type stubResearch struct{}

func (stubResearch) Research(ctx context.Context, topic, sourceURL string) (string, error) {
	return "A short brief about " + topic + ".", nil
}

func redisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// setupApp creates a Fiber app wired like main.go. The voice provider is a
// local stub, the script and music providers are unconfigured so the
// pipeline takes its fallback paths. Tests skip when Redis is unreachable.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis DB 15 keeps test keys away from development data
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr(),
		DB:   15,
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", redisAddr(), err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr(), DB: 15}
	asynqClient := asynq.NewClient(redisOpt)
	inspector := asynq.NewInspector(redisOpt)
	t.Cleanup(func() {
		asynqClient.Close()
		inspector.Close()
		redisClient.Close()
	})

	validate := validator.New()
	hub := ws.NewHub()
	go hub.Run()

	outputDir := t.TempDir()
	minimaxClient := client.NewMiniMaxClient(http.DefaultClient, &config.MiniMaxConfig{})

	podcastService := service.NewPodcastService(redisClient, asynqClient, inspector, stubTTS{}, outputDir, time.Minute)
	masteringService, err := service.NewMasteringService(audio.NewEngine(), 1)
	if err != nil {
		t.Fatalf("failed to create mastering service: %v", err)
	}

	podcastWorker := worker.NewPodcastWorker(worker.Deps{
		Research: stubResearch{},
		Scripts:  service.NewScriptService(minimaxClient, validate),
		Clips: service.NewClipSynthesizer(stubTTS{}, map[model.Speaker]string{
			model.SpeakerAlex: "voice-alex",
			model.SpeakerSam:  "voice-sam",
		}, client.VoiceSettings{}, 2),
		Jingles:   service.NewJingleGenerator(minimaxClient, "music-01", 10*time.Millisecond, time.Second),
		Mastering: masteringService,
		Publisher: service.NewPublishService(nil, nil, false),
		Tracker:   podcastService,
		Notifier:  hub,
		Metrics:   telemetry.Noop(),
	})

	podcastHandler := handler.NewPodcastHandler(podcastService, validate, hub)

	// Legacy HMAC only, no JWKS issuer in tests
	authenticator := auth.NewAuthenticator(nil, testJWTSecret)
	authHandler := handler.NewAuthHandler(authenticator)
	authMiddleware := middleware.NewAuthMiddleware(authenticator)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{ErrorHandler: response.Handler})

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":      true,
				"minimax":    minimaxClient.IsConfigured(),
				"elevenlabs": true,
				"r2":         false,
				"audio":      false,
				"auth":       true,
			},
		})
	})
	app.Static(service.OutputRoute, outputDir)
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	podcast := api.Group("/podcast")
	podcast.Post("/generate", rateLimiter.PodcastLimit(10000), podcastHandler.Generate)
	podcast.Get("/status/:jobId", podcastHandler.Status)
	podcast.Get("/result/:jobId", podcastHandler.Result)
	podcast.Post("/cancel/:jobId", podcastHandler.Cancel)

	return &testApp{app: app, podcast: podcastService, worker: podcastWorker}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.IssueLegacyToken("test-user-123", "test@example.com", testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
