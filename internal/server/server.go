package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ivlev/slidefeed/internal/logger"
	"github.com/ivlev/slidefeed/internal/slides"
	"github.com/ivlev/slidefeed/internal/source"
	"github.com/ivlev/slidefeed/internal/system"
)

const module = "Server"

type Options struct {
	Source source.Source
	// Static directories; empty entries are not served.
	ImagesDir string
	AudioDir  string
	VideosDir string

	// PublicURL is where clients open the feed; when set, /api/qr serves it
	// as a QR code.
	PublicURL string
	// Resources adds a host snapshot to the health check.
	Resources bool

	AllowOrigins string
	Logger       logger.ILogger
}

// Server exposes a slide source as the read endpoint the feed client polls,
// next to the media it references.
type Server struct {
	app  *fiber.App
	opts Options
	log  logger.ILogger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.AllowOrigins == "" {
		opts.AllowOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
	})
	s := &Server{app: app, opts: opts, log: opts.Logger}

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.AllowOrigins,
		AllowMethods: "GET, HEAD, OPTIONS",
	}))
	app.Use(s.requestLogger)

	statics := map[string]string{"/images": opts.ImagesDir, "/audio": opts.AudioDir, "/videos": opts.VideosDir}
	for prefix, dir := range statics {
		if dir != "" {
			app.Static(prefix, dir, fiber.Static{ByteRange: true})
		}
	}

	api := app.Group("/api")
	api.Get("/health", s.health)
	api.Get("/slides", s.listSlides)
	if opts.PublicURL != "" {
		api.Get("/qr", s.qr)
	}
	return s
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run(addr string) error {
	s.log.Info(module, "Server listening", map[string]interface{}{"addr": addr})
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug(module, "Request", map[string]interface{}{
		"method":   c.Method(),
		"path":     c.Path(),
		"status":   c.Response().StatusCode(),
		"duration": time.Since(start).String(),
	})
	return err
}

func (s *Server) health(c *fiber.Ctx) error {
	if !s.opts.Resources {
		return c.JSON(fiber.Map{"status": "ok"})
	}
	res, err := system.ReadResources(c.UserContext())
	if err != nil {
		s.log.Warn(module, "Resource snapshot failed", map[string]interface{}{"error": err.Error()})
		return c.JSON(fiber.Map{"status": "ok"})
	}
	return c.JSON(fiber.Map{"status": "ok", "resources": res})
}

// listSlides returns the raw records. An empty source is an empty list; a
// failing one is a 502 so the client shows its retry affordance.
func (s *Server) listSlides(c *fiber.Ctx) error {
	records, err := s.opts.Source.Load(c.UserContext())
	switch {
	case errors.Is(err, source.ErrEmpty):
		records = []slides.Record{}
	case err != nil:
		s.log.Error(module, "Slide source failed", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	case records == nil:
		records = []slides.Record{}
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(records)
}
