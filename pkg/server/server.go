// Package server exposes capture sessions over websockets, plus session
// listings, health and Prometheus metrics over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fws "github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/hub"
	"github.com/teslashibe/go-pano/pkg/metrics"
	"github.com/teslashibe/go-pano/pkg/protocol"
	"github.com/teslashibe/go-pano/pkg/session"
)

const localsFraming = "framing"

// Config configures the network service.
type Config struct {
	// Framing is the default wire layout; ?framing= overrides it per
	// connection.
	Framing protocol.Framing

	// Linger is how long to wait for the consumer to close after the last
	// message before closing from this side.
	Linger time.Duration

	// WriteTimeout bounds each websocket write.
	WriteTimeout time.Duration

	// AccessLog enables fiber's request logger.
	AccessLog bool

	Version string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Framing:      protocol.FramingEnvelope,
		Linger:       5 * time.Second,
		WriteTimeout: 10 * time.Second,
		Version:      "dev",
	}
}

// Server is the capture host.
type Server struct {
	cfg      Config
	opts     session.Options
	app      *fiber.App
	registry *Registry
	events   *hub.Hub
	metrics  *metrics.Metrics
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the fiber app. opts is the template for every session; events
// and m may be nil. The caller runs events.Run.
func New(cfg Config, opts session.Options, events *hub.Hub, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = log.L()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.Framing == "" {
		cfg.Framing = protocol.FramingEnvelope
	}

	observers := session.Observers{}
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}
	if events != nil {
		observers = append(observers, events)
	}
	if m != nil {
		observers = append(observers, m)
	}
	opts.Observer = observers
	if opts.Logger == nil {
		opts.Logger = logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		opts:     opts,
		registry: NewRegistry(),
		events:   events,
		metrics:  m,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "pano",
		DisableStartupMessage: true,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	app := s.app

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if s.cfg.AccessLog {
		app.Use(logger.New())
	}

	// WebSocket upgrade middleware
	app.Use("/ws", s.upgrade(s.cfg.Framing))

	app.Get("/ws/panorama", websocket.New(s.handle(session.ModePanorama)))
	app.Get("/ws/frames", websocket.New(s.handle(session.ModeFrames)))
	if s.events != nil {
		app.Get("/ws/events", fws.New(func(c *fws.Conn) {
			hub.NewClient(s.events, c, c.Query("session")).Run()
		}))
	}

	// Bare host:port keeps working for consumers that predate the envelope.
	app.Get("/", s.upgrade(protocol.FramingLegacy), websocket.New(s.handle(session.ModePanorama)))

	api := app.Group("/api")
	api.Get("/sessions", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sessions": s.registry.List(),
			"count":    s.registry.Len(),
		})
	})
	api.Get("/sessions/:id", func(c *fiber.Ctx) error {
		sess, ok := s.registry.Get(c.Params("id"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
		}
		return c.JSON(sess.Info())
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":   "ok",
			"version":  s.cfg.Version,
			"sessions": s.registry.Len(),
		}
		if s.events != nil {
			body["observers"] = s.events.ClientCount()
		}
		return c.JSON(body)
	})

	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}
}

// upgrade rejects plain HTTP and resolves the connection's framing.
func (s *Server) upgrade(def protocol.Framing) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		framing := def
		if q := c.Query("framing"); q != "" {
			f, err := protocol.ParseFraming(q)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			framing = f
		}
		c.Locals(localsFraming, framing)
		return c.Next()
	}
}

// handle runs one session per connection. A reader goroutine turns a
// consumer disconnect into cancellation of the session context.
func (s *Server) handle(mode session.Mode) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		framing, _ := c.Locals(localsFraming).(protocol.Framing)
		if framing == "" {
			framing = s.cfg.Framing
		}

		opts := s.opts
		opts.Remote = c.RemoteAddr().String()
		sess := session.New(mode, opts)
		s.registry.Add(sess)
		defer s.registry.Remove(sess.ID())

		logger := s.logger.With("session", sess.ID(), "remote", opts.Remote)
		logger.Info("server: consumer connected", "mode", string(mode), "framing", string(framing))

		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()

		sender := &connSender{
			conn:    c,
			framing: framing,
			timeout: s.cfg.WriteTimeout,
			metrics: s.metrics,
		}

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			defer cancel()
			s.readLoop(ctx, c, sender)
		}()

		err := sess.Run(ctx, sender)
		switch {
		case err == nil:
			logger.Info("server: session complete")
		case errors.Is(err, context.Canceled):
			logger.Info("server: consumer disconnected", "state", sess.State().String())
		default:
			logger.Warn("server: session ended with error", "err", err)
		}

		s.linger(closed)
		sender.close()
		c.Close()
		<-closed
	}
}

// readLoop drains consumer messages until the connection fails. Envelope
// pings are answered; everything else is ignored.
func (s *Server) readLoop(ctx context.Context, c *websocket.Conn, sender *connSender) {
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if sender.framing != protocol.FramingEnvelope {
			continue
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil || msg.Type != protocol.TypePing {
			continue
		}
		ping, err := msg.GetPingData()
		if err != nil {
			continue
		}
		pong, err := protocol.NewPongMessage(ping.ID, msg.Timestamp, time.Now().UnixMilli())
		if err != nil {
			continue
		}
		if err := sender.Send(ctx, pong); err != nil {
			return
		}
	}
}

// linger waits for the consumer to close first, bounded by Linger.
func (s *Server) linger(closed <-chan struct{}) {
	if s.cfg.Linger <= 0 {
		return
	}
	t := time.NewTimer(s.cfg.Linger)
	defer t.Stop()

	select {
	case <-closed:
	case <-t.C:
	case <-s.ctx.Done():
	}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Registry returns the live session registry.
func (s *Server) Registry() *Registry { return s.registry }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown cancels running sessions and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}
