// Package api implements the REST API of the Lox playground: ad-hoc runs,
// stored scripts and their run history.
package api

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/heptiolabs/healthcheck"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
	"github.com/lemonberrylabs/loxwalk/pkg/metrics"
	"github.com/lemonberrylabs/loxwalk/pkg/service"
	"github.com/lemonberrylabs/loxwalk/pkg/store"
)

// maxGoroutines is the liveness threshold of the goroutine count check.
const maxGoroutines = 10000

// Server is the HTTP API server.
type Server struct {
	app    *fiber.App
	svc    *service.Service
	store  *store.Store
	logger *zap.Logger
}

// New creates a new API server.
func New(svc *service.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{
		svc:    svc,
		store:  svc.Store(),
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	app.Use(srv.logRequests)

	app.Get("/healthz", srv.health)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	checks := healthcheck.NewHandler()
	checks.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	checks.AddReadinessCheck("store", srv.store.Ping)
	app.Get("/live", adaptor.HTTPHandlerFunc(checks.LiveEndpoint))
	app.Get("/ready", adaptor.HTTPHandlerFunc(checks.ReadyEndpoint))

	// Ad-hoc runs
	app.Post("/v1/run", srv.runSource)
	app.Get("/v1/runs/:run", srv.getRun)

	// Scripts API
	app.Post("/v1/scripts", srv.createScript)
	app.Get("/v1/scripts", srv.listScripts)
	app.Get("/v1/scripts/:script", srv.getScript)
	app.Patch("/v1/scripts/:script", srv.updateScript)
	app.Delete("/v1/scripts/:script", srv.deleteScript)

	// Script runs
	app.Post("/v1/scripts/:script/runs", srv.runScript)
	app.Get("/v1/scripts/:script/runs", srv.listRuns)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("latency", time.Since(start)),
	)
	return err
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// --- Run Handlers ---

type runRequest struct {
	Source string `json:"source"`
}

func (s *Server) runSource(c *fiber.Ctx) error {
	var req runRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	run, err := s.svc.RunSource(c.UserContext(), req.Source)
	if err != nil {
		return sourceError(c, err)
	}
	return c.JSON(run)
}

func (s *Server) getRun(c *fiber.Ctx) error {
	run, err := s.store.GetRun(c.Params("run"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(run)
}

// --- Script Handlers ---

type scriptRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

var validScriptName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

func validName(name string) error {
	if !validScriptName.MatchString(name) || len(name) > 128 {
		return fmt.Errorf("invalid script name %q: must match %s and be at most 128 characters", name, validScriptName)
	}
	return nil
}

func (s *Server) createScript(c *fiber.Ctx) error {
	var req scriptRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if err := validName(req.Name); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	}
	if ok, err := s.validateSource(c, req.Source); !ok {
		return err
	}

	sc, err := s.store.CreateScript(req.Name, req.Source)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(sc)
}

func (s *Server) listScripts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"scripts": s.store.ListScripts(),
	})
}

func (s *Server) getScript(c *fiber.Ctx) error {
	sc, err := s.store.GetScript(c.Params("script"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(sc)
}

func (s *Server) updateScript(c *fiber.Ctx) error {
	var req scriptRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Name == "" && req.Source == "" {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "name or source is required")
	}
	if req.Name != "" {
		if err := validName(req.Name); err != nil {
			return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		}
	}
	if req.Source != "" {
		if ok, err := s.validateSource(c, req.Source); !ok {
			return err
		}
	}

	sc, err := s.store.UpdateScript(c.Params("script"), req.Name, req.Source)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(sc)
}

func (s *Server) deleteScript(c *fiber.Ctx) error {
	id := c.Params("script")
	if err := s.store.DeleteScript(id); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{
		"id":      id,
		"deleted": true,
	})
}

func (s *Server) runScript(c *fiber.Ctx) error {
	run, err := s.svc.RunScript(c.UserContext(), c.Params("script"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(run)
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	id := c.Params("script")
	if _, err := s.store.GetScript(id); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{
		"runs": s.store.ListRuns(id),
	})
}

// validateSource writes an error response and returns false when source is
// missing, too large or statically invalid.
func (s *Server) validateSource(c *fiber.Ctx, source string) (bool, error) {
	diags, err := s.svc.Validate(source)
	if err != nil {
		return false, sourceError(c, err)
	}
	if len(diags) > 0 {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    fiber.StatusBadRequest,
				"message": "invalid Lox source:\n" + diagnostics.Format(diags),
				"status":  "INVALID_ARGUMENT",
				"details": diags,
			},
		})
	}
	return true, nil
}

// --- Directory Loading ---

// LoadDir deploys every .lox file in dir as a script. The file name (sans
// extension, lowercased) becomes the script name; an existing script with
// that name is updated. Files that fail validation are skipped with a
// warning.
func (s *Server) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading scripts directory: %w", err)
	}

	files := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		return !e.IsDir() && filepath.Ext(e.Name()) == ".lox"
	})

	loaded := 0
	for _, entry := range files {
		file := entry.Name()
		base := strings.TrimSuffix(file, ".lox")
		name := strings.ToLower(base)
		if name != base {
			s.logger.Warn("lowercased script name", zap.String("name", name), zap.String("file", file))
		}
		if err := validName(name); err != nil {
			s.logger.Warn("skipping file", zap.String("file", file), zap.Error(err))
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			s.logger.Warn("could not read file", zap.String("file", file), zap.Error(err))
			continue
		}
		source := string(data)

		diags, err := s.svc.Validate(source)
		if err != nil || len(diags) > 0 {
			if err == nil {
				err = errors.New(diagnostics.Format(diags))
			}
			s.logger.Warn("could not validate file", zap.String("file", file), zap.Error(err))
			continue
		}

		if existing, err := s.store.GetScriptByName(name); err == nil {
			_, err = s.store.UpdateScript(existing.ID, "", source)
			if err != nil {
				s.logger.Warn("could not update script", zap.String("file", file), zap.Error(err))
				continue
			}
		} else if _, err := s.store.CreateScript(name, source); err != nil {
			s.logger.Warn("could not deploy script", zap.String("file", file), zap.Error(err))
			continue
		}

		loaded++
		s.logger.Info("loaded script", zap.String("name", name), zap.String("file", file))
	}

	s.logger.Info("loaded scripts from directory", zap.Int("count", loaded), zap.String("dir", dir))
	return loaded, nil
}

// --- Helpers ---

func apiError(c *fiber.Ctx, code int, status, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apiError(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		return apiError(c, fiber.StatusConflict, "ALREADY_EXISTS", err.Error())
	default:
		return apiError(c, fiber.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func sourceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrEmptySource):
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case errors.Is(err, service.ErrSourceTooLarge):
		return apiError(c, fiber.StatusRequestEntityTooLarge, "RESOURCE_EXHAUSTED", err.Error())
	default:
		return apiError(c, fiber.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
