// Package web provides the embedded web UI for the Lox playground.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/lemonberrylabs/loxwalk/pkg/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// recentLimit bounds the runs shown on the dashboard.
const recentLimit = 10

// Handler serves the web UI pages.
type Handler struct {
	store   *store.Store
	funcMap template.FuncMap
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive string
	Data      interface{}
}

// New creates a new web UI handler.
func New(s *store.Store) *Handler {
	return &Handler{
		store: s,
		funcMap: template.FuncMap{
			"timeAgo":    timeAgo,
			"formatTime": formatTime,
			"duration":   duration,
			"stateClass": stateClass,
			"stateIcon":  stateIcon,
			"truncate":   truncate,
			"countLines": countLines,
		},
	}
}

func (h *Handler) render(c *fiber.Ctx, page string, navActive string, data interface{}) error {
	// Each page is parsed with the layout on its own so that define blocks
	// from different pages do not collide.
	tmpl, err := template.New("").Funcs(h.funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("template error: %v", err))
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, pageData{NavActive: navActive, Data: data}); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.dashboard)
	app.Get("/ui/scripts/:id", h.scriptDetail)
	app.Get("/ui/runs/:id", h.runDetail)

	// Redirect root to UI
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// --- Page Data Types ---

type dashboardContent struct {
	Scripts        []*scriptView
	RecentRuns     []*runView
	SucceededCount int
	FailedCount    int
	RejectedCount  int
}

type scriptView struct {
	*store.Script
	RunCount int
}

type runView struct {
	*store.Run
	ScriptName string
}

type scriptDetailContent struct {
	Script *store.Script
	Runs   []*runView
}

type runDetailContent struct {
	Run        *store.Run
	ScriptName string
}

type notFoundContent struct {
	Message string
}

// --- Page Handlers ---

func (h *Handler) dashboard(c *fiber.Ctx) error {
	scripts := h.store.ListScripts()
	names := make(map[string]string, len(scripts))
	views := lo.Map(scripts, func(sc *store.Script, _ int) *scriptView {
		names[sc.ID] = sc.Name
		return &scriptView{Script: sc, RunCount: len(h.store.ListRuns(sc.ID))}
	})

	content := dashboardContent{Scripts: views}
	for _, r := range h.store.RecentRuns(0) {
		switch r.State {
		case store.RunSucceeded:
			content.SucceededCount++
		case store.RunFailed:
			content.FailedCount++
		case store.RunRejected:
			content.RejectedCount++
		}
		if len(content.RecentRuns) < recentLimit {
			content.RecentRuns = append(content.RecentRuns, &runView{Run: r, ScriptName: names[r.ScriptID]})
		}
	}

	return h.render(c, "dashboard.html", "dashboard", content)
}

func (h *Handler) scriptDetail(c *fiber.Ctx) error {
	id := c.Params("id")
	sc, err := h.store.GetScript(id)
	if err != nil {
		return h.notFound(c, fmt.Sprintf("Script '%s' not found", id))
	}

	runs := h.store.ListRuns(sc.ID)
	views := make([]*runView, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		views = append(views, &runView{Run: runs[i], ScriptName: sc.Name})
	}

	return h.render(c, "script_detail.html", "scripts", scriptDetailContent{
		Script: sc,
		Runs:   views,
	})
}

func (h *Handler) runDetail(c *fiber.Ctx) error {
	id := c.Params("id")
	run, err := h.store.GetRun(id)
	if err != nil {
		return h.notFound(c, fmt.Sprintf("Run '%s' not found", id))
	}

	content := runDetailContent{Run: run}
	if run.ScriptID != "" {
		if sc, err := h.store.GetScript(run.ScriptID); err == nil {
			content.ScriptName = sc.Name
		}
	}
	return h.render(c, "run_detail.html", "runs", content)
}

func (h *Handler) notFound(c *fiber.Ctx, msg string) error {
	c.Status(fiber.StatusNotFound)
	return h.render(c, "not_found.html", "", notFoundContent{Message: msg})
}

// --- Template Helpers ---

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func duration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "-"
	}
	return formatDuration(end.Sub(start))
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, s)
}

func stateClass(state store.RunState) string {
	switch state {
	case store.RunSucceeded:
		return "state-succeeded"
	case store.RunFailed:
		return "state-failed"
	case store.RunRejected:
		return "state-rejected"
	default:
		return ""
	}
}

func stateIcon(state store.RunState) template.HTML {
	switch state {
	case store.RunSucceeded:
		return "&#10003;"
	case store.RunFailed:
		return "&#10007;"
	case store.RunRejected:
		return "&#9632;"
	default:
		return "&#8226;"
	}
}

// truncate cuts s to maxLen runes.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}
