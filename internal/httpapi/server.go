// Package httpapi serves the optional read-only status API: course metadata,
// the session list, a search endpoint and the armed reminder snapshot.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/cors"

	"github.com/zey-2/tg-prog-foundation-bot/internal/course"
	"github.com/zey-2/tg-prog-foundation-bot/internal/sched"
	"github.com/zey-2/tg-prog-foundation-bot/pkg/logx"
)

type Config struct {
	Addr           string
	CacheTTL       time.Duration
	AllowedOrigins []string
}

// Armer exposes the scheduler's installed one-shot jobs.
type Armer interface {
	Armed() []sched.JobInfo
}

type Server struct {
	cfg    Config
	course *course.Course
	loc    *time.Location
	armer  Armer
	log    logx.Logger

	cache *gocache.Cache
	srv   *http.Server
}

type sessionDTO struct {
	ID           string `json:"id"`
	Lecture      string `json:"lecture"`
	Label        string `json:"label"`
	Start        string `json:"start"`
	End          string `json:"end"`
	ModeLocation string `json:"mode_location,omitempty"`
	Venue        string `json:"venue,omitempty"`
	Online       bool   `json:"online"`
}

func New(cfg Config, c *course.Course, loc *time.Location, armer Armer, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8880"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		cfg:    cfg,
		course: c,
		loc:    loc,
		armer:  armer,
		log:    log,
		cache:  gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	s.routes(engine)

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(engine)

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(e *gin.Engine) {
	e.GET("/healthz", s.handleHealthz)
	api := e.Group("/api")
	api.GET("/course", s.handleCourse)
	api.GET("/sessions", s.handleSessions)
	api.GET("/sessions/search", s.handleSearch)
	api.GET("/reminders", s.handleReminders)
}

func (s *Server) Start() {
	go func() {
		s.log.Info("http api listening", logx.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http api stopped", logx.Err(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCourse(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"title":         s.course.Title,
		"timezone":      s.loc.String(),
		"sessions":      len(s.course.Sessions),
		"materials_url": s.course.MaterialsURL,
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	c.JSON(http.StatusOK, s.toDTOs(s.course.Sessions))
}

func (s *Server) handleSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	key := strings.ToLower(q)
	if hit, ok := s.cache.Get(key); ok {
		c.JSON(http.StatusOK, hit)
		return
	}
	out := s.toDTOs(course.FindByQuery(s.course, q))
	s.cache.SetDefault(key, out)
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleReminders(c *gin.Context) {
	type jobDTO struct {
		Name string `json:"name"`
		At   string `json:"at"`
	}
	jobs := s.armer.Armed()
	out := make([]jobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobDTO{Name: j.Name, At: j.At.In(s.loc).Format(time.RFC3339)})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) toDTOs(sessions []course.Session) []sessionDTO {
	out := make([]sessionDTO, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionDTO{
			ID:           sess.ID,
			Lecture:      sess.Lecture,
			Label:        sess.Label,
			Start:        sess.Start.In(s.loc).Format(time.RFC3339),
			End:          sess.End.In(s.loc).Format(time.RFC3339),
			ModeLocation: sess.ModeLocation,
			Venue:        sess.Venue,
			Online:       sess.IsOnline(),
		})
	}
	return out
}
