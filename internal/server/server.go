package server

import (
	"context"
	goerrors "errors"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"facewatch/internal/dashboard"
	"facewatch/internal/hub"
	"facewatch/internal/jobs"
	"facewatch/internal/model"
	"facewatch/internal/pipeline"
	"facewatch/internal/resolver"
	"facewatch/pkg/log"
)

// FrameDecoder turns an encoded still image into a frame.
type FrameDecoder func(buf []byte) (image.Image, error)

type AlertService interface {
	Create(ctx context.Context, alertType, description, location string) (*model.SecurityAlert, error)
	ListActive(ctx context.Context, start, limit int) ([]model.SecurityAlert, int64, error)
	Get(ctx context.Context, id int) (*model.SecurityAlert, error)
	Dismiss(ctx context.Context, id int) (*model.SecurityAlert, error)
}

type BatchSubmitter interface {
	Submit(videoPath string, mode resolver.Mode) (*jobs.Job, error)
}

type JobReader interface {
	Get(id string) (*jobs.Job, error)
}

// Deps wires the server to the pipeline and its stores. Nil members disable
// the routes that need them.
type Deps struct {
	Hub        *hub.Hub
	Live       *pipeline.Live
	Decode     FrameDecoder
	Batch      BatchSubmitter
	Jobs       JobReader
	Alerts     AlertService
	Aggregator dashboard.Aggregator
	Archiver   pipeline.Archiver
}

type Server struct {
	conf       *Config
	deps       Deps
	httpServer *http.Server
	logger     *logrus.Entry
}

func NewServer(ctx context.Context, conf *Config, deps Deps) (*Server, error) {
	if deps.Hub == nil {
		return nil, goerrors.New("server needs a hub")
	}
	if conf.WriteTimeout <= 0 {
		conf.WriteTimeout = 10 * time.Second
	}
	s := &Server{
		conf:   conf,
		deps:   deps,
		logger: log.ComponentLogger(ctx, "server"),
	}

	return s, nil
}

func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader(log.HttpXRequestId)
		if requestId == "" {
			requestId = strings.ReplaceAll(uuid.New().String(), "-", "")
		}
		c.Header(log.HttpXRequestId, requestId)
		c.Request = c.Request.WithContext(log.WithRequestId(c.Request.Context(), requestId))
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := time.Now()
		c.Next()
		latency := time.Since(t)
		status := c.Writer.Status()

		log.GetLogger(c.Request.Context()).Info("ip: ", c.ClientIP(), " method: ", c.Request.Method, " path: ",
			c.Request.URL.Path, " status: ", status, " latency: ", latency)
	}
}

func (s *Server) Start() {
	gin.SetMode(gin.ReleaseMode)
	router := s.SetUpRouter()
	pprof.Register(router)
	s.httpServer = &http.Server{
		Addr:    s.conf.Addr,
		Handler: router,
	}

	var err error
	if s.conf.SSLCert != "" && s.conf.SSLKey != "" {
		s.logger.Infof("start https server on %s", s.conf.Addr)
		err = s.httpServer.ListenAndServeTLS(s.conf.SSLCert, s.conf.SSLKey)
	} else {
		s.logger.Infof("start http server on %s", s.conf.Addr)
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && !goerrors.Is(err, http.ErrServerClosed) {
		s.logger.Fatal(err)
	}
}

// Shutdown stops accepting requests and disconnects every viewer.
func (s *Server) Shutdown() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Errorf("server forced to shutdown: %v", err)
		}
	}
	s.deps.Hub.CloseAll()
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(c *gin.Context, code int, err error) {
	c.JSON(code, ErrorResponse{
		Error: err.Error(),
	})
}

// writeInternalError logs err and answers without internal detail.
func (s *Server) writeInternalError(c *gin.Context, err error) {
	log.GetLogger(c.Request.Context()).WithError(err).Errorf("%s %s failed", c.Request.Method, c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: "internal server error",
	})
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("mode", func(fl validator.FieldLevel) bool {
			_, err := resolver.ParseMode(fl.Field().String())
			return err == nil
		})
	}
}
