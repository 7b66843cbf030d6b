package web

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mogaika/anim_decompressor/config"
	"github.com/mogaika/anim_decompressor/status"
)

type Server struct {
	lib             *Library
	hub             *status.Hub
	settings        string
	framesPerSecond float32
	registry        *prometheus.Registry
	logger          *zap.Logger
}

func NewServer(lib *Library, hub *status.Hub, cfg config.ToolConfig, logger *zap.Logger) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(lib.Database().PrometheusCollectors()...)
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "anim",
		Subsystem: "status",
		Name:      "clients",
		Help:      "Connected status websocket clients.",
	}, func() float64 { return float64(hub.NumClients()) }))

	return &Server{
		lib:             lib,
		hub:             hub,
		settings:        cfg.Settings,
		framesPerSecond: cfg.FramesPerSecond,
		registry:        registry,
		logger:          logger.With(zap.String("service", "web")),
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/{format:json|yaml}/clips", s.HandlerClips)
	r.HandleFunc("/{format:json|yaml}/clips/{name}", s.HandlerClip)
	r.HandleFunc("/{format:json|yaml}/clips/{name}/pose", s.HandlerClipPose)
	r.HandleFunc("/dump/clips/{name}", s.HandlerDumpClip)
	r.HandleFunc("/gltf/clips/{name}", s.HandlerGltfClip)
	r.HandleFunc("/export/clips/{name}/poses", s.HandlerExportPoses)
	r.HandleFunc("/upload/clips/{name}", s.HandlerUploadClip).Methods(http.MethodPost)
	r.HandleFunc("/action/clips/{name}/tiers/{tier}/{action:in|out}", s.HandlerActionTier)
	r.HandleFunc("/ws/clips/{name}/play", s.HandlerPlay)
	r.HandleFunc("/ws/status", s.HandlerStatus)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	h = handlers.LoggingHandler(os.Stdout, h)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("Starting server", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Handler())
}
