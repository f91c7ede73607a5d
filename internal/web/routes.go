package web

import (
	"github.com/kozaktomas/face-registry/internal/web/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() {
	facesHandler := handlers.NewFacesHandler(s.registry, s.logger)

	s.router.Get("/health", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/register_face", facesHandler.Register)
	s.router.Post("/recognize_face", facesHandler.Recognize)
	s.router.Get("/get_registered_faces", facesHandler.List)
	s.router.Delete("/delete_face/{name}", facesHandler.Delete)
	s.router.Get("/similar_faces/{name}", facesHandler.Similar)
}
