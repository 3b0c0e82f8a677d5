package uploadhttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sir_venger/upload_lite/internal/usecase/uploadsvc"
)

// Server обслуживает Upload API поверх координатора загрузок.
type Server struct {
	Uploads uploadsvc.Service

	// maxChunkSize ограничивает заявленный размер части; 0 — без ограничения.
	maxChunkSize int64
}

// New создаёт HTTP-обработчик сервиса загрузки.
func New(uploads uploadsvc.Service, maxChunkSize int64) http.Handler {
	srv := &Server{
		Uploads:      uploads,
		maxChunkSize: maxChunkSize,
	}

	return srv.routes()
}

// routes регистрирует обработчики сессий, частей и здоровья.
func (a *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/uploads", a.postUpload)
	r.Route("/uploads/{sessionID}", func(sr chi.Router) {
		sr.Get("/", a.getStatus)
		sr.Delete("/", a.deleteUpload)
		sr.Put("/chunks/{idx}", a.putChunk)
	})

	r.Get("/health", a.health)

	return r
}
