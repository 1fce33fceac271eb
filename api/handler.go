package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/ormapi"
	ql "github.com/syssam/ormapi/querylanguage"
)

// HeaderRequestID carries the id of a request. Incoming values are kept.
const HeaderRequestID = "X-Request-Id"

// Handler serves the records of registered models:
//
//	GET    /{resource}       list
//	GET    /{resource}/{id}  read
//	POST   /{resource}       create
//	PUT    /{resource}/{id}  update (PATCH is accepted too)
//	DELETE /{resource}/{id}  delete
//
// Resources are the route names of the models.
type Handler struct {
	service   *Service
	registry  *ormapi.Registry
	mux       *http.ServeMux
	maxMemory int64
	perPage   int
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMaxMemory sets the bytes of a multipart body kept in memory. The rest
// of the files is stored in temporary files.
func WithMaxMemory(n int64) HandlerOption {
	return func(h *Handler) { h.maxMemory = n }
}

// WithPerPage sets the page size of requests that do not set per_page.
func WithPerPage(n int) HandlerOption {
	return func(h *Handler) { h.perPage = n }
}

// WithHandlerLogger sets the request logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler returns a handler serving every model of r under prefix.
func NewHandler(s *Service, r *ormapi.Registry, prefix string, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:   s,
		registry:  r,
		mux:       http.NewServeMux(),
		maxMemory: 32 << 20,
		perPage:   ql.DefaultPerPage,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	prefix = strings.TrimSuffix(prefix, "/")
	h.mux.HandleFunc("GET "+prefix+"/{resource}", h.route(h.list))
	h.mux.HandleFunc("POST "+prefix+"/{resource}", h.route(h.create))
	h.mux.HandleFunc("GET "+prefix+"/{resource}/{id}", h.route(h.get))
	h.mux.HandleFunc("PUT "+prefix+"/{resource}/{id}", h.route(h.update))
	h.mux.HandleFunc("PATCH "+prefix+"/{resource}/{id}", h.route(h.update))
	h.mux.HandleFunc("DELETE "+prefix+"/{resource}/{id}", h.route(h.delete))
	return h
}

// Mount registers the routes of m on mux under path, such as "/api/posts".
func (h *Handler) Mount(mux *http.ServeMux, path string, m ormapi.Model) {
	path = strings.TrimSuffix(path, "/")
	model := func(next func(http.ResponseWriter, *http.Request, ormapi.Model)) http.HandlerFunc {
		return h.observe(func(w http.ResponseWriter, r *http.Request) { next(w, r, m) })
	}
	mux.Handle("GET "+path, model(h.list))
	mux.Handle("POST "+path, model(h.create))
	mux.Handle("GET "+path+"/{id}", model(h.get))
	mux.Handle("PUT "+path+"/{id}", model(h.update))
	mux.Handle("PATCH "+path+"/{id}", model(h.update))
	mux.Handle("DELETE "+path+"/{id}", model(h.delete))
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// route resolves the model of the {resource} path value.
func (h *Handler) route(next func(http.ResponseWriter, *http.Request, ormapi.Model)) http.HandlerFunc {
	return h.observe(func(w http.ResponseWriter, r *http.Request) {
		m, ok := h.registry.ByRoute(r.PathValue("resource"))
		if !ok {
			write(w, &Response{Status: http.StatusNotFound, Message: "Resource not found"})
			return
		}
		next(w, r, m)
	})
}

// observe assigns the request id and logs the handled request.
func (h *Handler) observe(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		h.logger.InfoContext(r.Context(), "request handled",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, m ormapi.Model) {
	p, err := h.query(r)
	if err != nil {
		write(w, h.service.Fail(r.Context(), m, err))
		return
	}
	write(w, h.service.List(r.Context(), m, p))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, m ormapi.Model) {
	p, err := h.query(r)
	if err != nil {
		write(w, h.service.Fail(r.Context(), m, err))
		return
	}
	write(w, h.service.Get(r.Context(), m, r.PathValue("id"), p))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, m ormapi.Model) {
	p, body, err := h.params(r)
	if err != nil {
		write(w, h.service.Fail(r.Context(), m, err))
		return
	}
	write(w, h.service.Create(r.Context(), m, body, p))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, m ormapi.Model) {
	p, body, err := h.params(r)
	if err != nil {
		write(w, h.service.Fail(r.Context(), m, err))
		return
	}
	write(w, h.service.Update(r.Context(), m, r.PathValue("id"), body, p))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, m ormapi.Model) {
	p, body, err := h.params(r)
	if err == nil {
		_, err = p.Extract(body)
	}
	if err != nil {
		write(w, h.service.Fail(r.Context(), m, err))
		return
	}
	write(w, h.service.Delete(r.Context(), m, r.PathValue("id"), p))
}

// query parses the query string of r.
func (h *Handler) query(r *http.Request) (*ql.Params, error) {
	q := r.URL.Query()
	p, err := ql.Parse(q)
	if err != nil {
		return nil, err
	}
	if !q.Has(ql.KeyPerPage) && h.perPage > 0 {
		p.PerPage = h.perPage
	}
	return p, nil
}

// params parses the query string and the body of r.
func (h *Handler) params(r *http.Request) (*ql.Params, ormapi.Record, error) {
	p, err := h.query(r)
	if err != nil {
		return nil, nil, err
	}
	body, err := h.body(r)
	if err != nil {
		return nil, nil, err
	}
	return p, body, nil
}

// body decodes a JSON, urlencoded or multipart body.
func (h *Handler) body(r *http.Request) (ormapi.Record, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(h.maxMemory); err != nil {
			return nil, ormapi.ValidationErrorf("body", "The request body is not a valid multipart form.")
		}
		return decodeForm(r.MultipartForm.Value, r.MultipartForm.File), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, ormapi.ValidationErrorf("body", "The request body is not a valid form.")
		}
		return decodeForm(r.PostForm, nil), nil
	}
	body := make(ormapi.Record)
	err := json.NewDecoder(r.Body).Decode(&body)
	switch {
	case errors.Is(err, io.EOF):
		return body, nil
	case err != nil:
		return nil, ormapi.ValidationErrorf("body", "The request body must be a JSON object.")
	}
	return body, nil
}

func write(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp)
}

// recorder captures the status written by a handler.
type recorder struct {
	http.ResponseWriter
	status int
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
