package web

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bookshelf/internal/core"
)

// Entity is a service that can be mounted on the router.
type Entity interface {
	Info() core.EntityInfo
	Limiter() *core.IngestLimiter
	mount(r chi.Router, maxBody int64, batchLimit func(http.Handler) http.Handler)
}

// Lister is a read-only listing served beside an entity's own routes.
type Lister interface {
	Name() string
	List(ctx context.Context, column, keyword string) core.Response
}

// MountOption adds routes to a mounted entity.
type MountOption func(*mountOptions)

type mountOptions struct {
	listings []Lister
}

// WithListing serves l at GET /with-<name>, filtered like the entity list.
func WithListing(l Lister) MountOption {
	return func(o *mountOptions) { o.listings = append(o.listings, l) }
}

// Mount adapts an entity service for NewServer.
func Mount[T any](svc *core.Service[T], opts ...MountOption) Entity {
	e := &entity[T]{svc: svc}
	for _, opt := range opts {
		opt(&e.opts)
	}
	return e
}

type entity[T any] struct {
	svc     *core.Service[T]
	opts    mountOptions
	maxBody int64
}

func (e *entity[T]) Info() core.EntityInfo        { return e.svc.Info() }
func (e *entity[T]) Limiter() *core.IngestLimiter { return e.svc.Limiter() }

func (e *entity[T]) mount(r chi.Router, maxBody int64, batchLimit func(http.Handler) http.Handler) {
	e.maxBody = maxBody

	r.Get("/", e.handleList)
	r.Post("/", e.handleCreate)
	r.Get("/by-ids", e.handleGetMany)
	for _, l := range e.opts.listings {
		r.Get("/with-"+l.Name(), listHandler(l))
	}

	r.Group(func(r chi.Router) {
		if batchLimit != nil {
			r.Use(batchLimit)
		}
		r.Post("/batch", e.handleBatch)
		r.Post("/import", e.handleImport)
	})

	r.Get("/by-key/{value}", e.handleGetByKey)
	r.Put("/by-key/{value}", e.handleUpdateByKey)
	r.Delete("/by-key/{value}", e.handleDeleteByKey)

	r.Delete("/range/{from}/{to}", e.handleDeleteRange)
	r.Put("/range/{from}/{to}", e.handleUpdateRange)

	r.Get("/{id}", e.handleGet)
	r.Put("/{id}", e.handleUpdateByID)
	r.Delete("/{id}", e.handleDeleteByID)
}

func (e *entity[T]) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	respond(w, r, e.svc.List(r.Context(), q.Get("filterOnColumn"), q.Get("filterKeyWord")))
}

func listHandler(l Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		respond(w, r, l.List(r.Context(), q.Get("filterOnColumn"), q.Get("filterKeyWord")))
	}
}

func (e *entity[T]) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		invalid(w, r, err)
		return
	}
	respond(w, r, e.svc.Get(r.Context(), id))
}

func (e *entity[T]) handleGetMany(w http.ResponseWriter, r *http.Request) {
	ids, err := core.ParseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		invalid(w, r, err)
		return
	}
	respond(w, r, e.svc.GetMany(r.Context(), ids))
}

// keyParam returns the unescaped {value} segment, so keys may contain
// spaces and slashes when percent-encoded.
func keyParam(r *http.Request) string {
	raw := chi.URLParam(r, "value")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (e *entity[T]) handleGetByKey(w http.ResponseWriter, r *http.Request) {
	respond(w, r, e.svc.GetByKey(r.Context(), keyParam(r)))
}

func (e *entity[T]) handleCreate(w http.ResponseWriter, r *http.Request) {
	var rec *T
	if err := decodeJSON(w, r, e.maxBody, &rec); err != nil {
		invalid(w, r, err)
		return
	}
	resp := e.svc.Create(r.Context(), rec)
	if resp.IsSuccess {
		writeResponse(w, r, http.StatusCreated, resp)
		return
	}
	respond(w, r, resp)
}

func (e *entity[T]) handleBatch(w http.ResponseWriter, r *http.Request) {
	policy, err := batchPolicy(r, e.svc.DefaultPolicy())
	if err != nil {
		invalid(w, r, err)
		return
	}
	var recs []*T
	if err := decodeJSON(w, r, e.maxBody, &recs); err != nil {
		invalid(w, r, err)
		return
	}
	e.respondBatch(w, r, e.svc.CreateBatch(r.Context(), recs, policy))
}

// handleImport accepts a CSV either as the "file" part of a multipart form
// or as the raw request body.
func (e *entity[T]) handleImport(w http.ResponseWriter, r *http.Request) {
	policy, err := batchPolicy(r, e.svc.DefaultPolicy())
	if err != nil {
		invalid(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, e.maxBody)

	var body io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(e.maxBody); err != nil {
			invalid(w, r, err)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			invalid(w, r, err)
			return
		}
		defer file.Close()
		body = file
	}

	e.respondBatch(w, r, e.svc.Import(r.Context(), body, policy))
}

// respondBatch reports a partially persisted batch as 207.
func (e *entity[T]) respondBatch(w http.ResponseWriter, r *http.Request, resp core.Response) {
	if out, ok := resp.Response.(*core.BatchOutcome[T]); ok && out.Partial() {
		writeResponse(w, r, http.StatusMultiStatus, resp)
		return
	}
	respond(w, r, resp)
}

func (e *entity[T]) handleUpdateByKey(w http.ResponseWriter, r *http.Request) {
	var rec *T
	if err := decodeJSON(w, r, e.maxBody, &rec); err != nil {
		invalid(w, r, err)
		return
	}
	respond(w, r, e.svc.UpdateByKey(r.Context(), keyParam(r), rec))
}

func (e *entity[T]) handleDeleteByKey(w http.ResponseWriter, r *http.Request) {
	respond(w, r, e.svc.DeleteByKey(r.Context(), keyParam(r)))
}

func (e *entity[T]) handleUpdateByID(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		invalid(w, r, err)
		return
	}
	var rec *T
	if err := decodeJSON(w, r, e.maxBody, &rec); err != nil {
		invalid(w, r, err)
		return
	}
	respond(w, r, e.svc.UpdateByID(r.Context(), id, rec))
}

func (e *entity[T]) handleDeleteByID(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		invalid(w, r, err)
		return
	}
	respond(w, r, e.svc.DeleteByID(r.Context(), id))
}

func rangeParams(r *http.Request) (int64, int64, error) {
	from, err := idParam(r, "from")
	if err != nil {
		return 0, 0, err
	}
	to, err := idParam(r, "to")
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

func (e *entity[T]) handleDeleteRange(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeParams(r)
	if err != nil {
		invalid(w, r, err)
		return
	}
	respond(w, r, e.svc.DeleteRange(r.Context(), from, to))
}

func (e *entity[T]) handleUpdateRange(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeParams(r)
	if err != nil {
		invalid(w, r, err)
		return
	}
	var set []core.Assignment
	if err := decodeJSON(w, r, e.maxBody, &set); err != nil {
		invalid(w, r, err)
		return
	}
	respond(w, r, e.svc.UpdateRange(r.Context(), from, to, set))
}
