package api

import (
	"errors"
	"fmt"

	"github.com/francoispqt/gojay"
	"github.com/surgehq/surge/internal/store"
	errors2 "github.com/surgehq/surge/pkg/errors"
	"github.com/surgehq/surge/pkg/loadtest"
	"github.com/surgehq/surge/pkg/log"
	"github.com/valyala/fasthttp"
)

const contentType = "application/json"

func writeJSON(ctx *fasthttp.RequestCtx, code int, v gojay.MarshalerJSONObject) {
	ctx.SetStatusCode(code)
	ctx.SetContentType(contentType)
	enc := gojay.BorrowEncoder(ctx)
	defer enc.Release()
	if err := enc.EncodeObject(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(ctx *fasthttp.RequestCtx, code int, e *Error) {
	ctx.ResetBody()
	writeJSON(ctx, code, &ErrorResponse{Error: e})
}

// toError maps an error of the coordinator to a status code and error body
func toError(err error) (int, *Error) {
	var (
		verr *errors2.ValidationError
		dup  *store.ErrDuplicateID
	)
	switch {
	case errors.As(err, &verr):
		return fasthttp.StatusBadRequest, &Error{Kind: KindValidation, Message: err.Error(), Fields: verr.Fields()}
	case errors.Is(err, errors2.ErrNotFound):
		return fasthttp.StatusNotFound, &Error{Kind: KindNotFound, Message: err.Error()}
	case errors.Is(err, errors2.ErrAlreadyRunning):
		return fasthttp.StatusConflict, &Error{Kind: KindAlreadyRunning, Message: err.Error()}
	case errors.Is(err, errors2.ErrNotRunning):
		return fasthttp.StatusConflict, &Error{Kind: KindNotRunning, Message: err.Error()}
	case errors.As(err, &dup):
		return fasthttp.StatusConflict, &Error{Kind: KindConflict, Message: err.Error()}
	}
	return fasthttp.StatusInternalServerError, &Error{Kind: KindInternal, Message: err.Error()}
}

func handleError(ctx *fasthttp.RequestCtx, err error) {
	code, e := toError(err)
	if code == fasthttp.StatusInternalServerError {
		log.Error().Err(err).Bytes("uri", ctx.RequestURI()).Msg("request failed")
	}
	writeError(ctx, code, e)
}

func idParam(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}

func (s *Server) create(ctx *fasthttp.RequestCtx) {
	def := &loadtest.Definition{}
	if err := gojay.UnmarshalJSONObject(ctx.PostBody(), def); err != nil {
		handleError(ctx, errors2.NewValidationError("body", fmt.Sprintf("invalid json: %s", err.Error())))
		return
	}
	created, err := s.coord.Create(ctx, def)
	if err != nil {
		handleError(ctx, err)
		return
	}
	rec, err := s.coord.Get(ctx, created.ID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, NewLoadTest(rec))
}

func (s *Server) list(ctx *fasthttp.RequestCtx) {
	f := store.Filter{CollectionID: string(ctx.QueryArgs().Peek("collection_id"))}
	recs, err := s.coord.List(ctx, f)
	if err != nil {
		handleError(ctx, err)
		return
	}
	resp := &ListResponse{LoadTests: make(LoadTests, 0, len(recs))}
	for _, r := range recs {
		resp.LoadTests = append(resp.LoadTests, NewLoadTest(r))
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) get(ctx *fasthttp.RequestCtx) {
	rec, err := s.coord.Get(ctx, idParam(ctx))
	if err != nil {
		handleError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, NewLoadTest(rec))
}

func (s *Server) start(ctx *fasthttp.RequestCtx) {
	id := idParam(ctx)
	if err := s.coord.Start(ctx, id); err != nil {
		handleError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusAccepted, &Ack{ID: id, State: string(loadtest.StateRunning)})
}

func (s *Server) stop(ctx *fasthttp.RequestCtx) {
	id := idParam(ctx)
	if err := s.coord.Stop(ctx, id); err != nil {
		handleError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusAccepted, &Ack{ID: id, State: "stopping"})
}

func (s *Server) status(ctx *fasthttp.RequestCtx) {
	st, err := s.coord.Status(ctx, idParam(ctx))
	if err != nil {
		handleError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, NewStatus(st))
}

func (s *Server) delete(ctx *fasthttp.RequestCtx) {
	id := idParam(ctx)
	if err := s.coord.Delete(ctx, id); err != nil {
		handleError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, &Ack{ID: id, Deleted: true})
}

type health struct {
	running int
}

func (h *health) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("status", "ok")
	enc.IntKey("running", h.running)
}

func (h *health) IsNil() bool {
	return h == nil
}

func (s *Server) healthz(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, &health{running: len(s.coord.Running())})
}
