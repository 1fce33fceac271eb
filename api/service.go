// Package api is the response boundary of the engines: every operation
// returns a Response holding a message, a status code and either the data
// or the errors of the request. Handler serves the operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/exposure"
	"github.com/syssam/ormapi/mutation"
	ql "github.com/syssam/ormapi/querylanguage"
)

// Response is the result of an operation.
type Response struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	// Data holds the page of a list request.
	Data *exposure.Page `json:"data,omitempty"`
	// Item holds the record of the other requests.
	Item   ormapi.Record `json:"item,omitempty"`
	Errors any           `json:"errors,omitempty"`
}

// Service runs the operations of the engines and translates their errors
// into responses.
type Service struct {
	reader *exposure.Engine
	writer *mutation.Engine
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger of unexpected failures.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService returns a service reading with reader and writing with writer.
func NewService(reader *exposure.Engine, writer *mutation.Engine, opts ...ServiceOption) *Service {
	s := &Service{reader: reader, writer: writer, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the page of records of m requested by p.
func (s *Service) List(ctx context.Context, m ormapi.Model, p *ql.Params) *Response {
	return s.do(ctx, m, "list", func() (*Response, error) {
		page, err := s.reader.FetchCollection(ctx, m, p)
		if err != nil {
			return nil, err
		}
		return &Response{Status: http.StatusOK, Message: ormapi.DisplayName(m) + " list", Data: page}, nil
	})
}

// Get returns the record of m with primary key id.
func (s *Service) Get(ctx context.Context, m ormapi.Model, id any, p *ql.Params) *Response {
	return s.do(ctx, m, "get", func() (*Response, error) {
		record, err := s.reader.FetchByID(ctx, m, id, p)
		if err != nil {
			return nil, err
		}
		return &Response{Status: http.StatusOK, Message: ormapi.DisplayName(m) + " retrieved", Item: record}, nil
	})
}

// Create creates a record of m from body.
func (s *Service) Create(ctx context.Context, m ormapi.Model, body ormapi.Record, p *ql.Params) *Response {
	return s.do(ctx, m, "create", func() (*Response, error) {
		record, err := s.writer.Create(ctx, m, body, p)
		if err != nil {
			return nil, err
		}
		return &Response{Status: http.StatusCreated, Message: ormapi.DisplayName(m) + " created successfully!", Item: record}, nil
	})
}

// Update updates the record of m with primary key id from body.
func (s *Service) Update(ctx context.Context, m ormapi.Model, id any, body ormapi.Record, p *ql.Params) *Response {
	return s.do(ctx, m, "update", func() (*Response, error) {
		record, err := s.writer.Update(ctx, m, id, body, p)
		if err != nil {
			return nil, err
		}
		return &Response{Status: http.StatusOK, Message: ormapi.DisplayName(m) + " updated successfully!", Item: record}, nil
	})
}

// Delete deletes the record of m with primary key id, and the parents
// listed in p.
func (s *Service) Delete(ctx context.Context, m ormapi.Model, id any, p *ql.Params) *Response {
	return s.do(ctx, m, "delete", func() (*Response, error) {
		record, err := s.writer.Delete(ctx, m, id, p)
		if err != nil {
			return nil, err
		}
		return &Response{Status: http.StatusOK, Message: ormapi.DisplayName(m) + " deleted successfully", Item: record}, nil
	})
}

// do runs fn and converts its error, or panic, into a response.
func (s *Service) do(ctx context.Context, m ormapi.Model, op string, fn func() (*Response, error)) (resp *Response) {
	defer func() {
		if v := recover(); v != nil {
			s.logger.ErrorContext(ctx, "operation panicked", "model", m.Name(), "op", op, "panic", v, "stack", string(debug.Stack()))
			resp = s.Fail(ctx, m, &ormapi.UnexpectedError{Err: fmt.Errorf("panic: %v", v)})
		}
	}()
	resp, err := fn()
	if err != nil {
		return s.Fail(ctx, m, err)
	}
	return resp
}

// Fail returns the response of a failed operation on m.
func (s *Service) Fail(ctx context.Context, m ormapi.Model, err error) *Response {
	var (
		verr *ormapi.ValidationError
		aerr *ormapi.AuthorizationError
		nf   *ormapi.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		return &Response{Status: http.StatusUnprocessableEntity, Message: "The given data was invalid.", Errors: verr.Messages}
	case errors.As(err, &aerr):
		return &Response{Status: http.StatusForbidden, Message: aerr.Message}
	case errors.As(err, &nf):
		name := ormapi.DisplayName(m)
		if nf.Nested || nf.Model != m.Name() {
			name = nf.Model
		}
		return &Response{Status: ormapi.Status(err), Message: name + " not found", Errors: map[string]any{"id": nf.ID}}
	}
	var uerr *ormapi.UnexpectedError
	if !errors.As(err, &uerr) {
		uerr = &ormapi.UnexpectedError{Err: err}
	}
	s.logger.ErrorContext(ctx, "unexpected error", "model", m.Name(), "error", err)
	return &Response{
		Status:  http.StatusInternalServerError,
		Message: "Unexpected error",
		Errors: map[string]string{
			"exception": uerr.Exception(),
			"detail":    uerr.Err.Error(),
		},
	}
}
