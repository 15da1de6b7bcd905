// Package service exposes the notification workflow as a single connect
// endpoint that speaks plain JSON.
package service

import (
	"context"
	"errors"
	"net/http"

	"platonus-notifier/internal/components/assert"
	"platonus-notifier/internal/components/telemetry"
	"platonus-notifier/internal/platonus"

	"connectrpc.com/connect"
)

const NotificationsProcedure = "/notifications"

const (
	report_service_request_notification = "service.request-notification"
	report_service_ignored_credentials   = "service.ignored-credentials"
)

// Runner runs the notification workflow, *platonus.Workflow implements it.
//
// note: fault injection point
type Runner interface {
	Run(ctx context.Context, req platonus.Request) (platonus.Result, error)
}

type NotificationRequest struct {
	Iin  *string `json:"iin,omitempty"`
	Code *string `json:"code,omitempty"`

	// Username and Password are accepted for compatibility with older callers
	// and never used, the service account always comes from configuration.
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}

type NotificationResponse struct {
	Html      string   `json:"html"`
	Iin       string   `json:"iin"`
	Fio       string   `json:"fio"`
	StudentId *string  `json:"student_id"`
	Row       []string `json:"row"`
}

type NotificationService struct {
	runner Runner
	tel    telemetry.API
}

func NewNotificationService(runner Runner, tel telemetry.API) NotificationService {
	assert.NotNil(runner, "runner")
	assert.NotNil(tel, "tel")
	return NotificationService{
		runner: runner,
		tel:    telemetry.NewScopedAPI("service", tel),
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func (s NotificationService) RequestNotification(ctx context.Context, req *connect.Request[NotificationRequest]) (*connect.Response[NotificationResponse], error) {
	if req.Msg.Username != nil || req.Msg.Password != nil {
		s.tel.ReportWarning(
			report_service_ignored_credentials,
			"request carried credentials, the configured service account is used instead",
		)
	}

	result, err := s.runner.Run(ctx, platonus.Request{
		Identifier: deref(req.Msg.Iin),
		Code:       deref(req.Msg.Code),
	})
	if err != nil {
		s.tel.ReportDebug("request failed", report_service_request_notification, err)
		return nil, connectError(err)
	}

	res := NotificationResponse{
		Html: string(result.DetailDocument),
		Iin:  result.SearchIdentifier,
		Fio:  result.DisplayName,
		Row:  result.Fields,
	}
	if result.HasInternalId() {
		studentId := result.InternalId
		res.StudentId = &studentId
	}
	if res.Row == nil {
		res.Row = []string{}
	}
	return connect.NewResponse(&res), nil
}

// connectError sorts a run failure into "the caller has something to fix"
// and "something went wrong on our side".
func connectError(err error) *connect.Error {
	switch {
	case errors.Is(err, platonus.ErrMissingIdentifier),
		errors.Is(err, platonus.ErrMissingConfiguration):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case platonus.IsWorkflowError(err):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// NewHandler returns the path to mount the notification endpoint on, and its handler.
func NewHandler(svc NotificationService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	return NotificationsProcedure, connect.NewUnaryHandler(
		NotificationsProcedure,
		svc.RequestNotification,
		opts...,
	)
}
