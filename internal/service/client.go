package service

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls the notification endpoint of a running server.
type Client struct {
	call  *connect.Client[NotificationRequest, NotificationResponse]
	token string
}

// NewClient creates a client for the server at baseUrl, token is sent as a
// bearer token when it is not empty.
func NewClient(httpClient connect.HTTPClient, baseUrl, token string, opts ...connect.ClientOption) Client {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return Client{
		call: connect.NewClient[NotificationRequest, NotificationResponse](
			httpClient,
			strings.TrimRight(baseUrl, "/")+NotificationsProcedure,
			opts...,
		),
		token: token,
	}
}

func (c Client) RequestNotification(ctx context.Context, msg NotificationRequest) (NotificationResponse, error) {
	req := connect.NewRequest(&msg)
	if c.token != "" {
		req.Header().Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.call.CallUnary(ctx, req)
	if err != nil {
		return NotificationResponse{}, err
	}
	return *res.Msg, nil
}
