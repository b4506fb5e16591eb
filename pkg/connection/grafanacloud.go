package connection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"catalogmirror/pkg/core"
)

// ErrInvalidCredentials is returned when Grafana Cloud rejects the token.
var ErrInvalidCredentials = errors.New("invalid credentials")

const invalidCredentialsCode = "InvalidCredentials"

// StatusError reports a non-2xx answer from the Grafana Cloud API.
type StatusError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// GrafanaCloudResolver looks up the app platform endpoint of a Grafana Cloud
// stack and mirrors into the stack namespace.
type GrafanaCloudResolver struct {
	Endpoint   string
	StackSlug  string
	Token      string
	HTTPClient *http.Client
	Backoff    core.BackoffStrategy
	Logger     logr.Logger
}

type instanceResponse struct {
	ID      json.Number `json:"id"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

type connectionsResponse struct {
	AppPlatform *struct {
		URL    string `json:"url"`
		CAData string `json:"caData"`
	} `json:"appPlatform"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Resolve implements Resolver. The stack and its connections are looked up
// concurrently; either failing fails the resolution.
func (resolver *GrafanaCloudResolver) Resolve(ctx context.Context) (Connection, error) {
	endpoint := strings.TrimSuffix(resolver.Endpoint, "/")
	instanceURL := endpoint + "/api/instances/" + url.PathEscape(resolver.StackSlug)

	var instance instanceResponse
	var connections connectionsResponse
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := resolver.getJSON(groupCtx, instanceURL, &instance); err != nil {
			return err
		}
		if instance.Code == invalidCredentialsCode {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, instance.Message)
		}
		if instance.ID == "" {
			return fmt.Errorf("stack %s has no id", resolver.StackSlug)
		}
		return nil
	})
	group.Go(func() error {
		if err := resolver.getJSON(groupCtx, instanceURL+"/connections", &connections); err != nil {
			return err
		}
		if connections.Code == invalidCredentialsCode {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, connections.Message)
		}
		if connections.AppPlatform == nil || connections.AppPlatform.URL == "" {
			return fmt.Errorf("stack %s has no app platform connection", resolver.StackSlug)
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		return Connection{}, fmt.Errorf("error getting Grafana Cloud connection: %w", err)
	}

	caData, err := base64.StdEncoding.DecodeString(connections.AppPlatform.CAData)
	if err != nil {
		return Connection{}, fmt.Errorf("error getting Grafana Cloud connection: decode caData: %w", err)
	}

	return Connection{
		Server:    connections.AppPlatform.URL,
		CAData:    caData,
		Token:     resolver.Token,
		Namespace: "stacks-" + instance.ID.String(),
	}, nil
}

func (resolver *GrafanaCloudResolver) getJSON(ctx context.Context, target string, into interface{}) error {
	client := resolver.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	attempts, err := resolver.Backoff.Retry(ctx, func(ctx context.Context) error {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		request.Header.Set("Authorization", "Bearer "+resolver.Token)
		request.Header.Set("Accept", "application/json")

		response, err := client.Do(request)
		if err != nil {
			return err
		}
		defer response.Body.Close()

		body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
		if err != nil {
			return err
		}
		if response.StatusCode < 200 || response.StatusCode > 299 {
			statusErr := &StatusError{URL: target, StatusCode: response.StatusCode}
			var payload struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if json.Unmarshal(body, &payload) == nil {
				if payload.Code == invalidCredentialsCode {
					return fmt.Errorf("%w: %s", ErrInvalidCredentials, payload.Message)
				}
				statusErr.Message = payload.Message
			}
			return statusErr
		}
		if err := json.Unmarshal(body, into); err != nil {
			return fmt.Errorf("decode %s: %w", target, err)
		}
		return nil
	}, retryableLookup)
	if attempts > 1 {
		resolver.Logger.V(1).Info("grafana cloud lookup retried", "url", target, "attempts", attempts, "error", err)
	}
	return err
}

func retryableLookup(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return core.IsRetryable(err)
}
