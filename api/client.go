// Package api - Hauptmodul des Diffused API-Clients.
// Dieses Modul enthaelt die Client-Struktur und Basis-Methoden.
// Stream-Methoden sind in client_stream.go.
//
// Package api implements the client-side API for code wishing to interact
// with the diffused service. The methods of the [Client] type correspond to
// the diffused REST API. The diffused command-line client itself uses this
// package to interact with the backend service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"

	"diffused/envconfig"
	"diffused/version"
)

// Client encapsulates client state for interacting with the diffused
// service. Use [ClientFromEnvironment] to create new Clients.
type Client struct {
	base *url.URL
	http *http.Client
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	err := json.Unmarshal(body, &apiError)
	if err != nil {
		// Use the full body as the message if we fail to decode a response.
		apiError.ErrorMessage = string(body)
	}

	return apiError
}

// ClientFromEnvironment creates a new [Client] using configuration from the
// environment variable DIFFUSED_HOST, which points to the network host and
// port on which the diffused service is listening. The format of this
// variable is:
//
//	<scheme>://<host>:<port>
//
// If the variable is not specified, a default host and port will be used.
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

func userAgent() string {
	return fmt.Sprintf("diffused/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version())
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	var data []byte
	var err error

	switch reqData := reqData.(type) {
	case io.Reader:
		// reqData is already an io.Reader
		reqBody = reqData
	case nil:
		// noop
	default:
		data, err = json.Marshal(reqData)
		if err != nil {
			return err
		}

		reqBody = bytes.NewReader(data)
	}

	requestURL := c.base.JoinPath(path)

	request, err := http.NewRequestWithContext(ctx, method, requestURL.String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", userAgent())

	respObj, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer respObj.Body.Close()

	respBody, err := io.ReadAll(respObj.Body)
	if err != nil {
		return err
	}

	if err := checkError(respObj, respBody); err != nil {
		return err
	}

	if len(respBody) > 0 && respData != nil {
		if err := json.Unmarshal(respBody, respData); err != nil {
			return err
		}
	}
	return nil
}

// Schedulers lists the step policies the server supports.
func (c *Client) Schedulers(ctx context.Context) (*SchedulerResponse, error) {
	var resp SchedulerResponse
	if err := c.do(ctx, http.MethodGet, "/api/schedulers", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version returns the server build version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}
