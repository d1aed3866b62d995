package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ---- HTTP client ----

var errSessionExpired = errors.New("session expired, please log in again")

// apiError is a non-2xx response from the portal.
type apiError struct {
	Status  int
	Message string
	Detail  string
}

func (e *apiError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Message, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func (e *apiError) sessionRejected() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

type document struct {
	ID          int64   `json:"doc_id"`
	Title       string  `json:"doc_title"`
	FileName    *string `json:"doc_file_name"`
	Department  *string `json:"department_name"`
	CreatedDate *string `json:"created_date"`
}

type loginResult struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) (*client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("bad server url %q", base)
	}
	return &client{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: timeout}}, nil
}

func (c *client) do(ctx context.Context, method, path, bearer string, in, out any) (*http.Response, []byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode/100 != 2 {
		var eb struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(raw, &eb)
		if eb.Message == "" {
			eb.Message = http.StatusText(resp.StatusCode)
		}
		return resp, nil, &apiError{Status: resp.StatusCode, Message: eb.Message, Detail: eb.Error}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp, raw, nil
}

func (c *client) login(ctx context.Context, username, password string) (loginResult, error) {
	var out loginResult
	_, _, err := c.do(ctx, http.MethodPost, "/login", "", map[string]string{"username": username, "password": password}, &out)
	return out, err
}

func (c *client) logout(ctx context.Context, token string) error {
	_, _, err := c.do(ctx, http.MethodPost, "/logout", token, nil, nil)
	return err
}

func (c *client) documents(ctx context.Context, token string) ([]document, error) {
	var out []document
	_, _, err := c.do(ctx, http.MethodGet, "/documents", token, nil, &out)
	return out, err
}

func (c *client) pdfToken(ctx context.Context, token string, docID int64) (string, error) {
	var out struct {
		PDFToken string `json:"pdfToken"`
	}
	if _, _, err := c.do(ctx, http.MethodPost, "/generate-pdf-token", token, map[string]int64{"docId": docID}, &out); err != nil {
		return "", err
	}
	if out.PDFToken == "" {
		return "", errors.New("server returned an empty pdf token")
	}
	return out.PDFToken, nil
}

// fetchPDF redeems a resource token and returns the payload and suggested filename.
func (c *client) fetchPDF(ctx context.Context, pdfToken string) ([]byte, string, error) {
	resp, raw, err := c.do(ctx, http.MethodGet, "/pdf/"+url.PathEscape(pdfToken), "", nil, nil)
	if err != nil {
		return nil, "", err
	}
	var name string
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}
	return raw, name, nil
}
