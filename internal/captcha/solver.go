// Package captcha clears the storefront's image captcha, either through a
// configured solving service or by handing the page to a human.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotSolved means no solution could be produced or it was rejected.
var ErrNotSolved = errors.New("captcha not solved")

// Solver turns a captcha image into its text.
type Solver interface {
	Solve(ctx context.Context, imageURL string) (string, error)
}

// NoSolver fails every captcha, leaving it to the human wait or a refresh.
type NoSolver struct{}

func (NoSolver) Solve(context.Context, string) (string, error) { return "", ErrNotSolved }

// HTTPSolver posts the image URL to a solving service and expects
// {"solution": "..."} back.
type HTTPSolver struct {
	client   *resty.Client
	endpoint string
}

type solveRequest struct {
	ImageURL string `json:"image_url"`
}

type solveResponse struct {
	Solution string `json:"solution"`
	Error    string `json:"error,omitempty"`
}

// NewHTTPSolver returns a solver for endpoint. client may be nil.
func NewHTTPSolver(endpoint string, client *resty.Client) *HTTPSolver {
	if client == nil {
		client = resty.New().SetTimeout(30 * time.Second)
	}
	return &HTTPSolver{client: client, endpoint: endpoint}
}

func (s *HTTPSolver) Solve(ctx context.Context, imageURL string) (string, error) {
	var out solveResponse
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(solveRequest{ImageURL: imageURL}).
		SetResult(&out).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("captcha solver request: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("%w: solver returned %s", ErrNotSolved, res.Status())
	}
	solution := strings.TrimSpace(out.Solution)
	if solution == "" {
		if out.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrNotSolved, out.Error)
		}
		return "", ErrNotSolved
	}
	return strings.ToUpper(solution), nil
}
