package monitor

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// ErrNoPolicy is returned when the trainer has not finished an episode yet.
var ErrNoPolicy = errors.New("trainer has no policy yet")

// FetchPolicy pulls the current policy weights from a monitor at baseURL.
func FetchPolicy(ctx context.Context, client *http.Client, baseURL string) (PolicyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/policy", nil)
	if err != nil {
		return PolicyResponse{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return PolicyResponse{}, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return PolicyResponse{}, ErrNoPolicy
	default:
		return PolicyResponse{}, errors.Errorf("trainer returned %s", resp.Status)
	}
	var payload PolicyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return PolicyResponse{}, errors.Wrap(err, "decode policy")
	}
	return payload, nil
}
