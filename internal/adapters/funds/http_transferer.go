package funds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPTransferer implements auction.FundTransferer against a treasury
// service. The treasury holds the actual funds; the engine only keeps the
// bookkeeping ledger. The call is synchronous and must be treated as
// potentially reentrant: the treasury may call back into the engine's API
// before responding.
type HTTPTransferer struct {
	baseURL string
	client  *http.Client
}

type transferRequest struct {
	To     uuid.UUID `json:"to"`
	Amount int64     `json:"amount"`
}

func NewHTTPTransferer(baseURL string, timeout time.Duration) *HTTPTransferer {
	return &HTTPTransferer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Transfer pays amount to the given account. Any non-2xx response or
// transport error reports failure; the engine rolls the operation back.
func (t *HTTPTransferer) Transfer(ctx context.Context, to uuid.UUID, amount int64) error {
	body, err := json.Marshal(transferRequest{To: to, Amount: amount})
	if err != nil {
		return fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("transfer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("treasury rejected transfer: status %d", resp.StatusCode)
	}
	return nil
}
