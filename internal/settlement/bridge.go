package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BridgeClient is a Backend backed by the reserve bridge service, which fronts
// the on-chain revenue reserve and lender contracts over HTTP.
type BridgeClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func (c *BridgeClient) Transfer(ctx context.Context, amountCents int64, destination string) (*Result, error) {
	var out Result
	err := c.post(ctx, "/v1/reserve/transfer", map[string]interface{}{
		"amount_cents": amountCents,
		"destination":  destination,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BridgeClient) WithdrawLiquidity(ctx context.Context, assetAddress string, lpTokenAmount int64) (*LiquidityResult, error) {
	var out LiquidityResult
	err := c.post(ctx, "/v1/lender/withdraw-liquidity", map[string]interface{}{
		"asset_address":   assetAddress,
		"lp_token_amount": lpTokenAmount,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BridgeClient) post(ctx context.Context, path string, body map[string]interface{}, out interface{}) error {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if c.BaseURL == "" {
		return fmt.Errorf("bridge: BRIDGE_BASE_URL is not set")
	}
	if c.APIKey == "" {
		return fmt.Errorf("bridge: BRIDGE_API_KEY is not set")
	}
	url := strings.TrimRight(c.BaseURL, "/") + path

	bodyBytes, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bridge error: status %d body: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("bridge response decode: %w", err)
	}
	return nil
}
