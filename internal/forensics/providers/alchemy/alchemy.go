// Package alchemy implements providers.Provider over Alchemy's enhanced
// alchemy_getAssetTransfers JSON-RPC method, grounded on the JSON-RPC
// client shape of the teacher's reference http provider (retry/backoff,
// rpcRequest/rpcResponse envelopes).
package alchemy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rawblock/forensic-engine/internal/forensics/errs"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
	"github.com/rawblock/forensic-engine/internal/forensics/providers"
)

const maxRetries = 3
const backoffBase = 500 * time.Millisecond

type Provider struct {
	baseURL string
	apiKey  string
	chain   string
	hc      *http.Client
}

// New constructs an Alchemy provider. baseURL is the chain-specific
// Alchemy root (e.g. "https://eth-mainnet.g.alchemy.com/v2"); the API key
// is appended as a path segment the way Alchemy's own SDKs do.
func New(baseURL, apiKey string, hc *http.Client) *Provider {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Provider{baseURL: baseURL, apiKey: apiKey, hc: hc}
}

func (p *Provider) Name() string { return "alchemy" }

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (p *Provider) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if p.apiKey == "" {
		return errs.Configf("alchemy.call", "ALCHEMY_API_KEY is not configured")
	}
	url := strings.TrimRight(p.baseURL, "/") + "/" + p.apiKey
	body, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.hc.Do(req)
		if err != nil {
			lastErr = errs.Transient("alchemy.call", err)
		} else {
			lastErr = decodeRPC(resp, out)
			resp.Body.Close()
			if lastErr == nil {
				return nil
			}
			if !isRetriable(lastErr) {
				return lastErr
			}
		}

		if attempt < maxRetries-1 {
			d := time.Duration(float64(backoffBase) * float64(int64(1)<<uint(attempt)))
			d += time.Duration(rand.Float64() * float64(backoffBase))
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return errs.DeadlineExceeded("alchemy.call", ctx.Err())
			case <-t.C:
			}
		}
	}
	return lastErr
}

func decodeRPC(resp *http.Response, out interface{}) error {
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		b, _ := io.ReadAll(resp.Body)
		return errs.Transient("alchemy.call", fmt.Errorf("http %d: %s", resp.StatusCode, string(b)))
	}
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return errs.Permanent("alchemy.call", fmt.Errorf("http %d: %s", resp.StatusCode, string(b)))
	}
	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return errs.Permanent("alchemy.call", err)
	}
	if rr.Error != nil {
		return errs.Permanent("alchemy.call", fmt.Errorf("rpc %d: %s", rr.Error.Code, rr.Error.Message))
	}
	if out != nil {
		return json.Unmarshal(rr.Result, out)
	}
	return nil
}

func isRetriable(err error) bool {
	return errs.IsKind(err, errs.ProviderTransient)
}

type assetTransfer struct {
	Hash     string `json:"hash"`
	From     string `json:"from"`
	To       string `json:"to"`
	BlockNum string `json:"blockNum"`
	Category string `json:"category"`
	RawContract struct {
		Value   string `json:"value"`
		Decimal string `json:"decimal"`
	} `json:"rawContract"`
	Metadata struct {
		BlockTimestamp string `json:"blockTimestamp"`
	} `json:"metadata"`
}

type transfersResult struct {
	Transfers []assetTransfer `json:"transfers"`
	PageKey   string          `json:"pageKey"`
}

// FetchTransfers pages through alchemy_getAssetTransfers until maxCount
// transfers have been collected or the provider runs out of pages.
func (p *Provider) FetchTransfers(ctx context.Context, chain, tokenAddress string, maxCount int) ([]model.Transfer, error) {
	var out []model.Transfer
	pageKey := ""
	for len(out) < maxCount {
		params := map[string]interface{}{
			"fromBlock":   "0x0",
			"toBlock":     "latest",
			"contractAddresses": []string{tokenAddress},
			"category":    []string{"erc20"},
			"withMetadata": true,
			"maxCount":    fmt.Sprintf("0x%x", min(1000, maxCount-len(out))),
			"order":       "asc",
		}
		if pageKey != "" {
			params["pageKey"] = pageKey
		}

		var res transfersResult
		if err := p.call(ctx, "alchemy_getAssetTransfers", []interface{}{params}, &res); err != nil {
			return out, err
		}

		for _, t := range res.Transfers {
			value, _ := parseAssetValue(t.RawContract.Value, t.RawContract.Decimal)
			ts := parseTimestamp(t.Metadata.BlockTimestamp)
			block := parseHexUint(t.BlockNum)
			out = append(out, model.Transfer{
				Hash:      t.Hash,
				From:      strings.ToLower(t.From),
				To:        strings.ToLower(t.To),
				Value:     value,
				Timestamp: ts,
				Block:     block,
			})
		}

		if res.PageKey == "" || len(res.Transfers) == 0 {
			break
		}
		pageKey = res.PageKey
	}
	return out, nil
}

type tokenMetadataResult struct {
	Decimals *int   `json:"decimals"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
}

// FetchMetadata calls alchemy_getTokenMetadata and, best-effort, reads
// totalSupply via an eth_call to the ERC20 totalSupply() selector.
func (p *Provider) FetchMetadata(ctx context.Context, chain, tokenAddress string) (model.TokenMetadata, error) {
	var res tokenMetadataResult
	if err := p.call(ctx, "alchemy_getTokenMetadata", []interface{}{tokenAddress}, &res); err != nil {
		return model.TokenMetadata{}, err
	}

	decimals := 18
	if res.Decimals != nil {
		decimals = *res.Decimals
	}

	meta := model.TokenMetadata{
		Address:  strings.ToLower(tokenAddress),
		Symbol:   res.Symbol,
		Name:     res.Name,
		Decimals: decimals,
	}

	var supplyHex string
	callParams := []interface{}{
		map[string]string{"to": tokenAddress, "data": "0x18160ddd"},
		"latest",
	}
	if err := p.call(ctx, "eth_call", callParams, &supplyHex); err == nil && supplyHex != "" {
		meta.TotalSupply = supplyHex
	}

	return meta, nil
}

func parseAssetValue(hexValue, decimalHex string) (float64, error) {
	decimals := 18
	if decimalHex != "" {
		decimals = int(parseHexUint(decimalHex))
	}
	return providers.FormatValue(hexValue, decimals)
}

func parseHexUint(s string) uint64 {
	s = strings.TrimPrefix(s, "0x")
	var v uint64
	fmt.Sscanf(s, "%x", &v)
	return v
}

func parseTimestamp(iso string) int64 {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return 0
	}
	return t.Unix()
}
