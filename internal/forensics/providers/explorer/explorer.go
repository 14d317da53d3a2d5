// Package explorer implements providers.Provider over an Etherscan-style
// block explorer API: eth_getLogs via the proxy module, with adaptive
// block-window subdivision when a window returns too many logs, and a
// account.tokentx pagination fallback when eth_getLogs is unavailable.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rawblock/forensic-engine/internal/forensics/config"
	"github.com/rawblock/forensic-engine/internal/forensics/errs"
	"github.com/rawblock/forensic-engine/internal/forensics/model"
	"github.com/rawblock/forensic-engine/internal/forensics/providers"
)

const (
	maxRetries     = 3
	backoffBase    = 500 * time.Millisecond
	maxSplitDepth  = 6
	logsPerWindow  = 1000
)

type Provider struct {
	apiURL string
	apiKey string
	hc     *http.Client
}

func New(apiURL, apiKey string, hc *http.Client) *Provider {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Provider{apiURL: apiURL, apiKey: apiKey, hc: hc}
}

func (p *Provider) Name() string { return "explorer" }

type explorerEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (p *Provider) get(ctx context.Context, chain string, params url.Values) (explorerEnvelope, error) {
	if p.apiKey == "" {
		return explorerEnvelope{}, errs.Configf("explorer.get", "ETHERSCAN_API_KEY is not configured")
	}
	params.Set("apikey", p.apiKey)
	params.Set("chainid", strconv.Itoa(config.ChainID(chain)))

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		reqURL := p.apiURL + "?" + params.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return explorerEnvelope{}, err
		}

		resp, err := p.hc.Do(req)
		if err != nil {
			lastErr = errs.Transient("explorer.get", err)
		} else {
			var env explorerEnvelope
			decodeErr := json.NewDecoder(resp.Body).Decode(&env)
			resp.Body.Close()
			if decodeErr != nil {
				lastErr = errs.Permanent("explorer.get", decodeErr)
			} else if isRateLimited(env.Message) {
				lastErr = errs.Transient("explorer.get", fmt.Errorf("rate limited: %s", env.Message))
			} else {
				return env, nil
			}
		}

		if attempt < maxRetries-1 {
			d := time.Duration(float64(backoffBase) * float64(int64(1)<<uint(attempt)))
			d += time.Duration(rand.Float64() * float64(backoffBase))
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return explorerEnvelope{}, errs.DeadlineExceeded("explorer.get", ctx.Err())
			case <-t.C:
			}
		}
	}
	return explorerEnvelope{}, lastErr
}

func isRateLimited(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "rate limit") ||
		strings.Contains(m, "too many") ||
		strings.Contains(m, "max rate limit")
}

func tooManyResults(message string) bool {
	return strings.Contains(strings.ToLower(message), "exceeded")
}

type logEntry struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TimeStamp       string   `json:"timeStamp"`
	TransactionHash string   `json:"transactionHash"`
}

// FetchTransfers derives an adaptive block window from the latest block
// height and the requested maxCount, recursively splitting any window
// that returns too many logs, then falls back to the tokentx pagination
// endpoint if eth_getLogs is unavailable on this explorer.
func (p *Provider) FetchTransfers(ctx context.Context, chain, tokenAddress string, maxCount int) ([]model.Transfer, error) {
	latest, err := p.latestBlock(ctx, chain)
	if err != nil {
		return p.fetchTokentx(ctx, chain, tokenAddress, maxCount)
	}

	maxPages := maxCount / logsPerWindow
	if maxCount%logsPerWindow != 0 {
		maxPages++
	}
	if maxPages > 10 {
		maxPages = 10
	}
	if maxPages < 1 {
		maxPages = 1
	}

	window := latest / uint64(maxPages*12)
	if window < 2000 {
		window = 2000
	}
	if window > 10000 {
		window = 10000
	}

	var out []model.Transfer
	var from uint64
	if latest > window*uint64(maxPages) {
		from = latest - window*uint64(maxPages)
	}

	for from < latest && len(out) < maxCount {
		to := from + window
		if to > latest {
			to = latest
		}
		transfers, err := p.fetchLogsWindow(ctx, chain, tokenAddress, from, to, 0)
		if err != nil {
			if len(out) == 0 {
				return p.fetchTokentx(ctx, chain, tokenAddress, maxCount)
			}
			break
		}
		out = append(out, transfers...)
		from = to + 1
	}

	if len(out) > maxCount {
		out = out[:maxCount]
	}
	if len(out) == 0 {
		return p.fetchTokentx(ctx, chain, tokenAddress, maxCount)
	}
	return out, nil
}

func (p *Provider) fetchLogsWindow(ctx context.Context, chain, tokenAddress string, from, to uint64, depth int) ([]model.Transfer, error) {
	params := url.Values{}
	params.Set("module", "logs")
	params.Set("action", "getLogs")
	params.Set("address", tokenAddress)
	params.Set("topic0", providers.TransferTopic0)
	params.Set("fromBlock", strconv.FormatUint(from, 10))
	params.Set("toBlock", strconv.FormatUint(to, 10))

	env, err := p.get(ctx, chain, params)
	if err != nil {
		return nil, err
	}

	if env.Status != "1" {
		if tooManyResults(env.Message) && depth < maxSplitDepth && to > from {
			mid := from + (to-from)/2
			left, err := p.fetchLogsWindow(ctx, chain, tokenAddress, from, mid, depth+1)
			if err != nil {
				return nil, err
			}
			right, err := p.fetchLogsWindow(ctx, chain, tokenAddress, mid+1, to, depth+1)
			if err != nil {
				return nil, err
			}
			return append(left, right...), nil
		}
		return nil, nil
	}

	var logs []logEntry
	if err := json.Unmarshal(env.Result, &logs); err != nil {
		return nil, errs.Permanent("explorer.fetchLogsWindow", err)
	}

	if len(logs) >= logsPerWindow && depth < maxSplitDepth && to > from {
		mid := from + (to-from)/2
		left, err := p.fetchLogsWindow(ctx, chain, tokenAddress, from, mid, depth+1)
		if err != nil {
			return nil, err
		}
		right, err := p.fetchLogsWindow(ctx, chain, tokenAddress, mid+1, to, depth+1)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	}

	decimals, _ := p.decimals(ctx, chain, tokenAddress)
	out := make([]model.Transfer, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 3 {
			continue
		}
		value, err := providers.FormatValue(l.Data, decimals)
		if err != nil {
			continue
		}
		out = append(out, model.Transfer{
			Hash:      l.TransactionHash,
			From:      strings.ToLower(providers.AddressFromTopic(l.Topics[1])),
			To:        strings.ToLower(providers.AddressFromTopic(l.Topics[2])),
			Value:     value,
			Timestamp: parseHexTimestamp(l.TimeStamp),
			Block:     parseHexBlock(l.BlockNumber),
		})
	}
	return out, nil
}

type tokentxRow struct {
	Hash          string `json:"hash"`
	From          string `json:"from"`
	To            string `json:"to"`
	Value         string `json:"value"`
	TokenDecimal  string `json:"tokenDecimal"`
	TimeStamp     string `json:"timeStamp"`
	BlockNumber   string `json:"blockNumber"`
}

// fetchTokentx is the pagination-based fallback used when eth_getLogs is
// unavailable or consistently fails for this explorer.
func (p *Provider) fetchTokentx(ctx context.Context, chain, tokenAddress string, maxCount int) ([]model.Transfer, error) {
	var out []model.Transfer
	page := 1
	const offset = 1000

	for len(out) < maxCount {
		params := url.Values{}
		params.Set("module", "account")
		params.Set("action", "tokentx")
		params.Set("contractaddress", tokenAddress)
		params.Set("page", strconv.Itoa(page))
		params.Set("offset", strconv.Itoa(offset))
		params.Set("sort", "desc")

		env, err := p.get(ctx, chain, params)
		if err != nil {
			return out, err
		}
		if env.Status != "1" {
			break
		}

		var rows []tokentxRow
		if err := json.Unmarshal(env.Result, &rows); err != nil {
			return out, errs.Permanent("explorer.fetchTokentx", err)
		}
		if len(rows) == 0 {
			break
		}

		for _, r := range rows {
			decimals := 18
			if d, err := strconv.Atoi(r.TokenDecimal); err == nil {
				decimals = d
			}
			value, err := providers.FormatValue(hexOrDecimalToHex(r.Value), decimals)
			if err != nil {
				continue
			}
			ts, _ := strconv.ParseInt(r.TimeStamp, 10, 64)
			block, _ := strconv.ParseUint(r.BlockNumber, 10, 64)
			out = append(out, model.Transfer{
				Hash:      r.Hash,
				From:      strings.ToLower(r.From),
				To:        strings.ToLower(r.To),
				Value:     value,
				Timestamp: ts,
				Block:     block,
			})
		}

		if len(rows) < offset {
			break
		}
		page++
	}

	if len(out) > maxCount {
		out = out[:maxCount]
	}
	return out, nil
}

func (p *Provider) latestBlock(ctx context.Context, chain string) (uint64, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_blockNumber")

	env, err := p.get(ctx, chain, params)
	if err != nil {
		return 0, err
	}
	var hex string
	if err := json.Unmarshal(env.Result, &hex); err != nil {
		return 0, err
	}
	return parseHexBlock(hex), nil
}

func (p *Provider) decimals(ctx context.Context, chain, tokenAddress string) (int, error) {
	meta, err := p.FetchMetadata(ctx, chain, tokenAddress)
	if err != nil {
		return 18, err
	}
	return meta.Decimals, nil
}

type tokeninfoResult struct {
	TokenName     string `json:"tokenName"`
	Symbol        string `json:"symbol"`
	Divisor       string `json:"divisor"`
	TotalSupply   string `json:"totalSupply"`
}

// FetchMetadata uses the explorer's tokeninfo endpoint.
func (p *Provider) FetchMetadata(ctx context.Context, chain, tokenAddress string) (model.TokenMetadata, error) {
	params := url.Values{}
	params.Set("module", "token")
	params.Set("action", "tokeninfo")
	params.Set("contractaddress", tokenAddress)

	env, err := p.get(ctx, chain, params)
	if err != nil {
		return model.TokenMetadata{}, err
	}
	if env.Status != "1" {
		return model.TokenMetadata{}, errs.Transient("explorer.FetchMetadata", fmt.Errorf("%s", env.Message))
	}

	var results []tokeninfoResult
	if err := json.Unmarshal(env.Result, &results); err != nil || len(results) == 0 {
		return model.TokenMetadata{}, errs.Permanent("explorer.FetchMetadata", fmt.Errorf("no tokeninfo result"))
	}

	r := results[0]
	decimals := 18
	if d, err := strconv.Atoi(r.Divisor); err == nil && d > 0 {
		decimals = d
	}

	return model.TokenMetadata{
		Address:     strings.ToLower(tokenAddress),
		Symbol:      r.Symbol,
		Name:        r.TokenName,
		Decimals:    decimals,
		TotalSupply: r.TotalSupply,
	}, nil
}

func parseHexBlock(s string) uint64 {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseUint(s, 16, 64); err == nil {
		return n
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n
	}
	return 0
}

func parseHexTimestamp(s string) int64 {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 16, 64); err == nil {
		return n
	}
	return 0
}

// hexOrDecimalToHex normalizes the tokentx endpoint's decimal-string
// value field into the hex quantity FormatValue expects, using big.Int
// since raw 18-decimal token amounts routinely exceed uint64.
func hexOrDecimalToHex(s string) string {
	if strings.HasPrefix(s, "0x") {
		return s
	}
	n := new(big.Int)
	if _, ok := n.SetString(s, 10); !ok {
		return s
	}
	return "0x" + n.Text(16)
}
