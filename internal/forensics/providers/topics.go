package providers

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TransferTopic0 is keccak256("Transfer(address,address,uint256)"), the
// log topic every ERC20 Transfer event emits in topics[0].
const TransferTopic0 = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// AddressFromTopic extracts the right-aligned 20-byte address from a
// 32-byte indexed log topic, e.g. topics[1] or topics[2] of a Transfer log.
func AddressFromTopic(topic string) string {
	t := strings.TrimPrefix(topic, "0x")
	if len(t) < 40 {
		return "0x" + t
	}
	return common.HexToAddress("0x" + t[len(t)-40:]).Hex()
}

// BackoffDelay returns the exponential-backoff-with-jitter delay for the
// given zero-based attempt: the same formula the alchemy and explorer
// providers apply inline in their 3-attempt/0.5s-base retry loops (the
// bitquery provider does not retry).
func BackoffDelay(attempt int, base float64, jitter func() float64) float64 {
	d := base * float64(int64(1)<<uint(attempt))
	if jitter != nil {
		d += jitter() * base
	}
	return d
}

// FormatValue renders a raw hex integer token amount at the given
// decimals, e.g. FormatValue("0x14d1120d7b160000", 18) == 1.5.
func FormatValue(raw string, decimals int) (float64, error) {
	raw = strings.TrimPrefix(raw, "0x")
	if raw == "" {
		return 0, nil
	}
	n := new(big.Int)
	if _, ok := n.SetString(raw, 16); !ok {
		return 0, fmt.Errorf("invalid hex integer quantity: %q", raw)
	}
	f := new(big.Float).SetInt(n)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	result := new(big.Float).Quo(f, divisor)
	out, _ := result.Float64()
	return out, nil
}
