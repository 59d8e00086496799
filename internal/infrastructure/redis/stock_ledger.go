package redis

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/shopcore/internal/domain/stock"
	"github.com/redis/go-redis/v9"
)

const stockKeyPrefix = "stock:"

// reserveScript atomically checks and decrements a product's counter. It
// returns {1, remaining} on success, {0, available} on shortfall, and
// {-1, 0} when the key does not exist.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return {-1, 0}
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return {1, current - quantity}
end

return {0, current}
`)

// StockLedger is a stock.Ledger backed by Redis counters, for deployments
// where multiple core instances share one ledger. Atomicity comes from the
// single-threaded script execution, so the no-oversell guarantee holds across
// processes.
type StockLedger struct {
	client *redis.Client
}

func NewStockLedger(client *redis.Client) *StockLedger {
	return &StockLedger{client: client}
}

func (l *StockLedger) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return stock.ErrInvalidQuantity
	}

	res, err := reserveScript.Run(ctx, l.client, []string{stockKey(productID)}, quantity).Int64Slice()
	if err != nil {
		return fmt.Errorf("stock reserve script: %w", err)
	}
	if len(res) != 2 {
		return fmt.Errorf("stock reserve script: unexpected reply %v", res)
	}

	switch res[0] {
	case 1:
		return nil
	case 0:
		return &stock.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: int(res[1]),
		}
	default:
		return stock.ErrNotFound
	}
}

func (l *StockLedger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return stock.ErrInvalidQuantity
	}
	return l.client.IncrBy(ctx, stockKey(productID), int64(quantity)).Err()
}

func (l *StockLedger) Peek(ctx context.Context, productID string) (int, error) {
	n, err := l.client.Get(ctx, stockKey(productID)).Int()
	if err == redis.Nil {
		return 0, stock.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (l *StockLedger) SetStock(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return stock.ErrInvalidQuantity
	}
	return l.client.Set(ctx, stockKey(productID), quantity, 0).Err()
}

func stockKey(productID string) string { return stockKeyPrefix + productID }
