package cache

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// compareAndDelete deletes KEYS[1] if it holds ARGV[1].
var compareAndDelete = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Valkey is a Cache backed by a valkey (or redis) server, shared between
// every process of a deployment.
type Valkey struct {
	client valkey.Client
}

// NewValkey connects to the servers at addrs.
func NewValkey(addrs ...string) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: addrs})
	if err != nil {
		return nil, fmt.Errorf("valkey connect %v: %w", addrs, err)
	}
	return &Valkey{client: client}, nil
}

func (v *Valkey) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := v.client.Do(ctx, v.client.B().Get().Key(key).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("valkey get %s: %w", key, err)
	}
	return val, true, nil
}

func (v *Valkey) Set(ctx context.Context, key, value string) error {
	if err := v.client.Do(ctx, v.client.B().Set().Key(key).Value(value).Build()).Error(); err != nil {
		return fmt.Errorf("valkey set %s: %w", key, err)
	}
	return nil
}

func (v *Valkey) Delete(ctx context.Context, key string) error {
	if err := v.client.Do(ctx, v.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("valkey del %s: %w", key, err)
	}
	return nil
}

func (v *Valkey) DeleteIfValue(ctx context.Context, key, value string) (bool, error) {
	n, err := compareAndDelete.Exec(ctx, v.client, []string{key}, []string{value}).AsInt64()
	if err != nil {
		return false, fmt.Errorf("valkey compare-and-delete %s: %w", key, err)
	}
	return n == 1, nil
}

func (v *Valkey) Close() {
	v.client.Close()
}
