package fake

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/BearBump/DispatchBox/internal/integrations/dispatch"
	"github.com/BearBump/DispatchBox/internal/models"
)

// FakeClient: диспетчерская без сети, для локального запуска и тестов.
// Номер заказа детерминирован по содержимому заказа.
type FakeClient struct {
	mu     sync.Mutex
	codes  []string
	err    error
	orders []models.Order
}

func New() *FakeClient { return &FakeClient{} }

// FailWith заставляет следующие вызовы отвечать кодами ошибок API.
func (f *FakeClient) FailWith(codes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = codes
}

// BreakWith заставляет следующие вызовы падать с ошибкой транспорта.
func (f *FakeClient) BreakWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeClient) Orders() []models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Order(nil), f.orders...)
}

func (f *FakeClient) Submit(ctx context.Context, order models.Order, auth models.AuthParams) (dispatch.Response, error) {
	if err := ctx.Err(); err != nil {
		return dispatch.Response{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)

	if f.err != nil {
		return dispatch.Response{}, f.err
	}
	if len(f.codes) > 0 {
		return dispatch.Response{}, &dispatch.APIError{Codes: append([]string(nil), f.codes...)}
	}

	b, _ := json.Marshal(order)
	h := fnv.New32a()
	_, _ = h.Write([]byte(auth.ClientID))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write(b)
	id := strconv.FormatUint(uint64(h.Sum32()%1_000_000), 10)

	raw, _ := json.Marshal(map[string]string{"order_id": id})
	return dispatch.Response{OrderID: id, Raw: raw}, nil
}
