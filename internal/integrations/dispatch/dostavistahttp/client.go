package dostavistahttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/DispatchBox/internal/integrations/dispatch"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	DefaultURL     = "https://robotapitest.dostavista.ru/bapi/order"
	DefaultTimeout = 5 * time.Second

	maxBodySize = 1 << 20
)

type Client struct {
	apiURL  string
	timeout time.Duration
	httpc   *http.Client
	now     func() time.Time
}

func New(apiURL string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiURL:  apiURL,
		timeout: timeout,
		// Своего таймаута у http.Client нет: запрос живёт ровно столько, сколько Submit его ждёт.
		httpc: &http.Client{},
		now:   time.Now,
	}
}

func (c *Client) URL() string { return c.apiURL }

type result struct {
	resp dispatch.Response
	err  error
}

// Submit отправляет заказ и ждёт ответа не дольше c.timeout.
// Результат всегда один: ответ, ошибка транспорта или ErrNoResponse.
// Проигравший запрос отменяется через контекст, его поздний ответ выбрасывается.
func (c *Client) Submit(ctx context.Context, order models.Order, auth models.AuthParams) (dispatch.Response, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		resp, err := c.send(reqCtx, EncodeForm(order, auth))
		done <- result{resp: resp, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-timer.C:
		return dispatch.Response{}, dispatch.ErrNoResponse
	case <-ctx.Done():
		return dispatch.Response{}, errors.Wrap(ctx.Err(), "submit order")
	}
}

func (c *Client) send(ctx context.Context, form url.Values) (dispatch.Response, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return dispatch.Response{}, errors.Wrap(err, "parse api url")
	}

	callback := "jsonp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	q := u.Query()
	q.Set("callback", callback)
	q.Set("_", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return dispatch.Response{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/javascript, */*")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return dispatch.Response{}, errors.Wrapf(err, "send order to %s", c.apiURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return dispatch.Response{}, fmt.Errorf("dispatch api http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return dispatch.Response{}, errors.Wrap(err, "read body")
	}

	return parseResponse(body, callback)
}

// parseResponse снимает JSONP-обёртку callback(...) и разбирает тело.
// Голый JSON тоже принимается.
func parseResponse(body []byte, callback string) (dispatch.Response, error) {
	payload := unwrapJSONP(body, callback)
	if !gjson.ValidBytes(payload) {
		return dispatch.Response{}, errors.New("dispatch api: malformed response")
	}

	codes := errorCodes(gjson.GetBytes(payload, "error_code"))
	if len(codes) > 0 {
		return dispatch.Response{Raw: payload}, &dispatch.APIError{Codes: codes}
	}

	return dispatch.Response{
		OrderID: gjson.GetBytes(payload, "order_id").String(),
		Raw:     payload,
	}, nil
}

func unwrapJSONP(body []byte, callback string) []byte {
	b := bytes.TrimSpace(body)
	b = bytes.TrimPrefix(b, []byte("/**/"))
	open := bytes.IndexByte(b, '(')
	if open <= 0 || b[0] == '{' || b[0] == '[' {
		return b
	}
	name := string(bytes.TrimSpace(b[:open]))
	if callback != "" && name != callback {
		return b
	}
	b = bytes.TrimSuffix(b[open+1:], []byte(";"))
	b = bytes.TrimSpace(b)
	return bytes.TrimSuffix(b, []byte(")"))
}

func errorCodes(r gjson.Result) []string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	if !r.IsArray() {
		if s := r.String(); s != "" && s != "0" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, c := range r.Array() {
		out = append(out, c.String())
	}
	return out
}

// EncodeForm раскладывает заказ в поля формы так же, как их ждёт API:
// matter, insurance, point[i][field], client_id, token.
func EncodeForm(o models.Order, auth models.AuthParams) url.Values {
	v := url.Values{}
	v.Set("matter", o.Matter)
	v.Set("insurance", formatNumber(o.Insurance))

	for i, p := range o.Points {
		set := func(name, val string) {
			if val != "" {
				v.Set(fmt.Sprintf("point[%d][%s]", i, name), val)
			}
		}
		set("address", p.Address)
		set("phone", p.Phone)
		set("contact_person", p.ContactPerson)
		set("required_time", p.RequiredTime)
		set("required_time_start", p.RequiredTimeStart)
		set("weight", formatNumber(p.Weight))
		if p.Taking != nil {
			set("taking", formatNumber(*p.Taking))
		}
		set("client_order_id", p.ClientOrderID)
	}

	v.Set("client_id", auth.ClientID)
	v.Set("token", auth.Token)
	return v
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
