package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/pkg/errors"
)

// ErrNoResponse: ответ не пришёл за отведённое время, запрос прерван.
var ErrNoResponse = errors.New("no response for too long, possible network issue")

type Response struct {
	OrderID string
	Raw     []byte
}

type Client interface {
	Submit(ctx context.Context, order models.Order, auth models.AuthParams) (Response, error)
}

// Коды ошибок API Достависты.
var apiErrors = map[string]string{
	"20":   "already responded to the order",
	"22":   "auction is over, too late to bid",
	"23":   "cannot withdraw the bid: there is none",
	"24":   "bid is too large",
	"64":   "unknown error",
	"128":  "unsupported API version",
	"1024": "wrong request method (GET/POST)",
	"2048": "wrong client id",
	"4096": "wrong access token",
	"8192": "a point phone belongs to a registered client, authorization is required",
	"8193": "delivery type does not match the total order weight",
	"8194": "buyout sum of active orders is too large",
}

const unknownError = "unknown error"

func ErrorMessage(code string) string {
	if msg, ok := apiErrors[code]; ok {
		return msg
	}
	return unknownError
}

// APIError: ответ пришёл, но в нём есть error_code.
type APIError struct {
	Codes []string
}

func (e *APIError) Error() string {
	lines := make([]string, 0, len(e.Codes))
	for _, c := range e.Codes {
		lines = append(lines, fmt.Sprintf("%s: %s", c, ErrorMessage(c)))
	}
	return strings.Join(lines, "\n")
}
