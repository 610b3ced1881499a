package widget

import (
	"context"

	"github.com/BearBump/DispatchBox/internal/integrations/dispatch"
)

// BeforeSendHook вызывается перед сборкой заказа. Обработка клика ждёт, пока
// канал не отдаст значение или не закроется; исход хука ни на что не влияет.
// Хук, вернувший nil, считается неправильно настроенным: это логируется,
// и отправка идёт дальше без ожидания.
type BeforeSendHook func(ctx context.Context, ctl Control) <-chan error

type SendSuccessHook func(ctx context.Context, ctl Control, resp dispatch.Response)

type SendErrorHook func(ctx context.Context, ctl Control, err error)

// Hooks: пользовательские обработчики жизненного цикла отправки.
// SendError заменяет лог по умолчанию для ошибок отправки.
// ComboError: отдельный слот для ошибок валидации комбо.
type Hooks struct {
	BeforeSend  BeforeSendHook
	SendSuccess SendSuccessHook
	SendError   SendErrorHook
	ComboError  SendErrorHook
}
