package main

import (
	"net/http"

	"github.com/pkg/errors"
)

func main() {
	app := mustBootstrapWidgetAPI()
	defer app.Close()

	if err := app.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}
