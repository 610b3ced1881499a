package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/DispatchBox/config"
	"github.com/BearBump/DispatchBox/internal/services/widget"
)

type widgetAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    widgetAPIOpts
	ctl     *widget.Controller
	closeFn func()
}

func mustBootstrapWidgetAPI() *widgetAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.Widget.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	ctl, closeFn, err := buildController(cfg, defaultWidgetFactories())
	if err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &widgetAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: widgetAPIOpts{
			httpAddr:    httpAddr,
			swaggerPath: swaggerPath,
		},
		ctl:     ctl,
		closeFn: closeFn,
	}
}

func (a *widgetAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.closeFn != nil {
		a.closeFn()
	}
}

func (a *widgetAPIApp) Run() error {
	return runWidgetAPI(a.ctx, a.opts, a.ctl)
}
