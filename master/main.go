package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trapezoid.dev/integral/master/api"
	"trapezoid.dev/integral/master/config"
	"trapezoid.dev/integral/master/icalc"
	"trapezoid.dev/integral/master/shared"
	"trapezoid.dev/integral/master/telegram"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(2)
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("master stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting integral master",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("rpc_addr", cfg.RPCAddr),
		slog.Int("max_intervals", cfg.MaxIntervals),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	calc := icalc.NewCalc(cfg, logger)

	rpcServer, err := shared.NewServer(calc, logger)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", cfg.RPCAddr)
	if err != nil {
		return err
	}
	defer listener.Close()
	logger.Info("RPC server listening", slog.String("addr", listener.Addr().String()))
	go func() {
		if err := shared.Serve(listener, rpcServer, logger); err != nil {
			logger.Error("rpc server failed", slog.String("error", err.Error()))
		}
	}()

	if cfg.Telegram.Token != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		botAPI.Debug = cfg.Telegram.Debug
		logger.Info("telegram bot authorized", slog.String("username", botAPI.Self.UserName))
		go telegram.New(botAPI, calc, cfg, logger).Run(ctx, botAPI)
	} else {
		logger.Debug("telegram token not set, bot disabled")
	}

	return api.NewServer(calc, cfg, logger).Start(ctx, cfg.HTTPAddr)
}
