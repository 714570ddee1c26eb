// Package telegram serves integral evaluations to Telegram chats.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"gonum.org/v1/plot/vg"

	"trapezoid.dev/integral/expr"
	"trapezoid.dev/integral/master/config"
	"trapezoid.dev/integral/master/icalc"
	"trapezoid.dev/integral/render"
)

// ErrUsage is returned by ParseCommand when no function is given.
var ErrUsage = errors.New("usage: /integrate <function> [a b [n]]")

const helpText = `Send /integrate followed by a function of x, optionally the limits and the number of sub-intervals.

Examples:
/integrate sin(x)
/integrate x^2 0 3
/integrate exp(-x^2) -2 2 40

/functions lists sample functions.`

// Sender sends messages; *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Updater fetches updates; *tgbotapi.BotAPI implements it.
type Updater interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

type Bot struct {
	api        Sender
	calc       *icalc.Calc
	logger     *slog.Logger
	plotWidth  vg.Length
	plotHeight vg.Length
}

func New(api Sender, calc *icalc.Calc, cfg *config.Config, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:        api,
		calc:       calc,
		logger:     logger.With(slog.String("component", "telegram")),
		plotWidth:  vg.Length(cfg.Plot.Width) * vg.Centimeter,
		plotHeight: vg.Length(cfg.Plot.Height) * vg.Centimeter,
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, updater Updater) {
	offset := 0
	baseDelay := time.Second
	maxDelay := 15 * time.Second
	delay := baseDelay

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("polling stopped")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := updater.GetUpdates(u)
		if err != nil {
			b.logger.Warn("polling error", slog.String("error", err.Error()), slog.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(2*delay, maxDelay)
			continue
		}
		delay = baseDelay

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate answers one update. Non-command messages get the help text.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	cid := upd.Message.Chat.ID
	if !upd.Message.IsCommand() {
		b.send(cid, helpText)
		return
	}

	switch upd.Message.Command() {
	case "start", "help":
		b.send(cid, helpText)
	case "functions":
		b.send(cid, b.functionsText())
	case "integrate":
		b.integrate(ctx, cid, upd.Message.CommandArguments())
	default:
		b.send(cid, "Unknown command. "+ErrUsage.Error())
	}
}

func (b *Bot) integrate(ctx context.Context, cid int64, args string) {
	req, err := ParseCommand(args, b.calc.Defaults())
	if err != nil {
		b.send(cid, err.Error())
		return
	}

	ctx = icalc.WithSource(icalc.WithRequestID(ctx, uuid.NewString()), "telegram")
	report, err := b.calc.Evaluate(ctx, req)
	if err != nil {
		b.send(cid, err.Error())
		return
	}

	text := fmt.Sprintf("∫ %s dx on [%g, %g], n = %d\n\n%s",
		report.Canonical, report.Lower, report.Upper, report.Intervals,
		icalc.FormatReport(report, b.calc.Digits()))
	if report.Antiderivative != "" {
		text += "\nAntiderivative: " + report.Antiderivative
	}
	b.send(cid, text)

	var buf bytes.Buffer
	if err := render.Write(&buf, report.Result, "png", b.plotWidth, b.plotHeight); err != nil {
		b.logger.Error("plot rendering failed",
			slog.String("request_id", report.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	photo := tgbotapi.NewPhoto(cid, tgbotapi.FileBytes{Name: "trapezoids.png", Bytes: buf.Bytes()})
	photo.Caption = "Trapezoidal Approximation"
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Warn("send photo failed", slog.Int64("chat_id", cid), slog.String("error", err.Error()))
	}
}

func (b *Bot) functionsText() string {
	var sb strings.Builder
	group := ""
	for _, f := range b.calc.Functions() {
		if f.Group != group {
			if group != "" {
				sb.WriteString("\n")
			}
			group = f.Group
			sb.WriteString(group + ":\n")
		}
		sb.WriteString("  " + f.Text + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("send message failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

// ParseCommand reads "<function> [a b [n]]". Trailing numbers are taken as
// the limits and the number of sub-intervals when what precedes them still
// compiles as a function, so "x^2 + 1 0 2" is x^2 + 1 on [0, 2]. The function
// may contain spaces. Missing values come from defaults.
func ParseCommand(args string, defaults icalc.Request) (icalc.Request, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return icalc.Request{}, ErrUsage
	}

	trailing := 0
	for i := len(fields) - 1; i >= 1 && trailing < 3; i-- {
		if _, err := strconv.ParseFloat(fields[i], 64); err != nil {
			break
		}
		trailing++
	}

	for _, k := range []int{3, 2} {
		if trailing < k {
			continue
		}
		function := strings.Join(fields[:len(fields)-k], " ")
		if _, err := expr.Compile(function); err != nil {
			continue
		}
		req := defaults
		req.Function = function
		nums := fields[len(fields)-k:]
		req.Lower, _ = strconv.ParseFloat(nums[0], 64)
		req.Upper, _ = strconv.ParseFloat(nums[1], 64)
		if k == 3 {
			n, err := strconv.Atoi(nums[2])
			if err != nil {
				return icalc.Request{}, fmt.Errorf("number of sub-intervals must be an integer, got %q", nums[2])
			}
			req.Intervals = n
		}
		return req, nil
	}

	req := defaults
	req.Function = strings.Join(fields, " ")
	return req, nil
}
