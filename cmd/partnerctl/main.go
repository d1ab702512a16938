// Package main содержит консольную утилиту партнёра для отправки реферальных событий
// и проверки промокодов.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ambassador-ledger/internal/partner"
)

const maxAttempts = 3

type options struct {
	Address string `env:"LEDGER_ADDRESS"`
	APIKey  string `env:"PARTNER_API_KEY"`
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: partnerctl [-a address] [-k key] <command> [args]

commands:
  verify <code>                          check a promo code
  signup <code> <clientId> [name]        report a client signup
  activate <code> <clientId> <amount> [eventId]
                                         report a paid subscription (amount in FCFA)`)
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := run(os.Args[1:], os.Stdout, sugar); err != nil {
		sugar.Fatalw("partnerctl failed", "error", err)
	}
}

func run(args []string, out io.Writer, sugar *zap.SugaredLogger) error {
	opts := options{}
	fs := flag.NewFlagSet("partnerctl", flag.ContinueOnError)
	fs.StringVar(&opts.Address, "a", "localhost:8080", "ledger service address")
	fs.StringVar(&opts.APIKey, "k", "", "partner API key")
	fs.Usage = func() { usage(fs.Output()) }
	if err := fs.Parse(args); err != nil {
		return err
	}

	var envOpts options
	if err := env.Parse(&envOpts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if envOpts.Address != "" {
		opts.Address = envOpts.Address
	}
	if envOpts.APIKey != "" {
		opts.APIKey = envOpts.APIKey
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := partner.NewClient(opts.Address, opts.APIKey)
	rest := fs.Args()
	if len(rest) == 0 {
		usage(out)
		return errors.New("command is required")
	}

	cmd, rest := rest[0], rest[1:]
	switch cmd {
	case "verify":
		if len(rest) != 1 {
			return errors.New("verify: promo code is required")
		}
		res, err := client.VerifyCode(ctx, rest[0])
		if err != nil {
			return err
		}
		if !res.Valid {
			fmt.Fprintf(out, "%s: invalid\n", rest[0])
			return nil
		}
		fmt.Fprintf(out, "%s: valid (%s)\n", res.ReferralCode, res.AmbassadorName)
		return nil

	case "signup":
		if len(rest) < 2 {
			return errors.New("signup: code and client id are required")
		}
		evt := partner.Event{Code: rest[0], Event: "signup", ClientID: rest[1]}
		if len(rest) > 2 {
			evt.ClientName = rest[2]
		}
		return send(ctx, client, evt, out, sugar)

	case "activate":
		if len(rest) < 3 {
			return errors.New("activate: code, client id and amount are required")
		}
		amount, err := decimal.NewFromString(rest[2])
		if err != nil {
			return fmt.Errorf("activate: invalid amount %q: %w", rest[2], err)
		}
		evt := partner.Event{Code: rest[0], Event: "activation", ClientID: rest[1], Amount: &amount}
		if len(rest) > 3 {
			evt.EventID = rest[3]
		}
		return send(ctx, client, evt, out, sugar)

	default:
		usage(out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// send повторяет отправку, пока сервис отвечает 429.
func send(ctx context.Context, client *partner.Client, evt partner.Event, out io.Writer, sugar *zap.SugaredLogger) error {
	for attempt := 1; ; attempt++ {
		res, err := client.SendEvent(ctx, evt)
		if err == nil {
			fmt.Fprintf(out, "%s: %s\n", res.AmbassadorID, res.Message)
			if res.MonoyiAwarded != nil {
				fmt.Fprintf(out, "monoyi awarded: %d\n", *res.MonoyiAwarded)
			}
			if res.Duplicate {
				fmt.Fprintln(out, "duplicate delivery, nothing credited")
			}
			return nil
		}

		var statusErr *partner.StatusError
		if !errors.As(err, &statusErr) || statusErr.RetryAfter == 0 || attempt == maxAttempts {
			return err
		}

		sugar.Infow("rate limited, retrying", "attempt", attempt, "retryAfter", statusErr.RetryAfter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(statusErr.RetryAfter):
		}
	}
}
