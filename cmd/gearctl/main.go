package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/netpie/microgear-go/internal/utils"
	"github.com/netpie/microgear-go/pkg/file"
	"github.com/netpie/microgear-go/pkg/microgear"
)

var Flags = []cli.Flag{
	FlagConfig,
	FlagLogLevel,
	FlagLogWriter,
	FlagKey,
	FlagSecret,
	FlagAlias,
	FlagAppID,
	FlagScope,
	FlagSecure,
	FlagCachePath,
	FlagAuthAddress,
}

func main() {
	var logger zerolog.Logger

	app := cli.App{
		Name:  "gearctl",
		Usage: "command-line client for the gear cloud broker",
		Flags: Flags,
		Before: func(ctx *cli.Context) error {
			var logWriter io.Writer = os.Stderr
			if ctx.String(FlagLogWriter.Name) == "console" {
				logWriter = zerolog.ConsoleWriter{
					Out:        os.Stderr,
					TimeFormat: time.RFC3339Nano,
				}
			}

			logger = zerolog.New(logWriter).With().Timestamp().
				Str("service", "gearctl").
				Logger()

			level, err := zerolog.ParseLevel(ctx.String(FlagLogLevel.Name))
			if err != nil {
				return err
			}
			zerolog.SetGlobalLevel(level)

			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "connect and print messages and presence events",
				Action: func(ctx *cli.Context) error {
					return runCommand(ctx, &logger)
				},
			},
			{
				Name:      "pub",
				Usage:     "publish a single message",
				ArgsUsage: "<topic> <message>",
				Action: func(ctx *cli.Context) error {
					return pubCommand(ctx, &logger)
				},
			},
			{
				Name:      "chat",
				Usage:     "send a message to a named peer",
				ArgsUsage: "<alias> <message>",
				Action: func(ctx *cli.Context) error {
					return chatCommand(ctx, &logger)
				},
			},
			{
				Name:  "reset-token",
				Usage: "revoke the cached access token",
				Action: func(ctx *cli.Context) error {
					return resetTokenCommand(ctx, &logger)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newClient builds a client from the config file when given, falling back
// to flags. The returned appID scopes all topic operations.
func newClient(ctx *cli.Context, logger *zerolog.Logger) (*microgear.Client, string, error) {
	cfg := microgear.Config{
		Key:         ctx.String(FlagKey.Name),
		Secret:      ctx.String(FlagSecret.Name),
		Alias:       ctx.String(FlagAlias.Name),
		Scope:       ctx.String(FlagScope.Name),
		Secure:      ctx.Bool(FlagSecure.Name),
		CachePath:   ctx.String(FlagCachePath.Name),
		AuthAddress: ctx.String(FlagAuthAddress.Name),
	}
	appID := ctx.String(FlagAppID.Name)

	if path := ctx.String(FlagConfig.Name); path != "" {
		fileCfg, err := utils.LoadConfig(path, file.NewFileService())
		if err != nil {
			return nil, "", fmt.Errorf("load config: %w", err)
		}
		cfg = fileCfg.Gear
		if appID == "" {
			appID = fileCfg.App.ID
		}
	}

	if appID == "" {
		return nil, "", errors.New("an application id is required (--appid or config)")
	}
	if cfg.Alias == "" {
		// Give interactive sessions a distinct, addressable name.
		cfg.Alias = "gearctl-" + uuid.NewString()[:8]
	}

	client, err := microgear.New(cfg, *logger)
	if err != nil {
		return nil, "", err
	}
	return client, appID, nil
}

// connectAndWait starts the connection lifecycle and blocks until the
// first connected event or the timeout.
func connectAndWait(client *microgear.Client, appID string, timeout time.Duration) error {
	ready := make(chan struct{}, 1)
	if err := client.On(microgear.EventConnected, func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	}); err != nil {
		return err
	}

	if err := client.Connect(appID); err != nil {
		return err
	}

	select {
	case <-ready:
		return nil
	case <-time.After(timeout):
		return errors.New("timed out waiting for the broker connection")
	}
}

func runCommand(ctx *cli.Context, logger *zerolog.Logger) error {
	client, appID, err := newClient(ctx, logger)
	if err != nil {
		return err
	}

	client.On(microgear.EventMessage, func(topic string, payload []byte) {
		fmt.Printf("%s %s\n", topic, payload)
	})
	client.On(microgear.EventPresent, func(ev interface{}) {
		logger.Info().Interface("event", ev).Msg("Peer present")
	})
	client.On(microgear.EventAbsent, func(ev interface{}) {
		logger.Info().Interface("event", ev).Msg("Peer absent")
	})
	client.On(microgear.EventInfo, func(msg string) {
		logger.Info().Msg(msg)
	})
	client.On(microgear.EventError, func(msg string) {
		logger.Error().Msg(msg)
	})
	client.On(microgear.EventRejected, func(msg string) {
		logger.Error().Str("reason", msg).Msg("Authorization rejected")
	})

	if err := connectAndWait(client, appID, time.Minute); err != nil {
		return err
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down")
	client.Disconnect()
	return nil
}

func pubCommand(ctx *cli.Context, logger *zerolog.Logger) error {
	if ctx.Args().Len() < 2 {
		return errors.New("usage: gearctl pub <topic> <message>")
	}

	client, appID, err := newClient(ctx, logger)
	if err != nil {
		return err
	}
	if err := connectAndWait(client, appID, time.Minute); err != nil {
		return err
	}
	defer client.Disconnect()

	return client.Publish(ctx.Args().Get(0), []byte(ctx.Args().Get(1)))
}

func chatCommand(ctx *cli.Context, logger *zerolog.Logger) error {
	if ctx.Args().Len() < 2 {
		return errors.New("usage: gearctl chat <alias> <message>")
	}

	client, appID, err := newClient(ctx, logger)
	if err != nil {
		return err
	}
	if err := connectAndWait(client, appID, time.Minute); err != nil {
		return err
	}
	defer client.Disconnect()

	return client.Chat(ctx.Args().Get(0), []byte(ctx.Args().Get(1)))
}

func resetTokenCommand(ctx *cli.Context, logger *zerolog.Logger) error {
	client, _, err := newClient(ctx, logger)
	if err != nil {
		return err
	}
	if err := client.ResetToken(); err != nil {
		return err
	}
	logger.Info().Msg("Access token revoked and cache cleared")
	return nil
}
