package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lagrafica/mailboard/internal/board"
	"github.com/lagrafica/mailboard/internal/credential"
	"github.com/lagrafica/mailboard/internal/engine"
	"github.com/lagrafica/mailboard/internal/mailbox"
	"github.com/lagrafica/mailboard/internal/model"
	"github.com/lagrafica/mailboard/internal/ops"
	"github.com/lagrafica/mailboard/internal/store"
	msync "github.com/lagrafica/mailboard/internal/sync"
)

// opTimeout bounds a single one-shot invocation.
const opTimeout = 2 * time.Minute

// errReported marks an error that was already printed as JSON.
var errReported = errors.New("reported")

func main() {
	// A local .env supplies credentials and endpoints in development.
	_ = godotenv.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})

	var configPath string

	rootCmd := &cobra.Command{
		Use:           "mailboard",
		Short:         "Mail ingestion pipeline: fetch, classify and route mailbox messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", model.DefaultConfigPath(), "path to the YAML config file",
	)

	newService := func() (*ops.Service, *engine.Engine, *model.AppConfig, error) {
		cfg, err := model.LoadConfig(configPath)
		if err != nil {
			return nil, nil, nil, err
		}

		st, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, nil, nil, err
		}

		var creator board.Creator
		if cfg.Board.BaseURL != "" {
			creator = board.NewClient(cfg.Board.BaseURL)
		}

		eng := engine.New(st, creator, logger)
		return ops.New(*cfg, eng, logger), eng, cfg, nil
	}

	rootCmd.AddCommand(
		newServeCmd(newService, logger),
		newFetchCmd(newService),
		newBodyCmd(newService),
		newAttachmentsCmd(newService),
		newMoveCmd(newService),
		newSendCmd(newService),
		newEmptyCmd(newService),
		newCheckCmd(logger, &configPath),
		newAuthCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

type serviceFactory func() (*ops.Service, *engine.Engine, *model.AppConfig, error)

// printJSON writes the result of one invocation mode to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// printError emits the JSON error object and flags the error as
// already reported.
func printError(err error) error {
	_ = printJSON(map[string]string{"error": err.Error()})
	return fmt.Errorf("%w: %v", errReported, err)
}

func newServeCmd(factory serviceFactory, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the background polling loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, eng, cfg, err := factory()
			if err != nil {
				return err
			}

			poller := msync.New(*cfg, eng, logger)
			poller.Start()
			defer poller.Stop()

			logger.Info("polling started",
				"mailboxes", len(cfg.Mailboxes),
				"interval_sec", cfg.PollIntervalSec)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh

			logger.Info("shutting down")
			return nil
		},
	}
}

func newFetchCmd(factory serviceFactory) *cobra.Command {
	var headersOnly bool

	cmd := &cobra.Command{
		Use:   "fetch <owner> <folder>",
		Short: "Fetch the most recent messages of a folder as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := factory()
			if err != nil {
				return printError(err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			msgs, err := svc.Fetch(ctx, args[0], args[1], headersOnly)
			if err != nil {
				return printError(err)
			}
			if msgs == nil {
				msgs = []*model.Message{}
			}
			return printJSON(msgs)
		},
	}
	cmd.Flags().BoolVar(&headersOnly, "headers-only", false,
		"skip body download; return envelope data and attachment hints")
	return cmd
}

func newBodyCmd(factory serviceFactory) *cobra.Command {
	var uid uint32

	cmd := &cobra.Command{
		Use:   "body <owner> <folder>",
		Short: "Fetch one message with its full body",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := factory()
			if err != nil {
				return printError(err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			msg, err := svc.FetchBody(ctx, args[0], uid, args[1])
			if err != nil {
				return printError(err)
			}
			return printJSON(msg)
		},
	}
	cmd.Flags().Uint32Var(&uid, "uid", 0, "message identifier")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func newAttachmentsCmd(factory serviceFactory) *cobra.Command {
	var uid uint32

	cmd := &cobra.Command{
		Use:   "attachments <owner> <folder>",
		Short: "Download the attachments of one message (base64 payloads)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := factory()
			if err != nil {
				return printError(err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			atts, err := svc.DownloadAttachments(ctx, args[0], uid, args[1])
			if err != nil {
				return printError(err)
			}
			if atts == nil {
				atts = []model.Attachment{}
			}
			return printJSON(atts)
		},
	}
	cmd.Flags().Uint32Var(&uid, "uid", 0, "message identifier")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func newMoveCmd(factory serviceFactory) *cobra.Command {
	var (
		uid    uint32
		source string
	)

	cmd := &cobra.Command{
		Use:   "move <owner> <target-folder>",
		Short: "Move one message into the target folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := factory()
			if err != nil {
				return printError(err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			status, err := svc.Move(ctx, args[0], uid, source, args[1])
			if err != nil {
				return printError(err)
			}
			return printJSON(status)
		},
	}
	cmd.Flags().Uint32Var(&uid, "uid", 0, "message identifier")
	cmd.Flags().StringVar(&source, "source", "INBOX", "folder the message currently lives in")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func newSendCmd(factory serviceFactory) *cobra.Command {
	var (
		to          string
		subject     string
		body        string
		attachments []string
	)

	cmd := &cobra.Command{
		Use:   "send <owner>",
		Short: "Compose and deliver a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := factory()
			if err != nil {
				return printError(err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			status, err := svc.Send(ctx, args[0], to, subject, body, attachments)
			if err != nil {
				return printError(err)
			}
			return printJSON(status)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVar(&subject, "subject", "", "message subject")
	cmd.Flags().StringVar(&body, "body", "", "plain-text body")
	cmd.Flags().StringSliceVar(&attachments, "attach", nil, "file paths to attach")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage mailbox credentials in the system keyring",
	}

	var (
		user string
		pass string
	)
	setCmd := &cobra.Command{
		Use:   "set <owner>",
		Short: "Store a mailbox login in the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := args[0]
			if err := credential.Set(credential.UserKey(owner), user); err != nil {
				return printError(err)
			}
			if err := credential.Set(credential.PassKey(owner), pass); err != nil {
				return printError(err)
			}
			return printJSON(ops.Status{Success: true, Message: "stored credentials for " + owner})
		},
	}
	setCmd.Flags().StringVar(&user, "user", "", "login name")
	setCmd.Flags().StringVar(&pass, "pass", "", "password")
	_ = setCmd.MarkFlagRequired("user")
	_ = setCmd.MarkFlagRequired("pass")

	unsetCmd := &cobra.Command{
		Use:   "unset <owner>",
		Short: "Remove a mailbox login from the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := args[0]
			if err := credential.Delete(credential.UserKey(owner)); err != nil {
				return printError(err)
			}
			if err := credential.Delete(credential.PassKey(owner)); err != nil {
				return printError(err)
			}
			return printJSON(ops.Status{Success: true, Message: "removed credentials for " + owner})
		},
	}

	authCmd.AddCommand(setCmd, unsetCmd)
	return authCmd
}

func newCheckCmd(logger *log.Logger, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check <owner>",
		Short: "Verify that a mailbox's credentials work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadConfig(*configPath)
			if err != nil {
				return printError(err)
			}

			cred, err := credential.Resolve(args[0], cfg.IMAP)
			if err != nil {
				return printError(err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			client := mailbox.NewClient(cred, mailbox.NewAliases(cfg.FolderAliases), logger)
			username, err := client.ValidateConnection(ctx)
			if err != nil {
				return printError(err)
			}
			return printJSON(ops.Status{Success: true, Message: username})
		},
	}
}

func newEmptyCmd(factory serviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "empty <owner> <folder>",
		Short: "Delete every message in a folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := factory()
			if err != nil {
				return printError(err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			status, err := svc.EmptyFolder(ctx, args[0], args[1])
			if err != nil {
				return printError(err)
			}
			return printJSON(status)
		},
	}
}
