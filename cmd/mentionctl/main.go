package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jessevdk/go-flags"
	"github.com/samber/mo"

	discordclient "mentionguard/clients/discord"
	"mentionguard/config"
	"mentionguard/db"
	"mentionguard/models"
	"mentionguard/services/audit"
	"mentionguard/services/monitoringconfigs"
	"mentionguard/usecases/mentions"
	"mentionguard/utils"
)

const cliActor = "cli"

type Options struct {
	GuildID      string        `long:"guild" required:"true" description:"ID of the guild to inspect"`
	ChannelID    string        `long:"channel" description:"Only inspect this channel"`
	RoleID       string        `long:"role" description:"Only inspect this role"`
	Apply        bool          `long:"apply" description:"Propose fixes and apply them after two timed confirmations"`
	ReadyTimeout time.Duration `long:"ready-timeout" default:"30s" description:"How long to wait for the guild to load"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts Options, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// applying fixes needs the same lock the service holds, so the two never mutate a guild at once
	if opts.Apply {
		processLock, err := utils.NewProcessLock(cfg.LockDir, cfg.DiscordConfig.BotToken)
		if err != nil {
			return fmt.Errorf("failed to create process lock: %w", err)
		}
		if err := processLock.TryLock(); err != nil {
			return fmt.Errorf("refusing to apply fixes: %w", err)
		}
		defer func() {
			if err := processLock.Unlock(); err != nil {
				log.Printf("⚠️ Failed to release process lock: %v", err)
			}
		}()
	}

	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	monitoringConfigsService := monitoringconfigs.NewMonitoringConfigsService(
		dbConn,
		db.NewPostgresMonitoringConfigsRepository(dbConn, cfg.DatabaseSchema),
	)
	auditService := audit.NewAuditService(db.NewPostgresAuditRecordsRepository(dbConn, cfg.DatabaseSchema))

	session, err := discordgo.New("Bot " + cfg.DiscordConfig.BotToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.ShouldRetryOnRateLimit = false
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	ready := make(chan struct{})
	var readyOnce sync.Once
	session.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) {
		if g.ID == opts.GuildID {
			readyOnce.Do(func() { close(ready) })
		}
	})
	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer session.Close()

	select {
	case <-ready:
	case <-time.After(opts.ReadyTimeout):
		return fmt.Errorf("guild %s did not load within %s", opts.GuildID, opts.ReadyTimeout)
	}

	mentionsUseCase := mentions.NewMentionsUseCase(
		discordclient.NewDiscordClient(session),
		monitoringConfigsService,
		auditService,
		mentions.Options{
			GateInitialTimeout:     cfg.GateConfig.InitialTimeout,
			GateFinalTimeout:       cfg.GateConfig.FinalTimeout,
			MonitorDefaultInterval: cfg.MonitoringConfig.DefaultInterval,
			MonitorWorkers:         1,
			RateLimitRetryDelay:    cfg.FixConfig.RateLimitRetryDelay,
			MentionRoleName:        cfg.FixConfig.MentionRoleName,
		},
	)
	defer mentionsUseCase.Close()

	return diagnoseAndFix(context.Background(), mentionsUseCase, opts, in, out)
}

type engine interface {
	Diagnose(ctx context.Context, req mentions.DiagnoseRequest) (*models.Diagnosis, error)
	StartFixSession(ctx context.Context, req mentions.DiagnoseRequest) (*models.FixSession, error)
	ConfirmFixSession(ctx context.Context, operationID, actorID string) (models.GateOperation, error)
	CancelFixSession(ctx context.Context, operationID, actorID string) (models.GateOperation, error)
}

func cliOperator() models.Actor {
	return models.Actor{ID: cliActor, Operator: true}
}

// diagnoseAndFix prints a diagnosis and, with --apply, walks the operator through the confirmation gate.
// An answer given after the gate's deadline fails with core.ErrGateExpired and changes nothing.
func diagnoseAndFix(ctx context.Context, e engine, opts Options, in io.Reader, out io.Writer) error {
	req := mentions.DiagnoseRequest{GuildID: opts.GuildID}
	if opts.ChannelID != "" {
		req.ChannelID = mo.Some(opts.ChannelID)
	}
	if opts.RoleID != "" {
		req.RoleID = mo.Some(opts.RoleID)
	}

	if !opts.Apply {
		diagnosis, err := e.Diagnose(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to diagnose guild: %w", err)
		}
		fmt.Fprintln(out, mentions.FormatDiagnosis(diagnosis))
		return nil
	}

	req.Actor = mo.Some(cliOperator())
	session, err := e.StartFixSession(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to start fix session: %w", err)
	}
	fmt.Fprintln(out, mentions.FormatDiagnosis(session.Diagnosis))
	if session.Operation == nil {
		if len(session.Diagnosis.Issues) > 0 {
			fmt.Fprintln(out, mentions.FormatPlan(session.Plan))
		}
		return nil
	}

	operationID := session.Operation.ID
	fmt.Fprintln(out, mentions.FormatOperation(*session.Operation))

	reader := bufio.NewReader(in)
	if !confirm(reader, out, "Review the fixes above. Continue? [y/N] ", "y") {
		cancelSession(ctx, e, operationID, out)
		return nil
	}
	op, err := e.ConfirmFixSession(ctx, operationID, cliActor)
	if err != nil {
		return fmt.Errorf("failed to confirm fixes: %w", err)
	}
	fmt.Fprintln(out, mentions.FormatOperation(op))

	prompt := fmt.Sprintf("Type 'apply' to apply %d fixes now: ", len(op.Plan.Actions))
	if !confirm(reader, out, prompt, "apply") {
		cancelSession(ctx, e, operationID, out)
		return nil
	}
	op, err = e.ConfirmFixSession(ctx, operationID, cliActor)
	if err != nil {
		return fmt.Errorf("failed to apply fixes: %w", err)
	}
	fmt.Fprintln(out, mentions.FormatOperation(op))
	log.Printf("📋 Completed successfully - applied fixes for guild %s", opts.GuildID)
	return nil
}

func cancelSession(ctx context.Context, e engine, operationID string, out io.Writer) {
	if _, err := e.CancelFixSession(ctx, operationID, cliActor); err != nil {
		log.Printf("⚠️ Failed to cancel fix session %s: %v", operationID, err)
	}
	fmt.Fprintln(out, "Cancelled, no changes were made.")
}

func confirm(reader *bufio.Reader, out io.Writer, prompt, expected string) bool {
	fmt.Fprint(out, prompt)
	answer, err := reader.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), expected)
}
