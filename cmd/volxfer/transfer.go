package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/eugenetaranov/volxfer/internal/busy"
	"github.com/eugenetaranov/volxfer/internal/connector/docker"
	"github.com/eugenetaranov/volxfer/internal/connector/local"
	"github.com/eugenetaranov/volxfer/internal/dockerhost"
	"github.com/eugenetaranov/volxfer/internal/session"
	"github.com/eugenetaranov/volxfer/internal/transfer"
	"github.com/eugenetaranov/volxfer/internal/volume"
)

var errTransferFailed = errors.New("transfer failed")

// transferCmd copies a local volume to a remote host
var transferCmd = &cobra.Command{
	Use:   "transfer <source-volume>",
	Short: "Transfer a local volume to a volume on another Docker host",
	Long: `Replace the contents of a volume on a remote Docker host with the
contents of a local volume.

The destination volume is overwritten: existing data in it is removed once
the archive has been unpacked. In direct mode the archive is unpacked inside
the destination volume, so it needs room for both copies; staged mode
unpacks into a temporary volume first.

Examples:
  volxfer transfer dockprom_prometheus_data --host 192.168.1.50 --volume rpi-vol-2
  volxfer transfer app_data -H pi@10.0.0.7 -V app_data --mode staged --yes
  volxfer transfer app_data -H 10.0.0.7 -V app_data --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runTransfer,
}

func init() {
	transferCmd.Flags().StringP("host", "H", "", "Destination host (user@address or address)")
	transferCmd.Flags().StringP("volume", "V", "", "Destination volume name")
	transferCmd.Flags().String("mode", "", "Transfer mode: direct or staged (default from config)")
	transferCmd.Flags().String("image", "", "Image for the disposable containers (default from config)")
	transferCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

func runTransfer(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	dest, _ := cmd.Flags().GetString("volume")
	mode, _ := cmd.Flags().GetString("mode")
	image, _ := cmd.Flags().GetString("image")
	yes, _ := cmd.Flags().GetBool("yes")

	if host == "" {
		host = cfg.DefaultHost
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if image != "" {
		cfg.Image = image
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	req := transfer.Request{
		SourceVolume:      args[0],
		DestinationHost:   host,
		DestinationVolume: dest,
	}

	if strings.TrimSpace(req.DestinationHost) == "" {
		return fmt.Errorf("destination host is required (--host or default_host)")
	}
	if !session.CanSubmit(req) {
		return fmt.Errorf("destination volume is required (--volume)")
	}

	orch := newOrchestrator()
	if dryRun {
		script, err := orch.Plan(req)
		if err != nil {
			return err
		}
		out.Plain(script)
		return nil
	}

	out.Info("The volume will be transferred to an existing volume named %s in host %s.", req.DestinationVolume, req.DestinationHost)
	out.Warn("This will replace all the existing data inside the existing volume.")
	if !yes && !confirm(cmd) {
		return fmt.Errorf("transfer aborted")
	}

	runner := newRunner()
	for _, bin := range []string{cfg.DockerBinary, cfg.SSHBinary} {
		if err := runner.Connect(cmd.Context(), bin); err != nil {
			return err
		}
	}
	logger.Debug().Str("runner", runner.String()).Msg("local runner ready")

	var checker session.SourceChecker
	if cfg.CheckSource {
		client, err := dockerhost.New()
		if err != nil {
			return err
		}
		defer client.Close()
		checker = client
	}

	// Once submitted the pipeline runs to completion; interrupts are
	// acknowledged but do not abort it.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			fmt.Fprintln(os.Stderr, "\nTransfer in progress, waiting for it to finish...")
		}
	}()

	s := newSession(checker, session.WithOnClose(func() {
		logger.Debug().Msg("transfer settled")
	}))
	result := s.Transfer(context.WithoutCancel(cmd.Context()), req)
	if !result.OK() {
		return errTransferFailed
	}
	return nil
}

// confirm asks the user to continue. Without a terminal on stdin it refuses.
func confirm(cmd *cobra.Command) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		out.Warn("stdin is not a terminal; pass --yes to confirm")
		return false
	}

	fmt.Fprint(cmd.OutOrStdout(), "Continue? [y/N] ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func newRunner() *local.Connector {
	return local.New(local.WithLogger(logger))
}

func newOrchestrator() *transfer.Orchestrator {
	return transfer.New(newRunner(),
		transfer.WithDockerBinary(cfg.DockerBinary),
		transfer.WithSSH(cfg.SSHBinary, cfg.SSHOptions...),
		transfer.WithImage(cfg.Image),
		transfer.WithMode(cfg.TransferMode()),
		transfer.WithPolicy(cfg.Policy()),
		transfer.WithDefaultUser(cfg.DefaultUser),
		transfer.WithLogger(logger),
		transfer.WithStateHook(func(s transfer.State) {
			logger.Debug().Str("state", s.String()).Msg("transfer state")
		}),
	)
}

func newSession(checker session.SourceChecker, opts ...session.Option) *session.Session {
	cli := docker.New(newRunner(), docker.WithBinary(cfg.DockerBinary))
	lister := volume.NewLister(cli,
		volume.WithDefaultUser(cfg.DefaultUser),
		volume.WithPolicy(cfg.Policy()),
		volume.WithLogger(logger),
	)

	var ind busy.Indicator = &busy.Flag{}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		ind = busy.NewSpinner(os.Stderr, "Transferring")
	}

	opts = append([]session.Option{
		session.WithBusy(ind),
		session.WithLogger(logger),
	}, opts...)
	if checker != nil {
		opts = append(opts, session.WithSourceChecker(checker))
	}

	return session.New(lister, newOrchestrator(), out, opts...)
}
