package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eugenetaranov/volxfer/internal/connector/docker"
	"github.com/eugenetaranov/volxfer/internal/dockerhost"
)

// volumesCmd lists volumes on a remote or the local host
var volumesCmd = &cobra.Command{
	Use:   "volumes",
	Short: "List volumes on a Docker host",
	Long: `List the volume names known to a Docker host.

With --host the remote daemon is queried over SSH; without it the local
daemon is queried.

Examples:
  volxfer volumes
  volxfer volumes --host 192.168.1.50
  volxfer volumes --host pi@192.168.1.50`,
	Args: cobra.NoArgs,
	RunE: listVolumes,
}

func init() {
	volumesCmd.Flags().StringP("host", "H", "", "Remote host (user@address or address)")
}

func listVolumes(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	ctx := cmd.Context()

	if strings.TrimSpace(host) == "" {
		return listLocalVolumes(ctx)
	}

	if dryRun {
		h, err := docker.ParseHost(host, cfg.DefaultUser)
		if err != nil {
			return err
		}
		argv := docker.RemoteArgs(h, "volume", "ls", "--format", "{{ .Name }}")
		out.Plain(cfg.DockerBinary + " " + strings.Join(argv, " "))
		return nil
	}

	if err := newRunner().Connect(ctx, cfg.DockerBinary); err != nil {
		return err
	}

	s := newSession(nil)
	names, ok := s.Volumes(ctx, host)
	if !ok {
		return fmt.Errorf("unable to list volumes on %s", host)
	}

	out.Section(fmt.Sprintf("Volumes on %s", host))
	out.List(names, "no volumes")
	return nil
}

func listLocalVolumes(ctx context.Context) error {
	client, err := dockerhost.New()
	if err != nil {
		return err
	}
	defer client.Close()

	names, err := client.Volumes(ctx)
	if err != nil {
		return err
	}

	out.Section("Local volumes")
	out.List(names, "no volumes")
	return nil
}
