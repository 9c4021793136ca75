package transfer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/volxfer/internal/connector"
	"github.com/eugenetaranov/volxfer/internal/connector/local"
	"github.com/eugenetaranov/volxfer/internal/logging"
	"github.com/eugenetaranov/volxfer/internal/outcome"
)

type fakeRunner struct {
	result *connector.Result
	err    error
	calls  [][]string
}

func (f *fakeRunner) Exec(ctx context.Context, name string, args ...string) (*connector.Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.result, f.err
}

var scenario = Request{
	SourceVolume:      "dockprom_prometheus_data",
	DestinationHost:   "192.168.1.50",
	DestinationVolume: "rpi-vol-2",
}

func TestTransferSuccess(t *testing.T) {
	r := &fakeRunner{result: &connector.Result{}}
	var states []State
	o := New(r, WithStateHook(func(s State) { states = append(states, s) }))

	out := o.Transfer(context.Background(), scenario)

	require.True(t, out.OK())
	assert.Equal(t,
		"Volume dockprom_prometheus_data transferred to destination volume rpi-vol-2 in host 192.168.1.50",
		out.Message)
	assert.Equal(t, []State{InProgress, Succeeded}, states)

	require.Len(t, r.calls, 1, "the pipeline is submitted as a single command")
	assert.Equal(t, "/bin/sh", r.calls[0][0])
	assert.Equal(t, "-c", r.calls[0][1])
	script, err := o.Plan(scenario)
	require.NoError(t, err)
	assert.Equal(t, script, r.calls[0][2])
}

func TestTransferCommandFailure(t *testing.T) {
	r := &fakeRunner{result: &connector.Result{Stderr: "tar: short read"}}
	var states []State
	o := New(r, WithStateHook(func(s State) { states = append(states, s) }))

	out := o.Transfer(context.Background(), scenario)

	assert.Equal(t, outcome.CommandFailure, out.Kind)
	assert.Equal(t, "tar: short read", out.Message)
	assert.Equal(t, []State{InProgress, Failed}, states)
}

func TestTransferTransportError(t *testing.T) {
	r := &fakeRunner{err: &connector.ExecError{Cmd: "/bin/sh", Stderr: "ssh: connect to host 192.168.1.50 port 22: No route to host", Code: 255}}

	out := New(r).Transfer(context.Background(), scenario)

	assert.Equal(t, outcome.TransportError, out.Kind)
	assert.Equal(t,
		"Failed to transfer volume dockprom_prometheus_data to destination volume rpi-vol-2: ssh: connect to host 192.168.1.50 port 22: No route to host Exit code: 255",
		out.Message)
}

func TestTransferFailureLoggedAtDebugOnly(t *testing.T) {
	r := &fakeRunner{result: &connector.Result{Stderr: "tar: short read"}}

	var quiet bytes.Buffer
	out := New(r, WithLogger(logging.New(&quiet, false))).Transfer(context.Background(), scenario)
	require.Equal(t, outcome.CommandFailure, out.Kind)
	assert.Empty(t, quiet.String(), "the failure is reported through the outcome, not the log")

	var verbose bytes.Buffer
	New(r, WithLogger(logging.New(&verbose, true))).Transfer(context.Background(), scenario)
	assert.Contains(t, verbose.String(), "tar: short read")
}

func TestTransferEmptyHost(t *testing.T) {
	r := &fakeRunner{}
	req := scenario
	req.DestinationHost = ""

	out := New(r).Transfer(context.Background(), req)

	assert.Equal(t, outcome.TransportError, out.Kind)
	assert.Empty(t, r.calls)
}

func TestTransferDoesNotValidateDestination(t *testing.T) {
	r := &fakeRunner{result: &connector.Result{}}
	req := scenario
	req.DestinationVolume = ""

	New(r).Transfer(context.Background(), req)

	assert.Len(t, r.calls, 1, "an empty destination is the caller's responsibility")
}

func TestTransferRepeatReruns(t *testing.T) {
	r := &fakeRunner{result: &connector.Result{}}
	o := New(r)

	o.Transfer(context.Background(), scenario)
	o.Transfer(context.Background(), scenario)

	require.Len(t, r.calls, 2)
	assert.Equal(t, r.calls[0], r.calls[1])
}

func TestTransferStagedName(t *testing.T) {
	r := &fakeRunner{result: &connector.Result{}}
	o := New(r, WithMode(ModeStaged))

	script, err := o.Plan(scenario)
	require.NoError(t, err)

	assert.Contains(t, script, "rpi-vol-2-volxfer-staging-")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "in progress", InProgress.String())
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "failed", Failed.String())
}

// fakeDocker stands in for the container runtime on both hosts. Volumes are
// directories under $VOLS. For "run", every -v mount is linked under $MOUNTS
// and the container script is executed by the host shell with the mount
// points rewritten to those links.
const fakeDocker = `#!/bin/sh
printf '%s\n' "$*" >> "$LOG"
if [ "$1" = volume ]; then
  case "$2" in
    create) mkdir -p "$VOLS/$3" ;;
    rm) rm -rf "$VOLS/$4" ;;
  esac
  exit 0
fi
shift 2
[ "$1" = -i ] && shift
mkdir -p "$MOUNTS"
rewrite="$MOUNTS/rewrite.$$.sed"
: > "$rewrite"
while [ "$1" = -v ]; do
  vol=${2%%:*}
  mnt=${2#*:}
  mnt=${mnt%%:*}
  if [ "$mnt" = /from ] && [ -n "$FAIL_SOURCE" ]; then
    echo 'docker: Cannot connect to the Docker daemon' >&2
    exit 1
  fi
  mkdir -p "$VOLS/$vol"
  ln -sfn "$VOLS/$vol" "$MOUNTS$mnt"
  printf 's# %s# %s%s#g\n' "$mnt" "$MOUNTS" "$mnt" >> "$rewrite"
  shift 2
done
shift 3
script=$(printf '%s\n' "$1" | sed -f "$rewrite")
exec /bin/sh -c "$script"
`

// fakeSSH logs the target and runs the remote command locally.
const fakeSSH = `#!/bin/sh
shift $(($# - 2))
printf 'ssh %s\n' "$1" >> "$LOG"
exec /bin/sh -c "$2"
`

type fakeHosts struct {
	dir  string
	log  string
	vols string
}

func newFakeHosts(t *testing.T) *fakeHosts {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker"), []byte(fakeDocker), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ssh"), []byte(fakeSSH), 0o755))
	return &fakeHosts{
		dir:  dir,
		log:  filepath.Join(dir, "calls.log"),
		vols: filepath.Join(dir, "vols"),
	}
}

func (f *fakeHosts) orchestrator(mode Mode, env ...string) *Orchestrator {
	opts := []local.Option{
		local.WithEnv("LOG", f.log),
		local.WithEnv("VOLS", f.vols),
		local.WithEnv("MOUNTS", filepath.Join(f.dir, "mnt")),
	}
	for i := 0; i+1 < len(env); i += 2 {
		opts = append(opts, local.WithEnv(env[i], env[i+1]))
	}

	return New(local.New(opts...),
		WithDockerBinary(filepath.Join(f.dir, "docker")),
		WithSSH(filepath.Join(f.dir, "ssh"), "BatchMode=yes"),
		WithMode(mode),
	)
}

// volume fills the named volume with files, replacing what was there.
func (f *fakeHosts) volume(t *testing.T, name string, files map[string]string) {
	t.Helper()
	root := filepath.Join(f.vols, name)
	require.NoError(t, os.RemoveAll(root))
	for path, content := range files {
		full := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	require.NoError(t, os.MkdirAll(root, 0o755))
}

// contents returns every regular file in the named volume by relative path.
func (f *fakeHosts) contents(t *testing.T, name string) map[string]string {
	t.Helper()
	root := filepath.Join(f.vols, name)
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

// volumes lists the volume names that exist.
func (f *fakeHosts) volumes(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.vols)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (f *fakeHosts) calls(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.log)
	require.NoError(t, err)
	return string(data)
}

var sourceFiles = map[string]string{
	"prometheus.db":  "new samples",
	"wal/00000001":   "segment",
	".lock-metadata": "hidden",
}

func TestTransferPipelineDirect(t *testing.T) {
	hosts := newFakeHosts(t)
	hosts.volume(t, "app data", sourceFiles)
	hosts.volume(t, "it's-vol", map[string]string{
		"stale.db":      "old samples",
		".stale":        "old hidden",
		"old/segment":   "old",
		"prometheus.db": "old samples",
	})
	req := Request{
		SourceVolume:      "app data",
		DestinationHost:   "pi@192.168.1.50",
		DestinationVolume: "it's-vol",
	}

	out := hosts.orchestrator(ModeDirect).Transfer(context.Background(), req)
	require.True(t, out.OK(), out.Message)

	assert.Equal(t, sourceFiles, hosts.contents(t, "it's-vol"), "destination is replaced, not merged")
	assert.Equal(t, sourceFiles, hosts.contents(t, "app data"), "source is left alone")

	calls := hosts.calls(t)
	assert.Contains(t, calls, "run --rm -v app data:/from:ro alpine sh -c cd /from && tar -czf - .")
	assert.Contains(t, calls, "ssh pi@192.168.1.50")
	assert.Contains(t, calls, "run --rm -i -v it's-vol:/to alpine sh -c cd /to && ")
}

func TestTransferPipelineDirectSourceFailureKeepsDestination(t *testing.T) {
	hosts := newFakeHosts(t)
	hosts.volume(t, "dockprom_prometheus_data", sourceFiles)
	existing := map[string]string{"precious.db": "keep me", "sub/data": "keep me too"}
	hosts.volume(t, "rpi-vol-2", existing)

	out := hosts.orchestrator(ModeDirect, "FAIL_SOURCE", "1").Transfer(context.Background(), scenario)

	assert.Equal(t, outcome.TransportError, out.Kind)
	assert.Contains(t, out.Message, "Cannot connect to the Docker daemon")
	assert.Equal(t, existing, hosts.contents(t, "rpi-vol-2"), "no data arrived, nothing may be removed")
}

func TestTransferPipelineRepeatOverwrites(t *testing.T) {
	hosts := newFakeHosts(t)
	hosts.volume(t, "dockprom_prometheus_data", map[string]string{"a": "first", "b": "first"})
	hosts.volume(t, "rpi-vol-2", nil)

	o := hosts.orchestrator(ModeDirect)
	out := o.Transfer(context.Background(), scenario)
	require.True(t, out.OK(), out.Message)
	assert.Equal(t, map[string]string{"a": "first", "b": "first"}, hosts.contents(t, "rpi-vol-2"))

	hosts.volume(t, "dockprom_prometheus_data", map[string]string{"a": "second"})
	out = o.Transfer(context.Background(), scenario)
	require.True(t, out.OK(), out.Message)

	assert.Equal(t, map[string]string{"a": "second"}, hosts.contents(t, "rpi-vol-2"), "b must not survive the second transfer")
	assert.Equal(t, 2, strings.Count(hosts.calls(t), "ssh 192.168.1.50"))
}

func TestTransferPipelineStaged(t *testing.T) {
	hosts := newFakeHosts(t)
	hosts.volume(t, "dockprom_prometheus_data", sourceFiles)
	hosts.volume(t, "rpi-vol-2", map[string]string{"stale.db": "old", ".stale": "old"})

	out := hosts.orchestrator(ModeStaged).Transfer(context.Background(), scenario)
	require.True(t, out.OK(), out.Message)

	assert.Equal(t, sourceFiles, hosts.contents(t, "rpi-vol-2"), "destination is replaced, not merged")
	assert.ElementsMatch(t, []string{"dockprom_prometheus_data", "rpi-vol-2"}, hosts.volumes(t), "staging volume is removed")

	calls := hosts.calls(t)
	assert.Contains(t, calls, "volume create rpi-vol-2-volxfer-staging-")
	assert.Contains(t, calls, ":/stage:ro -v rpi-vol-2:/to")
}

func TestTransferPipelineStagedFailureKeepsDestination(t *testing.T) {
	hosts := newFakeHosts(t)
	hosts.volume(t, "dockprom_prometheus_data", sourceFiles)
	existing := map[string]string{"precious.db": "keep me"}
	hosts.volume(t, "rpi-vol-2", existing)

	out := hosts.orchestrator(ModeStaged, "FAIL_SOURCE", "1").Transfer(context.Background(), scenario)

	assert.Equal(t, outcome.TransportError, out.Kind)
	assert.Contains(t, out.Message, "Cannot connect to the Docker daemon")
	assert.Equal(t, existing, hosts.contents(t, "rpi-vol-2"))
	assert.ElementsMatch(t, []string{"dockprom_prometheus_data", "rpi-vol-2"}, hosts.volumes(t), "staging volume is removed on failure")

	calls := hosts.calls(t)
	assert.NotContains(t, calls, ":/stage:ro", "destination must not be touched after a failed extraction")
	assert.Contains(t, calls, "volume rm -f rpi-vol-2-volxfer-staging-")
}
