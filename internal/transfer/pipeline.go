package transfer

import (
	"fmt"
	"strings"

	"github.com/eugenetaranov/volxfer/internal/connector/docker"
)

// Fixed mount points inside the disposable containers.
const (
	sourceMount = "/from"
	destMount   = "/to"
	stageMount  = "/stage"
)

// Mode selects how the destination volume is written.
type Mode string

const (
	// ModeDirect extracts straight into the destination volume.
	ModeDirect Mode = "direct"

	// ModeStaged extracts into a staging volume first and only replaces the
	// destination once the whole archive has arrived.
	ModeStaged Mode = "staged"
)

// ParseMode validates a mode name. An empty name selects ModeDirect.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeDirect:
		return ModeDirect, nil
	case ModeStaged:
		return ModeStaged, nil
	default:
		return "", fmt.Errorf("unknown transfer mode %q (want %q or %q)", s, ModeDirect, ModeStaged)
	}
}

// pipeline holds everything needed to render the shell pipeline.
type pipeline struct {
	dockerBinary string
	sshBinary    string
	sshOptions   []string
	image        string
	mode         Mode
	source       string
	host         docker.Host
	dest         string
	staging      string
}

// render composes the archive stage, the ssh hop and the extract stage into
// one shell command line.
func (p pipeline) render() string {
	archive := strings.Join([]string{
		shellQuote(p.dockerBinary), "run", "--rm",
		"-v", shellQuote(p.source + ":" + sourceMount + ":ro"),
		shellQuote(p.image),
		"sh", "-c", shellQuote("cd " + sourceMount + " && tar -czf - ."),
	}, " ")

	ssh := []string{shellQuote(p.sshBinary)}
	if port := p.host.Port(); port != "" {
		ssh = append(ssh, "-p", shellQuote(port))
	}
	for _, opt := range p.sshOptions {
		ssh = append(ssh, "-o", shellQuote(opt))
	}
	ssh = append(ssh, shellQuote(p.host.SSHTarget()), shellQuote(p.remote()))

	return archive + " | " + strings.Join(ssh, " ")
}

// remote returns the script run by the destination host's shell.
func (p pipeline) remote() string {
	if p.mode == ModeStaged {
		return p.remoteStaged()
	}
	return p.remoteDirect()
}

// remoteDirect unpacks into incoming inside the destination volume and only
// replaces the previous contents once tar has succeeded. A failed or empty
// stream leaves the volume as it was.
func (p pipeline) remoteDirect() string {
	script := strings.Join([]string{
		"cd " + destMount,
		"rm -rf " + incoming,
		"mkdir " + incoming,
		"{ tar -xpzf - -C " + incoming + " || { rc=$?; rm -rf " + incoming + "; exit $rc; }; }",
		"find . -mindepth 1 -maxdepth 1 ! -name " + incoming + " -exec rm -rf {} \\;",
		"find " + incoming + " -mindepth 1 -maxdepth 1 -exec mv {} . \\;",
		"rmdir " + incoming,
	}, " && ")
	return p.run(true, p.dest+":"+destMount, script)
}

func (p pipeline) remoteStaged() string {
	bin := shellQuote(p.dockerBinary)
	stage := shellQuote(p.staging)

	steps := []string{
		bin + " volume create " + stage + " >/dev/null",
		p.run(true, p.staging+":"+destMount, "cd "+destMount+" && tar -xpzf -"),
		p.run(false, p.staging+":"+stageMount+":ro", "cd "+destMount+" && "+wipe+" && cp -a "+stageMount+"/. "+destMount+"/",
			p.dest+":"+destMount),
	}

	// The staging volume is removed on every path; the exit status is the
	// pipeline's.
	return strings.Join(steps, " && ") +
		"; rc=$?; " + bin + " volume rm -f " + stage + " >/dev/null 2>&1; exit $rc"
}

// run renders a disposable container invocation on the remote host.
func (p pipeline) run(stdin bool, mount, script string, extra ...string) string {
	args := []string{shellQuote(p.dockerBinary), "run", "--rm"}
	if stdin {
		args = append(args, "-i")
	}
	args = append(args, "-v", shellQuote(mount))
	for _, m := range extra {
		args = append(args, "-v", shellQuote(m))
	}
	args = append(args, shellQuote(p.image), "sh", "-c", shellQuote(script))
	return strings.Join(args, " ")
}

// wipe empties the current directory, dotfiles included.
const wipe = "find . -mindepth 1 -delete"

// incoming is the scratch directory direct mode extracts into.
const incoming = ".volxfer-incoming"

// shellQuote quotes a string for safe use in shell commands.
func shellQuote(s string) string {
	// Use single quotes and escape any single quotes in the string
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}
