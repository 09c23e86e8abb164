// Package buildproc implements the build driver of spec.md §4.6: argv
// construction for the external build script, a pristine-environment
// child spawn, an optional sandbox hook, and post-build prefix
// verification.
//
// Grounded on the teacher's atom/process.go spawn (explicit envp,
// fork+exec, wait/reap loop). Per spec.md §9's own Design Notes ("a
// reimplementation may substitute spawn-with-explicit-envp, since the
// child's only need is an isolated environment, not shared memory with
// the parent"), this package performs exactly that substitution: an
// os/exec.Cmd with an explicit Env slice stands in for the teacher's raw
// syscall.ForkExec.
package buildproc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/shlex"

	"github.com/vsbuffalo/cellar/pkg/formula"
)

// Flags mirrors the installer mode flags that feed into the build
// child's reconstructed command line (§4.6 "sanitized_args").
type Flags struct {
	IgnoreDependencies bool
	BuildBottle        bool
	BottleArch         string
	Git                bool
	Interactive        bool
	Verbose            bool
	Debug              bool
	CC                 string
	Env                string // explicit --env=... override, empty if unset
	HEAD               bool
	Devel              bool
	UserOptions        []string // "name=value" tokens
}

// SanitizedArgs reconstructs a reproducible command-line tail from Flags,
// in the order spec.md §4.6 specifies.
func SanitizedArgs(flags Flags, stdEnv bool) []string {
	var args []string

	if flags.IgnoreDependencies {
		args = append(args, "--ignore-dependencies")
	}
	if flags.BuildBottle {
		args = append(args, "--build-bottle")
		if flags.BottleArch != "" {
			args = append(args, "--bottle-arch="+flags.BottleArch)
		}
	}
	if flags.Git {
		args = append(args, "--git")
	}
	if flags.Interactive {
		args = append(args, "--interactive")
	}
	if flags.Verbose {
		args = append(args, "--verbose")
	}
	if flags.Debug {
		args = append(args, "--debug")
	}
	if flags.CC != "" {
		args = append(args, "--cc="+flags.CC)
	}

	env := flags.Env
	if env == "" && stdEnv {
		env = "std"
	}
	if env != "" {
		args = append(args, "--env="+env)
	}

	if flags.HEAD {
		args = append(args, "--HEAD")
	} else if flags.Devel {
		args = append(args, "--devel")
	}

	args = append(args, flags.UserOptions...)
	return args
}

// Argv constructs the full build-child argv of §4.6:
//
//	nice <interpreter> -W0 -I <load_path> -- <build_script> <formula_path> <sanitized_args> <option_flags>
func Argv(interpreter, loadPath, buildScript, formulaPath string, flags Flags, stdEnv bool) []string {
	argv := []string{"nice", interpreter, "-W0", "-I", loadPath, "--", buildScript, formulaPath}
	argv = append(argv, SanitizedArgs(flags, stdEnv)...)
	return argv
}

// QuoteArgv renders argv as a shell-quoted string, for logging a
// reproducible command line. Grounded on the teacher's use of a shlex
// fork for exactly this kind of compound-value round-tripping
// (atom/settings.go, pkg/ebuild/settings.go).
func QuoteArgv(argv []string) (string, error) {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		q, err := shlex.Split(a)
		if err != nil {
			return "", fmt.Errorf("buildproc: quoting argv element %q: %w", a, err)
		}
		if len(q) != 1 || q[0] != a {
			quoted[i] = fmt.Sprintf("%q", a)
		} else {
			quoted[i] = a
		}
	}
	joined := ""
	for i, q := range quoted {
		if i > 0 {
			joined += " "
		}
		joined += q
	}
	return joined, nil
}

// Sandbox exposes the out-of-scope sandbox driver's surface (spec.md §1):
// write permission grants and the final exec.
type Sandbox interface {
	AllowWrite(path string)
	AllowWriteTemp()
	AllowWriteCache()
	AllowWriteLog(path string)
	AllowWriteCellar(path string)
	// Exec replaces the current process image with argv under env,
	// running in cwd. It never returns on success.
	Exec(ctx context.Context, argv []string, env []string, cwd string) error
}

// Driver runs the build child: pristine environment, optional sandbox,
// non-empty-prefix verification, cleanup on failure (§4.6).
type Driver struct {
	// Interpreter is the build script's interpreter binary, first argv
	// element after "nice".
	Interpreter string
	LoadPath    string
	BuildScript string

	// SandboxAvailable reports whether a sandbox driver is usable on this
	// host at all; SandboxRequested is the per-install opt-in, and
	// SandboxDisabledFor lets a caller veto sandboxing for specific
	// formulae (§4.6 "not auto-disabled for the formula").
	SandboxAvailable   bool
	SandboxRequested   bool
	SandboxDisabledFor func(f formula.Formula) bool
	NewSandbox         func(f formula.Formula, logPath, cellarPath string) Sandbox
}

// pristineEnv builds the child's explicit envp: a minimal, deterministic
// base plus whatever the caller's formula-specific build needs layered on
// top, rather than the parent's possibly-contaminated environment.
func pristineEnv(extra map[string]string) []string {
	base := map[string]string{
		"PATH":   "/usr/bin:/bin:/usr/sbin:/sbin",
		"HOME":   os.Getenv("HOME"),
		"TMPDIR": os.TempDir(),
	}
	for k, v := range extra {
		base[k] = v
	}
	env := make([]string, 0, len(base))
	for k, v := range base {
		env = append(env, k+"="+v)
	}
	return env
}

// Run executes the build child and verifies its result (§4.6).
//
// On success it returns the combined stdout+stderr log text the caller
// should persist to the formula's log file. On any failure it removes the
// (possibly partial) prefix and, if the rack is now empty, removes the
// rack too — "On any exception ... remove the (possibly partial) prefix
// and remove the rack if empty."
func (d *Driver) Run(ctx context.Context, f formula.Formula, formulaPath string, keg formula.Keg, flags Flags, stdEnv bool, envExtra map[string]string, logPath string) (logText string, err error) {
	argv := Argv(d.Interpreter, d.LoadPath, d.BuildScript, formulaPath, flags, stdEnv)
	env := pristineEnv(envExtra)

	useSandbox := d.SandboxAvailable && d.SandboxRequested && d.NewSandbox != nil
	if useSandbox && d.SandboxDisabledFor != nil && d.SandboxDisabledFor(f) {
		useSandbox = false
	}

	out, runErr := d.spawn(ctx, argv, env, keg, useSandbox, f, logPath)
	if runErr != nil {
		d.cleanupFailedPrefix(keg)
		return out, fmt.Errorf("buildproc: building %s: %w", f.FullName(), runErr)
	}

	empty, statErr := DirEmptyOrMissing(keg.KegPrefix())
	if statErr != nil {
		d.cleanupFailedPrefix(keg)
		return out, fmt.Errorf("buildproc: checking prefix for %s: %w", f.FullName(), statErr)
	}
	if empty {
		d.cleanupFailedPrefix(keg)
		return out, fmt.Errorf("buildproc: empty installation for %s", f.FullName())
	}

	return out, nil
}

func (d *Driver) spawn(ctx context.Context, argv, env []string, keg formula.Keg, useSandbox bool, f formula.Formula, logPath string) (string, error) {
	if useSandbox {
		sb := d.NewSandbox(f, logPath, keg.KegPrefix())
		sb.AllowWriteTemp()
		sb.AllowWriteCache()
		if logPath != "" {
			sb.AllowWriteLog(logPath)
		}
		sb.AllowWriteCellar(keg.KegPrefix())
		return "", sb.Exec(ctx, argv, env, keg.KegPrefix())
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Dir = filepath.Dir(keg.KegPrefix())
	out, runErr := cmd.CombinedOutput()
	return string(out), runErr
}

func (d *Driver) cleanupFailedPrefix(keg formula.Keg) {
	withSignalsMasked(func() {
		_ = os.RemoveAll(keg.KegPrefix())
		if empty, err := DirEmptyOrMissing(keg.Rack()); err == nil && empty {
			_ = os.Remove(keg.Rack())
		}
	})
}

// withSignalsMasked runs fn with SIGINT/SIGTERM delivery deferred: a
// signal arriving mid-fn is captured and redelivered to this process only
// after fn returns. Go has no direct wrapper for blocking signal delivery
// outright, so this catches and requeues instead of truly deferring the
// kernel's delivery (§4.6 "within an interrupt-masked region, remove the
// possibly partial prefix").
func withSignalsMasked(fn func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	var pending os.Signal
	for {
		select {
		case s := <-sigs:
			pending = s
		case <-done:
			if pending != nil {
				if p, err := os.FindProcess(os.Getpid()); err == nil {
					_ = p.Signal(pending)
				}
			}
			return
		}
	}
}

// DirEmptyOrMissing reports whether path does not exist or contains no
// entries, the test both post-build verification (§4.6) and the
// installer's "nothing was installed" warning (§4.4 step 12) need.
func DirEmptyOrMissing(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
