// Package shelltest provides an in-memory device for exercising code that
// depends on shell.Runner without root or a real Android kernel.
package shelltest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rvkernel/rvkernel-mcp/internal/shell"
)

// Compile-time interface check.
var _ shell.Runner = (*Device)(nil)

// HandlerFunc answers a command that the built-in interpreter does not know.
type HandlerFunc func(args []string) shell.Result

// Device is a fake root shell over a map of file paths to contents. It
// understands the command forms issued by the sysfs accessor:
//
//	test -f 'path'
//	cat 'path'
//	echo 'value' > 'path'
//	chmod mode 'path'
//	ls 'dir'
//
// Other commands are dispatched to handlers registered with Handle, keyed
// by their first word.
type Device struct {
	mu       sync.Mutex
	files    map[string]string
	modes    map[string]string
	handlers map[string]HandlerFunc
	failing  map[string]bool
	commands []string
	runErr   error
}

// NewDevice returns a Device pre-populated with files.
func NewDevice(files map[string]string) *Device {
	d := &Device{
		files:    make(map[string]string, len(files)),
		modes:    make(map[string]string),
		handlers: make(map[string]HandlerFunc),
		failing:  make(map[string]bool),
	}
	for p, v := range files {
		d.files[p] = v
	}
	return d
}

// Set creates or replaces a file.
func (d *Device) Set(path, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[path] = content
}

// Remove deletes a file.
func (d *Device) Remove(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, path)
}

// File returns the content of path and whether it exists.
func (d *Device) File(path string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.files[path]
	return v, ok
}

// Mode returns the last mode applied to path with chmod.
func (d *Device) Mode(path string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.modes[path]
}

// SetMode sets the mode of path without recording a command.
func (d *Device) SetMode(path, mode string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.modes[path] = mode
}

// FailWrites makes every write to path exit with status 1.
func (d *Device) FailWrites(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing[path] = true
}

// SetRunError makes Run return err for every subsequent command.
func (d *Device) SetRunError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runErr = err
}

// Handle registers fn for commands whose first word is name.
func (d *Device) Handle(name string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = fn
}

// Commands returns every command received, in order.
func (d *Device) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.commands))
	copy(out, d.commands)
	return out
}

// Paths returns the sorted list of existing files.
func (d *Device) Paths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.files))
	for p := range d.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Run interprets command against the in-memory files.
func (d *Device) Run(ctx context.Context, command string) (shell.Result, error) {
	if err := ctx.Err(); err != nil {
		return shell.Result{}, err
	}

	d.mu.Lock()
	d.commands = append(d.commands, command)
	if d.runErr != nil {
		err := d.runErr
		d.mu.Unlock()
		return shell.Result{}, err
	}
	d.mu.Unlock()

	args, err := Split(command)
	if err != nil || len(args) == 0 {
		return failure("syntax error"), nil
	}

	switch args[0] {
	case "test":
		return d.test(args), nil
	case "cat":
		return d.cat(args), nil
	case "echo":
		return d.echo(args), nil
	case "chmod":
		return d.chmod(args), nil
	case "ls":
		return d.ls(args), nil
	}

	d.mu.Lock()
	fn, ok := d.handlers[args[0]]
	d.mu.Unlock()
	if !ok {
		return failure(args[0] + ": not found"), nil
	}
	return fn(args), nil
}

func (d *Device) test(args []string) shell.Result {
	if len(args) != 3 || (args[1] != "-f" && args[1] != "-e") {
		return failure("test: bad arguments")
	}
	if _, ok := d.File(args[2]); !ok {
		return shell.Result{ExitStatus: 1}
	}
	return shell.Result{}
}

func (d *Device) cat(args []string) shell.Result {
	if len(args) != 2 {
		return failure("cat: bad arguments")
	}
	content, ok := d.File(args[1])
	if !ok {
		return failure("cat: " + args[1] + ": No such file or directory")
	}
	return shell.Result{Stdout: strings.Split(strings.TrimSuffix(content, "\n"), "\n")}
}

func (d *Device) echo(args []string) shell.Result {
	if len(args) != 4 || args[2] != ">" {
		return failure("echo: unsupported form")
	}
	path := args[3]

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.files[path]; !ok {
		return failure("sh: " + path + ": No such file or directory")
	}
	if d.failing[path] {
		return failure("sh: " + path + ": Invalid argument")
	}
	if mode, ok := d.modes[path]; ok && !ownerWritable(mode) {
		return failure("sh: " + path + ": Permission denied")
	}
	d.files[path] = args[1]
	return shell.Result{}
}

func (d *Device) chmod(args []string) shell.Result {
	if len(args) != 3 {
		return failure("chmod: bad arguments")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.files[args[2]]; !ok {
		return failure("chmod: " + args[2] + ": No such file or directory")
	}
	d.modes[args[2]] = args[1]
	return shell.Result{}
}

// ls lists the immediate children of a directory. A directory exists when
// at least one file lives beneath it.
func (d *Device) ls(args []string) shell.Result {
	if len(args) != 2 {
		return failure("ls: bad arguments")
	}
	prefix := strings.TrimSuffix(args[1], "/") + "/"

	seen := make(map[string]bool)
	var names []string
	for _, p := range d.Paths() {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimPrefix(p, prefix), "/")
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return failure("ls: " + args[1] + ": No such file or directory")
	}
	return shell.Result{Stdout: names}
}

// ownerWritable reports whether the owner digit of an octal mode has the
// write bit set.
func ownerWritable(mode string) bool {
	if len(mode) < 3 {
		return true
	}
	owner := mode[len(mode)-3] - '0'
	return owner&2 != 0
}

func failure(msg string) shell.Result {
	return shell.Result{ExitStatus: 1, Stderr: []string{msg}}
}

// Split tokenizes a command line built with shell.Quote. Unquoted words are
// separated by spaces; single-quoted sections are taken literally and the
// '\'' escape is honoured.
func Split(command string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		inQuote bool
	)
	for i := 0; i < len(command); i++ {
		c := command[i]
		switch {
		case inQuote:
			if c == '\'' {
				inQuote = false
			} else {
				cur.WriteByte(c)
			}
		case c == '\'':
			inQuote = true
			inWord = true
		case c == '\\' && i+1 < len(command):
			i++
			cur.WriteByte(command[i])
			inWord = true
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteByte(c)
			inWord = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in %q", command)
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
