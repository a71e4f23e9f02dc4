package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var ErrSelectionCancelled = errors.New("device selection cancelled")

// SelectDevice asks the user to pick a microphone on the terminal. The
// cursor starts on preferred when it names a known device. With a single
// device there is nothing to ask.
func SelectDevice(ctx Context, preferred string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	return pick(devices, preferred, os.Stdin, os.Stdout)
}

type picker struct {
	devices []DeviceInfo
	cursor  int
}

func (p *picker) up() {
	if p.cursor > 0 {
		p.cursor--
	}
}

func (p *picker) down() {
	if p.cursor < len(p.devices)-1 {
		p.cursor++
	}
}

func (p *picker) render(w io.Writer) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select microphone for voice questions (↑/↓, Enter to confirm):\r\n\r\n")
	for i, d := range p.devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = " \x1b[33m[⚠ headset mic, expect worse recognition]\x1b[0m"
		}
		if i == p.cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, tag)
		}
	}
}

// pick runs the picker over raw terminal input.
func pick(devices []DeviceInfo, preferred string, in io.Reader, out io.Writer) (*DeviceInfo, error) {
	p := &picker{devices: devices}
	for i := range devices {
		if devices[i].Name == preferred {
			p.cursor = i
		}
	}
	p.render(out)

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch {
		case n == 1 && (buf[0] == '\r' || buf[0] == '\n'):
			fmt.Fprint(out, "\r\n")
			return &devices[p.cursor], nil
		case n == 1 && (buf[0] == 3 || buf[0] == 'q'): // Ctrl+C
			fmt.Fprint(out, "\r\n")
			return nil, ErrSelectionCancelled
		case n == 1 && buf[0] == 'j':
			p.down()
		case n == 1 && buf[0] == 'k':
			p.up()
		case n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'A':
			p.up()
		case n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'B':
			p.down()
		default:
			continue
		}
		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		p.render(out)
	}
}
