// File: cmd/cmdbufctl/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// cmdbufctl inspects packet layouts and simulates pool layouts on the host.

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/momentics/hioload-cmdbuf/log"
)

var cli struct {
	LogLevel string      `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level of the pool logger"`
	Layout   LayoutCmd   `cmd:"layout" help:"Print the byte layout of a packet shape"`
	Simulate SimulateCmd `cmd:"simulate" help:"Build the managers of a layout file and exercise them"`
	Compose  ComposeCmd  `cmd:"compose" help:"Compose a sample packet with nested command buffers and decode it"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("cmdbufctl"),
		kong.Description("Command buffer and packet pool inspection"),
		kong.UsageOnError(),
	)
	if err := run(ctx); err != nil {
		fail(err)
		os.Exit(1)
	}
}

func run(ctx *kong.Context) error {
	l, err := log.NewProduction(cli.LogLevel)
	if err != nil {
		return err
	}
	log.SetLogger(l)
	defer func() { _ = l.Sync() }()
	return ctx.Run()
}

func ok(message any, args ...any) {
	out(os.Stdout, message, args...)
}

func fail(message any, args ...any) {
	out(os.Stderr, errorLine(message, args...))
}

func errorLine(message any, args ...any) string {
	buf := new(bytes.Buffer)
	out(buf, message, args...)
	msg := buf.String()
	if !strings.HasPrefix(strings.ToLower(msg), "error") {
		msg = "Error: " + msg
	}
	return msg
}

func out(dest io.Writer, message any, args ...any) {
	s, isString := message.(string)
	if !isString {
		_, _ = fmt.Fprintln(dest, message)
		return
	}
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	if len(args) == 0 {
		_, _ = fmt.Fprint(dest, s)
		return
	}
	_, _ = fmt.Fprintf(dest, s, args...)
}
