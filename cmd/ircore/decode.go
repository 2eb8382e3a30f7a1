package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/parser"
)

func newDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [line...]",
		Short: "Decode raw IRC lines",
		Long:  `Decodes each argument, or each line of stdin when none are given, and prints its parts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := args
			if len(lines) == 0 {
				var err error
				lines, err = readLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}
			failed := 0
			for _, line := range lines {
				message, err := parser.ParseRawIrcMessage(line)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "error: %v: %q\n\n", err, line)
					failed++
					continue
				}
				writeMessage(cmd.OutOrStdout(), message)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d lines failed to decode", failed, len(lines))
			}
			return nil
		},
	}
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func writeMessage(w io.Writer, message *entities.IrcMessage) {
	fmt.Fprintf(w, "command: %s\n", message.Command)
	if message.Source != nil {
		fmt.Fprintf(w, "source:  nick=%q user=%q host=%q\n", message.Source.Nickname, message.Source.Username, message.Source.Host)
	}
	for i, param := range message.Params {
		fmt.Fprintf(w, "param%d:  %q\n", i, param)
	}
	keys := make([]string, 0, len(message.Tags))
	for key := range message.Tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "tag:     %s=%q\n", key, message.Tags[key])
	}
	fmt.Fprintln(w)
}
