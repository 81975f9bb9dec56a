// Command voicebot analyzes voice messages: speaker-class shares and a mel
// spectrogram with pitch and formant tracks.
//
// Usage:
//
//	voicebot [--config path] <command>
//
// Commands:
//
//	serve    - run the Telegram bot
//	analyze  - analyze a local audio file and write the report to disk
//	config   - print the effective configuration
//	version  - show version information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
