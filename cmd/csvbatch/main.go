// Command csvbatch reads Singer tap output and writes every stream as
// compressed CSV batch files, printing one JSON manifest per file chunk.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// register all manifest backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "csvbatch/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdin).ExecuteContext(ctx); err != nil {
		stop()
		fatalf("%v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
