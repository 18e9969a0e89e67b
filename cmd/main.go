package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"udpbench-go/pkg/udpbench"
)

func main() {
	os.Exit(run())
}

func run() int {
	test := udpbench.NewBenchTest()
	test.Init()

	if err := test.ParseArguments(os.Args[1:]); err != nil {
		udpbench.Log.Errorf("parse arguments error: %v", err)

		return udpbench.ExitCode(err)
	}

	// an interrupt ends the transfer like the alarm does
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := test.RunTest(ctx)
	if err != nil {
		udpbench.Log.Errorf("run test failed: %v", err)
	}

	test.FreeTest()

	return udpbench.ExitCode(err)
}
