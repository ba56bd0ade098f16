package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcclient "github.com/lcalzada-xor/connd/internal/core/services/grpc"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: connctl [flags] <command> [args]

commands:
  list                      list services in selection order
  show <path>               print the properties of a service
  connect <path>            connect a service
  disconnect <path>         disconnect a service
  remove <path>             forget a service
  passphrase <path> <text>  set the passphrase of a service
  watch                     stream property changes

flags:
`)
	flag.PrintDefaults()
}

func main() {
	serverAddr := flag.String("server", "localhost:9000", "connd gRPC address")
	token := flag.String("token", os.Getenv("CONND_TOKEN"), "Bearer token (from POST /api/login)")
	timeout := flag.Duration("timeout", 10*time.Second, "Timeout of unary commands")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	client, conn, err := grpcclient.Dial(*serverAddr)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := &commands{api: client.WithBearer(*token), out: os.Stdout, timeout: *timeout}
	if err := cmd.run(ctx, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "connctl: %v\n", err)
		os.Exit(1)
	}
}
