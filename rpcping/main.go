package main

/*
*	Demo harness for the webviz RPC layer: round-trip pings over an
*	in-process pipe or a pair of SQS queues.
 */

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chengtz/webviz"
	"github.com/fatih/color"
	"github.com/op/go-logging"
	"github.com/urfave/cli"
)

var log = webviz.SetupLogging("rpcping", logging.WARNING)

func Green(s string) string {
	green := color.New(color.FgHiGreen)
	green.EnableColor()
	return green.SprintFunc()(s)
}

func Red(s string) string {
	red := color.New(color.FgHiRed)
	red.EnableColor()
	return red.SprintFunc()(s)
}

func PrintFatal(msg string, args ...interface{}) {
	os.Stderr.WriteString(fmt.Sprintf(msg, args...) + "\n")
	os.Exit(1)
}

func registerPing(r *webviz.Rpc) {
	err := r.Receive("ping", func(req webviz.Message) (*webviz.Message, error) {
		return &webviz.Message{Data: req.Data, Attachments: req.Attachments}, nil
	})
	if err != nil {
		PrintFatal(err.Error())
	}
}

func pingOnce(r *webviz.Rpc, timeout time.Duration, sequence int) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	start := time.Now()
	reply, err := r.Call(ctx, "ping", map[string]interface{}{"seq": sequence})
	if err != nil {
		fmt.Println(Red(fmt.Sprintf("ping %d: %s", sequence, err.Error())))
		return
	}
	fmt.Println(Green(fmt.Sprintf("ping %d: %v in %s", sequence, reply.Data, time.Since(start))))
}

func loopCommand(c *cli.Context) (err error) {
	left, right := webviz.Pipe()
	caller, err := webviz.NewRpc(left)
	if err != nil {
		PrintFatal(err.Error())
	}
	responder, err := webviz.NewRpc(right)
	if err != nil {
		PrintFatal(err.Error())
	}
	registerPing(responder)
	for i := 0; i < c.Int("count"); i++ {
		pingOnce(caller, time.Second, i)
	}
	return
}

func sqsEndpoint(c *cli.Context, flip bool) *webviz.Rpc {
	prefix := c.String("prefix")
	if prefix == "" {
		PrintFatal("--prefix is required")
	}
	send, recv := prefix+"-a", prefix+"-b"
	if flip {
		send, recv = recv, send
	}
	channel, err := webviz.NewSQSChannel(send, recv)
	if err != nil {
		PrintFatal(err.Error())
	}
	r, err := webviz.NewRpc(channel)
	if err != nil {
		PrintFatal(err.Error())
	}
	return r
}

func serveCommand(c *cli.Context) (err error) {
	registerPing(sqsEndpoint(c, true))
	fmt.Println("serving pings on queue prefix " + c.String("prefix"))
	select {}
}

func pingCommand(c *cli.Context) (err error) {
	caller := sqsEndpoint(c, false)
	for i := 0; i < c.Int("count"); i++ {
		pingOnce(caller, time.Duration(c.Int("timeout"))*time.Second, i)
	}
	return
}

func main() {
	app := cli.NewApp()
	app.Name = "rpcping"
	app.Usage = "exercise the webviz RPC correlation layer"
	app.Version = "0.1.0"
	app.Commands = []cli.Command{
		cli.Command{
			Name: "loop",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "count", Value: 10},
			},
			Action: loopCommand,
		},
		cli.Command{
			Name: "serve",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "prefix"},
			},
			Action: serveCommand,
		},
		cli.Command{
			Name: "ping",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "prefix"},
				cli.IntFlag{Name: "count", Value: 10},
				cli.IntFlag{Name: "timeout", Value: 30},
			},
			Action: pingCommand,
		},
	}
	app.Run(os.Args)
}
