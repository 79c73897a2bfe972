package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"stackvm/vm"
)

func main() {
	app := &cli.App{
		Name:  "demovm",
		Usage: "load, run or disassemble a stack-machine module",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug-level tracing"},
		},
		Before: func(c *cli.Context) error {
			level := zerolog.InfoLevel
			if c.Bool("verbose") {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			disasmCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("demovm: fatal")
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "run a module to completion",
	ArgsUsage: "<file.vm>",
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.Exit("run: missing <file.vm>", 2)
		}

		env := vm.NewEnvironment(32)
		registerDemoSyscalls(env)

		m, err := vm.Load(path, env)
		if err != nil {
			return cli.Exit(fmt.Sprintf("run: %v", err), 1)
		}

		if err := m.PrepareCall(0); err != nil {
			return cli.Exit(fmt.Sprintf("run: %v", err), 1)
		}

		for {
			outcome, err := m.RunSlice()
			if err != nil {
				return cli.Exit(fmt.Sprintf("run: %v", err), 1)
			}
			switch outcome {
			case vm.OutcomeFinished:
				fmt.Printf("result: %d\n", int32(m.Peek()))
				return nil
			case vm.OutcomeError:
				log.Error().Str("status", m.Status.String()).Msg("run: vm stopped with error status")
				os.Exit(1)
			case vm.OutcomeNotFinished:
				// Cooperative yield: a real host would service its own event
				// loop here before resuming. The demo host just resumes.
				continue
			}
		}
	},
}

var disasmCommand = &cli.Command{
	Name:      "disasm",
	Usage:     "disassemble a module's code section",
	ArgsUsage: "<file.vm>",
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.Exit("disasm: missing <file.vm>", 2)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("disasm: %v", err), 1)
		}
		out, err := vm.DisassembleBytes(data)
		if err != nil {
			return cli.Exit(fmt.Sprintf("disasm: %v", err), 1)
		}
		fmt.Print(out)
		return nil
	},
}
