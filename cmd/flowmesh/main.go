// Command flowmesh runs demonstration pipelines on the event graph engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/flowmesh/flowmesh/engine"
	"github.com/flowmesh/flowmesh/middleware"
	"github.com/flowmesh/flowmesh/nodes/mapper"
)

var log = logrus.WithField("prefix", "main")

func main() {
	app := &cli.App{
		Name:  "flowmesh",
		Usage: "event-driven graph execution engine",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Before: func(cliCtx *cli.Context) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				log.WithError(err).Warn("could not load .env file")
			}
			if cliCtx.Bool("verbose") {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "demo",
				Usage:  "assemble a demonstration pipeline, trigger events, and print the graph summary",
				Action: runDemo,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("command failed")
	}
}

// runDemo builds a small arithmetic fan-out feeding a switch that routes by
// result size, with a mapper reshaping the routed payloads.
func runDemo(cliCtx *cli.Context) error {
	ctx := context.Background()
	graph := engine.NewGraph()
	graph.AddGlobalMiddleware(middleware.NewLogging("demo"))

	double := engine.NewNode("double",
		engine.WithType("arithmetic"),
		engine.WithProcessor(engine.ProcessorFunc(
			func(_ context.Context, event *engine.Event, _ *engine.NodeContext) (*engine.Event, error) {
				value, isNumber := event.Data.(int)
				if !isNumber {
					return nil, fmt.Errorf("expected an int, got %T", event.Data)
				}
				return engine.NewEvent(engine.EventComputationResult, value*2), nil
			})))

	addTen := engine.NewNode("add_ten",
		engine.WithType("arithmetic"),
		engine.WithProcessor(engine.ProcessorFunc(
			func(_ context.Context, event *engine.Event, _ *engine.NodeContext) (*engine.Event, error) {
				return engine.NewEvent(engine.EventComputationResult, map[string]any{
					"value": event.Data.(int) + 10,
				}), nil
			})))

	router := engine.NewSwitchNode("router", engine.SwitchConfig{
		Rules: []engine.Rule{
			{
				Name:      "large",
				Condition: map[string]any{">": []any{map[string]any{"var": "value"}, float64(100)}},
				Then:      "large_sink",
			},
		},
		DefaultTarget: "small_sink",
	}, engine.WithMiddleware(middleware.NewRequireFields(engine.EventComputationResult, "value")))

	largeSink := printerNode("large_sink")
	smallSink := printerNode("small_sink")

	reshaper, err := mapper.NewNode("reshaper", mapper.Config{
		Mappings: []mapper.Mapping{
			{Source: "original_data.value", Target: "result", Transform: "string"},
			{Source: "rule_name", Target: "route", Default: "default"},
		},
	})
	if err != nil {
		return err
	}

	for _, node := range []*engine.Node{double, addTen, router, largeSink, smallSink, reshaper} {
		if err := graph.AddNode(node); err != nil {
			return err
		}
	}
	for _, edge := range [][2]string{
		{"double", "add_ten"},
		{"add_ten", "router"},
		{"router", "large_sink"},
		{"router", "small_sink"},
		{"small_sink", "reshaper"},
	} {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return err
		}
	}

	for _, seed := range []int{5, 80} {
		log.WithField("seed", seed).Info("triggering pipeline")
		if err := graph.TriggerEvent(ctx, "double", engine.NewEvent(engine.EventDataChange, seed)); err != nil {
			return err
		}
	}

	summary, err := json.MarshalIndent(graph.Summary(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cliCtx.App.Writer, string(summary))
	return nil
}

// printerNode passes routed events through while printing their payloads.
func printerNode(id string) *engine.Node {
	return engine.NewNode(id,
		engine.WithType("printer"),
		engine.WithProcessor(engine.ProcessorFunc(
			func(_ context.Context, event *engine.Event, nodeCtx *engine.NodeContext) (*engine.Event, error) {
				rendered, err := json.Marshal(event.Data)
				if err != nil {
					return nil, err
				}
				fmt.Printf("%s <- %s\n", nodeCtx.NodeID, rendered)
				passed := event.Clone()
				passed.Type = engine.EventDataChange
				return passed, nil
			})))
}
