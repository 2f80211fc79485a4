// Package main provides the Ember ML Framework CLI.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ember-ml/ember/autodiff"
	"github.com/ember-ml/ember/backend/cpu"
	"github.com/ember-ml/ember/tensor"
)

const version = "v0.0.1-dev"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("EMBER_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Ember ML Framework %s\n", version)
			return
		case "demo":
			if err := demo(); err != nil {
				log.Fatal().Err(err).Msg("demo failed")
			}
			return
		}
	}

	fmt.Println("Ember ML Framework - Tensors and Autodiff for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  demo       Run a small forward/backward demonstration")
}

// demo differentiates y = sum((2x - 1)^2) with respect to x.
func demo() error {
	dev := cpu.New()
	x, err := tensor.VarFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, dev)
	if err != nil {
		return err
	}
	y, err := x.Affine(2, -1)
	if err != nil {
		return err
	}
	if y, err = y.Sqr(); err != nil {
		return err
	}
	loss, err := y.SumAll()
	if err != nil {
		return err
	}
	lossVal, err := tensor.ToScalar[float32](loss)
	if err != nil {
		return err
	}
	grads, err := autodiff.Backward(loss)
	if err != nil {
		return err
	}
	gx, ok := grads.Get(x)
	if !ok {
		return fmt.Errorf("no gradient for x")
	}
	gv, err := tensor.ToVec2[float32](gx)
	if err != nil {
		return err
	}
	log.Info().Float32("loss", lossVal).Msg("forward pass complete")
	fmt.Printf("loss = %v\n", lossVal)
	fmt.Printf("dloss/dx = %v\n", gv)
	return nil
}
