package suggest

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/patrikeh/go-deep"
	"github.com/patrikeh/go-deep/training"

	"duplicate-image-finder/internal/logx"
)

// ModelPath is the fixed location the trained classifier is persisted
// to, mirroring the spec's "no reload of a previous model" design: a
// run that enables the Suggester always overwrites this file fresh.
const ModelPath = "./mlpfile"

const (
	maxIterations  = 10000
	iterationChunk = 200
	targetMSE      = 0.01
	learningRate   = 0.1
	weightInitSeed = 1
)

// classifier wraps a go-deep network sized for the K reference
// PathClusters it was trained against.
type classifier struct {
	net *deep.Neural
	k   int
}

// trainClassifier builds a 3-layer MLP (1331 -> 20*K -> K) with a
// symmetric-sigmoid activation and trains it by SGD, checking mean
// squared error against the training set every iterationChunk
// iterations, stopping at maxIterations or once MSE drops to
// targetMSE or below, whichever comes first. The trained model is
// marshalled to ModelPath before returning.
func trainClassifier(inputs, targets [][]float64, k int, logger *logx.Logger) (*classifier, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("suggest: no training examples for %d reference clusters", k)
	}

	config := &deep.Config{
		Inputs:     histogramCells,
		Layout:     []int{20 * k, k},
		Activation: deep.ActivationTanh,
		Mode:       deep.ModeRegression,
		Weight:     deep.NewNormal(1.0, 0.0),
		Bias:       true,
	}

	// deep.NewNormal draws its initial weights from the package-global
	// math/rand source; reseed it here so a given set of reference
	// images always trains the same weights.
	rand.Seed(weightInitSeed)
	net := deep.NewNeural(config)

	examples := make(training.Examples, len(inputs))
	for i := range inputs {
		examples[i] = training.Example{Input: inputs[i], Response: targets[i]}
	}

	trainer := training.NewTrainer(training.NewSGD(learningRate, 0, 0, false), 0)

	iterationsDone := 0
	for iterationsDone < maxIterations {
		chunk := iterationChunk
		if iterationsDone+chunk > maxIterations {
			chunk = maxIterations - iterationsDone
		}
		trainer.Train(net, examples, examples, chunk)
		iterationsDone += chunk

		mse := meanSquaredError(net, examples)
		if mse <= targetMSE {
			logger.Infof("suggest: training converged after %d iterations (mse=%.4f)", iterationsDone, mse)
			break
		}
	}

	data, err := net.Marshal()
	if err != nil {
		logger.Warnf("suggest: could not marshal trained model: %v", err)
	} else if err := os.WriteFile(ModelPath, data, 0o644); err != nil {
		logger.Warnf("suggest: could not persist model to %s: %v", ModelPath, err)
	}

	return &classifier{net: net, k: k}, nil
}

func meanSquaredError(net *deep.Neural, examples training.Examples) float64 {
	var sum float64
	var count int
	for _, ex := range examples {
		predicted := net.Predict(ex.Input)
		for i := range predicted {
			diff := predicted[i] - ex.Response[i]
			sum += diff * diff
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// Predict runs inference for one feature vector, returning a
// K-length vector of real-valued scores.
func (c *classifier) Predict(features []float64) []float64 {
	return c.net.Predict(features)
}
