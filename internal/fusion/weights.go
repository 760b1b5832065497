package fusion

import "math"

// Weights are the dynamic shares of the rule, embedding and LLM signals.
// They always sum to 1.
type Weights struct {
	Rule      float64 `json:"rule"`
	Embedding float64 `json:"embedding"`
	LLM       float64 `json:"llm"`
}

// Sum returns Rule + Embedding + LLM.
func (w Weights) Sum() float64 {
	return w.Rule + w.Embedding + w.LLM
}

// ComputeWeights runs a temperature-scaled softmax over the rule confidence,
// the embedding confidence and the LLM need (1 - structure quality), caps the
// LLM share at llmCap and hands the trimmed share to the other two in
// proportion to their weights.
func ComputeWeights(rule, embedding, structureQuality, temperature, llmCap float64) Weights {
	if !(temperature > 0) || math.IsInf(temperature, 0) {
		temperature = 1
	}
	llmCap = unit(llmCap)

	x := [3]float64{
		unit(rule) / temperature,
		unit(embedding) / temperature,
		(1 - unit(structureQuality)) / temperature,
	}
	hi := math.Max(x[0], math.Max(x[1], x[2]))

	var e [3]float64
	var sum float64
	for i := range x {
		e[i] = math.Exp(x[i] - hi)
		sum += e[i]
	}
	w := Weights{Rule: e[0] / sum, Embedding: e[1] / sum, LLM: e[2] / sum}

	if w.LLM > llmCap {
		excess := w.LLM - llmCap
		w.LLM = llmCap
		if base := w.Rule + w.Embedding; base > 0 {
			w.Rule += excess * w.Rule / base
			w.Embedding += excess * w.Embedding / base
		} else {
			w.Rule += excess / 2
			w.Embedding += excess / 2
		}
	}

	total := w.Sum()
	w.Rule /= total
	w.Embedding /= total
	w.LLM /= total
	return w
}

// unit clamps v into [0,1]; NaN becomes 0.
func unit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
