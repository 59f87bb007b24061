package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-drift/motion/pkg/animation"
)

// scenario generates a reproducible batch of animation specs.
type scenario struct {
	name        string
	description string
	spec        func(i int) animation.Spec
}

var scenarios = map[string]scenario{
	"hover": {
		name:        "hover",
		description: "Staggered 200ms fades, as on a grid of hovered tiles",
		spec: func(i int) animation.Spec {
			return animation.Spec{
				Kind:     animation.Fade,
				From:     0,
				To:       1,
				Duration: 200 * time.Millisecond,
				Delay:    time.Duration(i%10) * 10 * time.Millisecond,
				Curve:    animation.EaseOut,
				Priority: animation.PriorityNormal,
			}
		},
	},
	"spring": {
		name:        "spring",
		description: "Springs released from alternating offsets",
		spec: func(i int) animation.Spec {
			presets := []string{"default", "gentle", "bouncy", "stiff", "wobbly"}
			params, _ := animation.Preset(presets[i%len(presets)])
			from := 100.0
			if i%2 == 1 {
				from = -100
			}
			return animation.Spec{
				Kind:     animation.Spring,
				From:     from,
				To:       0,
				Spring:   &params,
				Priority: animation.PriorityHigh,
			}
		},
	},
	"mixed": {
		name:        "mixed",
		description: "Every effect kind, with priorities from critical to background",
		spec: func(i int) animation.Spec {
			kinds := animation.Kinds()
			kind := kinds[i%len(kinds)]
			spec := animation.Spec{
				Kind:     kind,
				From:     0,
				To:       1,
				Duration: time.Duration(150+(i%8)*50) * time.Millisecond,
				Curve:    animation.EaseInOut,
				Priority: (i % 5) * 10,
			}
			switch kind {
			case animation.Slide:
				spec.To = 200
			case animation.Scale:
				spec.From, spec.To = 1, 1.5
			case animation.Spring:
				params := animation.DefaultSpring()
				spec.Spring = &params
				spec.Duration = 0
				spec.Curve = nil
				spec.To = 50
			}
			return spec
		},
	},
}

func lookupScenario(name string) (scenario, error) {
	sc, ok := scenarios[strings.ToLower(name)]
	if !ok {
		return scenario{}, fmt.Errorf("unknown scenario %q (want %s)", name, strings.Join(scenarioNames(), "|"))
	}
	return sc, nil
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// specs returns count specs with IDs "<scenario>-<i>" and the given target.
func (sc scenario) specs(count int, target animation.Target) []animation.Spec {
	out := make([]animation.Spec, count)
	for i := range out {
		spec := sc.spec(i)
		spec.ID = fmt.Sprintf("%s-%d", sc.name, i)
		spec.Target = target
		out[i] = spec
	}
	return out
}
